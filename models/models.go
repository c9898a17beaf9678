// Copyright 2025 The Logwarden Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

import (
	"errors"
	"math"
	"sort"

	"github.com/logwarden/logwarden/feats"
)

var (
	// ErrInsufficientData means a training corpus is below the
	// configured minimum size. Training on too few normal samples
	// produces an unreliable threshold, so the run is rejected.
	ErrInsufficientData = errors.New("training corpus too small")

	// ErrNoSuchModel means an unknown model kind was requested.
	ErrNoSuchModel = errors.New("no such model")
)

// Scorer is the capability shared by all model kinds: score one
// feature vector with a bounded anomaly score in [0, 1], higher
// meaning more anomalous.
type Scorer interface {
	Kind() string
	Score(vec feats.FeatureVector) float64
}

// Quantile returns the q-quantile of values (0 <= q <= 1) using
// nearest-rank on a sorted copy. Used to calibrate default decision
// thresholds from training scores.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
