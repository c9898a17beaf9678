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

// Package baseline provides the frequency-baseline model: a template
// key frequency table learned in a single pass over a normal-traffic
// corpus. A record scores by the inverse rarity of its template.
package baseline

import (
	"fmt"
	"math"

	"github.com/logwarden/logwarden/feats"
	"github.com/logwarden/logwarden/models"
	"github.com/logwarden/logwarden/registry"
	"github.com/vmihailenco/msgpack/v5"
)

// defaultThresholdQuantile selects the decision threshold from the
// distribution of training scores.
const defaultThresholdQuantile = 0.95

// Model counts template key occurrences across the training corpus.
// Fitting is deterministic and non-iterative.
type Model struct {
	Counts map[string]int `msgpack:"counts"`
	Total  int            `msgpack:"total"`
}

func NewModel() *Model {
	return &Model{Counts: make(map[string]int)}
}

func (m *Model) Kind() string {
	return registry.KindBaseline
}

// Train performs the single counting pass over the corpus.
func (m *Model) Train(corpus []feats.FeatureVector) error {
	if len(corpus) == 0 {
		return fmt.Errorf("failed to train baseline model: %w", models.ErrInsufficientData)
	}
	m.Counts = make(map[string]int)
	for _, vec := range corpus {
		m.Counts[vec.TemplateKey]++
	}
	m.Total = len(corpus)
	return nil
}

// Score returns the rarity of the vector's template key in [0, 1]:
// -log of the empirical probability, normalized by the score of a
// template never seen in training. Unseen templates get exactly 1,
// continuing the seen-score curve without a discontinuity.
func (m *Model) Score(vec feats.FeatureVector) float64 {
	if m.Total == 0 {
		return 1
	}
	count := m.Counts[vec.TemplateKey]
	if count == 0 {
		return 1
	}
	prob := float64(count) / float64(m.Total)
	score := -math.Log(prob) / math.Log(float64(m.Total)+1)
	if score > 1 {
		return 1
	}
	return score
}

// CalibrateThreshold derives the default decision threshold as a high
// quantile of the training corpus scores.
func (m *Model) CalibrateThreshold(corpus []feats.FeatureVector) float64 {
	scores := make([]float64, len(corpus))
	for i, vec := range corpus {
		scores[i] = m.Score(vec)
	}
	return models.Quantile(scores, defaultThresholdQuantile)
}

// ToArtifact packs the fitted frequency table into a registry artifact.
func (m *Model) ToArtifact(threshold float64, description string) (registry.ModelArtifact, error) {
	params, err := msgpack.Marshal(m)
	if err != nil {
		return registry.ModelArtifact{}, fmt.Errorf(
			"failed to serialize baseline model: %w", err)
	}
	return registry.ModelArtifact{
		Kind:          registry.KindBaseline,
		SchemaVersion: feats.SchemaVersion,
		Params:        params,
		CorpusSize:    m.Total,
		Threshold:     threshold,
		Description:   description,
	}, nil
}

// FromArtifact rebuilds a fitted model from its stored parameters.
func FromArtifact(art registry.ModelArtifact) (*Model, error) {
	if art.Kind != registry.KindBaseline {
		return nil, fmt.Errorf(
			"failed to load baseline model from '%s' artifact: %w",
			art.Kind, models.ErrNoSuchModel)
	}
	var model Model
	if err := msgpack.Unmarshal(art.Params, &model); err != nil {
		return nil, fmt.Errorf("failed to deserialize baseline model: %w", err)
	}
	return &model, nil
}
