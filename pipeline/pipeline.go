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

// Package pipeline orchestrates parsing, feature extraction and model
// scoring into per-record anomaly verdicts. The only state it holds is
// the currently loaded model set, swapped atomically on reload; each
// scoring call captures its own snapshot once and never re-reads it
// mid-batch.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/logwarden/logwarden/feats"
	"github.com/logwarden/logwarden/logparse"
	"github.com/logwarden/logwarden/models/baseline"
	"github.com/logwarden/logwarden/models/iforest"
	"github.com/logwarden/logwarden/registry"
	"github.com/rs/zerolog/log"
)

const (
	dfltBaselineWeight = 0.5
	dfltDensityWeight  = 0.5
)

// ErrNoModelLoaded means scoring was requested before any artifact
// became available.
var ErrNoModelLoaded = errors.New("no model loaded")

// ScoringConf configures the combination of model scores into one
// verdict. A zero Threshold defers to the calibrated threshold
// recorded in the loaded artifact.
type ScoringConf struct {
	BaselineWeight float64 `json:"baselineWeight"`
	DensityWeight  float64 `json:"densityWeight"`
	Threshold      float64 `json:"threshold"`
}

func (conf ScoringConf) WithDefaults() ScoringConf {
	if conf.BaselineWeight == 0 && conf.DensityWeight == 0 {
		conf.BaselineWeight = dfltBaselineWeight
		conf.DensityWeight = dfltDensityWeight
	}
	return conf
}

// AnomalyResult is the verdict for one scored input line. For lines
// failing to parse, ParseFailed is set and the scoring fields stay
// zero - a batch keeps a uniform shape regardless of bad lines.
type AnomalyResult struct {
	Timestamp     time.Time `json:"timestamp"`
	RemoteAddr    string    `json:"remoteAddr"`
	Path          string    `json:"path"`
	TemplateKey   string    `json:"templateKey"`
	Score         float64   `json:"score"`
	IsAnomaly     bool      `json:"isAnomaly"`
	BaselineScore *float64  `json:"baselineScore,omitempty"`
	DensityScore  *float64  `json:"densityScore,omitempty"`
	Threshold     float64   `json:"threshold"`
	ParseFailed   bool      `json:"parseFailed,omitempty"`
	ParseError    string    `json:"parseError,omitempty"`
}

// modelSet is an immutable snapshot of the loaded models. Either model
// may be absent; its contribution is then omitted (not defaulted to
// zero) and the combination renormalizes over the active set.
type modelSet struct {
	baseline    *baseline.Model
	baselineArt registry.ModelArtifact
	density     *iforest.Model
	densityArt  registry.ModelArtifact
}

// LoadedModelInfo describes the artifacts a pipeline currently scores
// with.
type LoadedModelInfo struct {
	Baseline *registry.ModelArtifact `json:"baseline,omitempty"`
	Density  *registry.ModelArtifact `json:"density,omitempty"`
}

type Pipeline struct {
	conf    ScoringConf
	current atomic.Pointer[modelSet]
}

func NewPipeline(conf ScoringConf) *Pipeline {
	p := &Pipeline{conf: conf.WithDefaults()}
	p.current.Store(&modelSet{})
	return p
}

// LoadArtifacts replaces the current model set with the given
// artifacts in a single atomic swap. In-flight scoring calls complete
// against the snapshot they captured at call start.
func (p *Pipeline) LoadArtifacts(arts ...registry.ModelArtifact) error {
	next := &modelSet{}
	for _, art := range arts {
		switch art.Kind {
		case registry.KindBaseline:
			model, err := baseline.FromArtifact(art)
			if err != nil {
				return err
			}
			next.baseline = model
			next.baselineArt = art
		case registry.KindDensity:
			model, err := iforest.FromArtifact(art)
			if err != nil {
				return err
			}
			next.density = model
			next.densityArt = art
		default:
			return fmt.Errorf("failed to load artifact '%s': unknown kind '%s'", art.Version, art.Kind)
		}
	}
	p.current.Store(next)
	return nil
}

// ReloadFrom loads the latest artifact of each kind from the registry
// and swaps them in atomically. A kind with no stored artifact is
// skipped; having neither kind is an error.
func (p *Pipeline) ReloadFrom(db *registry.DB) error {
	var arts []registry.ModelArtifact
	for _, kind := range []string{registry.KindBaseline, registry.KindDensity} {
		art, err := db.Load(kind, registry.LatestVersion)
		if errors.Is(err, registry.ErrArtifactNotFound) {
			log.Warn().Str("kind", kind).Msg("no artifact stored, skipping model")
			continue
		}
		if err != nil {
			return err
		}
		arts = append(arts, art)
	}
	if len(arts) == 0 {
		return ErrNoModelLoaded
	}
	if err := p.LoadArtifacts(arts...); err != nil {
		return err
	}
	for _, art := range arts {
		log.Info().
			Str("kind", art.Kind).
			Str("version", art.Version).
			Int("corpusSize", art.CorpusSize).
			Msg("loaded model artifact")
	}
	return nil
}

// LoadedInfo reports the artifacts of the current snapshot.
func (p *Pipeline) LoadedInfo() LoadedModelInfo {
	ms := p.current.Load()
	var info LoadedModelInfo
	if ms.baseline != nil {
		art := ms.baselineArt
		info.Baseline = &art
	}
	if ms.density != nil {
		art := ms.densityArt
		info.Density = &art
	}
	return info
}

// ScoreBatch scores raw lines in the given format. Parse failures are
// captured per-line as parse-failure results; they never abort the
// remaining lines. Blank lines are skipped.
func (p *Pipeline) ScoreBatch(lines []string, format logparse.Format) ([]AnomalyResult, error) {
	ms := p.current.Load()
	if ms.baseline == nil && ms.density == nil {
		return nil, ErrNoModelLoaded
	}
	results := make([]AnomalyResult, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		results = append(results, p.scoreLine(ms, line, format))
	}
	return results, nil
}

func (p *Pipeline) scoreLine(ms *modelSet, line string, format logparse.Format) AnomalyResult {
	rec, err := logparse.ParseLine(line, format)
	if err != nil {
		var perr logparse.ParseError
		reason := err.Error()
		if errors.As(err, &perr) {
			reason = perr.Reason
		}
		return AnomalyResult{
			ParseFailed: true,
			ParseError:  reason,
		}
	}
	vec := feats.Extract(rec)
	result := AnomalyResult{
		Timestamp:   rec.Timestamp,
		RemoteAddr:  rec.RemoteAddr,
		Path:        rec.Path,
		TemplateKey: vec.TemplateKey,
		Threshold:   p.threshold(ms),
	}
	var weightSum float64
	if ms.baseline != nil {
		score := ms.baseline.Score(vec)
		result.BaselineScore = &score
		result.Score += p.conf.BaselineWeight * score
		weightSum += p.conf.BaselineWeight
	}
	if ms.density != nil {
		score := ms.density.Score(vec)
		result.DensityScore = &score
		result.Score += p.conf.DensityWeight * score
		weightSum += p.conf.DensityWeight
	}
	if weightSum > 0 {
		result.Score /= weightSum
	}
	result.IsAnomaly = result.Score > result.Threshold
	return result
}

// threshold picks the decision threshold for the snapshot: an explicit
// configured value wins, otherwise the calibrated threshold of the
// density artifact, then of the baseline artifact.
func (p *Pipeline) threshold(ms *modelSet) float64 {
	if p.conf.Threshold > 0 {
		return p.conf.Threshold
	}
	if ms.density != nil && ms.baseline != nil {
		return (p.conf.DensityWeight*ms.densityArt.Threshold +
			p.conf.BaselineWeight*ms.baselineArt.Threshold) /
			(p.conf.DensityWeight + p.conf.BaselineWeight)
	}
	if ms.density != nil {
		return ms.densityArt.Threshold
	}
	return ms.baselineArt.Threshold
}
