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

package pipeline

import (
	"fmt"

	"github.com/logwarden/logwarden/feats"
	"github.com/logwarden/logwarden/logparse"
	"github.com/logwarden/logwarden/models"
	"github.com/logwarden/logwarden/models/baseline"
	"github.com/logwarden/logwarden/models/iforest"
	"github.com/logwarden/logwarden/registry"
	"github.com/rs/zerolog/log"
)

// Train fits a model of the given kind on a normal-traffic corpus and
// returns the resulting artifact (not yet saved). The corpus is
// assumed free of anomalies; the decision threshold is calibrated from
// the distribution of training scores.
func Train(
	corpus []logparse.Record,
	kind string,
	conf iforest.Conf,
	description string,
) (registry.ModelArtifact, error) {
	vectors := feats.ExtractAll(corpus)
	switch kind {
	case registry.KindBaseline:
		model := baseline.NewModel()
		if err := model.Train(vectors); err != nil {
			return registry.ModelArtifact{}, err
		}
		threshold := model.CalibrateThreshold(vectors)
		log.Info().
			Int("corpusSize", len(vectors)).
			Int("numTemplates", len(model.Counts)).
			Float64("threshold", threshold).
			Msg("trained baseline model")
		return model.ToArtifact(threshold, description)
	case registry.KindDensity:
		model := iforest.NewModel()
		if err := model.Train(vectors, conf); err != nil {
			return registry.ModelArtifact{}, err
		}
		threshold := model.CalibrateThreshold(vectors)
		log.Info().
			Int("corpusSize", len(vectors)).
			Int("numTrees", len(model.Trees)).
			Uint64("seed", model.Seed).
			Float64("threshold", threshold).
			Msg("trained density model")
		return model.ToArtifact(threshold, description)
	default:
		return registry.ModelArtifact{}, fmt.Errorf(
			"failed to train '%s': %w", kind, models.ErrNoSuchModel)
	}
}

// ParseCorpus converts raw training lines into records, skipping blank
// lines. Unlike scoring, a malformed line in a training corpus is an
// error - a corrupted corpus should not silently shrink.
func ParseCorpus(lines []string, format logparse.Format) ([]logparse.Record, error) {
	recs := make([]logparse.Record, 0, len(lines))
	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		rec, err := logparse.ParseLine(line, format)
		if err != nil {
			return nil, fmt.Errorf("training corpus line %d: %w", i+1, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
