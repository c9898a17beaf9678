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

package baseline

import (
	"testing"

	"github.com/logwarden/logwarden/feats"
	"github.com/logwarden/logwarden/models"
	"github.com/logwarden/logwarden/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corpusOf(keyCounts map[string]int) []feats.FeatureVector {
	var corpus []feats.FeatureVector
	for key, count := range keyCounts {
		for i := 0; i < count; i++ {
			corpus = append(corpus, feats.FeatureVector{TemplateKey: key})
		}
	}
	return corpus
}

func TestTrainCountsTemplates(t *testing.T) {
	model := NewModel()
	err := model.Train(corpusOf(map[string]int{
		"GET / 2xx":       90,
		"GET /api/* 2xx":  9,
		"POST /login 4xx": 1,
	}))
	require.NoError(t, err)
	assert.Equal(t, 100, model.Total)
	assert.Equal(t, 90, model.Counts["GET / 2xx"])
	assert.Equal(t, 1, model.Counts["POST /login 4xx"])
}

func TestTrainEmptyCorpus(t *testing.T) {
	model := NewModel()
	err := model.Train(nil)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestScoreMonotonicInRarity(t *testing.T) {
	model := NewModel()
	require.NoError(t, model.Train(corpusOf(map[string]int{
		"GET / 2xx":       90,
		"GET /api/* 2xx":  9,
		"POST /login 4xx": 1,
	})))

	common := model.Score(feats.FeatureVector{TemplateKey: "GET / 2xx"})
	rare := model.Score(feats.FeatureVector{TemplateKey: "GET /api/* 2xx"})
	rarest := model.Score(feats.FeatureVector{TemplateKey: "POST /login 4xx"})
	unseen := model.Score(feats.FeatureVector{TemplateKey: "DELETE /admin 5xx"})

	assert.Less(t, common, rare)
	assert.Less(t, rare, rarest)
	assert.Less(t, rarest, unseen)
	assert.Equal(t, 1.0, unseen)
	assert.GreaterOrEqual(t, common, 0.0)
}

func TestScoreRange(t *testing.T) {
	model := NewModel()
	require.NoError(t, model.Train(corpusOf(map[string]int{"GET / 2xx": 50})))

	score := model.Score(feats.FeatureVector{TemplateKey: "GET / 2xx"})
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestCalibrateThreshold(t *testing.T) {
	model := NewModel()
	corpus := corpusOf(map[string]int{
		"GET / 2xx":     95,
		"GET /rare 2xx": 5,
	})
	require.NoError(t, model.Train(corpus))

	threshold := model.CalibrateThreshold(corpus)
	assert.Greater(t, threshold, 0.0)
	assert.LessOrEqual(t, threshold, 1.0)
	// common traffic must stay below the calibrated threshold
	assert.LessOrEqual(
		t, model.Score(feats.FeatureVector{TemplateKey: "GET / 2xx"}), threshold)
}

func TestArtifactRoundTrip(t *testing.T) {
	model := NewModel()
	corpus := corpusOf(map[string]int{
		"GET / 2xx":      80,
		"POST /cart 2xx": 20,
	})
	require.NoError(t, model.Train(corpus))

	art, err := model.ToArtifact(0.87, "nightly retrain")
	require.NoError(t, err)
	assert.Equal(t, registry.KindBaseline, art.Kind)
	assert.Equal(t, feats.SchemaVersion, art.SchemaVersion)
	assert.Equal(t, 100, art.CorpusSize)
	assert.Equal(t, 0.87, art.Threshold)

	restored, err := FromArtifact(art)
	require.NoError(t, err)
	assert.Equal(t, model.Counts, restored.Counts)
	assert.Equal(t, model.Total, restored.Total)

	vec := feats.FeatureVector{TemplateKey: "POST /cart 2xx"}
	assert.Equal(t, model.Score(vec), restored.Score(vec))
}

func TestFromArtifactKindMismatch(t *testing.T) {
	art := registry.ModelArtifact{Kind: registry.KindDensity}
	_, err := FromArtifact(art)
	assert.ErrorIs(t, err, models.ErrNoSuchModel)
}
