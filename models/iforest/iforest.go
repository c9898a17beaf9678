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

// Package iforest provides the density model: an isolation forest over
// the numeric feature space. Points isolated by fewer random
// partitioning steps score higher. Fitting is randomized but fully
// reproducible - the random source is an explicit seed-parameterized
// generator, so identical seed and corpus yield a bit-identical
// artifact.
package iforest

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/logwarden/logwarden/feats"
	"github.com/logwarden/logwarden/models"
	"github.com/logwarden/logwarden/registry"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	dfltNumTrees      = 100
	dfltSubsampleSize = 256
	dfltContamination = 0.05
	dfltMinCorpusSize = 50

	// eulerMascheroni is used by the average unsuccessful-search
	// length c(n) of a binary search tree.
	eulerMascheroni = 0.5772156649
)

// Conf is the training configuration surface of the forest.
// Contamination only selects the default decision threshold; it never
// changes scores.
type Conf struct {
	NumTrees      int     `json:"numTrees"`
	SubsampleSize int     `json:"subsampleSize"`
	Contamination float64 `json:"contamination"`
	Seed          uint64  `json:"seed"`
	MinCorpusSize int     `json:"minCorpusSize"`
}

func (conf Conf) WithDefaults() Conf {
	if conf.NumTrees <= 0 {
		conf.NumTrees = dfltNumTrees
	}
	if conf.SubsampleSize <= 0 {
		conf.SubsampleSize = dfltSubsampleSize
	}
	if conf.Contamination <= 0 || conf.Contamination >= 1 {
		conf.Contamination = dfltContamination
	}
	if conf.MinCorpusSize <= 0 {
		conf.MinCorpusSize = dfltMinCorpusSize
	}
	return conf
}

// Node is one partition of a single isolation tree. A leaf has no
// children and records the number of training points it holds.
type Node struct {
	Attr  int     `msgpack:"attr"`
	Split float64 `msgpack:"split"`
	Size  int     `msgpack:"size"`
	Left  *Node   `msgpack:"left"`
	Right *Node   `msgpack:"right"`
}

// Model is a fitted isolation forest.
type Model struct {
	Trees         []*Node `msgpack:"trees"`
	SubsampleSize int     `msgpack:"subsampleSize"`
	Contamination float64 `msgpack:"contamination"`
	Seed          uint64  `msgpack:"seed"`
	CorpusSize    int     `msgpack:"corpusSize"`
}

func NewModel() *Model {
	return &Model{}
}

func (m *Model) Kind() string {
	return registry.KindDensity
}

// Train builds the randomized partitioning ensemble over the numeric
// part of the corpus.
func (m *Model) Train(corpus []feats.FeatureVector, conf Conf) error {
	conf = conf.WithDefaults()
	if len(corpus) < conf.MinCorpusSize {
		return fmt.Errorf(
			"failed to train density model (%d records, minimum %d): %w",
			len(corpus), conf.MinCorpusSize, models.ErrInsufficientData)
	}
	data := make([][]float64, len(corpus))
	for i, vec := range corpus {
		data[i] = vec.Values
	}
	sub := conf.SubsampleSize
	if sub > len(data) {
		sub = len(data)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sub))))

	rng := rand.New(rand.NewPCG(conf.Seed, conf.Seed))
	m.Trees = make([]*Node, conf.NumTrees)
	for i := range m.Trees {
		sample := make([][]float64, sub)
		for j, idx := range rng.Perm(len(data))[:sub] {
			sample[j] = data[idx]
		}
		m.Trees[i] = buildTree(rng, sample, 0, heightLimit)
	}
	m.SubsampleSize = sub
	m.Contamination = conf.Contamination
	m.Seed = conf.Seed
	m.CorpusSize = len(corpus)
	return nil
}

// Score returns the anomaly score of the vector in [0, 1], derived
// from the average partition depth needed to isolate the point:
// 2^(-E[h(x)] / c(subsample)). The scale does not depend on the
// ensemble size.
func (m *Model) Score(vec feats.FeatureVector) float64 {
	if len(m.Trees) == 0 {
		return 0
	}
	var total float64
	for _, tree := range m.Trees {
		total += pathLength(tree, vec.Values, 0)
	}
	avg := total / float64(len(m.Trees))
	return math.Pow(2, -avg/avgPathLength(m.SubsampleSize))
}

// CalibrateThreshold derives the default decision threshold as the
// (1 - contamination) quantile of the training corpus scores.
func (m *Model) CalibrateThreshold(corpus []feats.FeatureVector) float64 {
	scores := make([]float64, len(corpus))
	for i, vec := range corpus {
		scores[i] = m.Score(vec)
	}
	return models.Quantile(scores, 1-m.Contamination)
}

// ToArtifact packs the fitted ensemble into a registry artifact.
func (m *Model) ToArtifact(threshold float64, description string) (registry.ModelArtifact, error) {
	params, err := msgpack.Marshal(m)
	if err != nil {
		return registry.ModelArtifact{}, fmt.Errorf(
			"failed to serialize density model: %w", err)
	}
	return registry.ModelArtifact{
		Kind:          registry.KindDensity,
		SchemaVersion: feats.SchemaVersion,
		Params:        params,
		CorpusSize:    m.CorpusSize,
		Threshold:     threshold,
		Description:   description,
	}, nil
}

// FromArtifact rebuilds a fitted model from its stored parameters.
func FromArtifact(art registry.ModelArtifact) (*Model, error) {
	if art.Kind != registry.KindDensity {
		return nil, fmt.Errorf(
			"failed to load density model from '%s' artifact: %w",
			art.Kind, models.ErrNoSuchModel)
	}
	var model Model
	if err := msgpack.Unmarshal(art.Params, &model); err != nil {
		return nil, fmt.Errorf("failed to deserialize density model: %w", err)
	}
	return &model, nil
}

func buildTree(rng *rand.Rand, sample [][]float64, depth, heightLimit int) *Node {
	if depth >= heightLimit || len(sample) <= 1 {
		return &Node{Size: len(sample)}
	}
	attrs := splittableAttrs(sample)
	if len(attrs) == 0 {
		// all remaining points identical
		return &Node{Size: len(sample)}
	}
	attr := attrs[rng.IntN(len(attrs))]
	lo, hi := attrRange(sample, attr)
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range sample {
		if row[attr] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return &Node{
		Attr:  attr,
		Split: split,
		Left:  buildTree(rng, left, depth+1, heightLimit),
		Right: buildTree(rng, right, depth+1, heightLimit),
	}
}

func splittableAttrs(sample [][]float64) []int {
	var attrs []int
	for attr := range sample[0] {
		lo, hi := attrRange(sample, attr)
		if hi > lo {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

func attrRange(sample [][]float64, attr int) (float64, float64) {
	lo, hi := sample[0][attr], sample[0][attr]
	for _, row := range sample[1:] {
		if row[attr] < lo {
			lo = row[attr]
		}
		if row[attr] > hi {
			hi = row[attr]
		}
	}
	return lo, hi
}

func pathLength(node *Node, values []float64, depth float64) float64 {
	if node.Left == nil {
		return depth + avgPathLength(node.Size)
	}
	if node.Attr < len(values) && values[node.Attr] < node.Split {
		return pathLength(node.Left, values, depth+1)
	}
	return pathLength(node.Right, values, depth+1)
}

// avgPathLength is c(n), the average path length of an unsuccessful
// search in a binary search tree of n nodes.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerMascheroni) - 2*(fn-1)/fn
}
