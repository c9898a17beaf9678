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

package registry

import "time"

const (
	// KindBaseline marks a template-frequency model artifact.
	KindBaseline = "baseline"

	// KindDensity marks an isolation-forest model artifact.
	KindDensity = "density"

	// LatestVersion resolves to the most recently saved artifact
	// of a kind.
	LatestVersion = "latest"
)

// ModelArtifact is the immutable output of one training run: enough to
// reproduce scoring without re-training. Params holds the
// msgpack-encoded fitted parameters specific to the model kind.
type ModelArtifact struct {
	Kind          string    `msgpack:"kind" json:"kind"`
	Version       string    `msgpack:"version" json:"version"`
	SchemaVersion string    `msgpack:"schemaVersion" json:"schemaVersion"`
	Params        []byte    `msgpack:"params" json:"-"`
	CorpusSize    int       `msgpack:"corpusSize" json:"corpusSize"`
	Threshold     float64   `msgpack:"threshold" json:"threshold"`
	TrainedAt     time.Time `msgpack:"trainedAt" json:"trainedAt"`
	Description   string    `msgpack:"description" json:"description"`
}
