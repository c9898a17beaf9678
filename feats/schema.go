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

package feats

// SchemaVersion identifies the feature layout below. Artifacts record
// the version they were trained against; a model trained under a
// different version must refuse to score current vectors.
const SchemaVersion = "v1"

// FeatureNames lists the numeric features in their fixed vector order.
// Changing order, meaning or count requires a new SchemaVersion.
var FeatureNames = []string{
	"status",
	"status_class",
	"method_code",
	"path_depth",
	"path_length",
	"bytes_log1p",
	"reqtime_log1p",
	"duration_missing",
	"has_user_agent",
	"has_referrer",
	"hour",
	"hour_sin",
	"hour_cos",
	"weekday",
	"is_weekend",
	"has_query",
	"is_static",
	"suspicious_path",
	"sql_keyword",
	"bot_ua",
}

// NumFeatures is the fixed length of every feature vector under the
// current SchemaVersion.
var NumFeatures = len(FeatureNames)

var methodCodes = map[string]float64{
	"GET":     0,
	"POST":    1,
	"PUT":     2,
	"DELETE":  3,
	"PATCH":   4,
	"HEAD":    5,
	"OPTIONS": 6,
}

// methodCodeOther covers any method outside the closed enumeration.
const methodCodeOther = 7

// FeatureVector is the derived, immutable representation of one log
// record: a categorical template key plus the fixed-order numeric tuple.
type FeatureVector struct {
	TemplateKey string    `json:"templateKey"`
	Values      []float64 `json:"values"`
}
