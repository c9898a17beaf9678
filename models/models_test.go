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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantile(t *testing.T) {
	values := []float64{0.5, 0.1, 0.9, 0.3, 0.7}
	assert.Equal(t, 0.1, Quantile(values, 0))
	assert.Equal(t, 0.5, Quantile(values, 0.5))
	assert.Equal(t, 0.9, Quantile(values, 1))
	assert.Equal(t, 0.9, Quantile(values, 0.95))
}

func TestQuantileDoesNotMutateInput(t *testing.T) {
	values := []float64{0.9, 0.1, 0.5}
	Quantile(values, 0.5)
	assert.Equal(t, []float64{0.9, 0.1, 0.5}, values)
}

func TestQuantileEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Quantile(nil, 0.95))
}
