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

package synthetic

import (
	"testing"
	"time"

	"github.com/logwarden/logwarden/logparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func TestGeneratorDeterminism(t *testing.T) {
	recs1 := NewGenerator(11).Normal(50, testStart)
	recs2 := NewGenerator(11).Normal(50, testStart)
	assert.Equal(t, recs1, recs2)

	other := NewGenerator(12).Normal(50, testStart)
	assert.NotEqual(t, recs1, other)
}

func TestNormalTrafficShape(t *testing.T) {
	recs := NewGenerator(1).Normal(100, testStart)
	require.Len(t, recs, 100)
	for _, rec := range recs {
		assert.NotEmpty(t, rec.RemoteAddr)
		assert.NotEmpty(t, rec.Method)
		assert.NotEmpty(t, rec.Path)
		assert.NotZero(t, rec.Status)
		require.NotNil(t, rec.RequestTime)
		assert.Less(t, *rec.RequestTime, 1.0)
	}
	assert.Equal(t, testStart.Add(99*time.Second), recs[99].Timestamp)
}

func TestAttackTrafficShape(t *testing.T) {
	recs := NewGenerator(1).Attacks(50, testStart)
	require.Len(t, recs, 50)
	for _, rec := range recs {
		assert.GreaterOrEqual(t, rec.Status, 400)
		require.NotNil(t, rec.RequestTime)
		assert.Greater(t, *rec.RequestTime, 1.0)
	}
}

func TestMixedRatio(t *testing.T) {
	recs := NewGenerator(3).Mixed(200, 0.1, testStart)
	require.Len(t, recs, 200)
	var attacks int
	for _, rec := range recs {
		if rec.Status >= 400 && *rec.RequestTime > 1.0 {
			attacks++
		}
	}
	// normal traffic also contains some 404s, so count only the
	// status+duration combination unique to the attack profile
	assert.Equal(t, 20, attacks)
}

func TestStructuredLinesParseBack(t *testing.T) {
	recs := NewGenerator(5).Mixed(40, 0.2, testStart)
	lines, err := ToStructuredLines(recs)
	require.NoError(t, err)
	require.Len(t, lines, 40)

	for i, line := range lines {
		parsed, err := logparse.ParseLine(line, logparse.FormatStructured)
		require.NoError(t, err, "line %d", i)
		assert.Equal(t, recs[i].Path, parsed.Path)
		assert.Equal(t, recs[i].Status, parsed.Status)
		assert.True(t, recs[i].Timestamp.Equal(parsed.Timestamp))
	}
}

func TestCombinedLinesParseBack(t *testing.T) {
	recs := NewGenerator(5).Normal(40, testStart)
	lines := ToCombinedLines(recs)
	require.Len(t, lines, 40)

	for i, line := range lines {
		parsed, err := logparse.ParseLine(line, logparse.FormatCombined)
		require.NoError(t, err, "line %d", i)
		assert.Equal(t, recs[i].RemoteAddr, parsed.RemoteAddr)
		assert.Equal(t, recs[i].Method, parsed.Method)
		assert.Equal(t, recs[i].Path, parsed.Path)
		assert.Equal(t, recs[i].Status, parsed.Status)
		assert.Equal(t, recs[i].BytesSent, parsed.BytesSent)
		require.NotNil(t, parsed.RequestTime)
		assert.InDelta(t, recs[i].Duration(), *parsed.RequestTime, 0.001)
	}
}
