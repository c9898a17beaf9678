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

package stats

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/logwarden/logwarden/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	database, err := NewDatabase(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	require.NoError(t, database.Init())
	t.Cleanup(func() { database.Close() })
	return database
}

func testResults() []pipeline.AnomalyResult {
	ts := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	return []pipeline.AnomalyResult{
		{
			Timestamp:   ts,
			RemoteAddr:  "10.0.0.7",
			Path:        "/",
			TemplateKey: "GET / 2xx",
			Score:       0.12,
			Threshold:   0.7,
		},
		{
			Timestamp:   ts.Add(time.Second),
			RemoteAddr:  "203.0.113.5",
			Path:        "/wp-admin",
			TemplateKey: "GET /wp-admin 4xx",
			Score:       0.93,
			IsAnomaly:   true,
			Threshold:   0.7,
		},
		{
			Timestamp:   ts.Add(2 * time.Second),
			RemoteAddr:  "203.0.113.9",
			Path:        "/.env",
			TemplateKey: "GET /.env 4xx",
			Score:       0.81,
			IsAnomaly:   true,
			Threshold:   0.7,
		},
		{
			ParseFailed: true,
			ParseError:  "invalid JSON object",
		},
	}
}

func TestAddAndFetchAnomalies(t *testing.T) {
	database := openTestDatabase(t)
	require.NoError(t, database.AddResults(testResults()))

	anomalies, err := database.Anomalies(10, 0)
	require.NoError(t, err)
	require.Len(t, anomalies, 2)

	// ordered by score, highest first
	assert.Equal(t, "/wp-admin", anomalies[0].Path)
	assert.Equal(t, 0.93, anomalies[0].Score)
	assert.True(t, anomalies[0].IsAnomaly)
	assert.Equal(t, "/.env", anomalies[1].Path)
}

func TestAnomaliesMinScore(t *testing.T) {
	database := openTestDatabase(t)
	require.NoError(t, database.AddResults(testResults()))

	anomalies, err := database.Anomalies(10, 0.9)
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "/wp-admin", anomalies[0].Path)
}

func TestAnomaliesLimit(t *testing.T) {
	database := openTestDatabase(t)
	require.NoError(t, database.AddResults(testResults()))

	anomalies, err := database.Anomalies(1, 0)
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, 0.93, anomalies[0].Score)
}

func TestGetMetrics(t *testing.T) {
	database := openTestDatabase(t)

	empty, err := database.GetMetrics()
	require.NoError(t, err)
	assert.Zero(t, empty.TotalEvents)
	assert.Zero(t, empty.AnomalyRate)
	assert.Nil(t, empty.LastIngest)

	require.NoError(t, database.AddResults(testResults()))

	metrics, err := database.GetMetrics()
	require.NoError(t, err)
	assert.Equal(t, 4, metrics.TotalEvents)
	assert.Equal(t, 2, metrics.Anomalies)
	assert.Equal(t, 1, metrics.ParseFailed)
	assert.Equal(t, 0.5, metrics.AnomalyRate)
	require.NotNil(t, metrics.LastIngest)
}
