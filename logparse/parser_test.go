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

package logparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructured(t *testing.T) {
	line := `{"timestamp": "2024-06-01T10:30:00Z", "remote_addr": "10.0.0.7", ` +
		`"method": "GET", "path": "/api/v1/items", "protocol": "HTTP/1.1", ` +
		`"status": 200, "bytes_sent": 512, "user_agent": "Mozilla/5.0", ` +
		`"request_time": 0.125, "upstream": "web-02"}`
	rec, err := ParseLine(line, FormatStructured)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", rec.RemoteAddr)
	assert.Equal(t, "GET", rec.Method)
	assert.Equal(t, "/api/v1/items", rec.Path)
	assert.Equal(t, 200, rec.Status)
	assert.Equal(t, int64(512), rec.BytesSent)
	assert.Equal(t, "Mozilla/5.0", rec.UserAgent)
	require.NotNil(t, rec.RequestTime)
	assert.Equal(t, 0.125, *rec.RequestTime)
	assert.True(t, rec.Timestamp.Equal(time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, map[string]any{"upstream": "web-02"}, rec.Attributes)
}

func TestParseStructuredFieldAliases(t *testing.T) {
	line := `{"timestamp": "2024-06-01T10:30:00Z", "ip": "10.0.0.7", ` +
		`"method": "POST", "uri": "/login", "status": "302", "body_bytes_sent": "94"}`
	rec, err := ParseLine(line, FormatStructured)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", rec.RemoteAddr)
	assert.Equal(t, "/login", rec.Path)
	assert.Equal(t, 302, rec.Status)
	assert.Equal(t, int64(94), rec.BytesSent)
}

func TestParseStructuredNegativeBytesSent(t *testing.T) {
	line := `{"timestamp": "2024-06-01T10:30:00Z", "remote_addr": "10.0.0.7", ` +
		`"method": "GET", "path": "/", "status": 200, "bytes_sent": -5}`
	_, err := ParseLine(line, FormatStructured)
	assert.ErrorAs(t, err, &ParseError{})
	assert.ErrorContains(t, err, "bytes_sent")
}

func TestParseStructuredRoundTrip(t *testing.T) {
	line := `{"timestamp": "2024-06-01T10:30:00Z", "remote_addr": "10.0.0.7", ` +
		`"remote_user": "alice", "method": "GET", "path": "/pricing", ` +
		`"protocol": "HTTP/1.1", "status": 200, "bytes_sent": 1024, ` +
		`"referrer": "https://example.com/", "user_agent": "Mozilla/5.0", ` +
		`"request_time": 0.2, "region": "eu-1"}`
	rec, err := ParseLine(line, FormatStructured)
	require.NoError(t, err)
	exported, err := rec.ExportJSON()
	require.NoError(t, err)
	rec2, err := ParseLine(string(exported), FormatStructured)
	require.NoError(t, err)
	assert.Equal(t, rec, rec2)
}

func TestParseStructuredMissingRequired(t *testing.T) {
	line := `{"timestamp": "2024-06-01T10:30:00Z", "remote_addr": "10.0.0.7", ` +
		`"method": "GET", "path": "/x"}`
	_, err := ParseLine(line, FormatStructured)
	assert.ErrorAs(t, err, &ParseError{})
	assert.ErrorContains(t, err, "status")
}

func TestParseStructuredInvalidJSON(t *testing.T) {
	_, err := ParseLine("this is not json", FormatStructured)
	assert.ErrorAs(t, err, &ParseError{})
}

func TestParseCombined(t *testing.T) {
	line := `203.0.113.4 - alice [01/Jun/2024:10:30:00 +0200] ` +
		`"POST /api/v1/cart/42 HTTP/1.1" 201 348 "https://example.com/" "Mozilla/5.0" 0.050`
	rec, err := ParseLine(line, FormatCombined)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.4", rec.RemoteAddr)
	assert.Equal(t, "alice", rec.RemoteUser)
	assert.Equal(t, "POST", rec.Method)
	assert.Equal(t, "/api/v1/cart/42", rec.Path)
	assert.Equal(t, "HTTP/1.1", rec.Protocol)
	assert.Equal(t, 201, rec.Status)
	assert.Equal(t, int64(348), rec.BytesSent)
	assert.Equal(t, "https://example.com/", rec.Referrer)
	require.NotNil(t, rec.RequestTime)
	assert.Equal(t, 0.05, *rec.RequestTime)
	expected := time.Date(2024, 6, 1, 10, 30, 0, 0, time.FixedZone("", 2*3600))
	assert.True(t, rec.Timestamp.Equal(expected))
}

func TestParseCombinedDashPlaceholders(t *testing.T) {
	line := `10.0.0.2 - - [01/Jun/2024:10:30:00 +0000] "GET / HTTP/1.1" 304 - "-" "-"`
	rec, err := ParseLine(line, FormatCombined)
	require.NoError(t, err)
	assert.Equal(t, "", rec.RemoteUser)
	assert.Equal(t, int64(0), rec.BytesSent)
	assert.Equal(t, "", rec.Referrer)
	assert.Equal(t, "", rec.UserAgent)
	assert.Nil(t, rec.RequestTime)
}

func TestParseCombinedNegativeBytesSent(t *testing.T) {
	line := `10.0.0.2 - - [01/Jun/2024:10:30:00 +0000] "GET / HTTP/1.1" 200 -5 "-" "Mozilla/5.0"`
	_, err := ParseLine(line, FormatCombined)
	assert.ErrorAs(t, err, &ParseError{})
	assert.ErrorContains(t, err, "bytes_sent")
}

func TestParseCombinedMissingClosingQuote(t *testing.T) {
	line := `10.0.0.2 - - [01/Jun/2024:10:30:00 +0000] "GET / HTTP/1.1" 200 42 "-" "Mozilla/5.0 0.020`
	_, err := ParseLine(line, FormatCombined)
	assert.ErrorAs(t, err, &ParseError{})
}

func TestParseCombinedBadTimestamp(t *testing.T) {
	line := `10.0.0.2 - - [tomorrow] "GET / HTTP/1.1" 200 42 "-" "Mozilla/5.0"`
	_, err := ParseLine(line, FormatCombined)
	assert.ErrorAs(t, err, &ParseError{})
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := ParseLine("anything", Format("xml"))
	assert.Error(t, err)
}
