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

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/logwarden/logwarden/logparse"
)

var (
	numericSegmentRx = regexp.MustCompile(`^\d+$`)
	uuidSegmentRx    = regexp.MustCompile(
		`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexSegmentRx = regexp.MustCompile(`^[0-9a-fA-F]{6,}$`)

	suspiciousPathRx = regexp.MustCompile(
		`(?i)(\.\./|/\.env|/wp-admin|/wp-login|/phpmyadmin|/etc/passwd|/\.git|/admin|/login)`)
	sqlKeywordRx = regexp.MustCompile(`(?i)(union|select|insert|drop|or%201=1|sleep\()`)
	botAgentRx   = regexp.MustCompile(`(?i)(bot|crawler|spider|scrapy|curl|wget|sqlmap|nikto)`)
)

var staticExtensions = map[string]bool{
	".css": true, ".js": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".ico": true, ".svg": true, ".woff": true, ".woff2": true,
}

// Extract maps a log record to its feature vector. It is a pure
// function of the record under the current SchemaVersion - the same
// record always yields a bit-identical vector.
func Extract(rec logparse.Record) FeatureVector {
	path := rec.Path
	if path == "" {
		path = "/"
	}
	cleanPath := stripQuery(path)

	values := make([]float64, NumFeatures)
	values[0] = float64(rec.Status)
	values[1] = float64(statusClass(rec.Status))
	values[2] = methodCode(rec.Method)
	values[3] = float64(strings.Count(cleanPath, "/"))
	values[4] = float64(len(path))
	values[5] = math.Log1p(float64(rec.BytesSent))
	values[6] = math.Log1p(rec.Duration())
	if rec.RequestTime == nil {
		// missing duration is imputed as 0 above; the indicator keeps
		// the absence visible without changing the vector length
		values[7] = 1
	}
	if rec.UserAgent != "" {
		values[8] = 1
	}
	if rec.Referrer != "" {
		values[9] = 1
	}
	hour := float64(rec.Timestamp.Hour())
	values[10] = hour
	values[11] = math.Sin(2 * math.Pi * hour / 24)
	values[12] = math.Cos(2 * math.Pi * hour / 24)
	weekday := rec.Timestamp.Weekday()
	values[13] = float64(weekday)
	if weekday == 0 || weekday == 6 {
		values[14] = 1
	}
	if strings.Contains(path, "?") {
		values[15] = 1
	}
	if staticExtensions[pathExtension(cleanPath)] {
		values[16] = 1
	}
	if suspiciousPathRx.MatchString(path) {
		values[17] = 1
	}
	if sqlKeywordRx.MatchString(path) {
		values[18] = 1
	}
	if botAgentRx.MatchString(rec.UserAgent) {
		values[19] = 1
	}

	return FeatureVector{
		TemplateKey: TemplateKey(rec),
		Values:      values,
	}
}

// ExtractAll featurizes a corpus in order.
func ExtractAll(recs []logparse.Record) []FeatureVector {
	ans := make([]FeatureVector, len(recs))
	for i, rec := range recs {
		ans[i] = Extract(rec)
	}
	return ans
}

// TemplateKey builds the categorical fingerprint of a request:
// method + normalized path shape + status class
// (e.g. `GET /api/v1/* 4xx`). High-cardinality path segments collapse
// to a wildcard so /cart/42 and /cart/57 share one template.
func TemplateKey(rec logparse.Record) string {
	return fmt.Sprintf(
		"%s %s %dxx",
		strings.ToUpper(rec.Method), NormalizePath(rec.Path), statusClass(rec.Status))
}

// NormalizePath strips the query string and replaces numeric,
// UUID-shaped and long hexadecimal path segments with `*`.
func NormalizePath(path string) string {
	clean := stripQuery(path)
	if clean == "" {
		return "/"
	}
	segments := strings.Split(clean, "/")
	for i, seg := range segments {
		if numericSegmentRx.MatchString(seg) ||
			uuidSegmentRx.MatchString(seg) ||
			hexSegmentRx.MatchString(seg) {
			segments[i] = "*"
		}
	}
	return strings.Join(segments, "/")
}

func statusClass(status int) int {
	if status < 100 || status > 599 {
		return 0
	}
	return status / 100
}

func methodCode(method string) float64 {
	if code, ok := methodCodes[strings.ToUpper(method)]; ok {
		return code
	}
	return methodCodeOther
}

func stripQuery(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		return path[:idx]
	}
	return path
}

func pathExtension(cleanPath string) string {
	idx := strings.LastIndexByte(cleanPath, '.')
	if idx < 0 || idx < strings.LastIndexByte(cleanPath, '/') {
		return ""
	}
	return strings.ToLower(cleanPath[idx:])
}
