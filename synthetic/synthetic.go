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

// Package synthetic generates artificial access-log traffic: a clean
// "normal" profile usable as a training corpus and an attack-shaped
// mix for exercising the scoring path. Generation is seeded so fixture
// data stays stable between runs.
package synthetic

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/logwarden/logwarden/logparse"
)

var (
	normalPaths = []string{
		"/",
		"/index.html",
		"/about",
		"/pricing",
		"/api/v1/items",
		"/api/v1/cart",
		"/login",
		"/logout",
		"/static/app.js",
		"/static/styles.css",
		"/images/logo.png",
	}
	normalMethods  = []string{"GET", "GET", "GET", "POST"}
	normalStatuses = []int{200, 200, 200, 204, 301, 302, 304, 404}
	normalUsers    = []string{"", "", "", "alice", "bob", "service"}
	normalAgents   = []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		"Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36",
	}
	normalReferrers = []string{
		"",
		"https://example.com/",
		"https://google.com/search?q=shop",
		"https://news.ycombinator.com/",
	}

	attackPaths = []string{
		"/wp-admin",
		"/wp-login.php",
		"/.env",
		"/phpmyadmin",
		"/etc/passwd",
		"/admin",
		"/cgi-bin/.%2e/.%2e/.%2e/etc/passwd",
	}
	attackMethods  = []string{"PUT", "DELETE", "TRACE"}
	attackStatuses = []int{401, 403, 404, 405, 500, 502, 504}
	attackAgents   = []string{"sqlmap/1.7.2", "nikto/2.5", "curl/8.4.0", "python-requests/2.32"}
)

// Generator produces log records from a seeded random source.
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed))}
}

// Normal generates count records of regular traffic, one second apart,
// starting at startTime.
func (gen *Generator) Normal(count int, startTime time.Time) []logparse.Record {
	recs := make([]logparse.Record, count)
	for i := range recs {
		dur := 0.02 + gen.rng.Float64()*0.38
		recs[i] = logparse.Record{
			Timestamp:   startTime.Add(time.Duration(i) * time.Second),
			RemoteAddr:  fmt.Sprintf("10.0.0.%d", 2+gen.rng.IntN(249)),
			RemoteUser:  pick(gen.rng, normalUsers),
			Method:      pick(gen.rng, normalMethods),
			Path:        pick(gen.rng, normalPaths),
			Protocol:    "HTTP/1.1",
			Status:      pick(gen.rng, normalStatuses),
			BytesSent:   int64(300 + gen.rng.IntN(7700)),
			Referrer:    pick(gen.rng, normalReferrers),
			UserAgent:   pick(gen.rng, normalAgents),
			RequestTime: &dur,
		}
	}
	return recs
}

// Attacks generates count records shaped like probing or injection
// attempts: scanner paths, unusual methods, error statuses and long
// request times.
func (gen *Generator) Attacks(count int, startTime time.Time) []logparse.Record {
	recs := make([]logparse.Record, count)
	for i := range recs {
		dur := 1.2 + gen.rng.Float64()*3.8
		recs[i] = logparse.Record{
			Timestamp:   startTime.Add(time.Duration(i) * time.Second),
			RemoteAddr:  fmt.Sprintf("203.0.113.%d", 1+gen.rng.IntN(250)),
			Method:      pick(gen.rng, attackMethods),
			Path:        pick(gen.rng, attackPaths),
			Protocol:    "HTTP/1.1",
			Status:      pick(gen.rng, attackStatuses),
			BytesSent:   int64(50 + gen.rng.IntN(29950)),
			UserAgent:   pick(gen.rng, attackAgents),
			RequestTime: &dur,
		}
	}
	return recs
}

// Mixed generates total records with the given share of attacks,
// shuffled together.
func (gen *Generator) Mixed(total int, attackRatio float64, startTime time.Time) []logparse.Record {
	numAttacks := int(float64(total) * attackRatio)
	recs := gen.Normal(total-numAttacks, startTime)
	recs = append(recs, gen.Attacks(
		numAttacks, startTime.Add(time.Duration(total-numAttacks)*time.Second))...)
	gen.rng.Shuffle(len(recs), func(i, j int) {
		recs[i], recs[j] = recs[j], recs[i]
	})
	return recs
}

// ToStructuredLines serializes records as structured (JSON) lines.
func ToStructuredLines(recs []logparse.Record) ([]string, error) {
	lines := make([]string, len(recs))
	for i, rec := range recs {
		data, err := rec.ExportJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to export record: %w", err)
		}
		lines[i] = string(data)
	}
	return lines, nil
}

// ToCombinedLines serializes records in the combined-text grammar.
func ToCombinedLines(recs []logparse.Record) []string {
	lines := make([]string, len(recs))
	for i, rec := range recs {
		user := rec.RemoteUser
		if user == "" {
			user = "-"
		}
		referrer := rec.Referrer
		if referrer == "" {
			referrer = "-"
		}
		lines[i] = fmt.Sprintf(
			`%s - %s [%s] "%s %s %s" %d %d "%s" "%s" %.3f`,
			rec.RemoteAddr,
			user,
			rec.Timestamp.Format("02/Jan/2006:15:04:05 -0700"),
			rec.Method,
			rec.Path,
			rec.Protocol,
			rec.Status,
			rec.BytesSent,
			referrer,
			rec.UserAgent,
			rec.Duration(),
		)
	}
	return lines
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}
