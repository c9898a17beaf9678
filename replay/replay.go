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

// Package replay sends recorded or generated log lines to a running
// scoring server in timed batches. It serves as a smoke test and a
// rough throughput measurement of a deployed instance.
package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/czcorpus/cnc-gokit/httpclient"
	"github.com/logwarden/logwarden/logparse"
	"github.com/rs/zerolog/log"
)

const (
	idleConnTimeoutSecs = 60
	requestTimeoutSecs  = 60
)

type BatchOutcome struct {
	Received      int `json:"received"`
	Anomalies     int `json:"anomalies"`
	ParseFailures int `json:"parseFailures"`
}

// Summary aggregates the outcome of a full replay run.
type Summary struct {
	Batches       int           `json:"batches"`
	Events        int           `json:"events"`
	Anomalies     int           `json:"anomalies"`
	ParseFailures int           `json:"parseFailures"`
	TotalTime     time.Duration `json:"totalTime"`
	EventsPerSec  float64       `json:"eventsPerSec"`
}

type Executor struct {
	serverURL string
	batchSize int
	client    *http.Client
}

func NewExecutor(serverURL string, batchSize int) *Executor {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = httpclient.TransportMaxIdleConns
	transport.MaxConnsPerHost = httpclient.TransportMaxConnsPerHost
	transport.MaxIdleConnsPerHost = httpclient.TransportMaxIdleConnsPerHost
	transport.IdleConnTimeout = time.Duration(idleConnTimeoutSecs) * time.Second
	return &Executor{
		serverURL: serverURL,
		batchSize: batchSize,
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Timeout:   time.Duration(requestTimeoutSecs) * time.Second,
			Transport: transport,
		},
	}
}

// RunFull replays all lines in batches. A failed batch is logged and
// skipped; the run continues with the next one.
func (e *Executor) RunFull(lines []string, format logparse.Format) (Summary, error) {
	if err := format.Validate(); err != nil {
		return Summary{}, fmt.Errorf("failed to run replay: %w", err)
	}
	var ans Summary
	t0 := time.Now()
	for start := 0; start < len(lines); start += e.batchSize {
		end := start + e.batchSize
		if end > len(lines) {
			end = len(lines)
		}
		resp, dur, err := e.SendBatch(lines[start:end], format)
		if err != nil {
			log.Error().
				Err(err).
				Int("batchStart", start).
				Msg("failed to replay batch, skipping to the next")
			continue
		}
		fmt.Printf("batch %d: %d events in %v\n", ans.Batches, resp.Received, dur)
		ans.Batches++
		ans.Events += resp.Received
		ans.Anomalies += resp.Anomalies
		ans.ParseFailures += resp.ParseFailures
	}
	ans.TotalTime = time.Since(t0)
	if ans.TotalTime > 0 {
		ans.EventsPerSec = float64(ans.Events) / ans.TotalTime.Seconds()
	}
	return ans, nil
}

// SendBatch posts one batch to the server's scoring endpoint and
// reports the server's verdict counts along with the request duration.
func (e *Executor) SendBatch(
	lines []string,
	format logparse.Format,
) (BatchOutcome, time.Duration, error) {
	var ans BatchOutcome
	fullURL, err := url.JoinPath(e.serverURL, "/score")
	if err != nil {
		return ans, 0, fmt.Errorf("failed to send batch: %w", err)
	}
	body, err := json.Marshal(map[string]any{
		"format": format,
		"lines":  lines,
	})
	if err != nil {
		return ans, 0, fmt.Errorf("failed to send batch: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return ans, 0, fmt.Errorf("failed to send batch: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	t0 := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return ans, 0, fmt.Errorf("failed to send batch: %w", err)
	}
	defer resp.Body.Close()
	dur := time.Since(t0)
	if resp.StatusCode != http.StatusOK {
		return ans, dur, fmt.Errorf(
			"failed to send batch: server returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return ans, dur, fmt.Errorf("failed to send batch: %w", err)
	}
	return ans, dur, nil
}
