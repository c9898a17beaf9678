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
	"encoding/json"
	"fmt"
	"time"
)

// Format selects the wire representation of raw log lines.
type Format string

const (
	// FormatStructured means one self-describing JSON object per line.
	FormatStructured Format = "structured"

	// FormatCombined means the fixed positional grammar
	// `address - user [time] "method path protocol" status bytes "referrer" "user-agent" duration`.
	FormatCombined Format = "combined-text"
)

func (f Format) Validate() error {
	if f != FormatStructured && f != FormatCombined {
		return fmt.Errorf("unsupported log format '%s'", f)
	}
	return nil
}

// ParseError describes a single malformed input line. It is recoverable
// per-line - a batch containing bad lines still processes the rest.
type ParseError struct {
	Reason string
}

func (err ParseError) Error() string {
	return fmt.Sprintf("failed to parse log line: %s", err.Reason)
}

func newParseError(reason string, args ...any) ParseError {
	return ParseError{Reason: fmt.Sprintf(reason, args...)}
}

// Record is one normalized request observation. Timestamp, RemoteAddr,
// Method, Path and Status are always present after a successful parse;
// a line unable to provide them fails with ParseError instead of being
// silently defaulted.
type Record struct {
	Timestamp  time.Time
	RemoteAddr string
	RemoteUser string
	Method     string
	Path       string
	Protocol   string
	Status     int
	BytesSent  int64
	Referrer   string
	UserAgent  string

	// RequestTime is the request duration in seconds. Nil means the
	// input did not report a duration (distinct from zero).
	RequestTime *float64

	// Attributes preserves structured-input fields this package does
	// not model itself.
	Attributes map[string]any
}

// Duration returns the reported request time, or 0 when absent.
func (rec Record) Duration() float64 {
	if rec.RequestTime == nil {
		return 0
	}
	return *rec.RequestTime
}

// ExportJSON serializes the record as one structured-format line.
// The output parses back to an identical Record.
func (rec Record) ExportJSON() ([]byte, error) {
	data := make(map[string]any)
	for k, v := range rec.Attributes {
		data[k] = v
	}
	data["timestamp"] = rec.Timestamp.Format(time.RFC3339Nano)
	data["remote_addr"] = rec.RemoteAddr
	data["method"] = rec.Method
	data["path"] = rec.Path
	data["status"] = rec.Status
	data["bytes_sent"] = rec.BytesSent
	if rec.RemoteUser != "" {
		data["remote_user"] = rec.RemoteUser
	}
	if rec.Protocol != "" {
		data["protocol"] = rec.Protocol
	}
	if rec.Referrer != "" {
		data["referrer"] = rec.Referrer
	}
	if rec.UserAgent != "" {
		data["user_agent"] = rec.UserAgent
	}
	if rec.RequestTime != nil {
		data["request_time"] = *rec.RequestTime
	}
	return json.Marshal(data)
}
