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
	"regexp"
	"strconv"
	"strings"
	"time"
)

const combinedTimeLayout = "02/Jan/2006:15:04:05 -0700"

var (
	combinedRx = regexp.MustCompile(
		`^(\S+) (\S+) (\S+) \[([^\]]+)\] "([^"]*)" (\d{3}) (\S+) "([^"]*)" "([^"]*)"(?: ([0-9.]+))?$`)
	requestRx = regexp.MustCompile(`^([A-Z]+)\s+(\S+)(?:\s+(HTTP/[0-9.]+))?$`)
)

// knownFields are the structured-input keys mapped to Record fields;
// everything else ends up in Record.Attributes.
var knownFields = map[string]bool{
	"timestamp": true, "remote_addr": true, "ip": true, "client_ip": true,
	"remote_user": true, "user": true, "method": true, "path": true,
	"uri": true, "request_uri": true, "protocol": true, "status": true,
	"bytes_sent": true, "body_bytes_sent": true, "referrer": true,
	"referer": true, "user_agent": true, "http_user_agent": true,
	"request_time": true,
}

// ParseLine converts one raw line in the given format into a Record.
// Failures are reported as ParseError and affect only this line.
func ParseLine(line string, format Format) (Record, error) {
	switch format {
	case FormatStructured:
		return parseStructured(line)
	case FormatCombined:
		return parseCombined(line)
	default:
		return Record{}, newParseError("unsupported log format '%s'", format)
	}
}

func parseStructured(line string) (Record, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		return Record{}, newParseError("invalid JSON: %s", err)
	}
	var rec Record

	rawTime, ok := firstString(payload, "timestamp")
	if !ok {
		return Record{}, newParseError("missing required field 'timestamp'")
	}
	ts, err := parseTimestamp(rawTime)
	if err != nil {
		return Record{}, newParseError("cannot parse timestamp '%s'", rawTime)
	}
	rec.Timestamp = ts

	if rec.RemoteAddr, ok = firstString(payload, "remote_addr", "ip", "client_ip"); !ok {
		return Record{}, newParseError("missing required field 'remote_addr'")
	}
	if rec.Method, ok = firstString(payload, "method"); !ok {
		return Record{}, newParseError("missing required field 'method'")
	}
	if rec.Path, ok = firstString(payload, "path", "uri", "request_uri"); !ok {
		return Record{}, newParseError("missing required field 'path'")
	}
	status, ok := firstNumber(payload, "status")
	if !ok {
		return Record{}, newParseError("missing required field 'status'")
	}
	rec.Status = int(status)

	rec.RemoteUser, _ = firstString(payload, "remote_user", "user")
	rec.Protocol, _ = firstString(payload, "protocol")
	rec.Referrer, _ = firstString(payload, "referrer", "referer")
	rec.UserAgent, _ = firstString(payload, "user_agent", "http_user_agent")
	if v, ok := firstNumber(payload, "bytes_sent", "body_bytes_sent"); ok {
		if v < 0 {
			return Record{}, newParseError("negative bytes_sent %d", int64(v))
		}
		rec.BytesSent = int64(v)
	}
	if v, ok := firstNumber(payload, "request_time"); ok {
		dur := v
		if dur < 0 {
			return Record{}, newParseError("negative request_time %f", dur)
		}
		rec.RequestTime = &dur
	}
	for k, v := range payload {
		if knownFields[k] {
			continue
		}
		if rec.Attributes == nil {
			rec.Attributes = make(map[string]any)
		}
		rec.Attributes[k] = v
	}
	return rec, nil
}

func parseCombined(line string) (Record, error) {
	srch := combinedRx.FindStringSubmatch(strings.TrimSpace(line))
	if srch == nil {
		return Record{}, newParseError("line does not match combined grammar")
	}
	ts, err := time.Parse(combinedTimeLayout, srch[4])
	if err != nil {
		return Record{}, newParseError("cannot parse timestamp '%s'", srch[4])
	}
	reqSrch := requestRx.FindStringSubmatch(srch[5])
	if reqSrch == nil {
		return Record{}, newParseError("cannot parse request line '%s'", srch[5])
	}
	status, err := strconv.Atoi(srch[6])
	if err != nil {
		return Record{}, newParseError("invalid status '%s'", srch[6])
	}
	rec := Record{
		Timestamp:  ts,
		RemoteAddr: srch[1],
		RemoteUser: cleanDash(srch[3]),
		Method:     reqSrch[1],
		Path:       reqSrch[2],
		Protocol:   reqSrch[3],
		Status:     status,
		Referrer:   cleanDash(srch[8]),
		UserAgent:  cleanDash(srch[9]),
	}
	if v := cleanDash(srch[7]); v != "" {
		bytesSent, err := strconv.ParseInt(v, 10, 64)
		if err != nil || bytesSent < 0 {
			return Record{}, newParseError("invalid bytes_sent '%s'", srch[7])
		}
		rec.BytesSent = bytesSent
	}
	if srch[10] != "" {
		dur, err := strconv.ParseFloat(srch[10], 64)
		if err != nil {
			return Record{}, newParseError("invalid duration '%s'", srch[10])
		}
		rec.RequestTime = &dur
	}
	return rec, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(combinedTimeLayout, value)
}

func firstString(payload map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			s, ok := v.(string)
			if !ok || s == "" || s == "-" {
				continue
			}
			return s, true
		}
	}
	return "", false
}

func firstNumber(payload map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok {
			continue
		}
		switch tv := v.(type) {
		case float64:
			return tv, true
		case string:
			if tv == "" || tv == "-" {
				continue
			}
			if num, err := strconv.ParseFloat(tv, 64); err == nil {
				return num, true
			}
		}
	}
	return 0, false
}

func cleanDash(value string) string {
	if value == "-" {
		return ""
	}
	return value
}
