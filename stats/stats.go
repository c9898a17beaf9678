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

// Package stats persists scoring results into a local sqlite database
// and answers simple aggregate queries over them. It is an external
// collaborator of the scoring core - nothing here feeds back into
// model decisions.
package stats

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/logwarden/logwarden/pipeline"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	return &Database{db: db}, nil
}

func (database *Database) Close() error {
	if database != nil && database.db != nil {
		return database.db.Close()
	}
	return nil
}

func (database *Database) Init() error {
	_, err := database.db.Exec(
		"CREATE TABLE IF NOT EXISTS scored_records (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"timestamp INTEGER NOT NULL, " +
			"remoteAddr TEXT NOT NULL, " +
			"path TEXT NOT NULL, " +
			"templateKey TEXT NOT NULL, " +
			"score FLOAT NOT NULL, " +
			"isAnomaly INT NOT NULL DEFAULT 0, " +
			"threshold FLOAT NOT NULL, " +
			"parseFailed INT NOT NULL DEFAULT 0, " +
			"parseError TEXT, " +
			"createdAt INTEGER NOT NULL" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	_, err = database.db.Exec(
		"CREATE INDEX IF NOT EXISTS scored_records_anomaly_idx " +
			"ON scored_records(isAnomaly, score)",
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// AddResults appends a scored batch in a single transaction.
func (database *Database) AddResults(results []pipeline.AnomalyResult) error {
	tx, err := database.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to store results: %w", err)
	}
	now := time.Now().Unix()
	for _, result := range results {
		_, err = tx.Exec(
			"INSERT INTO scored_records "+
				"(timestamp, remoteAddr, path, templateKey, score, isAnomaly, "+
				"threshold, parseFailed, parseError, createdAt) "+
				"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			result.Timestamp.Unix(),
			result.RemoteAddr,
			result.Path,
			result.TemplateKey,
			result.Score,
			result.IsAnomaly,
			result.Threshold,
			result.ParseFailed,
			result.ParseError,
			now,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to store results: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to store results: %w", err)
	}
	log.Debug().Int("numResults", len(results)).Msg("stored scored batch")
	return nil
}

// Anomalies returns up to limit stored anomalies ordered by score,
// optionally restricted to scores at or above minScore.
func (database *Database) Anomalies(limit int, minScore float64) ([]ResultRecord, error) {
	rows, err := database.db.Query(
		"SELECT timestamp, remoteAddr, path, templateKey, score, isAnomaly, "+
			"threshold, parseFailed, parseError, createdAt "+
			"FROM scored_records "+
			"WHERE isAnomaly = 1 AND score >= ? "+
			"ORDER BY score DESC LIMIT ?",
		minScore,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch anomalies: %w", err)
	}
	defer rows.Close()
	ans := make([]ResultRecord, 0, limit)
	for rows.Next() {
		var rec ResultRecord
		var ts, createdAt int64
		var parseError sql.NullString
		err := rows.Scan(
			&ts, &rec.RemoteAddr, &rec.Path, &rec.TemplateKey, &rec.Score,
			&rec.IsAnomaly, &rec.Threshold, &rec.ParseFailed, &parseError,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch anomalies: %w", err)
		}
		rec.Timestamp = time.Unix(ts, 0)
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.ParseError = parseError.String
		ans = append(ans, rec)
	}
	return ans, rows.Err()
}

// GetMetrics aggregates the stored scoring history.
func (database *Database) GetMetrics() (Metrics, error) {
	var ans Metrics
	row := database.db.QueryRow(
		"SELECT COUNT(*), " +
			"COALESCE(SUM(isAnomaly), 0), " +
			"COALESCE(SUM(parseFailed), 0), " +
			"MAX(createdAt) " +
			"FROM scored_records",
	)
	var lastIngest sql.NullInt64
	if err := row.Scan(&ans.TotalEvents, &ans.Anomalies, &ans.ParseFailed, &lastIngest); err != nil {
		return ans, fmt.Errorf("failed to fetch metrics: %w", err)
	}
	if ans.TotalEvents > 0 {
		ans.AnomalyRate = float64(ans.Anomalies) / float64(ans.TotalEvents)
	}
	if lastIngest.Valid {
		formatted := time.Unix(lastIngest.Int64, 0).Format(time.RFC3339)
		ans.LastIngest = &formatted
	}
	return ans, nil
}
