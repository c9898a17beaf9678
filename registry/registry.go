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

package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/logwarden/logwarden/feats"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrArtifactNotFound means the requested version (or the latest
	// pointer for the kind) does not exist in the registry.
	ErrArtifactNotFound = errors.New("model artifact not found")

	// ErrSchemaMismatch means the artifact was trained against a
	// different feature schema than the extractor currently produces.
	ErrSchemaMismatch = errors.New("feature schema version mismatch")
)

const (
	artifactKeyPrefix = "artifact:"
	latestKeyPrefix   = "latest:"
)

// DB is a wrapper around badger.DB providing concrete methods for
// storing and resolving versioned model artifacts. Artifact and
// latest-pointer writes share one transaction, so a concurrent reader
// resolving "latest" sees either the previous or the new complete
// artifact, never a partial one.
type DB struct {
	bdb *badger.DB
}

func OpenDB(path string) (*DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact registry: %w", err)
	}
	return &DB{bdb: db}, nil
}

// Close closes the internal Badger database. It is possible to call
// the method on a nil instance or an uninitialized DB, in which case
// it is a NOP.
func (db *DB) Close() error {
	if db != nil && db.bdb != nil {
		return db.bdb.Close()
	}
	return nil
}

// Save stores the artifact under a fresh version identifier and moves
// the kind's latest pointer to it. The artifact is immutable once
// written; Save never overwrites an existing version.
func (db *DB) Save(art ModelArtifact) (string, error) {
	if art.Kind != KindBaseline && art.Kind != KindDensity {
		return "", fmt.Errorf("failed to save artifact: unknown model kind '%s'", art.Kind)
	}
	if art.Version == "" {
		art.Version = uuid.NewString()
	}
	if art.TrainedAt.IsZero() {
		art.TrainedAt = time.Now()
	}
	data, err := msgpack.Marshal(art)
	if err != nil {
		return "", fmt.Errorf("failed to serialize artifact: %w", err)
	}
	err = db.bdb.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(artifactKeyPrefix+art.Version), data); err != nil {
			return err
		}
		return txn.Set([]byte(latestKeyPrefix+art.Kind), []byte(art.Version))
	})
	if err != nil {
		return "", fmt.Errorf("failed to save artifact: %w", err)
	}
	return art.Version, nil
}

// Load fetches an artifact by version, resolving LatestVersion via the
// kind's latest pointer. A version holding an artifact of a different
// kind is reported as not found. An artifact recorded under a different
// feature schema fails with ErrSchemaMismatch rather than being scored
// against incompatible feature indices.
func (db *DB) Load(kind, version string) (ModelArtifact, error) {
	var art ModelArtifact
	err := db.bdb.View(func(txn *badger.Txn) error {
		resolved := version
		if version == LatestVersion {
			item, err := txn.Get([]byte(latestKeyPrefix + kind))
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				resolved = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		item, err := txn.Get([]byte(artifactKeyPrefix + resolved))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &art)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ModelArtifact{}, fmt.Errorf(
			"%w (kind: %s, version: %s)", ErrArtifactNotFound, kind, version)
	}
	if err != nil {
		return ModelArtifact{}, fmt.Errorf("failed to load artifact: %w", err)
	}
	if art.Kind != kind {
		return ModelArtifact{}, fmt.Errorf(
			"%w (version %s holds a '%s' artifact, not '%s')",
			ErrArtifactNotFound, art.Version, art.Kind, kind)
	}
	if art.SchemaVersion != feats.SchemaVersion {
		return ModelArtifact{}, fmt.Errorf(
			"%w (artifact: %s, current: %s)",
			ErrSchemaMismatch, art.SchemaVersion, feats.SchemaVersion)
	}
	return art, nil
}

// LatestVersionOf resolves the version identifier the latest pointer
// of a kind currently refers to.
func (db *DB) LatestVersionOf(kind string) (string, error) {
	var version string
	err := db.bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKeyPrefix + kind))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			version = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w (kind: %s)", ErrArtifactNotFound, kind)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve latest version: %w", err)
	}
	return version, nil
}
