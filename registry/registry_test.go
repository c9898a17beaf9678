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
	"sync"
	"testing"
	"time"

	"github.com/logwarden/logwarden/feats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testArtifact(kind string) ModelArtifact {
	return ModelArtifact{
		Kind:          kind,
		SchemaVersion: feats.SchemaVersion,
		Params:        []byte{0x81, 0xa1, 0x78, 0x01},
		CorpusSize:    1000,
		Threshold:     0.72,
		Description:   "test artifact",
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)

	version, err := db.Save(testArtifact(KindBaseline))
	require.NoError(t, err)
	require.NotEmpty(t, version)

	art, err := db.Load(KindBaseline, version)
	require.NoError(t, err)
	assert.Equal(t, KindBaseline, art.Kind)
	assert.Equal(t, version, art.Version)
	assert.Equal(t, feats.SchemaVersion, art.SchemaVersion)
	assert.Equal(t, []byte{0x81, 0xa1, 0x78, 0x01}, art.Params)
	assert.Equal(t, 1000, art.CorpusSize)
	assert.Equal(t, 0.72, art.Threshold)
	assert.Equal(t, "test artifact", art.Description)
	assert.WithinDuration(t, time.Now(), art.TrainedAt, 10*time.Second)
}

func TestSaveUnknownKind(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Save(testArtifact("quantile-sketch"))
	assert.Error(t, err)
}

func TestLoadLatestResolvesNewestVersion(t *testing.T) {
	db := openTestDB(t)

	first, err := db.Save(testArtifact(KindBaseline))
	require.NoError(t, err)
	second, err := db.Save(testArtifact(KindBaseline))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	art, err := db.Load(KindBaseline, LatestVersion)
	require.NoError(t, err)
	assert.Equal(t, second, art.Version)

	// the older version stays addressable
	old, err := db.Load(KindBaseline, first)
	require.NoError(t, err)
	assert.Equal(t, first, old.Version)
}

func TestLatestPointersAreIndependentPerKind(t *testing.T) {
	db := openTestDB(t)

	bVersion, err := db.Save(testArtifact(KindBaseline))
	require.NoError(t, err)
	dVersion, err := db.Save(testArtifact(KindDensity))
	require.NoError(t, err)

	resolved, err := db.LatestVersionOf(KindBaseline)
	require.NoError(t, err)
	assert.Equal(t, bVersion, resolved)

	resolved, err = db.LatestVersionOf(KindDensity)
	require.NoError(t, err)
	assert.Equal(t, dVersion, resolved)
}

func TestLoadExplicitVersionOfOtherKind(t *testing.T) {
	db := openTestDB(t)

	version, err := db.Save(testArtifact(KindDensity))
	require.NoError(t, err)

	_, err = db.Load(KindBaseline, version)
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	art, err := db.Load(KindDensity, version)
	require.NoError(t, err)
	assert.Equal(t, KindDensity, art.Kind)
}

func TestLoadMissingVersion(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Load(KindBaseline, "no-such-version")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestLoadLatestWithEmptyRegistry(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Load(KindDensity, LatestVersion)
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	_, err = db.LatestVersionOf(KindDensity)
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestLoadSchemaMismatch(t *testing.T) {
	db := openTestDB(t)

	art := testArtifact(KindBaseline)
	art.SchemaVersion = "v0"
	version, err := db.Save(art)
	require.NoError(t, err)

	_, err = db.Load(KindBaseline, version)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestConcurrentLatestReadersDuringSaves(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Save(testArtifact(KindBaseline))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				art, err := db.Load(KindBaseline, LatestVersion)
				assert.NoError(t, err)
				// a resolved artifact is always complete
				assert.NotEmpty(t, art.Version)
				assert.NotEmpty(t, art.Params)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := db.Save(testArtifact(KindBaseline))
		require.NoError(t, err)
	}
	wg.Wait()
}
