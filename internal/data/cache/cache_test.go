package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/engine/classify"
	"atlas/internal/fetch"
)

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"), ttl, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleCoords() fetch.Coords {
	return fetch.Coords{Owner: "octocat", Repo: "spoon-knife", Branch: "main"}
}

func sampleEntities() []*classify.Entity {
	return []*classify.Entity{
		{
			Name:   "Button",
			Role:   classify.RoleReusableUnit,
			File:   "components/Button.tsx",
			Props:  []classify.PropField{{Name: "label", Type: "string", Required: true}},
			Uses:   []string{"Icon"},
			UsedBy: []string{"HomePage"},
		},
		{
			Name:   "HomePage",
			Role:   classify.RolePage,
			File:   "app/page.tsx",
			Props:  []classify.PropField{},
			Uses:   []string{"Button"},
			UsedBy: []string{},
		},
	}
}

func sampleFiles() []fetch.FileRecord {
	return []fetch.FileRecord{
		{Path: "app/page.tsx", Kind: "blob", URL: "https://example.test/app/page.tsx"},
		{Path: "components/Button.tsx", Kind: "blob", URL: "https://example.test/components/Button.tsx"},
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint(sampleCoords())
	b := Fingerprint(sampleCoords())
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Fingerprint(fetch.Coords{Owner: "octocat", Repo: "spoon-knife", Branch: "dev"}))
}

func TestRoundTrip(t *testing.T) {
	store := openTestStore(t, time.Hour)
	coords := sampleCoords()

	store.Put(coords, sampleEntities(), sampleFiles(), 3, 2)

	record, ok := store.Get(coords)
	require.True(t, ok)
	assert.Equal(t, sampleEntities(), record.Entities)
	assert.Equal(t, sampleFiles(), record.Files)
	assert.Equal(t, coords, record.Coords)
	assert.Equal(t, FormatVersion, record.FormatVersion)
	assert.Equal(t, 3, record.TotalFiles)
	assert.Equal(t, 2, record.AnalyzedFiles)
	assert.True(t, record.ExpiresAt.After(record.CapturedAt))
}

func TestMissOnUnknownCoords(t *testing.T) {
	store := openTestStore(t, time.Hour)

	_, ok := store.Get(sampleCoords())
	assert.False(t, ok)
}

func TestExpiredRecordIsMissAndRemoved(t *testing.T) {
	store := openTestStore(t, -time.Minute)
	coords := sampleCoords()

	store.Put(coords, sampleEntities(), sampleFiles(), 3, 2)

	_, ok := store.Get(coords)
	assert.False(t, ok)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
}

func TestVersionMismatchInvalidates(t *testing.T) {
	store := openTestStore(t, time.Hour)
	coords := sampleCoords()

	store.Put(coords, sampleEntities(), sampleFiles(), 3, 2)
	store.version++

	_, ok := store.Get(coords)
	assert.False(t, ok)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
}

func TestStatsAndClear(t *testing.T) {
	store := openTestStore(t, time.Hour)

	store.Put(sampleCoords(), sampleEntities(), sampleFiles(), 3, 2)
	store.Put(fetch.Coords{Owner: "octocat", Repo: "hello-world", Branch: "main"}, nil, sampleFiles(), 2, 0)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Positive(t, stats.TotalBytes)
	assert.False(t, stats.Oldest.IsZero())
	assert.False(t, stats.Newest.Before(stats.Oldest))

	require.NoError(t, store.Clear())
	stats, err = store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
	assert.Zero(t, stats.TotalBytes)
}

func TestPlanEvictionsExpiredAndVersion(t *testing.T) {
	now := time.Now().UTC()
	records := []Summary{
		{Key: "fresh", FormatVersion: 1, CapturedAt: now, ExpiresAt: now.Add(time.Hour), SizeBytes: 10},
		{Key: "stale", FormatVersion: 1, CapturedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour), SizeBytes: 10},
		{Key: "old-format", FormatVersion: 0, CapturedAt: now, ExpiresAt: now.Add(time.Hour), SizeBytes: 10},
	}

	plan := PlanEvictions(records, now, 1, 0)
	assert.Equal(t, map[string]EvictionReason{
		"stale":      ReasonExpired,
		"old-format": ReasonVersion,
	}, plan)
}

func TestPlanEvictionsSizeCapOldestFirst(t *testing.T) {
	now := time.Now().UTC()
	records := []Summary{
		{Key: "a", FormatVersion: 1, CapturedAt: now.Add(-3 * time.Hour), ExpiresAt: now.Add(time.Hour), SizeBytes: 40},
		{Key: "b", FormatVersion: 1, CapturedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(time.Hour), SizeBytes: 40},
		{Key: "c", FormatVersion: 1, CapturedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour), SizeBytes: 40},
	}

	plan := PlanEvictions(records, now, 1, 100)
	assert.Equal(t, map[string]EvictionReason{"a": ReasonOverCap}, plan)

	plan = PlanEvictions(records, now, 1, 50)
	assert.Equal(t, map[string]EvictionReason{"a": ReasonOverCap, "b": ReasonOverCap}, plan)
}

func TestPlanEvictionsNoCapNoEvictions(t *testing.T) {
	now := time.Now().UTC()
	records := []Summary{
		{Key: "a", FormatVersion: 1, CapturedAt: now, ExpiresAt: now.Add(time.Hour), SizeBytes: 1 << 30},
	}

	assert.Empty(t, PlanEvictions(records, now, 1, 0))
}
