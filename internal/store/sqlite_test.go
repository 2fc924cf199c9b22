package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "hitrate.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestSQLiteStore_VerdictRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	got, err := s.GetVerdict(ctx, "ACME STEEL|ACME STEEL WORKS")
	require.NoError(t, err)
	assert.Nil(t, got)

	v := CachedVerdict{
		PairKey:     "ACME STEEL|ACME STEEL WORKS",
		NameA:       "Acme Steel Works",
		NameB:       "Acme Steel",
		Match:       true,
		Explanation: "same company",
		Source:      "claude-haiku-4-5-20251001",
	}
	require.NoError(t, s.PutVerdict(ctx, v, time.Hour))

	got, err = s.GetVerdict(ctx, v.PairKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Match)
	assert.Equal(t, "Acme Steel Works", got.NameA)
	assert.Equal(t, "same company", got.Explanation)
	assert.True(t, got.ExpiresAt.After(got.CachedAt))

	v.Match = false
	v.Explanation = "different plant"
	require.NoError(t, s.PutVerdict(ctx, v, time.Hour))

	got, err = s.GetVerdict(ctx, v.PairKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Match)
	assert.Equal(t, "different plant", got.Explanation)
}

func TestSQLiteStore_ExpiredVerdict(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.PutVerdict(ctx, CachedVerdict{PairKey: "old", NameA: "a", NameB: "b"}, -time.Minute))
	require.NoError(t, s.PutVerdict(ctx, CachedVerdict{PairKey: "fresh", NameA: "a", NameB: "c"}, time.Hour))

	got, err := s.GetVerdict(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := s.DeleteExpiredVerdicts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = s.GetVerdict(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLiteStore_Runs(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first, err := s.CreateRun(ctx, Run{SnapshotVersion: "v1", Names: 10, Matched: 7, CreatedAt: base})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	quality, _ := json.Marshal(map[string]int{"attempted": 9})
	_, err = s.CreateRun(ctx, Run{SnapshotVersion: "v2", Names: 12, Matched: 8, Quality: quality, CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "v2", runs[0].SnapshotVersion)
	assert.JSONEq(t, `{"attempted": 9}`, string(runs[0].Quality))
	assert.Equal(t, base.Add(time.Hour), runs[0].CreatedAt)
	assert.Equal(t, "v1", runs[1].SnapshotVersion)
	assert.Nil(t, runs[1].Quality)

	runs, err = s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
