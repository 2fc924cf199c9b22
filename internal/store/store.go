// Package store persists the adjudication verdict cache and the history of
// reconciliation runs. It is a cache, never the system of record: losing it
// only costs repeated adjudication calls.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// CachedVerdict is a stored adjudication decision for one name pair.
type CachedVerdict struct {
	PairKey     string    `json:"pair_key"`
	NameA       string    `json:"name_a"`
	NameB       string    `json:"name_b"`
	Match       bool      `json:"match"`
	Explanation string    `json:"explanation,omitempty"`
	Source      string    `json:"source,omitempty"`
	CachedAt    time.Time `json:"cached_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Run records one reconciliation pass.
type Run struct {
	ID              string          `json:"id"`
	SnapshotVersion string          `json:"snapshot_version"`
	Names           int             `json:"names"`
	Matched         int             `json:"matched"`
	Quality         json.RawMessage `json:"quality,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Store defines the persistence interface.
type Store interface {
	// Verdict cache. GetVerdict returns nil, nil on a miss or an expired entry.
	GetVerdict(ctx context.Context, pairKey string) (*CachedVerdict, error)
	PutVerdict(ctx context.Context, v CachedVerdict, ttl time.Duration) error
	DeleteExpiredVerdicts(ctx context.Context) (int, error)

	// Run history, newest first.
	CreateRun(ctx context.Context, run Run) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultRunLimit = 50
