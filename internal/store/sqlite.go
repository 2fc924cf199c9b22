package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix nanoseconds so expiry checks compare integers.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS verdict_cache (
	pair_key    TEXT PRIMARY KEY,
	name_a      TEXT NOT NULL,
	name_b      TEXT NOT NULL,
	is_match    INTEGER NOT NULL,
	explanation TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	cached_at   INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reconcile_runs (
	id               TEXT PRIMARY KEY,
	snapshot_version TEXT NOT NULL,
	names            INTEGER NOT NULL,
	matched          INTEGER NOT NULL,
	quality          TEXT,
	created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verdict_cache_expires_at ON verdict_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_reconcile_runs_created_at ON reconcile_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetVerdict(ctx context.Context, pairKey string) (*CachedVerdict, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pair_key, name_a, name_b, is_match, explanation, source, cached_at, expires_at
		 FROM verdict_cache WHERE pair_key = ? AND expires_at > ?`,
		pairKey, time.Now().UnixNano(),
	)

	var (
		v                   CachedVerdict
		match               int
		cachedAt, expiresAt int64
	)
	err := row.Scan(&v.PairKey, &v.NameA, &v.NameB, &match, &v.Explanation, &v.Source, &cachedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get verdict %s", pairKey)
	}
	v.Match = match != 0
	v.CachedAt = time.Unix(0, cachedAt).UTC()
	v.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return &v, nil
}

func (s *SQLiteStore) PutVerdict(ctx context.Context, v CachedVerdict, ttl time.Duration) error {
	now := time.Now().UTC()
	match := 0
	if v.Match {
		match = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verdict_cache (pair_key, name_a, name_b, is_match, explanation, source, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pair_key) DO UPDATE SET
		   name_a = excluded.name_a, name_b = excluded.name_b, is_match = excluded.is_match,
		   explanation = excluded.explanation, source = excluded.source,
		   cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		v.PairKey, v.NameA, v.NameB, match, v.Explanation, v.Source, now.UnixNano(), now.Add(ttl).UnixNano(),
	)
	return eris.Wrapf(err, "sqlite: put verdict %s", v.PairKey)
}

func (s *SQLiteStore) DeleteExpiredVerdicts(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM verdict_cache WHERE expires_at <= ?`, time.Now().UnixNano())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired verdicts")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run Run) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var quality any
	if len(run.Quality) > 0 {
		quality = string(run.Quality)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reconcile_runs (id, snapshot_version, names, matched, quality, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.SnapshotVersion, run.Names, run.Matched, quality, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, snapshot_version, names, matched, quality, created_at
		 FROM reconcile_runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			quality   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.SnapshotVersion, &r.Names, &r.Matched, &quality, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if quality.Valid {
			r.Quality = []byte(quality.String)
		}
		r.CreatedAt = time.Unix(0, createdAt).UTC()
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
