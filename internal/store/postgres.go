package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock pools satisfy
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS verdict_cache (
	pair_key    TEXT PRIMARY KEY,
	name_a      TEXT NOT NULL,
	name_b      TEXT NOT NULL,
	is_match    BOOLEAN NOT NULL,
	explanation TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	cached_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reconcile_runs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	snapshot_version TEXT NOT NULL,
	names            INTEGER NOT NULL,
	matched          INTEGER NOT NULL,
	quality          JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_verdict_cache_expires_at ON verdict_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_reconcile_runs_created_at ON reconcile_runs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetVerdict(ctx context.Context, pairKey string) (*CachedVerdict, error) {
	var v CachedVerdict
	err := s.pool.QueryRow(ctx,
		`SELECT pair_key, name_a, name_b, is_match, explanation, source, cached_at, expires_at
		 FROM verdict_cache WHERE pair_key = $1 AND expires_at > now()`,
		pairKey,
	).Scan(&v.PairKey, &v.NameA, &v.NameB, &v.Match, &v.Explanation, &v.Source, &v.CachedAt, &v.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get verdict %s", pairKey)
	}
	return &v, nil
}

func (s *PostgresStore) PutVerdict(ctx context.Context, v CachedVerdict, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO verdict_cache (pair_key, name_a, name_b, is_match, explanation, source, cached_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (pair_key) DO UPDATE SET
		   name_a = EXCLUDED.name_a, name_b = EXCLUDED.name_b, is_match = EXCLUDED.is_match,
		   explanation = EXCLUDED.explanation, source = EXCLUDED.source,
		   cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		v.PairKey, v.NameA, v.NameB, v.Match, v.Explanation, v.Source, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: put verdict %s", v.PairKey)
}

func (s *PostgresStore) DeleteExpiredVerdicts(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verdict_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired verdicts")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run Run) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var quality any
	if len(run.Quality) > 0 {
		quality = []byte(run.Quality)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reconcile_runs (id, snapshot_version, names, matched, quality, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.SnapshotVersion, run.Names, run.Matched, quality, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, snapshot_version, names, matched, quality, created_at
		 FROM reconcile_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			quality []byte
		)
		if err := rows.Scan(&r.ID, &r.SnapshotVersion, &r.Names, &r.Matched, &quality, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Quality = quality
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
