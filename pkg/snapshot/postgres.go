package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultPostgresTable is the table used when NewPostgres gets an empty name.
const DefaultPostgresTable = "cache_snapshots"

// Postgres stores snapshot blobs in a key/value table.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres creates a store that keeps blobs in table. The caller owns the pool.
// Call EnsureSchema once before use if the table is not managed by migrations.
func NewPostgres(pool *pgxpool.Pool, table string) *Postgres {
	if table == "" {
		table = DefaultPostgresTable
	}
	return &Postgres{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, p.table)

	if _, err := p.pool.Exec(ctx, query); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	var data []byte
	query := fmt.Sprintf(`SELECT data FROM %s WHERE key = $1`, p.table)
	if err := p.pool.QueryRow(ctx, query, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrLoadFailed, err)
	}
	return data, nil
}

func (p *Postgres) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	query := fmt.Sprintf(`INSERT INTO %s (key, data, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, p.table)
	if _, err := p.pool.Exec(ctx, query, key, data); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, p.table)
	if _, err := p.pool.Exec(ctx, query, key); err != nil {
		return errors.Join(ErrDeleteFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)

// OpenPostgres creates a pgx pool from a postgres:// URL and pings it,
// retrying with a growing delay until the database answers.
func OpenPostgres(ctx context.Context, url string, opts ...ConnectOption) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, ErrEmptyConnectionURL
	}

	o := defaultConnectOptions()
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}
	cfg.MaxConns = int32(o.poolSize)
	cfg.MinConns = int32(min(o.minIdleConns, o.poolSize))
	cfg.MaxConnIdleTime = o.maxIdleTime
	cfg.MaxConnLifetime = o.maxLifetime
	cfg.ConnConfig.ConnectTimeout = o.dialTimeout

	var pool *pgxpool.Pool
	err = retry(ctx, o.retryAttempts, o.retryInterval, func() error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return pool, nil
}
