package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/fieldbridge/pkg/sqlutil"
)

// PgxDestination implements Destination and transform.LookupResolver over a
// PostgreSQL pool. A pool rather than a single connection: lookup resolutions
// for one row run concurrently. The pool opens lazily on first use.
type PgxDestination struct {
	connString string

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func NewPgxDestination(connString string) *PgxDestination {
	return &PgxDestination{connString: connString}
}

// get returns the pool, connecting on first use. Concurrent lookups may race
// to be that first use, so the check happens under the lock.
func (d *PgxDestination) get(ctx context.Context) (*pgxpool.Pool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		return d.pool, nil
	}
	pool, err := pgxpool.New(ctx, d.connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	d.pool = pool
	return pool, nil
}

func (d *PgxDestination) Exec(ctx context.Context, sql string, args ...any) error {
	pool, err := d.get(ctx)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to write to postgres: %w", err)
	}
	return nil
}

// Lookup fetches returnField from the reference table row whose keyColumn
// equals value. No matching row yields (nil, nil).
func (d *PgxDestination) Lookup(ctx context.Context, table, keyColumn string, value any, returnField string) (any, error) {
	pool, err := d.get(ctx)
	if err != nil {
		return nil, err
	}

	quotedTable, err := sqlutil.QuoteIdent("postgres", table)
	if err != nil {
		return nil, fmt.Errorf("invalid reference table: %w", err)
	}
	quotedKey, err := sqlutil.QuoteIdent("postgres", keyColumn)
	if err != nil {
		return nil, fmt.Errorf("invalid lookup key: %w", err)
	}
	quotedReturn, err := sqlutil.QuoteIdent("postgres", returnField)
	if err != nil {
		return nil, fmt.Errorf("invalid return field: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 LIMIT 1", quotedReturn, quotedTable, quotedKey)
	var out any
	if err := pool.QueryRow(ctx, query, value).Scan(&out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

func (d *PgxDestination) Ping(ctx context.Context) error {
	pool, err := d.get(ctx)
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (d *PgxDestination) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}
