package sampler

import (
	"context"
	"database/sql"

	"github.com/user/fieldbridge"
)

// SQLQuerier adapts a database/sql connection to the Querier interface.
// The driver (mysql, sqlserver, oracle, pgx) is registered by the importing
// binary.
type SQLQuerier struct {
	db *sql.DB
}

func NewSQLQuerier(db *sql.DB) *SQLQuerier {
	return &SQLQuerier{db: db}
}

func (q *SQLQuerier) Query(ctx context.Context, query string) ([]fieldbridge.Record, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []fieldbridge.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(fieldbridge.Record, len(cols))
		for i, col := range cols {
			val := values[i]
			if b, ok := val.([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = val
			}
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}
