package sql

import (
	"context"
	"fmt"

	"github.com/syssam/gqlmap/dialect"
)

// ScanMaps reads all rows into column-keyed maps and closes them.
func ScanMaps(rows *Rows) ([]map[string]any, error) {
	defer rows.Close()
	var out []map[string]any
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		for k, v := range m {
			// Text columns come back as []byte from several drivers.
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: rows: %w", err)
	}
	return out, nil
}

// ScanInt reads a single integer value, such as the result of COUNT(*).
func ScanInt(rows *Rows) (int, error) {
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("dialect/sql: no rows for scalar")
	}
	var n int
	if err := rows.Scan(&n); err != nil {
		return 0, fmt.Errorf("dialect/sql: scan: %w", err)
	}
	return n, rows.Err()
}

// QueryMaps runs the given query and returns its rows as maps.
func QueryMaps(ctx context.Context, ex dialect.ExecQuerier, q Querier) ([]map[string]any, error) {
	query, args := q.Query()
	rows := &Rows{}
	if err := ex.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	return ScanMaps(rows)
}

// QueryInt runs the given query and returns its single integer result.
func QueryInt(ctx context.Context, ex dialect.ExecQuerier, q Querier) (int, error) {
	query, args := q.Query()
	rows := &Rows{}
	if err := ex.Query(ctx, query, args, rows); err != nil {
		return 0, err
	}
	return ScanInt(rows)
}

// ExecResult runs the given statement and returns its result.
func ExecResult(ctx context.Context, ex dialect.ExecQuerier, q Querier) (Result, error) {
	query, args := q.Query()
	var res Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}
