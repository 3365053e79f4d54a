package db

import (
	"database/sql"
	"fmt"
)

// Result is the outcome of a single mutating statement.
type Result struct {
	Changes      int64
	LastInsertID int64
}

// Row is a generic column-name keyed row used where the shape is not known
// in advance (exports, ad-hoc inspection). TEXT/BLOB columns are returned as string.
type Row map[string]any

// Run executes a single mutating statement on q.
func Run(q Querier, query string, args ...any) (Result, error) {
	res, err := q.Exec(query, args...)
	if err != nil {
		return Result{}, err
	}

	changes, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return Result{Changes: changes, LastInsertID: lastID}, nil
}

// GetOne returns the first row of query, or nil when there is none.
func GetOne(q Querier, query string, args ...any) (Row, error) {
	rows, err := GetAll(q, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// GetAll returns every row of query.
func GetAll(q Querier, query string, args ...any) ([]Row, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// Run executes a single mutating statement outside of any transaction.
func (c *Connection) Run(query string, args ...any) (Result, error) {
	return Run(c, query, args...)
}

// GetOne returns the first row of query, or nil when there is none.
func (c *Connection) GetOne(query string, args ...any) (Row, error) {
	return GetOne(c, query, args...)
}

// GetAll returns every row of query.
func (c *Connection) GetAll(query string, args ...any) ([]Row, error) {
	return GetAll(c, query, args...)
}

// compile-time checks
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
	_ Querier = (*Connection)(nil)
)
