package db

import (
	"database/sql"
	"fmt"
)

// Metadata keys written by the pipeline.
const (
	MetaLastImportAt = "last_import_at"
	MetaLastPostAt   = "last_post_at"
)

// GetMetadata retrieves a metadata value. Missing keys return "".
func GetMetadata(q Querier, key string) (string, error) {
	query := `SELECT value FROM ledger_metadata WHERE key = ?`

	var value string
	err := q.QueryRow(query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// SetMetadata sets a metadata value.
func SetMetadata(q Querier, key, value string) error {
	query := `
		INSERT INTO ledger_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := q.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}
