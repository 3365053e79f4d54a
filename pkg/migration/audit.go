package migration

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
)

// AuditAction is the action_taken vocabulary of the migration audit log.
type AuditAction string

const (
	ActionBatchImported   AuditAction = "BATCH_IMPORTED"
	ActionBatchNormalized AuditAction = "BATCH_NORMALIZED"
	ActionBatchValidated  AuditAction = "BATCH_VALIDATED"
	ActionBatchPosted     AuditAction = "BATCH_POSTED"
	ActionRecordPosted    AuditAction = "RECORD_POSTED"
	ActionRecordFailed    AuditAction = "RECORD_FAILED"
	ActionRecordSkipped   AuditAction = "RECORD_SKIPPED"
	ActionRecordMapped    AuditAction = "RECORD_MAPPED"
)

// AuditEntry is one event to append. Zero ids are stored as NULL.
type AuditEntry struct {
	BatchID        int64
	RawID          int64
	Action         AuditAction
	Message        string
	Details        map[string]any
	Warnings       []string
	FinalVoucherID int64
}

// AuditLogEntry is a persisted audit log row.
type AuditLogEntry struct {
	LogID          int64
	BatchID        sql.NullInt64
	RawID          sql.NullInt64
	ActionTaken    AuditAction
	Details        string
	Warnings       []string
	FinalVoucherID sql.NullInt64
	CreatedAt      time.Time
}

// AuditLog appends to and reads the migration audit log.
// There is no update or delete; the table rejects both.
type AuditLog struct {
	conn *db.Connection
}

// NewAuditLog creates a new AuditLog instance.
func NewAuditLog(conn *db.Connection) *AuditLog {
	return &AuditLog{conn: conn}
}

// Record appends an entry on q, which is usually the stage's transaction.
func (a *AuditLog) Record(q db.Querier, e AuditEntry) error {
	details := map[string]any{"message": e.Message}
	for k, v := range e.Details {
		details[k] = v
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	_, err = db.Run(q, `
		INSERT INTO migration_audit_log (batch_id, raw_id, action_taken, details, warnings, final_voucher_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		nullID(e.BatchID),
		nullID(e.RawID),
		string(e.Action),
		string(detailsJSON),
		encodeStrings(e.Warnings),
		nullID(e.FinalVoucherID),
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// ListByBatch returns a batch's audit entries, newest first.
func (a *AuditLog) ListByBatch(batchID int64) ([]AuditLogEntry, error) {
	rows, err := a.conn.Query(`
		SELECT log_id, batch_id, raw_id, action_taken, COALESCE(details, ''), warnings, final_voucher_id, created_at
		FROM migration_audit_log
		WHERE batch_id = ?
		ORDER BY created_at DESC, log_id DESC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditLogEntry
	for rows.Next() {
		var e AuditLogEntry
		var action string
		var warnings sql.NullString
		if err := rows.Scan(&e.LogID, &e.BatchID, &e.RawID, &action, &e.Details, &warnings, &e.FinalVoucherID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.ActionTaken = AuditAction(action)
		e.Warnings = decodeStrings(warnings)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

// encodeStrings stores a string list as a JSON array; an empty list is NULL.
func encodeStrings(list []string) sql.NullString {
	if len(list) == 0 {
		return sql.NullString{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func decodeStrings(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s.String), &list); err != nil {
		return []string{s.String}
	}
	return list
}
