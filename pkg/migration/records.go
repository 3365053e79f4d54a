package migration

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
	"github.com/shopspring/decimal"
)

const batchColumns = `batch_id, COALESCE(source_file, ''), COALESCE(source_type, ''), total_records,
	processed_records, failed_records, status, imported_at, completed_at`

const recordColumns = `raw_id, batch_id, raw_payload, detected_date, detected_amount,
	detected_debit_account, detected_credit_account, detected_narration,
	confidence_score, status, validation_errors, warnings, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func insertBatch(q db.Querier, sourceFile string, sourceType SourceType, total int) (int64, error) {
	res, err := db.Run(q, `
		INSERT INTO legacy_import_batches (source_file, source_type, total_records, status)
		VALUES (?, ?, ?, ?)
	`, sourceFile, string(sourceType), total, string(BatchPending))
	if err != nil {
		return 0, fmt.Errorf("failed to create import batch: %w", err)
	}
	return res.LastInsertID, nil
}

// GetBatch retrieves an import batch by id.
func GetBatch(q db.Querier, batchID int64) (*ImportBatch, error) {
	batch, err := scanBatch(q.QueryRow(`SELECT `+batchColumns+` FROM legacy_import_batches WHERE batch_id = ?`, batchID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrBatchNotFound, batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns every import batch, most recent first.
func ListBatches(q db.Querier) ([]ImportBatch, error) {
	rows, err := q.Query(`SELECT ` + batchColumns + ` FROM legacy_import_batches ORDER BY imported_at DESC, batch_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []ImportBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *batch)
	}
	return batches, rows.Err()
}

func scanBatch(row rowScanner) (*ImportBatch, error) {
	var b ImportBatch
	var sourceType, status string
	if err := row.Scan(
		&b.BatchID,
		&b.SourceFile,
		&sourceType,
		&b.TotalRecords,
		&b.ProcessedRecords,
		&b.FailedRecords,
		&status,
		&b.ImportedAt,
		&b.CompletedAt,
	); err != nil {
		return nil, err
	}
	b.SourceType = SourceType(sourceType)
	b.Status = BatchStatus(status)
	return &b, nil
}

// advanceBatch records a stage outcome on the batch. Status only moves
// forward; a re-run that touched no records and would not advance the
// status leaves the batch as it was.
func advanceBatch(q db.Querier, batchID int64, status BatchStatus, result *StageResult) error {
	batch, err := GetBatch(q, batchID)
	if err != nil {
		return err
	}

	touched := result.Processed+result.Failed > 0
	forward := batchRank[status] > batchRank[batch.Status]
	if !touched && !forward {
		return nil
	}

	next := batch.Status
	if batchRank[status] >= batchRank[batch.Status] {
		next = status
	}

	_, err = db.Run(q, `
		UPDATE legacy_import_batches
		SET status = ?,
			processed_records = ?,
			failed_records = ?,
			completed_at = CASE WHEN ? THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE batch_id = ?
	`, string(next), result.Processed, result.Failed, status == BatchPosted, batchID)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}
	return nil
}

// finishStage advances the batch and appends the stage's audit entry atomically.
func finishStage(conn *db.Connection, audit *AuditLog, batchID int64, status BatchStatus, action AuditAction, result *StageResult, message string) error {
	return conn.Transaction(func(tx *sql.Tx) error {
		if err := advanceBatch(tx, batchID, status, result); err != nil {
			return err
		}
		return audit.Record(tx, AuditEntry{
			BatchID: batchID,
			Action:  action,
			Message: message,
			Details: map[string]any{
				"processed": result.Processed,
				"failed":    result.Failed,
			},
		})
	})
}

func insertRawRecord(q db.Querier, batchID int64, payload string) (int64, error) {
	res, err := db.Run(q, `
		INSERT INTO legacy_raw_records (batch_id, raw_payload, status)
		VALUES (?, ?, ?)
	`, batchID, payload, string(RecordRaw))
	if err != nil {
		return 0, fmt.Errorf("failed to insert raw record: %w", err)
	}
	return res.LastInsertID, nil
}

// GetRecord retrieves a raw record by id.
func GetRecord(q db.Querier, rawID int64) (*RawRecord, error) {
	rec, err := scanRecord(q.QueryRow(`SELECT `+recordColumns+` FROM legacy_raw_records WHERE raw_id = ?`, rawID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrRecordNotFound, rawID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// ListRecords returns every record of a batch in import order.
func ListRecords(q db.Querier, batchID int64) ([]RawRecord, error) {
	return queryRecords(q, `SELECT `+recordColumns+` FROM legacy_raw_records WHERE batch_id = ? ORDER BY raw_id`, batchID)
}

// ListRecordsByStatus returns the batch's records in any of the given statuses, in import order.
func ListRecordsByStatus(q db.Querier, batchID int64, statuses ...RecordStatus) ([]RawRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := []any{batchID}
	for _, s := range statuses {
		args = append(args, string(s))
	}

	return queryRecords(q, `SELECT `+recordColumns+` FROM legacy_raw_records
		WHERE batch_id = ? AND status IN (`+placeholders+`)
		ORDER BY raw_id`, args...)
}

func queryRecords(q db.Querier, query string, args ...any) ([]RawRecord, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []RawRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanRecord(row rowScanner) (*RawRecord, error) {
	var r RawRecord
	var amount sql.NullFloat64
	var status string
	var validationErrors, warnings sql.NullString
	if err := row.Scan(
		&r.RawID,
		&r.BatchID,
		&r.RawPayload,
		&r.DetectedDate,
		&amount,
		&r.DetectedDebitAccount,
		&r.DetectedCreditAccount,
		&r.DetectedNarration,
		&r.ConfidenceScore,
		&status,
		&validationErrors,
		&warnings,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	if amount.Valid {
		r.DetectedAmount = decimal.NullDecimal{Decimal: decimal.NewFromFloat(amount.Float64), Valid: true}
	}
	r.Status = RecordStatus(status)
	r.ValidationErrors = decodeStrings(validationErrors)
	r.Warnings = decodeStrings(warnings)
	return &r, nil
}

func saveNormalized(q db.Querier, rawID int64, c Candidate) error {
	var amount sql.NullFloat64
	if c.Amount.Valid {
		amount = sql.NullFloat64{Float64: c.Amount.Decimal.InexactFloat64(), Valid: true}
	}

	_, err := db.Run(q, `
		UPDATE legacy_raw_records
		SET detected_date = ?,
			detected_amount = ?,
			detected_debit_account = ?,
			detected_credit_account = ?,
			detected_narration = ?,
			confidence_score = ?,
			warnings = ?,
			validation_errors = NULL,
			status = ?
		WHERE raw_id = ?
	`,
		sql.NullString{String: c.Date, Valid: c.HasDate},
		amount,
		nullString(c.DebitAccount),
		nullString(c.CreditAccount),
		nullString(c.Narration),
		c.Confidence,
		encodeStrings(c.Warnings),
		string(RecordNormalized),
		rawID,
	)
	if err != nil {
		return fmt.Errorf("failed to save normalized record %d: %w", rawID, err)
	}
	return nil
}

func saveValidation(q db.Querier, rawID int64, status RecordStatus, errs, warnings []string) error {
	_, err := db.Run(q, `
		UPDATE legacy_raw_records
		SET status = ?, validation_errors = ?, warnings = ?
		WHERE raw_id = ?
	`, string(status), encodeStrings(errs), encodeStrings(warnings), rawID)
	if err != nil {
		return fmt.Errorf("failed to save validation of record %d: %w", rawID, err)
	}
	return nil
}

func markRecordFailed(q db.Querier, rawID int64, errs, warnings []string) error {
	return saveValidation(q, rawID, RecordFailed, errs, warnings)
}

func setRecordStatus(q db.Querier, rawID int64, status RecordStatus) error {
	if _, err := db.Run(q, `UPDATE legacy_raw_records SET status = ? WHERE raw_id = ?`, string(status), rawID); err != nil {
		return fmt.Errorf("failed to update record %d: %w", rawID, err)
	}
	return nil
}

func setRecordAccounts(q db.Querier, rawID int64, debit, credit string) error {
	_, err := db.Run(q, `
		UPDATE legacy_raw_records
		SET detected_debit_account = ?, detected_credit_account = ?, validation_errors = NULL, status = ?
		WHERE raw_id = ?
	`, nullString(debit), nullString(credit), string(RecordMapped), rawID)
	if err != nil {
		return fmt.Errorf("failed to remap record %d: %w", rawID, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
