// Package migration ingests legacy CSV/JSON/Excel exports and turns them into
// balanced vouchers through a staged, audited pipeline:
// scan → import → normalize → validate → post.
//
// Every stage persists its results so it can be re-run on its own. Failures of
// a single record are recorded on that record and never abort the batch; storage
// faults inside a transaction roll back and are returned to the caller.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SourceType is the declared format of an imported file.
type SourceType string

const (
	SourceCSV    SourceType = "CSV"
	SourceJSON   SourceType = "JSON"
	SourceExcel  SourceType = "Excel"
	SourceManual SourceType = "Manual"
)

// BatchStatus is the lifecycle state of an ImportBatch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchNormalized BatchStatus = "normalized"
	BatchValidated  BatchStatus = "validated"
	BatchPosted     BatchStatus = "posted"
	BatchFailed     BatchStatus = "failed"
)

// batchRank orders batch statuses; a batch never moves to a lower rank.
var batchRank = map[BatchStatus]int{
	BatchPending:    0,
	BatchProcessing: 1,
	BatchNormalized: 2,
	BatchValidated:  3,
	BatchPosted:     4,
	BatchFailed:     5,
}

// RecordStatus is the lifecycle state of a RawRecord.
type RecordStatus string

const (
	RecordRaw        RecordStatus = "raw"
	RecordNormalized RecordStatus = "normalized"
	RecordMapped     RecordStatus = "mapped"
	RecordValidated  RecordStatus = "validated"
	RecordPosted     RecordStatus = "posted"
	RecordFailed     RecordStatus = "failed"
	RecordSkipped    RecordStatus = "skipped"
)

// Record-level messages. External tooling matches on these strings.
const (
	ErrMsgMissingDate        = "Missing date"
	ErrMsgInvalidAmount      = "Invalid or missing amount"
	ErrMsgNoAccounts         = "No accounts could be mapped"
	ErrMsgMappingIncomplete  = "Account mapping incomplete"
	WarnNoDate               = "Could not detect date"
	WarnNoAmount             = "Could not detect amount"
	WarnSingleAccount        = "Only one account detected, manual mapping required"
	WarnOneAccountMapped     = "Only one account mapped - manual intervention required"
	warnUnmappedDebitFormat  = "Could not map debit account: %s"
	warnUnmappedCreditFormat = "Could not map credit account: %s"
)

var (
	ErrBatchNotFound     = errors.New("batch not found")
	ErrRecordNotFound    = errors.New("record not found")
	ErrRuleNotFound      = errors.New("mapping rule not found")
	ErrUnknownAccount    = errors.New("mapped account does not exist")
	ErrInvalidJSONShape  = errors.New("JSON content must be an object or an array of objects")
	ErrInvalidTransition = errors.New("record status does not allow this action")
)

// UnsupportedFormatError is returned when a file's source type cannot be ingested.
type UnsupportedFormatError struct {
	SourceType SourceType
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported source type %q: use CSV or JSON", e.SourceType)
}

// ImportBatch is one file-level import unit.
type ImportBatch struct {
	BatchID          int64
	SourceFile       string
	SourceType       SourceType
	TotalRecords     int
	ProcessedRecords int
	FailedRecords    int
	Status           BatchStatus
	ImportedAt       time.Time
	CompletedAt      sql.NullTime
}

// RawRecord is one source row as received, plus detection annotations.
// RawPayload is written once at import and never modified.
type RawRecord struct {
	RawID                 int64
	BatchID               int64
	RawPayload            string
	DetectedDate          sql.NullString
	DetectedAmount        decimal.NullDecimal
	DetectedDebitAccount  sql.NullString
	DetectedCreditAccount sql.NullString
	DetectedNarration     sql.NullString
	ConfidenceScore       float64
	Status                RecordStatus
	ValidationErrors      []string
	Warnings              []string
	CreatedAt             time.Time
}

// StageResult summarizes one stage run over a batch.
// Processed counts records that reached the stage's success status.
type StageResult struct {
	BatchID   int64
	Processed int
	Failed    int
}

// ImportResult identifies a freshly ingested batch.
type ImportResult struct {
	BatchID         int64
	RecordsImported int
}
