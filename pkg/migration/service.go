package migration

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/ledger"
)

// Options configures a Service.
type Options struct {
	LegacyDataDir      string
	VoucherPrefix      string
	FuzzyThreshold     float64
	GenericAccountSide AccountSide
	AllowExcel         bool
	// Now overrides the clock used for voucher years and metadata stamps.
	Now func() time.Time
}

// Service is the entry point to the migration pipeline.
type Service struct {
	conn       *db.Connection
	accounts   *ledger.AccountStore
	rules      *RuleRegistry
	audit      *AuditLog
	scanner    *Scanner
	ingestor   *Ingestor
	normalizer *Normalizer
	validator  *BatchValidator
	poster     *Poster
}

// NewService wires the pipeline stages onto one connection.
func NewService(conn *db.Connection, opts Options) *Service {
	accounts := ledger.NewAccountStore(conn)
	rules := NewRuleRegistry(conn)
	audit := NewAuditLog(conn)
	resolver := NewResolver(opts.FuzzyThreshold)

	s := &Service{
		conn:       conn,
		accounts:   accounts,
		rules:      rules,
		audit:      audit,
		scanner:    NewScanner(opts.LegacyDataDir),
		ingestor:   NewIngestor(conn, audit, ParseOptions{AllowExcel: opts.AllowExcel}),
		normalizer: NewNormalizer(conn, audit, opts.GenericAccountSide),
		validator:  NewBatchValidator(conn, audit, accounts, rules, resolver),
		poster:     NewPoster(conn, audit, accounts, rules, resolver, opts.VoucherPrefix),
	}
	if opts.Now != nil {
		s.ingestor.now = opts.Now
		s.poster.now = opts.Now
	}
	return s
}

// Accounts returns the account registry.
func (s *Service) Accounts() *ledger.AccountStore { return s.accounts }

// Rules returns the mapping rule registry.
func (s *Service) Rules() *RuleRegistry { return s.rules }

// ScanLegacyFiles lists importable files in the legacy-data directory.
func (s *Service) ScanLegacyFiles() ([]FileInfo, error) {
	return s.scanner.Scan()
}

// ImportFile reads a file and imports it with the source type its extension implies.
// Relative paths that do not exist are looked up in the legacy-data directory.
func (s *Service) ImportFile(path string) (*ImportResult, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && !filepath.IsAbs(path) && s.scanner.Dir() != "" {
		path = filepath.Join(s.scanner.Dir(), path)
	}

	sourceType, ok := SourceTypeFor(path)
	if !ok {
		return nil, &UnsupportedFormatError{SourceType: SourceType(filepath.Ext(path))}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return s.Import(filepath.Base(path), content, sourceType)
}

// Import ingests already-loaded content as a new batch.
func (s *Service) Import(sourceFile string, content []byte, sourceType SourceType) (*ImportResult, error) {
	return s.ingestor.Import(sourceFile, content, sourceType)
}

// NormalizeBatch runs field detection over the batch's raw records.
func (s *Service) NormalizeBatch(batchID int64) (*StageResult, error) {
	return s.normalizer.NormalizeBatch(batchID)
}

// ValidateBatch validates the batch's normalized and mapped records.
func (s *Service) ValidateBatch(batchID int64) (*StageResult, error) {
	return s.validator.ValidateBatch(batchID)
}

// PostBatch posts the batch's validated records as vouchers.
func (s *Service) PostBatch(batchID int64) (*StageResult, error) {
	return s.poster.PostBatch(batchID)
}

// MigrationSummary reports every stage of a full run.
type MigrationSummary struct {
	BatchID    int64
	Imported   int
	Normalized StageResult
	Validated  StageResult
	Posted     StageResult
}

// Migrate runs import, normalize, validate and post for one file.
func (s *Service) Migrate(path string) (*MigrationSummary, error) {
	imported, err := s.ImportFile(path)
	if err != nil {
		return nil, err
	}
	summary := &MigrationSummary{BatchID: imported.BatchID, Imported: imported.RecordsImported}

	normalized, err := s.NormalizeBatch(imported.BatchID)
	if err != nil {
		return summary, err
	}
	summary.Normalized = *normalized

	validated, err := s.ValidateBatch(imported.BatchID)
	if err != nil {
		return summary, err
	}
	summary.Validated = *validated

	posted, err := s.PostBatch(imported.BatchID)
	if err != nil {
		return summary, err
	}
	summary.Posted = *posted

	return summary, nil
}

// Batches lists every import batch, most recent first.
func (s *Service) Batches() ([]ImportBatch, error) {
	return ListBatches(s.conn)
}

// Batch retrieves one import batch.
func (s *Service) Batch(batchID int64) (*ImportBatch, error) {
	return GetBatch(s.conn, batchID)
}

// Records lists the records of a batch in import order.
func (s *Service) Records(batchID int64) ([]RawRecord, error) {
	if _, err := GetBatch(s.conn, batchID); err != nil {
		return nil, err
	}
	return ListRecords(s.conn, batchID)
}

// Record retrieves one raw record.
func (s *Service) Record(rawID int64) (*RawRecord, error) {
	return GetRecord(s.conn, rawID)
}

// AuditLog returns a batch's audit entries, newest first.
func (s *Service) AuditLog(batchID int64) ([]AuditLogEntry, error) {
	return s.audit.ListByBatch(batchID)
}

// SkipRecord excludes a record from every later stage.
func (s *Service) SkipRecord(rawID int64) error {
	rec, err := GetRecord(s.conn, rawID)
	if err != nil {
		return err
	}
	if rec.Status == RecordPosted || rec.Status == RecordSkipped {
		return fmt.Errorf("%w: record %d is %s", ErrInvalidTransition, rawID, rec.Status)
	}

	err = s.conn.Transaction(func(tx *sql.Tx) error {
		if err := setRecordStatus(tx, rawID, RecordSkipped); err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			BatchID: rec.BatchID,
			RawID:   rawID,
			Action:  ActionRecordSkipped,
			Message: fmt.Sprintf("Skipped record in status %s", rec.Status),
		})
	})
	if err != nil {
		return err
	}

	slog.Info("Record skipped", "raw_id", rawID, "previous_status", rec.Status)
	return nil
}

// RemapRecord replaces the detected account texts of a normalized record and
// marks it mapped so the validator picks it up again. An empty text keeps the
// current value.
func (s *Service) RemapRecord(rawID int64, debitText, creditText string) error {
	rec, err := GetRecord(s.conn, rawID)
	if err != nil {
		return err
	}

	switch rec.Status {
	case RecordNormalized, RecordMapped, RecordFailed:
	default:
		return fmt.Errorf("%w: record %d is %s", ErrInvalidTransition, rawID, rec.Status)
	}

	if debitText == "" {
		debitText = rec.DetectedDebitAccount.String
	}
	if creditText == "" {
		creditText = rec.DetectedCreditAccount.String
	}

	err = s.conn.Transaction(func(tx *sql.Tx) error {
		if err := setRecordAccounts(tx, rawID, debitText, creditText); err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			BatchID: rec.BatchID,
			RawID:   rawID,
			Action:  ActionRecordMapped,
			Message: "Accounts remapped manually",
			Details: map[string]any{
				"debit_account":  debitText,
				"credit_account": creditText,
			},
		})
	})
	if err != nil {
		return err
	}

	slog.Info("Record remapped", "raw_id", rawID, "debit", debitText, "credit", creditText)
	return nil
}

// Stats summarizes the migration database.
type Stats struct {
	Batches         int
	RecordsByStatus map[RecordStatus]int
	LegacyVouchers  int
	TotalVouchers   int
	Accounts        int
	MappingRules    int
	LastImportAt    string
	LastPostAt      string
}

// Stats returns counts across batches, records and vouchers.
func (s *Service) Stats() (*Stats, error) {
	stats := &Stats{RecordsByStatus: make(map[RecordStatus]int)}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM legacy_import_batches`, &stats.Batches},
		{`SELECT COUNT(*) FROM vouchers WHERE legacy_raw_id IS NOT NULL`, &stats.LegacyVouchers},
		{`SELECT COUNT(*) FROM vouchers`, &stats.TotalVouchers},
		{`SELECT COUNT(*) FROM accounts`, &stats.Accounts},
		{`SELECT COUNT(*) FROM legacy_mapping_rules`, &stats.MappingRules},
	}
	for _, c := range counts {
		if err := s.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to get stats: %w", err)
		}
	}

	rows, err := db.GetAll(s.conn, `SELECT status, COUNT(*) AS n FROM legacy_raw_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	for _, row := range rows {
		status, _ := row["status"].(string)
		n, _ := row["n"].(int64)
		stats.RecordsByStatus[RecordStatus(status)] = int(n)
	}

	if stats.LastImportAt, err = db.GetMetadata(s.conn, db.MetaLastImportAt); err != nil {
		return nil, err
	}
	if stats.LastPostAt, err = db.GetMetadata(s.conn, db.MetaLastPostAt); err != nil {
		return nil, err
	}

	return stats, nil
}
