package migration

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/ledger"
)

// DefaultNarration is used when no narration was detected or synthesized.
const DefaultNarration = "Imported from legacy data"

// Poster turns validated records into balanced journal vouchers.
type Poster struct {
	conn     *db.Connection
	audit    *AuditLog
	accounts *ledger.AccountStore
	rules    *RuleRegistry
	resolver *Resolver
	prefix   string
	now      func() time.Time
}

// NewPoster creates a new Poster instance. An empty prefix means ledger.LegacyPrefix.
func NewPoster(conn *db.Connection, audit *AuditLog, accounts *ledger.AccountStore, rules *RuleRegistry, resolver *Resolver, prefix string) *Poster {
	if prefix == "" {
		prefix = ledger.LegacyPrefix
	}
	return &Poster{
		conn:     conn,
		audit:    audit,
		accounts: accounts,
		rules:    rules,
		resolver: resolver,
		prefix:   prefix,
		now:      time.Now,
	}
}

// PostBatch posts every validated record of the batch. Account texts are
// resolved again against the current rules. A record whose accounts no longer
// resolve is marked failed and the batch continues; a storage error while
// writing a voucher rolls that voucher back and is returned.
func (p *Poster) PostBatch(batchID int64) (*StageResult, error) {
	if _, err := GetBatch(p.conn, batchID); err != nil {
		return nil, err
	}

	accounts, err := p.accounts.ListActive()
	if err != nil {
		return nil, err
	}
	rules, err := p.rules.List()
	if err != nil {
		return nil, err
	}

	records, err := ListRecordsByStatus(p.conn, batchID, RecordValidated)
	if err != nil {
		return nil, err
	}

	result := &StageResult{BatchID: batchID}
	for _, rec := range records {
		debitID, debitOK := p.resolver.Resolve(rec.DetectedDebitAccount.String, accounts, rules)
		creditID, creditOK := p.resolver.Resolve(rec.DetectedCreditAccount.String, accounts, rules)

		if !debitOK || !creditOK {
			if err := p.failRecord(rec); err != nil {
				return nil, err
			}
			result.Failed++
			continue
		}

		voucherID, number, err := p.postRecord(rec, debitID, creditID)
		if err != nil {
			return nil, fmt.Errorf("failed to post record %d: %w", rec.RawID, err)
		}
		slog.Debug("Posted legacy record", "raw_id", rec.RawID, "voucher_id", voucherID, "voucher_number", number)
		result.Processed++
	}

	if err := finishStage(p.conn, p.audit, batchID, BatchPosted, ActionBatchPosted, result,
		fmt.Sprintf("Posted %d vouchers, %d failed", result.Processed, result.Failed)); err != nil {
		return nil, err
	}
	if err := db.SetMetadata(p.conn, db.MetaLastPostAt, p.now().Format(time.RFC3339)); err != nil {
		return nil, err
	}

	slog.Info("Batch posted", "batch_id", batchID, "posted", result.Processed, "failed", result.Failed)
	return result, nil
}

func (p *Poster) failRecord(rec RawRecord) error {
	slog.Warn("Account mapping incomplete", "batch_id", rec.BatchID, "raw_id", rec.RawID,
		"debit", rec.DetectedDebitAccount.String, "credit", rec.DetectedCreditAccount.String)

	return p.conn.Transaction(func(tx *sql.Tx) error {
		if err := markRecordFailed(tx, rec.RawID, []string{ErrMsgMappingIncomplete}, rec.Warnings); err != nil {
			return err
		}
		return p.audit.Record(tx, AuditEntry{
			BatchID:  rec.BatchID,
			RawID:    rec.RawID,
			Action:   ActionRecordFailed,
			Message:  ErrMsgMappingIncomplete,
			Warnings: rec.Warnings,
		})
	})
}

// postRecord writes the voucher, its two entries, the record status and the
// RECORD_POSTED entry in one transaction.
func (p *Poster) postRecord(rec RawRecord, debitID, creditID int64) (int64, string, error) {
	amount := rec.DetectedAmount.Decimal
	narration := rec.DetectedNarration.String
	if narration == "" {
		narration = DefaultNarration
	}

	var voucherID int64
	var number string
	err := p.conn.Transaction(func(tx *sql.Tx) error {
		var err error
		number, err = ledger.NextVoucherNumber(tx, p.prefix, p.now().Year())
		if err != nil {
			return err
		}

		voucherID, err = ledger.InsertVoucher(tx, ledger.Voucher{
			VoucherNumber: number,
			VoucherType:   ledger.VoucherTypeJournal,
			VoucherDate:   rec.DetectedDate.String,
			Narration:     narration,
			TotalAmount:   amount,
			IsPosted:      true,
			LegacyRawID:   sql.NullInt64{Int64: rec.RawID, Valid: true},
			Entries: []ledger.VoucherEntry{
				{AccountID: debitID, DebitAmount: amount, Narration: narration},
				{AccountID: creditID, CreditAmount: amount, Narration: narration},
			},
		})
		if err != nil {
			return err
		}

		if err := setRecordStatus(tx, rec.RawID, RecordPosted); err != nil {
			return err
		}

		return p.audit.Record(tx, AuditEntry{
			BatchID:        rec.BatchID,
			RawID:          rec.RawID,
			Action:         ActionRecordPosted,
			Message:        fmt.Sprintf("Posted as %s", number),
			Details:        map[string]any{"voucher_number": number},
			Warnings:       rec.Warnings,
			FinalVoucherID: voucherID,
		})
	})
	if err != nil {
		return 0, "", err
	}
	return voucherID, number, nil
}
