package migration

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/ledger"
)

// BatchValidator checks normalized records for the fields a voucher needs.
type BatchValidator struct {
	conn     *db.Connection
	audit    *AuditLog
	accounts *ledger.AccountStore
	rules    *RuleRegistry
	resolver *Resolver
}

// NewBatchValidator creates a new BatchValidator instance.
func NewBatchValidator(conn *db.Connection, audit *AuditLog, accounts *ledger.AccountStore, rules *RuleRegistry, resolver *Resolver) *BatchValidator {
	return &BatchValidator{conn: conn, audit: audit, accounts: accounts, rules: rules, resolver: resolver}
}

// Check returns the validation errors and the warnings (existing ones first)
// for a record against the given accounts and rules. Mapping warnings from an
// earlier run are dropped and recomputed.
func (v *BatchValidator) Check(rec RawRecord, accounts []ledger.Account, rules []MappingRule) (errs, warnings []string) {
	for _, w := range rec.Warnings {
		if !isMappingWarning(w) {
			warnings = append(warnings, w)
		}
	}

	if !rec.DetectedDate.Valid || rec.DetectedDate.String == "" {
		errs = append(errs, ErrMsgMissingDate)
	}
	if !rec.DetectedAmount.Valid || !rec.DetectedAmount.Decimal.IsPositive() {
		errs = append(errs, ErrMsgInvalidAmount)
	}

	debitText := rec.DetectedDebitAccount.String
	creditText := rec.DetectedCreditAccount.String

	_, debitOK := v.resolver.Resolve(debitText, accounts, rules)
	if !debitOK && debitText != "" {
		warnings = appendUnique(warnings, fmt.Sprintf(warnUnmappedDebitFormat, debitText))
	}
	_, creditOK := v.resolver.Resolve(creditText, accounts, rules)
	if !creditOK && creditText != "" {
		warnings = appendUnique(warnings, fmt.Sprintf(warnUnmappedCreditFormat, creditText))
	}

	switch {
	case !debitOK && !creditOK:
		errs = append(errs, ErrMsgNoAccounts)
	case debitOK != creditOK:
		warnings = appendUnique(warnings, WarnOneAccountMapped)
	}

	return errs, warnings
}

// ValidateBatch checks every normalized or mapped record of the batch.
func (v *BatchValidator) ValidateBatch(batchID int64) (*StageResult, error) {
	if _, err := GetBatch(v.conn, batchID); err != nil {
		return nil, err
	}

	accounts, err := v.accounts.ListActive()
	if err != nil {
		return nil, err
	}
	rules, err := v.rules.List()
	if err != nil {
		return nil, err
	}

	records, err := ListRecordsByStatus(v.conn, batchID, RecordNormalized, RecordMapped)
	if err != nil {
		return nil, err
	}

	result := &StageResult{BatchID: batchID}
	for _, rec := range records {
		errs, warnings := v.Check(rec, accounts, rules)

		status := RecordValidated
		if len(errs) > 0 {
			status = RecordFailed
			slog.Debug("Record failed validation", "batch_id", batchID, "raw_id", rec.RawID, "errors", errs)
		}

		if err := saveValidation(v.conn, rec.RawID, status, errs, warnings); err != nil {
			return nil, err
		}
		if status == RecordValidated {
			result.Processed++
		} else {
			result.Failed++
		}
	}

	if err := finishStage(v.conn, v.audit, batchID, BatchValidated, ActionBatchValidated, result,
		fmt.Sprintf("Validated %d records, %d failed", result.Processed, result.Failed)); err != nil {
		return nil, err
	}

	slog.Info("Batch validated", "batch_id", batchID, "validated", result.Processed, "failed", result.Failed)
	return result, nil
}

func isMappingWarning(w string) bool {
	return w == WarnOneAccountMapped ||
		strings.HasPrefix(w, strings.TrimSuffix(warnUnmappedDebitFormat, "%s")) ||
		strings.HasPrefix(w, strings.TrimSuffix(warnUnmappedCreditFormat, "%s"))
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
