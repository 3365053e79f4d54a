package migration

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
	"github.com/shopspring/decimal"
)

// AccountSide selects which side a lone generic account label is assigned to.
type AccountSide string

const (
	SideDebit  AccountSide = "debit"
	SideCredit AccountSide = "credit"
)

// ParseAccountSide maps a configuration value to an AccountSide.
func ParseAccountSide(s string) (AccountSide, error) {
	switch AccountSide(strings.ToLower(strings.TrimSpace(s))) {
	case "", SideDebit:
		return SideDebit, nil
	case SideCredit:
		return SideCredit, nil
	default:
		return "", fmt.Errorf("invalid account side %q: use debit or credit", s)
	}
}

// Candidate is the result of field detection on one payload.
type Candidate struct {
	Date          string
	HasDate       bool
	Amount        decimal.NullDecimal
	DebitAccount  string
	CreditAccount string
	Narration     string
	Confidence    float64
	Warnings      []string
}

// detector is one row of the detection strategy table.
type detector struct {
	keys   []string
	weight float64
	// accept decides whether a present key is considered at all.
	accept func(Value) bool
	// extract converts an accepted value; false moves on to the next key.
	extract func(Value) (string, bool)
}

func (d detector) detect(p Payload) (string, bool) {
	for _, key := range d.keys {
		v, ok := p.Get(key)
		if !ok || !d.accept(v) {
			continue
		}
		if s, ok := d.extract(v); ok {
			return s, true
		}
	}
	return "", false
}

var (
	dateDetector = detector{
		keys:    []string{"date", "Date", "DATE", "voucher_date", "transaction_date", "txn_date"},
		weight:  0.25,
		accept:  Value.Truthy,
		extract: func(v Value) (string, bool) { return ParseDate(v.String()) },
	}
	amountDetector = detector{
		keys:   []string{"amount", "Amount", "AMOUNT", "value", "total", "debit", "credit"},
		weight: 0.25,
		accept: func(Value) bool { return true },
		extract: func(v Value) (string, bool) {
			if v.Kind == KindNull {
				return "", false
			}
			return ParseAmount(v.String())
		},
	}
	debitDetector = detector{
		keys:    []string{"debit_account", "dr_account", "from_account", "paid_to", "expense"},
		weight:  0.125,
		accept:  Value.Truthy,
		extract: trimmedText,
	}
	creditDetector = detector{
		keys:    []string{"credit_account", "cr_account", "to_account", "received_from", "income"},
		weight:  0.125,
		accept:  Value.Truthy,
		extract: trimmedText,
	}
	genericAccountDetector = detector{
		keys:    []string{"account", "Account", "account_name", "ledger"},
		weight:  0.1,
		accept:  Value.Truthy,
		extract: trimmedText,
	}
	narrationDetector = detector{
		keys:    []string{"narration", "description", "particulars", "memo", "notes", "remarks"},
		weight:  0.125,
		accept:  Value.Truthy,
		extract: trimmedText,
	}
)

func trimmedText(v Value) (string, bool) {
	s := strings.TrimSpace(v.String())
	return s, s != ""
}

var (
	amountNoise  = regexp.MustCompile(`[^0-9.\-]`)
	leadingFloat = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)
)

// ParseAmount strips everything except digits, '.' and '-' and parses the
// longest leading decimal number. "$1,234.50" yields 1234.50; "--5" fails.
func ParseAmount(s string) (string, bool) {
	cleaned := amountNoise.ReplaceAllString(s, "")
	m := strings.TrimSuffix(leadingFloat.FindString(cleaned), ".")
	if m == "" {
		return "", false
	}
	if _, err := decimal.NewFromString(m); err != nil {
		return "", false
	}
	return m, true
}

// Normalize runs the detection strategy table over a payload. It is pure.
func Normalize(p Payload, genericSide AccountSide) Candidate {
	var c Candidate
	var confidence float64

	if date, ok := dateDetector.detect(p); ok {
		c.Date, c.HasDate = date, true
		confidence += dateDetector.weight
	} else {
		c.Warnings = append(c.Warnings, WarnNoDate)
	}

	amount := decimal.Zero
	if literal, ok := amountDetector.detect(p); ok {
		amount = decimal.RequireFromString(literal)
		c.Amount = decimal.NullDecimal{Decimal: amount, Valid: true}
		confidence += amountDetector.weight
	}
	if amount.IsZero() {
		c.Warnings = append(c.Warnings, WarnNoAmount)
	}

	if s, ok := debitDetector.detect(p); ok {
		c.DebitAccount = s
		confidence += debitDetector.weight
	}
	if s, ok := creditDetector.detect(p); ok {
		c.CreditAccount = s
		confidence += creditDetector.weight
	}

	if c.DebitAccount == "" && c.CreditAccount == "" {
		if s, ok := genericAccountDetector.detect(p); ok {
			if genericSide == SideCredit {
				c.CreditAccount = s
			} else {
				c.DebitAccount = s
			}
			c.Warnings = append(c.Warnings, WarnSingleAccount)
			confidence += genericAccountDetector.weight
		}
	}

	if s, ok := narrationDetector.detect(p); ok {
		c.Narration = s
		confidence += narrationDetector.weight
	} else {
		c.Narration = synthesizeNarration(p)
	}

	c.Confidence = math.Min(confidence, 1)
	return c
}

// synthesizeNarration joins every non-empty string field as "key: value; ...".
func synthesizeNarration(p Payload) string {
	var parts []string
	for _, key := range p.Keys() {
		v, _ := p.Get(key)
		if v.Kind == KindString && v.Text != "" {
			parts = append(parts, key+": "+v.Text)
		}
	}
	return strings.Join(parts, "; ")
}

// Normalizer runs field detection over the raw records of a batch.
type Normalizer struct {
	conn        *db.Connection
	audit       *AuditLog
	genericSide AccountSide
}

// NewNormalizer creates a new Normalizer instance.
func NewNormalizer(conn *db.Connection, audit *AuditLog, genericSide AccountSide) *Normalizer {
	return &Normalizer{conn: conn, audit: audit, genericSide: genericSide}
}

// NormalizeBatch processes every record of the batch in status raw.
// A record that cannot be processed is marked failed; the batch continues.
func (n *Normalizer) NormalizeBatch(batchID int64) (*StageResult, error) {
	if _, err := GetBatch(n.conn, batchID); err != nil {
		return nil, err
	}

	records, err := ListRecordsByStatus(n.conn, batchID, RecordRaw)
	if err != nil {
		return nil, err
	}

	result := &StageResult{BatchID: batchID}
	for _, rec := range records {
		payload, err := ParsePayload(rec.RawPayload)
		if err != nil {
			slog.Warn("Failed to normalize record", "batch_id", batchID, "raw_id", rec.RawID, "error", err)
			if err := markRecordFailed(n.conn, rec.RawID, []string{err.Error()}, rec.Warnings); err != nil {
				return nil, err
			}
			result.Failed++
			continue
		}

		if err := saveNormalized(n.conn, rec.RawID, Normalize(payload, n.genericSide)); err != nil {
			return nil, err
		}
		result.Processed++
	}

	if err := finishStage(n.conn, n.audit, batchID, BatchNormalized, ActionBatchNormalized, result,
		fmt.Sprintf("Normalized %d records, %d failed", result.Processed, result.Failed)); err != nil {
		return nil, err
	}

	slog.Info("Batch normalized", "batch_id", batchID, "processed", result.Processed, "failed", result.Failed)
	return result, nil
}
