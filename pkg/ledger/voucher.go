package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
	"github.com/shopspring/decimal"
)

// VoucherType is the kind of voucher; it selects the numbering prefix.
type VoucherType string

const (
	VoucherTypeDebit   VoucherType = "Debit"
	VoucherTypeCredit  VoucherType = "Credit"
	VoucherTypeJournal VoucherType = "Journal"
)

// LegacyPrefix numbers vouchers created by the migration poster.
const LegacyPrefix = "LGC"

// BalanceTolerance is the largest debit/credit difference accepted for a voucher.
var BalanceTolerance = decimal.New(1, -2)

var (
	ErrTooFewEntries   = errors.New("voucher must have at least 2 entries")
	ErrMissingAccount  = errors.New("all entries must have an account selected")
	ErrNegativeAmount  = errors.New("amounts cannot be negative")
	ErrBothSides       = errors.New("an entry cannot have both debit and credit amounts")
	ErrNoAmount        = errors.New("each entry must have either a debit or credit amount")
	ErrUnbalanced      = errors.New("voucher is not balanced")
	ErrVoucherNotFound = errors.New("voucher not found")
)

// Voucher is a double-entry transaction header with its entries.
type Voucher struct {
	VoucherID     int64
	VoucherNumber string
	VoucherType   VoucherType
	VoucherDate   string
	Narration     string
	TotalAmount   decimal.Decimal
	IsPosted      bool
	LegacyRawID   sql.NullInt64
	CreatedAt     time.Time
	Entries       []VoucherEntry
}

// VoucherEntry is one debit or credit line of a voucher.
type VoucherEntry struct {
	EntryID      int64
	VoucherID    int64
	AccountID    int64
	AccountName  string
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
	Narration    string
}

// VoucherInput is the payload for creating a voucher through the CRUD path.
type VoucherInput struct {
	VoucherNumber string         `validate:"omitempty,max=40"`
	VoucherType   VoucherType    `validate:"required,oneof=Debit Credit Journal"`
	VoucherDate   string         `validate:"required,datetime=2006-01-02"`
	Narration     string         `validate:"max=1000"`
	LegacyRawID   sql.NullInt64  `validate:"-"`
	Entries       []VoucherEntry `validate:"-"`
}

// ValidateEntries enforces the double-entry rules shared by every voucher:
// at least two entries, each with an account and exactly one positive side,
// and total debits equal to total credits within BalanceTolerance.
// It returns the voucher total (sum of debits).
func ValidateEntries(entries []VoucherEntry) (decimal.Decimal, error) {
	if len(entries) < 2 {
		return decimal.Zero, ErrTooFewEntries
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero

	for _, entry := range entries {
		if entry.AccountID <= 0 {
			return decimal.Zero, ErrMissingAccount
		}
		if entry.DebitAmount.IsNegative() || entry.CreditAmount.IsNegative() {
			return decimal.Zero, ErrNegativeAmount
		}
		if entry.DebitAmount.IsPositive() && entry.CreditAmount.IsPositive() {
			return decimal.Zero, ErrBothSides
		}
		if entry.DebitAmount.IsZero() && entry.CreditAmount.IsZero() {
			return decimal.Zero, ErrNoAmount
		}

		totalDebit = totalDebit.Add(entry.DebitAmount)
		totalCredit = totalCredit.Add(entry.CreditAmount)
	}

	if totalDebit.Sub(totalCredit).Abs().GreaterThan(BalanceTolerance) {
		return decimal.Zero, fmt.Errorf("%w. Debit: %s, Credit: %s",
			ErrUnbalanced, totalDebit.StringFixed(2), totalCredit.StringFixed(2))
	}

	return totalDebit, nil
}

// PrefixFor returns the numbering prefix for a voucher type.
func PrefixFor(voucherType VoucherType) string {
	switch voucherType {
	case VoucherTypeDebit:
		return "DBV"
	case VoucherTypeCredit:
		return "CRV"
	default:
		return "JRN"
	}
}

// FormatVoucherNumber renders {PREFIX}-{YYYY}-{00000}.
func FormatVoucherNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%04d-%05d", prefix, year, seq)
}

// NextVoucherNumber derives the next number for prefix and year from the
// highest existing voucher number; there is no counter table. Call it inside
// the transaction that inserts the voucher.
func NextVoucherNumber(q db.Querier, prefix string, year int) (string, error) {
	stem := fmt.Sprintf("%s-%04d-", prefix, year)

	// Exact, case-sensitive match on the stem.
	var last string
	err := q.QueryRow(`
		SELECT voucher_number FROM vouchers
		WHERE substr(voucher_number, 1, ?) = ?
		ORDER BY length(voucher_number) DESC, voucher_number DESC
		LIMIT 1
	`, utf8.RuneCountInString(stem), stem).Scan(&last)

	next := 1
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return "", fmt.Errorf("failed to read last voucher number: %w", err)
	default:
		parts := strings.Split(last, "-")
		seq, convErr := strconv.Atoi(parts[len(parts)-1])
		if convErr != nil {
			return "", fmt.Errorf("malformed voucher number %q: %w", last, convErr)
		}
		next = seq + 1
	}

	return FormatVoucherNumber(prefix, year, next), nil
}

// InsertVoucher writes a voucher header and its entries on q and returns the
// new voucher id. Entries are not validated here; callers run ValidateEntries
// or construct balanced entries themselves.
func InsertVoucher(q db.Querier, v Voucher) (int64, error) {
	res, err := db.Run(q, `
		INSERT INTO vouchers (
			voucher_number, voucher_type, voucher_date, narration, total_amount, is_posted, legacy_raw_id
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		v.VoucherNumber,
		string(v.VoucherType),
		v.VoucherDate,
		nullIfEmpty(v.Narration),
		v.TotalAmount.InexactFloat64(),
		v.IsPosted,
		v.LegacyRawID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert voucher: %w", err)
	}

	for _, entry := range v.Entries {
		if _, err := db.Run(q, `
			INSERT INTO voucher_entries (voucher_id, account_id, debit_amount, credit_amount, narration)
			VALUES (?, ?, ?, ?, ?)
		`,
			res.LastInsertID,
			entry.AccountID,
			entry.DebitAmount.InexactFloat64(),
			entry.CreditAmount.InexactFloat64(),
			nullIfEmpty(entry.Narration),
		); err != nil {
			return 0, fmt.Errorf("failed to insert voucher entry: %w", err)
		}
	}

	return res.LastInsertID, nil
}

// CreateResult identifies a newly created voucher.
type CreateResult struct {
	VoucherID     int64
	VoucherNumber string
}

// VoucherStore provides the voucher CRUD path.
type VoucherStore struct {
	conn *db.Connection
	now  func() time.Time
}

// NewVoucherStore creates a new VoucherStore instance.
func NewVoucherStore(conn *db.Connection) *VoucherStore {
	return &VoucherStore{conn: conn, now: time.Now}
}

// Create validates the entries and writes the voucher in one transaction,
// allocating a number when none is given.
func (s *VoucherStore) Create(input VoucherInput) (*CreateResult, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid voucher: %w", err)
	}
	total, err := ValidateEntries(input.Entries)
	if err != nil {
		return nil, err
	}

	var result CreateResult
	err = s.conn.Transaction(func(tx *sql.Tx) error {
		number := input.VoucherNumber
		if number == "" {
			number, err = NextVoucherNumber(tx, PrefixFor(input.VoucherType), s.now().Year())
			if err != nil {
				return err
			}
		}

		id, err := InsertVoucher(tx, Voucher{
			VoucherNumber: number,
			VoucherType:   input.VoucherType,
			VoucherDate:   input.VoucherDate,
			Narration:     input.Narration,
			TotalAmount:   total,
			IsPosted:      true,
			LegacyRawID:   input.LegacyRawID,
			Entries:       input.Entries,
		})
		if err != nil {
			return err
		}

		result = CreateResult{VoucherID: id, VoucherNumber: number}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Get retrieves a voucher and its entries.
func (s *VoucherStore) Get(id int64) (*Voucher, error) {
	var v Voucher
	var voucherType string
	var narration sql.NullString
	var total float64

	err := s.conn.QueryRow(`
		SELECT voucher_id, voucher_number, voucher_type, voucher_date, narration,
			total_amount, is_posted, legacy_raw_id, created_at
		FROM vouchers WHERE voucher_id = ?
	`, id).Scan(
		&v.VoucherID,
		&v.VoucherNumber,
		&voucherType,
		&v.VoucherDate,
		&narration,
		&total,
		&v.IsPosted,
		&v.LegacyRawID,
		&v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	v.VoucherType = VoucherType(voucherType)
	v.Narration = narration.String
	v.TotalAmount = decimal.NewFromFloat(total)

	entries, err := s.entries(id)
	if err != nil {
		return nil, err
	}
	v.Entries = entries

	return &v, nil
}

// List returns voucher headers, most recent first. limit <= 0 means no limit.
func (s *VoucherStore) List(limit int) ([]Voucher, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.conn.Query(`
		SELECT voucher_id, voucher_number, voucher_type, voucher_date, COALESCE(narration, ''),
			total_amount, is_posted, legacy_raw_id, created_at
		FROM vouchers
		ORDER BY voucher_date DESC, voucher_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []Voucher
	for rows.Next() {
		var v Voucher
		var voucherType string
		var total float64
		if err := rows.Scan(
			&v.VoucherID,
			&v.VoucherNumber,
			&voucherType,
			&v.VoucherDate,
			&v.Narration,
			&total,
			&v.IsPosted,
			&v.LegacyRawID,
			&v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		v.VoucherType = VoucherType(voucherType)
		v.TotalAmount = decimal.NewFromFloat(total)
		vouchers = append(vouchers, v)
	}

	return vouchers, rows.Err()
}

// Delete removes a voucher and its entries. A voucher created from a legacy
// record returns that record to 'validated' so it can be posted again.
func (s *VoucherStore) Delete(id int64) error {
	return s.conn.Transaction(func(tx *sql.Tx) error {
		var legacyRawID sql.NullInt64
		err := tx.QueryRow(`SELECT legacy_raw_id FROM vouchers WHERE voucher_id = ?`, id).Scan(&legacyRawID)
		if err == sql.ErrNoRows {
			return ErrVoucherNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get voucher: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM voucher_entries WHERE voucher_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete voucher entries: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM vouchers WHERE voucher_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete voucher: %w", err)
		}

		if legacyRawID.Valid {
			if _, err := tx.Exec(`UPDATE legacy_raw_records SET status = 'validated' WHERE raw_id = ?`, legacyRawID.Int64); err != nil {
				return fmt.Errorf("failed to reopen legacy record: %w", err)
			}
		}

		return nil
	})
}

func (s *VoucherStore) entries(voucherID int64) ([]VoucherEntry, error) {
	rows, err := s.conn.Query(`
		SELECT ve.entry_id, ve.voucher_id, ve.account_id, a.account_name,
			ve.debit_amount, ve.credit_amount, COALESCE(ve.narration, '')
		FROM voucher_entries ve
		JOIN accounts a ON ve.account_id = a.account_id
		WHERE ve.voucher_id = ?
		ORDER BY ve.entry_id
	`, voucherID)
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher entries: %w", err)
	}
	defer rows.Close()

	var entries []VoucherEntry
	for rows.Next() {
		var e VoucherEntry
		var debit, credit float64
		if err := rows.Scan(&e.EntryID, &e.VoucherID, &e.AccountID, &e.AccountName, &debit, &credit, &e.Narration); err != nil {
			return nil, fmt.Errorf("failed to scan voucher entry: %w", err)
		}
		e.DebitAmount = decimal.NewFromFloat(debit)
		e.CreditAmount = decimal.NewFromFloat(credit)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
