// Package ledger provides the chart of accounts and double-entry vouchers.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
)

// AccountType classifies an account in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "Asset"
	AccountTypeLiability AccountType = "Liability"
	AccountTypeIncome    AccountType = "Income"
	AccountTypeExpense   AccountType = "Expense"
	AccountTypeEquity    AccountType = "Equity"
)

// ErrAccountNotFound is returned when an account id does not exist.
var ErrAccountNotFound = errors.New("account not found")

var validate = validator.New()

// Account represents one entry of the chart of accounts.
type Account struct {
	AccountID   int64
	AccountCode string
	AccountName string
	AccountType AccountType
	IsActive    bool
}

// AccountInput is the payload for creating an account.
type AccountInput struct {
	Code        string `yaml:"code" validate:"omitempty,max=20"`
	Name        string `yaml:"name" validate:"required,max=200"`
	Type        string `yaml:"type" validate:"required,oneof=Asset Liability Income Expense Equity"`
	Description string `yaml:"description" validate:"max=500"`
}

// DefaultChart is the chart of accounts seeded into an empty database.
var DefaultChart = []AccountInput{
	{Code: "1000", Name: "Cash", Type: "Asset"},
	{Code: "1010", Name: "Petty Cash", Type: "Asset"},
	{Code: "1100", Name: "Bank Account", Type: "Asset"},
	{Code: "1200", Name: "Accounts Receivable", Type: "Asset"},
	{Code: "1300", Name: "Inventory", Type: "Asset"},
	{Code: "1400", Name: "Prepaid Expenses", Type: "Asset"},
	{Code: "1500", Name: "Fixed Assets", Type: "Asset"},
	{Code: "1510", Name: "Accumulated Depreciation", Type: "Asset"},
	{Code: "2000", Name: "Accounts Payable", Type: "Liability"},
	{Code: "2100", Name: "Accrued Expenses", Type: "Liability"},
	{Code: "2200", Name: "Short-term Loans", Type: "Liability"},
	{Code: "2300", Name: "Long-term Loans", Type: "Liability"},
	{Code: "2400", Name: "Tax Payable", Type: "Liability"},
	{Code: "3000", Name: "Owner's Capital", Type: "Equity"},
	{Code: "3100", Name: "Retained Earnings", Type: "Equity"},
	{Code: "3200", Name: "Drawings", Type: "Equity"},
	{Code: "4000", Name: "Sales Revenue", Type: "Income"},
	{Code: "4100", Name: "Service Revenue", Type: "Income"},
	{Code: "4200", Name: "Interest Income", Type: "Income"},
	{Code: "4300", Name: "Other Income", Type: "Income"},
	{Code: "5000", Name: "Cost of Goods Sold", Type: "Expense"},
	{Code: "5100", Name: "Salaries & Wages", Type: "Expense"},
	{Code: "5200", Name: "Rent Expense", Type: "Expense"},
	{Code: "5300", Name: "Utilities Expense", Type: "Expense"},
	{Code: "5400", Name: "Office Supplies", Type: "Expense"},
	{Code: "5500", Name: "Depreciation Expense", Type: "Expense"},
	{Code: "5600", Name: "Insurance Expense", Type: "Expense"},
	{Code: "5700", Name: "Interest Expense", Type: "Expense"},
	{Code: "5800", Name: "Bank Charges", Type: "Expense"},
	{Code: "5900", Name: "Miscellaneous Expense", Type: "Expense"},
}

// AccountStore manages the chart of accounts.
type AccountStore struct {
	conn *db.Connection
}

// NewAccountStore creates a new AccountStore instance.
func NewAccountStore(conn *db.Connection) *AccountStore {
	return &AccountStore{conn: conn}
}

// Create inserts a new account and returns its id.
func (s *AccountStore) Create(input AccountInput) (int64, error) {
	if err := validate.Struct(input); err != nil {
		return 0, fmt.Errorf("invalid account: %w", err)
	}

	res, err := db.Run(s.conn, `
		INSERT INTO accounts (account_code, account_name, account_type, description)
		VALUES (?, ?, ?, ?)
	`, nullIfEmpty(input.Code), input.Name, input.Type, nullIfEmpty(input.Description))
	if err != nil {
		return 0, fmt.Errorf("failed to create account: %w", err)
	}

	return res.LastInsertID, nil
}

// Get retrieves an account by id.
func (s *AccountStore) Get(id int64) (*Account, error) {
	row := s.conn.QueryRow(`
		SELECT account_id, COALESCE(account_code, ''), account_name, account_type, is_active
		FROM accounts WHERE account_id = ?
	`, id)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// List returns every account ordered by code, then name.
func (s *AccountStore) List() ([]Account, error) {
	return s.list(`
		SELECT account_id, COALESCE(account_code, ''), account_name, account_type, is_active
		FROM accounts
		ORDER BY account_code, account_name
	`)
}

// ListActive returns the active accounts; this is the registry the resolver consults.
func (s *AccountStore) ListActive() ([]Account, error) {
	return s.list(`
		SELECT account_id, COALESCE(account_code, ''), account_name, account_type, is_active
		FROM accounts
		WHERE is_active = 1
		ORDER BY account_code, account_name
	`)
}

// SetActive toggles whether an account is offered for resolution and posting.
func (s *AccountStore) SetActive(id int64, active bool) error {
	res, err := db.Run(s.conn, `UPDATE accounts SET is_active = ? WHERE account_id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if res.Changes == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SeedDefaults inserts accounts when the chart is empty. It returns the number inserted.
func (s *AccountStore) SeedDefaults(chart []AccountInput) (int, error) {
	var count int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	if count > 0 {
		slog.Debug("Chart of accounts already present, skipping seed", "accounts", count)
		return 0, nil
	}

	inserted := 0
	err := s.conn.Transaction(func(tx *sql.Tx) error {
		for _, input := range chart {
			if err := validate.Struct(input); err != nil {
				return fmt.Errorf("invalid account %q: %w", input.Name, err)
			}
			if _, err := db.Run(tx, `
				INSERT INTO accounts (account_code, account_name, account_type, description)
				VALUES (?, ?, ?, ?)
			`, nullIfEmpty(input.Code), input.Name, input.Type, nullIfEmpty(input.Description)); err != nil {
				return fmt.Errorf("failed to seed account %q: %w", input.Name, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

func (s *AccountStore) list(query string) ([]Account, error) {
	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}

	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var a Account
	var accountType string
	if err := row.Scan(&a.AccountID, &a.AccountCode, &a.AccountName, &accountType, &a.IsActive); err != nil {
		return nil, err
	}
	a.AccountType = AccountType(accountType)
	return &a, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
