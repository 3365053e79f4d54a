package export

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
)

func TestBeancountAccount(t *testing.T) {
	tests := []struct {
		account  ledger.Account
		expected string
	}{
		{ledger.Account{AccountName: "Cash", AccountType: ledger.AccountTypeAsset}, "Assets:Cash"},
		{ledger.Account{AccountName: "Rent Expense", AccountType: ledger.AccountTypeExpense}, "Expenses:RentExpense"},
		{ledger.Account{AccountName: "Short-term Loans", AccountType: ledger.AccountTypeLiability}, "Liabilities:ShortTermLoans"},
		{ledger.Account{AccountName: "Owner's Capital", AccountType: ledger.AccountTypeEquity}, "Equity:OwnersCapital"},
		{ledger.Account{AccountName: "Salaries & Wages", AccountType: ledger.AccountTypeExpense}, "Expenses:SalariesWages"},
		{ledger.Account{AccountName: "sales revenue", AccountType: ledger.AccountTypeIncome}, "Income:SalesRevenue"},
		{ledger.Account{AccountName: "401k", AccountCode: "1600", AccountType: ledger.AccountTypeAsset}, "Assets:A401k1600"},
	}

	for _, tt := range tests {
		t.Run(tt.account.AccountName, func(t *testing.T) {
			if got := BeancountAccount(tt.account); got != tt.expected {
				t.Errorf("BeancountAccount(%q) = %q, expected %q", tt.account.AccountName, got, tt.expected)
			}
		})
	}
}

func TestFormatTransaction(t *testing.T) {
	accounts := map[int64]ledger.Account{
		1: {AccountID: 1, AccountName: "Cash", AccountType: ledger.AccountTypeAsset},
		2: {AccountID: 2, AccountName: "Rent Expense", AccountType: ledger.AccountTypeExpense},
	}
	amount := decimal.RequireFromString("800")
	v := ledger.Voucher{
		VoucherNumber: "LGC-2024-00001",
		VoucherDate:   "2024-04-01",
		Narration:     `Paid "Landlord Co"`,
		LegacyRawID:   sql.NullInt64{Int64: 7, Valid: true},
		Entries: []ledger.VoucherEntry{
			{AccountID: 2, DebitAmount: amount},
			{AccountID: 1, CreditAmount: amount, Narration: "cheque 104"},
		},
	}

	lines := strings.Split(strings.TrimSuffix(FormatTransaction(v, accounts, "EUR"), "\n"), "\n")
	expected := []string{
		`2024-04-01 * "Paid \"Landlord Co\"" #legacy`,
		`voucher: "LGC-2024-00001"`,
		`Expenses:RentExpense 800.00 EUR`,
		`Assets:Cash -800.00 EUR ; cheque 104`,
	}
	if len(lines) != len(expected) {
		t.Fatalf("FormatTransaction returned %d lines, expected %d:\n%s", len(lines), len(expected), strings.Join(lines, "\n"))
	}
	for i, line := range lines {
		if got := strings.Join(strings.Fields(line), " "); got != expected[i] {
			t.Errorf("line %d = %q, expected %q", i, got, expected[i])
		}
	}
	if !strings.HasPrefix(lines[2], "  Expenses:RentExpense ") {
		t.Errorf("posting line %q is not indented", lines[2])
	}
}

func TestExportBeancount(t *testing.T) {
	conn := newTestConn(t)
	seedLedger(t, conn)

	dir := t.TempDir()
	paths, err := newTestExporter(conn, dir).ExportBeancount("")
	if err != nil {
		t.Fatalf("ExportBeancount: %v", err)
	}

	expectedPaths := []string{
		filepath.Join(dir, "beancount", "accounts.beancount"),
		filepath.Join(dir, "beancount", "2024", "2024-03.beancount"),
	}
	if len(paths) != len(expectedPaths) || paths[0] != expectedPaths[0] || paths[1] != expectedPaths[1] {
		t.Fatalf("ExportBeancount paths = %v, expected %v", paths, expectedPaths)
	}

	accounts, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read accounts: %v", err)
	}
	for _, line := range []string{"1900-01-01 open Assets:Cash USD", "1900-01-01 open Expenses:RentExpense USD"} {
		if !strings.Contains(string(accounts), line) {
			t.Errorf("accounts file does not contain %q:\n%s", line, accounts)
		}
	}

	month, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatalf("read month: %v", err)
	}
	content := string(month)
	if !strings.HasPrefix(content, "; Beancount file for 2024-03\n; Generated at 2024-06-01T08:00:00Z\n") {
		t.Errorf("month file header = %q", strings.SplitN(content, "\n\n", 2)[0])
	}
	for _, fragment := range []string{`2024-03-15 * "March rent, office"`, "1250.50 USD", "-1250.50 USD"} {
		if !strings.Contains(content, fragment) {
			t.Errorf("month file does not contain %q:\n%s", fragment, content)
		}
	}
	if strings.Contains(content, "#legacy") {
		t.Error("manual voucher tagged as legacy")
	}
}
