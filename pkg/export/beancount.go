package export

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/ledger"
)

// DefaultCurrency is the commodity written when none is given.
const DefaultCurrency = "USD"

var accountRoots = map[ledger.AccountType]string{
	ledger.AccountTypeAsset:     "Assets",
	ledger.AccountTypeLiability: "Liabilities",
	ledger.AccountTypeEquity:    "Equity",
	ledger.AccountTypeIncome:    "Income",
	ledger.AccountTypeExpense:   "Expenses",
}

// BeancountAccount returns the Beancount account name for an account,
// e.g. "Expenses:RentExpense" or "Liabilities:ShortTermLoans".
func BeancountAccount(a ledger.Account) string {
	root, ok := accountRoots[a.AccountType]
	if !ok {
		root = "Equity"
	}

	var sb strings.Builder
	plain := strings.ReplaceAll(a.AccountName, "'", "")
	for _, word := range strings.FieldsFunc(plain, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}

	name := sb.String()
	if name == "" || !unicode.IsUpper([]rune(name)[0]) {
		// Components must start with a capital letter.
		name = "A" + name + a.AccountCode
	}
	return root + ":" + name
}

// FormatTransaction formats a voucher as a Beancount transaction.
// Debits are positive postings, credits negative.
func FormatTransaction(v ledger.Voucher, accounts map[int64]ledger.Account, currency string) string {
	var sb strings.Builder

	// Transaction header
	sb.WriteString(v.VoucherDate)
	sb.WriteString(" *")
	sb.WriteString(fmt.Sprintf(" \"%s\"", escapeString(v.Narration)))
	if v.LegacyRawID.Valid {
		sb.WriteString(" #legacy")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  voucher: \"%s\"\n", v.VoucherNumber))

	// Postings
	for _, entry := range v.Entries {
		account := BeancountAccount(accounts[entry.AccountID])
		sb.WriteString("  ")
		sb.WriteString(account)

		// Right-align amount (typical Beancount style)
		spaces := max(1, 60-len(account))
		sb.WriteString(strings.Repeat(" ", spaces))

		amount := entry.DebitAmount.Sub(entry.CreditAmount)
		sb.WriteString(fmt.Sprintf("%s %s", amount.StringFixed(2), currency))

		if entry.Narration != "" {
			sb.WriteString(fmt.Sprintf(" ; %s", entry.Narration))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// ExportBeancount writes the chart of accounts as open directives and every
// voucher into monthly files under {dir}/beancount/{YYYY}/{YYYY-MM}.beancount.
// It returns the written paths, accounts file first.
func (e *Exporter) ExportBeancount(currency string) ([]string, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	root := filepath.Join(e.dir, "beancount")

	accountList, err := ledger.NewAccountStore(e.conn).List()
	if err != nil {
		return nil, err
	}
	accounts := make(map[int64]ledger.Account, len(accountList))
	for _, a := range accountList {
		accounts[a.AccountID] = a
	}

	store := ledger.NewVoucherStore(e.conn)
	headers, err := store.List(0)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(headers, func(a, b ledger.Voucher) int {
		// Equivalent to cmp.Or (Go 1.22+), spelled out for the Go 1.21 toolchain.
		if c := cmp.Compare(a.VoucherDate, b.VoucherDate); c != 0 {
			return c
		}
		return cmp.Compare(a.VoucherID, b.VoucherID)
	})

	byMonth := make(map[string][]string)
	var months []string
	for _, h := range headers {
		v, err := store.Get(h.VoucherID)
		if err != nil {
			return nil, err
		}
		if len(v.VoucherDate) < len("2006-01-02") {
			return nil, fmt.Errorf("voucher %s has invalid date %q", v.VoucherNumber, v.VoucherDate)
		}
		month := v.VoucherDate[:7]
		if _, ok := byMonth[month]; !ok {
			months = append(months, month)
		}
		byMonth[month] = append(byMonth[month], FormatTransaction(*v, accounts, currency))
	}

	var paths []string

	accountsPath := filepath.Join(root, "accounts.beancount")
	var sb strings.Builder
	sb.WriteString(e.fileHeader("chart of accounts"))
	for _, a := range accountList {
		sb.WriteString(fmt.Sprintf("1900-01-01 open %s %s\n", BeancountAccount(a), currency))
	}
	if err := writeFile(accountsPath, sb.String()); err != nil {
		return nil, err
	}
	paths = append(paths, accountsPath)

	for _, month := range months {
		path := filepath.Join(root, month[:4], month+".beancount")
		content := e.fileHeader(month) + strings.Join(byMonth[month], "\n")
		if err := writeFile(path, content); err != nil {
			return paths, err
		}
		slog.Debug("Exported month", "month", month, "vouchers", len(byMonth[month]), "path", path)
		paths = append(paths, path)
	}

	slog.Info("Exported Beancount ledger", "vouchers", len(headers), "files", len(paths))
	return paths, nil
}

// fileHeader generates a header comment for an exported file.
func (e *Exporter) fileHeader(subject string) string {
	return fmt.Sprintf("; Beancount file for %s\n; Generated at %s\n\n", subject, e.now().Format(time.RFC3339))
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
