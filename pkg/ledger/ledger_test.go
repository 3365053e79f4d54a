package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
	"github.com/shopspring/decimal"
)

func newTestConn(t *testing.T) *db.Connection {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestValidateEntries(t *testing.T) {
	tests := []struct {
		name     string
		entries  []VoucherEntry
		expected error
		total    string
	}{
		{
			name: "balanced pair",
			entries: []VoucherEntry{
				{AccountID: 1, DebitAmount: d("100.50")},
				{AccountID: 2, CreditAmount: d("100.50")},
			},
			total: "100.5",
		},
		{
			name: "within tolerance",
			entries: []VoucherEntry{
				{AccountID: 1, DebitAmount: d("100.00")},
				{AccountID: 2, CreditAmount: d("99.99")},
			},
			total: "100",
		},
		{
			name: "split credit",
			entries: []VoucherEntry{
				{AccountID: 1, DebitAmount: d("300")},
				{AccountID: 2, CreditAmount: d("100")},
				{AccountID: 3, CreditAmount: d("200")},
			},
			total: "300",
		},
		{
			name:     "single entry",
			entries:  []VoucherEntry{{AccountID: 1, DebitAmount: d("1")}},
			expected: ErrTooFewEntries,
		},
		{
			name: "missing account",
			entries: []VoucherEntry{
				{DebitAmount: d("1")},
				{AccountID: 2, CreditAmount: d("1")},
			},
			expected: ErrMissingAccount,
		},
		{
			name: "negative amount",
			entries: []VoucherEntry{
				{AccountID: 1, DebitAmount: d("-1")},
				{AccountID: 2, CreditAmount: d("1")},
			},
			expected: ErrNegativeAmount,
		},
		{
			name: "both sides",
			entries: []VoucherEntry{
				{AccountID: 1, DebitAmount: d("1"), CreditAmount: d("1")},
				{AccountID: 2, CreditAmount: d("1")},
			},
			expected: ErrBothSides,
		},
		{
			name: "neither side",
			entries: []VoucherEntry{
				{AccountID: 1},
				{AccountID: 2, CreditAmount: d("1")},
			},
			expected: ErrNoAmount,
		},
		{
			name: "unbalanced",
			entries: []VoucherEntry{
				{AccountID: 1, DebitAmount: d("100")},
				{AccountID: 2, CreditAmount: d("99.98")},
			},
			expected: ErrUnbalanced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := ValidateEntries(tt.entries)
			if tt.expected != nil {
				if !errors.Is(err, tt.expected) {
					t.Errorf("ValidateEntries() error = %v, expected %v", err, tt.expected)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateEntries() unexpected error: %v", err)
			}
			if !total.Equal(d(tt.total)) {
				t.Errorf("ValidateEntries() total = %s, expected %s", total, tt.total)
			}
		})
	}
}

func TestPrefixFor(t *testing.T) {
	tests := []struct {
		voucherType VoucherType
		expected    string
	}{
		{VoucherTypeDebit, "DBV"},
		{VoucherTypeCredit, "CRV"},
		{VoucherTypeJournal, "JRN"},
	}

	for _, tt := range tests {
		if got := PrefixFor(tt.voucherType); got != tt.expected {
			t.Errorf("PrefixFor(%q) = %q, expected %q", tt.voucherType, got, tt.expected)
		}
	}
}

func seedTwoAccounts(t *testing.T, conn *db.Connection) (int64, int64) {
	t.Helper()

	store := NewAccountStore(conn)
	cash, err := store.Create(AccountInput{Code: "1000", Name: "Cash", Type: "Asset"})
	if err != nil {
		t.Fatalf("create Cash: %v", err)
	}
	rent, err := store.Create(AccountInput{Code: "5200", Name: "Rent Expense", Type: "Expense"})
	if err != nil {
		t.Fatalf("create Rent: %v", err)
	}
	return cash, rent
}

func TestNextVoucherNumber(t *testing.T) {
	conn := newTestConn(t)
	cash, rent := seedTwoAccounts(t, conn)

	first, err := NextVoucherNumber(conn, LegacyPrefix, 2024)
	if err != nil {
		t.Fatalf("NextVoucherNumber: %v", err)
	}
	if first != "LGC-2024-00001" {
		t.Errorf("first number = %q, expected LGC-2024-00001", first)
	}

	insert := func(number string) {
		t.Helper()
		_, err := InsertVoucher(conn, Voucher{
			VoucherNumber: number,
			VoucherType:   VoucherTypeJournal,
			VoucherDate:   "2024-01-01",
			TotalAmount:   d("10"),
			IsPosted:      true,
			Entries: []VoucherEntry{
				{AccountID: rent, DebitAmount: d("10")},
				{AccountID: cash, CreditAmount: d("10")},
			},
		})
		if err != nil {
			t.Fatalf("InsertVoucher(%s): %v", number, err)
		}
	}

	insert("LGC-2024-00009")
	insert("LGC-2023-00500")
	insert("JRN-2024-00777")

	next, err := NextVoucherNumber(conn, LegacyPrefix, 2024)
	if err != nil {
		t.Fatalf("NextVoucherNumber: %v", err)
	}
	if next != "LGC-2024-00010" {
		t.Errorf("next number = %q, expected LGC-2024-00010", next)
	}

	insert("lgc-2024-00050")
	insert("LXC-2024-00070")

	tests := []struct {
		prefix   string
		expected string
	}{
		{LegacyPrefix, "LGC-2024-00010"},
		{"L_C", "L_C-2024-00001"},
		{"lgc", "lgc-2024-00051"},
	}
	for _, tt := range tests {
		got, err := NextVoucherNumber(conn, tt.prefix, 2024)
		if err != nil {
			t.Fatalf("NextVoucherNumber(%q): %v", tt.prefix, err)
		}
		if got != tt.expected {
			t.Errorf("NextVoucherNumber(%q) = %q, expected %q", tt.prefix, got, tt.expected)
		}
	}
}

func TestVoucherStoreCreateGetDelete(t *testing.T) {
	conn := newTestConn(t)
	cash, rent := seedTwoAccounts(t, conn)

	store := NewVoucherStore(conn)
	store.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	result, err := store.Create(VoucherInput{
		VoucherType: VoucherTypeDebit,
		VoucherDate: "2024-05-01",
		Narration:   "May rent",
		Entries: []VoucherEntry{
			{AccountID: rent, DebitAmount: d("1200")},
			{AccountID: cash, CreditAmount: d("1200")},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.VoucherNumber != "DBV-2024-00001" {
		t.Errorf("VoucherNumber = %q, expected DBV-2024-00001", result.VoucherNumber)
	}

	v, err := store.Get(result.VoucherID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(v.Entries) != 2 {
		t.Fatalf("entries = %d, expected 2", len(v.Entries))
	}
	if !v.TotalAmount.Equal(d("1200")) {
		t.Errorf("TotalAmount = %s, expected 1200", v.TotalAmount)
	}
	if v.Entries[0].AccountName != "Rent Expense" {
		t.Errorf("first entry account = %q, expected Rent Expense", v.Entries[0].AccountName)
	}

	if err := store.Delete(result.VoucherID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(result.VoucherID); !errors.Is(err, ErrVoucherNotFound) {
		t.Errorf("Get after delete error = %v, expected ErrVoucherNotFound", err)
	}
}

func TestVoucherAmountsRoundTrip(t *testing.T) {
	conn := newTestConn(t)
	cash, rent := seedTwoAccounts(t, conn)
	store := NewVoucherStore(conn)

	for _, amount := range []string{"0.01", "1250.5", "99999999.99", "1234567890123.45"} {
		t.Run(amount, func(t *testing.T) {
			result, err := store.Create(VoucherInput{
				VoucherType: VoucherTypeJournal,
				VoucherDate: "2024-05-01",
				Entries: []VoucherEntry{
					{AccountID: rent, DebitAmount: d(amount)},
					{AccountID: cash, CreditAmount: d(amount)},
				},
			})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}

			v, err := store.Get(result.VoucherID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !v.TotalAmount.Equal(d(amount)) || !v.Entries[0].DebitAmount.Equal(d(amount)) || !v.Entries[1].CreditAmount.Equal(d(amount)) {
				t.Errorf("stored amounts = (%s, %s, %s), expected %s", v.TotalAmount, v.Entries[0].DebitAmount, v.Entries[1].CreditAmount, amount)
			}
		})
	}
}

func TestVoucherStoreCreateRejectsUnbalanced(t *testing.T) {
	conn := newTestConn(t)
	cash, rent := seedTwoAccounts(t, conn)

	_, err := NewVoucherStore(conn).Create(VoucherInput{
		VoucherType: VoucherTypeJournal,
		VoucherDate: "2024-05-01",
		Entries: []VoucherEntry{
			{AccountID: rent, DebitAmount: d("10")},
			{AccountID: cash, CreditAmount: d("9")},
		},
	})
	if !errors.Is(err, ErrUnbalanced) {
		t.Errorf("Create error = %v, expected ErrUnbalanced", err)
	}

	vouchers, err := NewVoucherStore(conn).List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(vouchers) != 0 {
		t.Errorf("List returned %d vouchers after rejected create", len(vouchers))
	}
}

func TestAccountStoreSeedDefaults(t *testing.T) {
	conn := newTestConn(t)
	store := NewAccountStore(conn)

	n, err := store.SeedDefaults(DefaultChart)
	if err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	if n != len(DefaultChart) {
		t.Errorf("SeedDefaults inserted %d, expected %d", n, len(DefaultChart))
	}

	again, err := store.SeedDefaults(DefaultChart)
	if err != nil {
		t.Fatalf("second SeedDefaults: %v", err)
	}
	if again != 0 {
		t.Errorf("second SeedDefaults inserted %d, expected 0", again)
	}

	accounts, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if err := store.SetActive(accounts[0].AccountID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != len(accounts)-1 {
		t.Errorf("active accounts = %d, expected %d", len(active), len(accounts)-1)
	}
}

func TestAccountStoreCreateValidates(t *testing.T) {
	conn := newTestConn(t)
	store := NewAccountStore(conn)

	if _, err := store.Create(AccountInput{Name: "Suspense", Type: "Other"}); err == nil {
		t.Error("Create with invalid type succeeded")
	}
	if _, err := store.Create(AccountInput{Type: "Asset"}); err == nil {
		t.Error("Create without name succeeded")
	}
}
