package migration

import (
	"math"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
)

func payloadOf(pairs ...string) Payload {
	p := NewPayload()
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Set(pairs[i], StringValue(pairs[i+1]))
	}
	return p
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"5000", "5000", true},
		{"$1,234.50", "1234.50", true},
		{"-42.5", "-42.5", true},
		{"1,000 USD", "1000", true},
		{"12.", "12", true},
		{".75", ".75", true},
		{"5-3", "5", true},
		{"0", "0", true},
		{"--5", "", false},
		{"abc", "", false},
		{"", "", false},
		{"null", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("ParseAmount(%q) = (%q, %v), expected (%q, %v)", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestNormalizeCSVScenario(t *testing.T) {
	records, err := ParseRecords([]byte("date,amount,paid_to,notes\n2024-03-15,5000,Office Rent,Q1 rent\n"), SourceCSV, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("ParseRecords returned %d records, expected 1", len(records))
	}

	c := Normalize(records[0].Payload, SideDebit)

	if !c.HasDate || c.Date != "2024-03-15" {
		t.Errorf("Date = %q (%v), expected 2024-03-15", c.Date, c.HasDate)
	}
	if !c.Amount.Valid || !c.Amount.Decimal.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Amount = %v, expected 5000", c.Amount)
	}
	if c.DebitAccount != "Office Rent" {
		t.Errorf("DebitAccount = %q, expected Office Rent", c.DebitAccount)
	}
	if c.CreditAccount != "" {
		t.Errorf("CreditAccount = %q, expected empty", c.CreditAccount)
	}
	if c.Narration != "Q1 rent" {
		t.Errorf("Narration = %q, expected Q1 rent", c.Narration)
	}
	if !approxEqual(c.Confidence, 0.75) {
		t.Errorf("Confidence = %v, expected 0.75", c.Confidence)
	}
	if len(c.Warnings) != 0 {
		t.Errorf("Warnings = %v, expected none", c.Warnings)
	}
}

func TestNormalizeGenericAccountScenario(t *testing.T) {
	records, err := ParseRecords([]byte(`[{"Account":"Cash"}]`), SourceJSON, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseRecords: %v", err)
	}

	c := Normalize(records[0].Payload, SideDebit)

	if c.DebitAccount != "Cash" {
		t.Errorf("DebitAccount = %q, expected Cash", c.DebitAccount)
	}
	if !slices.Contains(c.Warnings, WarnSingleAccount) {
		t.Errorf("Warnings = %v, expected %q", c.Warnings, WarnSingleAccount)
	}
	if !approxEqual(c.Confidence, 0.1) {
		t.Errorf("Confidence = %v, expected 0.1", c.Confidence)
	}
	if c.Narration != "Account: Cash" {
		t.Errorf("Narration = %q, expected synthesized %q", c.Narration, "Account: Cash")
	}
}

func TestNormalizeGenericAccountCreditSide(t *testing.T) {
	c := Normalize(payloadOf("ledger", "Sales Revenue"), SideCredit)

	if c.CreditAccount != "Sales Revenue" || c.DebitAccount != "" {
		t.Errorf("accounts = (%q, %q), expected credit side only", c.DebitAccount, c.CreditAccount)
	}
}

func TestNormalizeGenericAccountIgnoredWhenSideFound(t *testing.T) {
	c := Normalize(payloadOf("credit_account", "Cash", "account", "Rent Expense"), SideDebit)

	if c.DebitAccount != "" || c.CreditAccount != "Cash" {
		t.Errorf("accounts = (%q, %q), expected only credit Cash", c.DebitAccount, c.CreditAccount)
	}
	if slices.Contains(c.Warnings, WarnSingleAccount) {
		t.Errorf("Warnings = %v, generic fallback should not run", c.Warnings)
	}
	if !approxEqual(c.Confidence, 0.125) {
		t.Errorf("Confidence = %v, expected 0.125", c.Confidence)
	}
}

func TestNormalizeFieldDetection(t *testing.T) {
	tests := []struct {
		name       string
		payload    Payload
		date       string
		amount     string
		debit      string
		credit     string
		narration  string
		confidence float64
		warnings   []string
	}{
		{
			name:       "first candidate key wins",
			payload:    payloadOf("Date", "2024-01-02", "date", "2024-05-06", "amount", "10", "Amount", "20"),
			date:       "2024-05-06",
			amount:     "10",
			narration:  "Date: 2024-01-02; date: 2024-05-06; amount: 10; Amount: 20",
			confidence: 0.5,
		},
		{
			name:       "unparseable date falls through to next key",
			payload:    payloadOf("date", "someday", "txn_date", "1/2/2024", "total", "3"),
			date:       "2024-01-02",
			amount:     "3",
			narration:  "date: someday; txn_date: 1/2/2024; total: 3",
			confidence: 0.5,
		},
		{
			name:       "zero amount is detected but warned",
			payload:    payloadOf("date", "2024-01-02", "amount", "0", "memo", "nothing"),
			date:       "2024-01-02",
			amount:     "0",
			narration:  "nothing",
			confidence: 0.625,
			warnings:   []string{WarnNoAmount},
		},
		{
			name:       "both sides and narration",
			payload:    payloadOf("voucher_date", "2024-02-01", "value", "$99.90", "dr_account", " Rent Expense ", "cr_account", "Cash", "particulars", "Feb rent"),
			date:       "2024-02-01",
			amount:     "99.90",
			debit:      "Rent Expense",
			credit:     "Cash",
			narration:  "Feb rent",
			confidence: 0.875,
		},
		{
			name:       "blank values are not detected",
			payload:    payloadOf("date", "", "amount", "n/a", "expense", "", "narration", ""),
			narration:  "amount: n/a",
			confidence: 0,
			warnings:   []string{WarnNoDate, WarnNoAmount},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(tt.payload, SideDebit)

			if c.Date != tt.date {
				t.Errorf("Date = %q, expected %q", c.Date, tt.date)
			}
			if tt.amount == "" {
				if c.Amount.Valid {
					t.Errorf("Amount = %v, expected none", c.Amount.Decimal)
				}
			} else if !c.Amount.Valid || !c.Amount.Decimal.Equal(decimal.RequireFromString(tt.amount)) {
				t.Errorf("Amount = %v, expected %s", c.Amount, tt.amount)
			}
			if c.DebitAccount != tt.debit || c.CreditAccount != tt.credit {
				t.Errorf("accounts = (%q, %q), expected (%q, %q)", c.DebitAccount, c.CreditAccount, tt.debit, tt.credit)
			}
			if c.Narration != tt.narration {
				t.Errorf("Narration = %q, expected %q", c.Narration, tt.narration)
			}
			if !approxEqual(c.Confidence, tt.confidence) {
				t.Errorf("Confidence = %v, expected %v", c.Confidence, tt.confidence)
			}
			if !slices.Equal(c.Warnings, tt.warnings) {
				t.Errorf("Warnings = %v, expected %v", c.Warnings, tt.warnings)
			}
		})
	}
}

func TestNormalizeJSONValueKinds(t *testing.T) {
	records, err := ParseRecords([]byte(`{"amount": null, "total": 125.5, "debit_account": 5200, "credit_account": "Cash", "date": 0}`), SourceJSON, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseRecords: %v", err)
	}

	c := Normalize(records[0].Payload, SideDebit)

	if !c.Amount.Valid || !c.Amount.Decimal.Equal(decimal.RequireFromString("125.5")) {
		t.Errorf("Amount = %v, expected 125.5 from total after null amount", c.Amount)
	}
	if c.DebitAccount != "5200" {
		t.Errorf("DebitAccount = %q, expected numeric value rendered as 5200", c.DebitAccount)
	}
	if c.HasDate {
		t.Errorf("Date = %q, expected none for falsy 0", c.Date)
	}
	if c.Narration != "credit_account: Cash" {
		t.Errorf("Narration = %q, expected only string fields", c.Narration)
	}
}

func TestNormalizeJSONExponentAmounts(t *testing.T) {
	tests := []struct {
		json     string
		expected string
	}{
		{`{"amount": 1e3}`, "1000"},
		{`{"amount": 1.5E2}`, "150"},
		{`{"amount": 2.5e-1}`, "0.25"},
		{`{"total": 12.50}`, "12.5"},
	}

	for _, tt := range tests {
		t.Run(tt.json, func(t *testing.T) {
			records, err := ParseRecords([]byte(tt.json), SourceJSON, ParseOptions{})
			if err != nil {
				t.Fatalf("ParseRecords: %v", err)
			}
			c := Normalize(records[0].Payload, SideDebit)
			if !c.Amount.Valid || !c.Amount.Decimal.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("Normalize(%s).Amount = %v, expected %s", tt.json, c.Amount, tt.expected)
			}
		})
	}
}

func TestParseAccountSide(t *testing.T) {
	tests := []struct {
		input    string
		expected AccountSide
		wantErr  bool
	}{
		{"", SideDebit, false},
		{"debit", SideDebit, false},
		{"Credit", SideCredit, false},
		{"both", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAccountSide(tt.input)
		if (err != nil) != tt.wantErr || got != tt.expected {
			t.Errorf("ParseAccountSide(%q) = (%q, %v), expected %q", tt.input, got, err, tt.expected)
		}
	}
}
