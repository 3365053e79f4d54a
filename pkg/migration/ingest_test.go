package migration

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseRecordsCSV(t *testing.T) {
	content := "\xef\xbb\xbfdate,amount,memo\n2024-01-05,10,\"Lunch, team\"\n\n2024-01-06,20\n"

	records, err := ParseRecords([]byte(content), SourceCSV, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ParseRecords returned %d records, expected 2", len(records))
	}

	if !slices.Equal(records[0].Payload.Keys(), []string{"date", "amount", "memo"}) {
		t.Errorf("Keys = %v, expected BOM-free header order", records[0].Payload.Keys())
	}
	if v, _ := records[0].Payload.Get("memo"); v.Text != "Lunch, team" {
		t.Errorf("memo = %q, expected quoted field", v.Text)
	}
	if records[0].Raw != `{"date":"2024-01-05","amount":"10","memo":"Lunch, team"}` {
		t.Errorf("Raw = %s", records[0].Raw)
	}
	if v, ok := records[1].Payload.Get("memo"); !ok || v.Text != "" {
		t.Errorf("short row memo = (%q, %v), expected empty string", v.Text, ok)
	}
}

func TestParseRecordsJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		count   int
		raw     string
		err     error
	}{
		{"single object", `{"b": 1, "a": "x"}`, 1, `{"b":1,"a":"x"}`, nil},
		{"array of objects", "[{\"a\":1},\n {\"a\":2}]", 2, `{"a":1}`, nil},
		{"empty array", `[]`, 0, "", nil},
		{"array of scalars", `[1, 2]`, 0, "", ErrInvalidJSONShape},
		{"top-level string", `"hello"`, 0, "", ErrInvalidJSONShape},
		{"empty", ``, 0, "", ErrInvalidJSONShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseRecords([]byte(tt.content), SourceJSON, ParseOptions{})
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("ParseRecords error = %v, expected %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecords: %v", err)
			}
			if len(records) != tt.count {
				t.Fatalf("records = %d, expected %d", len(records), tt.count)
			}
			if tt.count > 0 && records[0].Raw != tt.raw {
				t.Errorf("Raw = %s, expected %s", records[0].Raw, tt.raw)
			}
		})
	}
}

func TestPayloadPreservesKeyOrder(t *testing.T) {
	var p Payload
	if err := json.Unmarshal([]byte(`{"z": "last?", "a": null, "m": [1, 2], "n": 1.50, "t": true}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !slices.Equal(p.Keys(), []string{"z", "a", "m", "n", "t"}) {
		t.Errorf("Keys = %v, expected source order", p.Keys())
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"z":"last?","a":null,"m":[1,2],"n":1.50,"t":true}` {
		t.Errorf("Marshal = %s", out)
	}

	tests := []struct {
		key    string
		kind   ValueKind
		truthy bool
	}{
		{"z", KindString, true},
		{"a", KindNull, false},
		{"m", KindOther, true},
		{"n", KindNumber, true},
		{"t", KindBool, true},
	}
	for _, tt := range tests {
		v, _ := p.Get(tt.key)
		if v.Kind != tt.kind || v.Truthy() != tt.truthy {
			t.Errorf("Get(%q) = %+v (truthy %v), expected kind %d truthy %v", tt.key, v, v.Truthy(), tt.kind, tt.truthy)
		}
	}
}

func TestScannerScan(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "legacy-data")
	scanner := NewScanner(dir)

	files, err := scanner.Scan()
	if err != nil {
		t.Fatalf("Scan on missing dir: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Scan on missing dir = %v, expected empty", files)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Scan did not create %s: %v", dir, err)
	}

	for _, name := range []string{"b.JSON", "a.csv", "c.xlsx", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive.csv"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err = scanner.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var names []string
	var types []SourceType
	for _, f := range files {
		names = append(names, f.Name)
		types = append(types, f.SourceType)
	}
	if !slices.Equal(names, []string{"a.csv", "b.JSON", "c.xlsx"}) {
		t.Errorf("Scan names = %v", names)
	}
	if !slices.Equal(types, []SourceType{SourceCSV, SourceJSON, SourceExcel}) {
		t.Errorf("Scan types = %v", types)
	}
}
