package migration

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
	"github.com/xuri/excelize/v2"
)

// ParseOptions controls which source types ParseRecords accepts.
type ParseOptions struct {
	// AllowExcel enables the first-sheet Excel reader.
	AllowExcel bool
}

// ParsedRecord is one payload ready for storage; Raw is the verbatim JSON
// that becomes raw_payload.
type ParsedRecord struct {
	Payload Payload
	Raw     string
}

// ParseRecords splits file content into payloads according to its source type.
func ParseRecords(content []byte, sourceType SourceType, opts ParseOptions) ([]ParsedRecord, error) {
	switch sourceType {
	case SourceCSV:
		return parseCSV(content)
	case SourceJSON:
		return parseJSON(content)
	case SourceExcel:
		if !opts.AllowExcel {
			return nil, &UnsupportedFormatError{SourceType: sourceType}
		}
		return parseExcel(content)
	default:
		return nil, &UnsupportedFormatError{SourceType: sourceType}
	}
}

func parseCSV(content []byte) ([]ParsedRecord, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records []ParsedRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		if isBlankRow(row) {
			continue
		}

		p := NewPayload()
		for i, header := range headers {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			p.Set(header, StringValue(value))
		}

		rec, err := newParsedRecord(p)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseJSON(content []byte) ([]ParsedRecord, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, ErrInvalidJSONShape
	}

	var elements []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case '{':
		elements = []json.RawMessage{trimmed}
	default:
		return nil, ErrInvalidJSONShape
	}

	records := make([]ParsedRecord, 0, len(elements))
	for i, element := range elements {
		var p Payload
		if err := json.Unmarshal(element, &p); err != nil {
			if errors.Is(err, ErrInvalidJSONShape) {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			return nil, fmt.Errorf("failed to parse JSON element %d: %w", i, err)
		}

		var compact bytes.Buffer
		if err := json.Compact(&compact, element); err != nil {
			return nil, fmt.Errorf("failed to compact JSON element %d: %w", i, err)
		}
		records = append(records, ParsedRecord{Payload: p, Raw: compact.String()})
	}

	return records, nil
}

func parseExcel(content []byte) ([]ParsedRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := rows[0]
	var records []ParsedRecord
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}

		p := NewPayload()
		for i, header := range headers {
			if strings.TrimSpace(header) == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = row[i]
			}
			p.Set(header, StringValue(value))
		}

		rec, err := newParsedRecord(p)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

func newParsedRecord(p Payload) (ParsedRecord, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return ParsedRecord{}, fmt.Errorf("failed to encode payload: %w", err)
	}
	return ParsedRecord{Payload: p, Raw: string(raw)}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Ingestor stores parsed legacy files as import batches.
type Ingestor struct {
	conn  *db.Connection
	audit *AuditLog
	opts  ParseOptions
	now   func() time.Time
}

// NewIngestor creates a new Ingestor instance.
func NewIngestor(conn *db.Connection, audit *AuditLog, opts ParseOptions) *Ingestor {
	return &Ingestor{conn: conn, audit: audit, opts: opts, now: time.Now}
}

// Import parses content and writes the batch, one raw record per payload and
// the BATCH_IMPORTED audit entry in a single transaction. Nothing is stored
// when parsing fails.
func (i *Ingestor) Import(sourceFile string, content []byte, sourceType SourceType) (*ImportResult, error) {
	records, err := ParseRecords(content, sourceType, i.opts)
	if err != nil {
		return nil, err
	}

	var result ImportResult
	err = i.conn.Transaction(func(tx *sql.Tx) error {
		batchID, err := insertBatch(tx, sourceFile, sourceType, len(records))
		if err != nil {
			return err
		}

		for _, rec := range records {
			if _, err := insertRawRecord(tx, batchID, rec.Raw); err != nil {
				return err
			}
		}

		if err := i.audit.Record(tx, AuditEntry{
			BatchID: batchID,
			Action:  ActionBatchImported,
			Message: fmt.Sprintf("Imported %d records from %s", len(records), sourceFile),
			Details: map[string]any{
				"source_file": sourceFile,
				"source_type": string(sourceType),
				"records":     len(records),
			},
		}); err != nil {
			return err
		}

		if err := db.SetMetadata(tx, db.MetaLastImportAt, i.now().Format(time.RFC3339)); err != nil {
			return err
		}

		result = ImportResult{BatchID: batchID, RecordsImported: len(records)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Imported legacy file", "file", sourceFile, "batch_id", result.BatchID, "records", result.RecordsImported)
	return &result, nil
}
