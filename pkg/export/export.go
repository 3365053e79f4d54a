// Package export writes the ledger tables to CSV files or an XLSX workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
	"github.com/xuri/excelize/v2"
)

// Tables are exported in this order; it is also the sheet order of the workbook.
var Tables = []string{"accounts", "vouchers", "voucher_entries"}

// Table is a snapshot of one table with its columns in schema order.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Exporter writes table snapshots into a directory.
type Exporter struct {
	conn *db.Connection
	dir  string
	now  func() time.Time
}

// NewExporter creates a new Exporter writing into dir.
func NewExporter(conn *db.Connection, dir string) *Exporter {
	return &Exporter{conn: conn, dir: dir, now: time.Now}
}

// readTable loads every row of a table ordered by rowid.
func (e *Exporter) readTable(name string) (*Table, error) {
	rows, err := e.conn.Query(fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns of %s: %w", name, err)
	}

	table := &Table{Name: name, Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", name, err)
		}
		for i, v := range values {
			values[i] = cellValue(v)
		}
		table.Rows = append(table.Rows, values)
	}

	return table, rows.Err()
}

// ExportCSV writes one CSV file per table and returns the file paths.
func (e *Exporter) ExportCSV() ([]string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	var paths []string
	for _, name := range Tables {
		table, err := e.readTable(name)
		if err != nil {
			return paths, err
		}

		path := filepath.Join(e.dir, e.fileName(name, "csv"))
		if err := writeCSV(path, table); err != nil {
			return paths, err
		}
		slog.Info("Exported table", "table", name, "rows", len(table.Rows), "path", path)
		paths = append(paths, path)
	}

	return paths, nil
}

func writeCSV(path string, table *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range table.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = cellString(v)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	return f.Close()
}

// ExportXLSX writes one workbook with a sheet per table and returns its path.
func (e *Exporter) ExportXLSX() (string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range Tables {
		table, err := e.readTable(name)
		if err != nil {
			return "", err
		}

		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return "", fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return "", fmt.Errorf("failed to create sheet %s: %w", name, err)
		}

		header := make([]any, len(table.Columns))
		for j, c := range table.Columns {
			header[j] = c
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return "", fmt.Errorf("failed to write header of %s: %w", name, err)
		}

		for j, row := range table.Rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return "", err
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return "", fmt.Errorf("failed to write row of %s: %w", name, err)
			}
		}
	}

	path := filepath.Join(e.dir, e.fileName("ledger", "xlsx"))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	slog.Info("Exported workbook", "path", path)

	return path, nil
}

// fileName builds {table}_{timestamp}_{uuid prefix}.{ext}.
func (e *Exporter) fileName(table, ext string) string {
	id := uuid.NewString()[:8]
	return fmt.Sprintf("%s_%s_%s.%s", table, e.now().Format("20060102_150405"), id, ext)
}

// cellValue converts driver values into types both writers understand.
func cellValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format("2006-01-02 15:04:05")
	default:
		return v
	}
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
