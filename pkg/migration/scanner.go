package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo describes a legacy file found by the Scanner.
type FileInfo struct {
	Name       string
	Path       string
	SourceType SourceType
	Size       int64
	Modified   time.Time
}

// Scanner lists importable files in the legacy-data directory.
type Scanner struct {
	dir string
}

// NewScanner creates a new Scanner instance.
func NewScanner(dir string) *Scanner {
	return &Scanner{dir: dir}
}

// Dir returns the scanned directory.
func (s *Scanner) Dir() string {
	return s.dir
}

// SourceTypeFor infers the source type from a file extension (case-insensitive).
func SourceTypeFor(name string) (SourceType, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return SourceCSV, true
	case ".json":
		return SourceJSON, true
	case ".xlsx", ".xls":
		return SourceExcel, true
	default:
		return "", false
	}
}

// Scan returns the importable files sorted by name. A missing directory is
// created and yields an empty list.
func (s *Scanner) Scan() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create legacy data directory: %w", err)
		}
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy data directory: %w", err)
	}

	files := []FileInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sourceType, ok := SourceTypeFor(entry.Name())
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		files = append(files, FileInfo{
			Name:       entry.Name(),
			Path:       filepath.Join(s.dir, entry.Name()),
			SourceType: sourceType,
			Size:       info.Size(),
			Modified:   info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}
