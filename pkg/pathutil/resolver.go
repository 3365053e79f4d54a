// Package pathutil provides centralized path management for the ledger data directory.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PathResolver manages paths for the database, legacy source files, exports and backups.
type PathResolver struct {
	root          string
	databasePath  string
	legacyDataDir string
	exportDir     string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// Root is the data directory (e.g., ./ledger-data)
	Root string
	// DatabasePath is the path to the SQLite ledger database
	DatabasePath string
	// LegacyDataDir is the directory scanned for legacy CSV/JSON/Excel files
	LegacyDataDir string
	// ExportDir receives CSV/XLSX exports and backups
	ExportDir string
}

// New creates a new PathResolver with the given configuration.
// If DatabasePath is empty, it defaults to {Root}/ledger.db
// If LegacyDataDir is empty, it defaults to {Root}/legacy-data
// If ExportDir is empty, it defaults to {Root}/exports
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.Root, "ledger.db")
	}

	legacyDir := config.LegacyDataDir
	if legacyDir == "" {
		legacyDir = filepath.Join(config.Root, "legacy-data")
	}

	exportDir := config.ExportDir
	if exportDir == "" {
		exportDir = filepath.Join(config.Root, "exports")
	}

	return &PathResolver{
		root:          config.Root,
		databasePath:  dbPath,
		legacyDataDir: legacyDir,
		exportDir:     exportDir,
	}
}

// GetRoot returns the data root directory.
func (p *PathResolver) GetRoot() string {
	return p.root
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetLegacyDataDir returns the legacy source directory.
func (p *PathResolver) GetLegacyDataDir() string {
	return p.legacyDataDir
}

// GetExportDir returns the export directory.
func (p *PathResolver) GetExportDir() string {
	return p.exportDir
}

// GetBackupPath returns the path for a database backup taken at t.
// Example: exports/backups/ledger_20240115_093000.db
func (p *PathResolver) GetBackupPath(t time.Time) string {
	name := fmt.Sprintf("ledger_%s.db", t.Format("20060102_150405"))
	return filepath.Join(p.exportDir, "backups", name)
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	return p.EnsureDir(filepath.Dir(filePath))
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
