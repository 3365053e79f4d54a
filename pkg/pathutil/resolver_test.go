package pathutil

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		dbPath    string
		legacyDir string
		exportDir string
	}{
		{
			name:      "derived from root",
			config:    Config{Root: "/data"},
			dbPath:    "/data/ledger.db",
			legacyDir: "/data/legacy-data",
			exportDir: "/data/exports",
		},
		{
			name: "explicit paths win",
			config: Config{
				Root:          "/data",
				DatabasePath:  "/var/db/books.db",
				LegacyDataDir: "/mnt/old",
				ExportDir:     "/tmp/out",
			},
			dbPath:    "/var/db/books.db",
			legacyDir: "/mnt/old",
			exportDir: "/tmp/out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.config)
			if got := p.GetDatabasePath(); got != tt.dbPath {
				t.Errorf("GetDatabasePath() = %q, expected %q", got, tt.dbPath)
			}
			if got := p.GetLegacyDataDir(); got != tt.legacyDir {
				t.Errorf("GetLegacyDataDir() = %q, expected %q", got, tt.legacyDir)
			}
			if got := p.GetExportDir(); got != tt.exportDir {
				t.Errorf("GetExportDir() = %q, expected %q", got, tt.exportDir)
			}
			if got := p.GetRoot(); got != tt.config.Root {
				t.Errorf("GetRoot() = %q, expected %q", got, tt.config.Root)
			}
		})
	}
}

func TestGetBackupPath(t *testing.T) {
	p := New(Config{Root: "/data"})
	at := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	expected := "/data/exports/backups/ledger_20240115_093000.db"
	if got := p.GetBackupPath(at); got != expected {
		t.Errorf("GetBackupPath() = %q, expected %q", got, expected)
	}
}

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	p := New(Config{Root: root})

	file := filepath.Join(root, "a", "b", "ledger.db")
	if err := p.EnsureParentDir(file); err != nil {
		t.Fatalf("EnsureParentDir: %v", err)
	}
	if !p.FileExists(filepath.Dir(file)) {
		t.Errorf("directory %s was not created", filepath.Dir(file))
	}
	if p.FileExists(file) {
		t.Errorf("FileExists(%s) = true, expected false", file)
	}
}
