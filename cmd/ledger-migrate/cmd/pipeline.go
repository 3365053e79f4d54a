package cmd

import (
	"fmt"
	"log/slog"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/migration"
	"github.com/spf13/cobra"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List importable files in the legacy-data directory",
	Long: `List CSV, JSON and Excel files in the legacy-data directory.
The directory is created when it does not exist.

Example:
  ledger-migrate scan`,
	Args: cobra.NoArgs,
	Run:  runScan,
}

// importCmd represents the import command.
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a legacy file as a new batch",
	Long: `Import a legacy file as a new batch. Every row is stored verbatim.
A relative path that does not exist is looked up in the legacy-data directory.

Example:
  ledger-migrate import ledger-2019.csv`,
	Args: cobra.ExactArgs(1),
	Run:  runImport,
}

// normalizeCmd represents the normalize command.
var normalizeCmd = &cobra.Command{
	Use:   "normalize <batch-id>",
	Short: "Detect date, amount, accounts and narration for a batch",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runStage("normalize", parseID(args[0], "batch id"), (*migration.Service).NormalizeBatch)
	},
}

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate <batch-id>",
	Short: "Resolve accounts and validate a normalized batch",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runStage("validate", parseID(args[0], "batch id"), (*migration.Service).ValidateBatch)
	},
}

// postCmd represents the post command.
var postCmd = &cobra.Command{
	Use:   "post <batch-id>",
	Short: "Post validated records of a batch as journal vouchers",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runStage("post", parseID(args[0], "batch id"), (*migration.Service).PostBatch)
	},
}

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate <file>",
	Short: "Run import, normalize, validate and post for one file",
	Long: `Run every pipeline stage for one file.

Records that fail a stage stay in the batch with their errors; fix them with
"remap" or "skip" and rerun "validate" and "post".

Example:
  ledger-migrate migrate ledger-2019.csv`,
	Args: cobra.ExactArgs(1),
	Run:  runMigrate,
}

func runScan(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	files, err := a.service.ScanLegacyFiles()
	exitOnError(err, "failed to scan legacy-data directory")

	fmt.Printf("\n=== Legacy files in %s ===\n", a.paths.GetLegacyDataDir())
	if len(files) == 0 {
		fmt.Println("(none)")
	}
	for _, f := range files {
		fmt.Printf("%-40s %-6s %10d  %s\n", f.Name, f.SourceType, f.Size, f.Modified.Format("2006-01-02 15:04"))
	}
	fmt.Println()
}

func runImport(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	slog.Info("Importing file", "path", args[0])
	result, err := a.service.ImportFile(args[0])
	exitOnError(err, "failed to import file")

	fmt.Printf("Imported %d records into batch %d\n", result.RecordsImported, result.BatchID)
}

func runStage(name string, batchID int64, stage func(*migration.Service, int64) (*migration.StageResult, error)) {
	a := openApp()
	defer a.conn.Close()

	slog.Info("Running stage", "stage", name, "batch_id", batchID)
	result, err := stage(a.service, batchID)
	exitOnError(err, "failed to "+name+" batch")

	fmt.Printf("Batch %d %s: %d succeeded, %d failed\n", batchID, name, result.Processed, result.Failed)
}

func runMigrate(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	slog.Info("Starting migration", "path", args[0])
	summary, err := a.service.Migrate(args[0])
	if summary != nil && summary.BatchID != 0 {
		printSummary(summary)
	}
	exitOnError(err, "migration stopped")
}

func printSummary(s *migration.MigrationSummary) {
	fmt.Printf("\n=== Migration of batch %d ===\n", s.BatchID)
	fmt.Printf("Imported:   %d\n", s.Imported)
	fmt.Printf("Normalized: %d (%d failed)\n", s.Normalized.Processed, s.Normalized.Failed)
	fmt.Printf("Validated:  %d (%d failed)\n", s.Validated.Processed, s.Validated.Failed)
	fmt.Printf("Posted:     %d (%d failed)\n", s.Posted.Processed, s.Posted.Failed)
	fmt.Println()
}
