package cmd

import (
	"fmt"
	"log/slog"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/migration"
	"github.com/spf13/cobra"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display migration statistics",
	Long: `Display statistics about imported batches, records and vouchers.

Shows:
- Number of import batches
- Raw records per status
- Vouchers posted from legacy records and in total
- Accounts and mapping rules
- Last import and post timestamps

Example:
  ledger-migrate stats`,
	Args: cobra.NoArgs,
	Run:  runStats,
}

var recordStatuses = []migration.RecordStatus{
	migration.RecordRaw,
	migration.RecordNormalized,
	migration.RecordMapped,
	migration.RecordValidated,
	migration.RecordPosted,
	migration.RecordFailed,
	migration.RecordSkipped,
}

func runStats(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	stats, err := a.service.Stats()
	exitOnError(err, "failed to get statistics")

	fmt.Println("\n=== Migration Statistics ===")
	fmt.Printf("Import batches:      %d\n", stats.Batches)
	for _, status := range recordStatuses {
		fmt.Printf("Records %-12s %d\n", string(status)+":", stats.RecordsByStatus[status])
	}
	fmt.Printf("Legacy vouchers:     %d\n", stats.LegacyVouchers)
	fmt.Printf("Total vouchers:      %d\n", stats.TotalVouchers)
	fmt.Printf("Accounts:            %d\n", stats.Accounts)
	fmt.Printf("Mapping rules:       %d\n", stats.MappingRules)
	fmt.Printf("Last import:         %s\n", orNever(stats.LastImportAt))
	fmt.Printf("Last post:           %s\n", orNever(stats.LastPostAt))
	fmt.Println()

	slog.Info("Statistics displayed successfully")
}

func orNever(s string) string {
	if s == "" {
		return "(never)"
	}
	return s
}
