package cmd

import (
	"fmt"
	"strings"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/migration"
	"github.com/spf13/cobra"
)

var (
	recordStatus string
	remapDebit   string
	remapCredit  string
)

// batchesCmd represents the batches command.
var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List import batches",
	Args:  cobra.NoArgs,
	Run:   runBatches,
}

// recordsCmd represents the records command.
var recordsCmd = &cobra.Command{
	Use:   "records <batch-id>",
	Short: "List the raw records of a batch with their detection results",
	Long: `List the raw records of a batch with detected fields, errors and warnings.

Example:
  ledger-migrate records 3
  ledger-migrate records 3 --status failed`,
	Args: cobra.ExactArgs(1),
	Run:  runRecords,
}

// auditCmd represents the audit command.
var auditCmd = &cobra.Command{
	Use:   "audit <batch-id>",
	Short: "Show the audit trail of a batch, newest first",
	Args:  cobra.ExactArgs(1),
	Run:   runAudit,
}

// skipCmd represents the skip command.
var skipCmd = &cobra.Command{
	Use:   "skip <raw-id>",
	Short: "Exclude a record from every later stage",
	Args:  cobra.ExactArgs(1),
	Run:   runSkip,
}

// remapCmd represents the remap command.
var remapCmd = &cobra.Command{
	Use:   "remap <raw-id>",
	Short: "Set the account text of a record by hand",
	Long: `Replace the detected debit and/or credit account text of a normalized or
failed record. The record becomes "mapped" and is picked up by the next
"validate" run.

Example:
  ledger-migrate remap 42 --debit "Rent Expense" --credit Cash`,
	Args: cobra.ExactArgs(1),
	Run:  runRemap,
}

func init() {
	recordsCmd.Flags().StringVar(&recordStatus, "status", "", "only show records in this status")
	remapCmd.Flags().StringVar(&remapDebit, "debit", "", "debit account name or code")
	remapCmd.Flags().StringVar(&remapCredit, "credit", "", "credit account name or code")
}

func runBatches(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	batches, err := a.service.Batches()
	exitOnError(err, "failed to list batches")

	fmt.Println("\n=== Import batches ===")
	if len(batches) == 0 {
		fmt.Println("(none)")
	}
	for _, b := range batches {
		fmt.Printf("#%-5d %-30s %-6s %-10s total=%d processed=%d failed=%d  %s\n",
			b.BatchID, b.SourceFile, b.SourceType, b.Status,
			b.TotalRecords, b.ProcessedRecords, b.FailedRecords,
			b.ImportedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println()
}

func runRecords(cmd *cobra.Command, args []string) {
	batchID := parseID(args[0], "batch id")

	a := openApp()
	defer a.conn.Close()

	records, err := a.service.Records(batchID)
	exitOnError(err, "failed to list records")

	fmt.Printf("\n=== Records of batch %d ===\n", batchID)
	shown := 0
	for _, r := range records {
		if recordStatus != "" && string(r.Status) != recordStatus {
			continue
		}
		shown++

		amount := "-"
		if r.DetectedAmount.Valid {
			amount = r.DetectedAmount.Decimal.String()
		}
		fmt.Printf("#%-6d %-10s date=%s amount=%s confidence=%.3f\n",
			r.RawID, r.Status, orDash(r.DetectedDate.String), amount, r.ConfidenceScore)
		fmt.Printf("        debit=%s credit=%s\n", orDash(r.DetectedDebitAccount.String), orDash(r.DetectedCreditAccount.String))
		if r.DetectedNarration.Valid {
			fmt.Printf("        narration: %s\n", r.DetectedNarration.String)
		}
		for _, e := range r.ValidationErrors {
			fmt.Printf("        error: %s\n", e)
		}
		for _, w := range r.Warnings {
			fmt.Printf("        warning: %s\n", w)
		}
	}
	if shown == 0 {
		fmt.Println("(none)")
	}
	fmt.Println()
}

func runAudit(cmd *cobra.Command, args []string) {
	batchID := parseID(args[0], "batch id")

	a := openApp()
	defer a.conn.Close()

	_, err := a.service.Batch(batchID)
	exitOnError(err, "failed to get batch")

	entries, err := a.service.AuditLog(batchID)
	exitOnError(err, "failed to read audit log")

	fmt.Printf("\n=== Audit log of batch %d ===\n", batchID)
	for _, e := range entries {
		var refs []string
		if e.RawID.Valid {
			refs = append(refs, fmt.Sprintf("raw=%d", e.RawID.Int64))
		}
		if e.FinalVoucherID.Valid {
			refs = append(refs, fmt.Sprintf("voucher=%d", e.FinalVoucherID.Int64))
		}
		fmt.Printf("%s  %-17s %s %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.ActionTaken, strings.Join(refs, " "), e.Details)
		for _, w := range e.Warnings {
			fmt.Printf("    warning: %s\n", w)
		}
	}
	fmt.Println()
}

func runSkip(cmd *cobra.Command, args []string) {
	rawID := parseID(args[0], "record id")

	a := openApp()
	defer a.conn.Close()

	exitOnError(a.service.SkipRecord(rawID), "failed to skip record")
	fmt.Printf("Record %d skipped\n", rawID)
}

func runRemap(cmd *cobra.Command, args []string) {
	rawID := parseID(args[0], "record id")
	if remapDebit == "" && remapCredit == "" {
		exitOnError(fmt.Errorf("at least one of --debit or --credit is required"), "invalid arguments")
	}

	a := openApp()
	defer a.conn.Close()

	exitOnError(a.service.RemapRecord(rawID, remapDebit, remapCredit), "failed to remap record")

	rec, err := a.service.Record(rawID)
	exitOnError(err, "failed to get record")
	fmt.Printf("Record %d is %s: debit=%s credit=%s\n", rawID, rec.Status,
		orDash(rec.DetectedDebitAccount.String), orDash(rec.DetectedCreditAccount.String))
	if rec.Status == migration.RecordMapped {
		fmt.Printf("Run \"ledger-migrate validate %d\" to validate it\n", rec.BatchID)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
