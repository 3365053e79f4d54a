package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat   string
	exportCurrency string
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export accounts, vouchers and entries",
	Long: `Export the ledger to the export directory:
- csv:       one file each for accounts, vouchers and voucher_entries
- xlsx:      one workbook with a sheet per table
- beancount: open directives plus one plain-text ledger file per month

Example:
  ledger-migrate export
  ledger-migrate export --format xlsx
  ledger-migrate export --format beancount --currency EUR`,
	Args: cobra.NoArgs,
	Run:  runExport,
}

// backupCmd represents the backup command.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a consistent copy of the database to the export directory",
	Args:  cobra.NoArgs,
	Run:   runBackup,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "export format: csv, xlsx or beancount")
	exportCmd.Flags().StringVar(&exportCurrency, "currency", export.DefaultCurrency, "commodity for beancount postings")
}

func runExport(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	exporter := export.NewExporter(a.conn, a.paths.GetExportDir())

	switch exportFormat {
	case "csv":
		paths, err := exporter.ExportCSV()
		exitOnError(err, "failed to export CSV")
		for _, p := range paths {
			fmt.Println(p)
		}
	case "xlsx":
		path, err := exporter.ExportXLSX()
		exitOnError(err, "failed to export XLSX")
		fmt.Println(path)
	case "beancount":
		paths, err := exporter.ExportBeancount(exportCurrency)
		exitOnError(err, "failed to export Beancount ledger")
		for _, p := range paths {
			fmt.Println(p)
		}
	default:
		exitOnError(fmt.Errorf("unknown format %q (expected csv, xlsx or beancount)", exportFormat), "invalid arguments")
	}
}

func runBackup(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	dest := a.paths.GetBackupPath(time.Now())
	exitOnError(a.conn.Backup(dest), "failed to back up database")
	slog.Info("Database backed up", "source", a.conn.GetPath(), "dest", dest)
	fmt.Printf("Backup written to %s\n", dest)
}
