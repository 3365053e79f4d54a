// Package cmd provides CLI commands for ledger-migrate.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/config"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/migration"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/pathutil"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ledger-migrate",
	Short: "Migrate legacy bookkeeping data into a double-entry ledger",
	Long: `ledger-migrate imports legacy accounting files (CSV, JSON and optionally
Excel) and turns them into balanced double-entry vouchers.

The pipeline runs in stages, each recorded in an append-only audit log:
- import:    store every source row verbatim in a new batch
- normalize: detect date, amount, accounts and narration
- validate:  resolve account text against rules and the chart of accounts
- post:      create one balanced journal voucher per valid record

Example:
  ledger-migrate accounts seed
  ledger-migrate scan
  ledger-migrate migrate legacy.csv
  ledger-migrate records 1 --status failed`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(debug)
	},
}

func setupLogging(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Pipeline
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(migrateCmd)

	// Inspection and manual intervention
	rootCmd.AddCommand(batchesCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(remapCmd)

	// Registries and ledger
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(vouchersCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(backupCmd)
}

// Helper function to get config file path.
func getConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "" // Will use default .env loading
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}

// app bundles what every command needs after configuration is loaded.
type app struct {
	cfg     *config.Config
	paths   *pathutil.PathResolver
	conn    *db.Connection
	service *migration.Service
}

// openApp loads configuration, opens the database and wires the pipeline.
// Callers must close app.conn.
func openApp() *app {
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate([]string{"ledger", "root"}, []string{"legacy", "voucherPrefix"}); err != nil {
		exitOnError(err, "invalid configuration")
	}
	if cfg.Debug && !debug {
		setupLogging(true)
	}

	side, err := migration.ParseAccountSide(cfg.Legacy.GenericAccountSide)
	exitOnError(err, "invalid configuration")

	pathResolver := pathutil.New(pathutil.Config{
		Root:          cfg.Ledger.Root,
		DatabasePath:  cfg.Ledger.DBPath,
		LegacyDataDir: cfg.Legacy.DataDir,
		ExportDir:     cfg.Ledger.ExportDir,
	})

	dbPath := pathResolver.GetDatabasePath()
	slog.Debug("Opening database", "path", dbPath)
	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open database")

	service := migration.NewService(conn, migration.Options{
		LegacyDataDir:      pathResolver.GetLegacyDataDir(),
		VoucherPrefix:      cfg.Legacy.VoucherPrefix,
		FuzzyThreshold:     cfg.Legacy.FuzzyThreshold,
		GenericAccountSide: side,
		AllowExcel:         cfg.Legacy.ExcelImport,
	})

	return &app{cfg: cfg, paths: pathResolver, conn: conn, service: service}
}

// parseID parses a positional id argument.
func parseID(arg, name string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		exitOnError(fmt.Errorf("%q is not a valid id", arg), "invalid "+name)
	}
	return id
}

// accountLabel renders an account id with its name for output.
func accountLabel(accounts map[int64]ledger.Account, id int64) string {
	if a, ok := accounts[id]; ok {
		return fmt.Sprintf("%s (%s)", a.AccountName, a.AccountCode)
	}
	return fmt.Sprintf("#%d", id)
}

func accountsByID(store *ledger.AccountStore) map[int64]ledger.Account {
	list, err := store.List()
	exitOnError(err, "failed to list accounts")

	byID := make(map[int64]ledger.Account, len(list))
	for _, a := range list {
		byID[a.AccountID] = a
	}
	return byID
}
