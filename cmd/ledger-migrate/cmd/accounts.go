package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/mappingfile"
	"github.com/spf13/cobra"
)

var showInactive bool

// accountsCmd represents the accounts command group.
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the chart of accounts",
	Long: `Manage the chart of accounts that legacy account text is resolved against.

Example:
  ledger-migrate accounts seed
  ledger-migrate accounts load config/chart-of-accounts.yaml
  ledger-migrate accounts list --all`,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	Run:   runAccountsList,
}

var accountsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the default chart of accounts into an empty database",
	Args:  cobra.NoArgs,
	Run:   runAccountsSeed,
}

var accountsLoadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Create missing accounts from a YAML chart (default config/chart-of-accounts.yaml)",
	Args:  cobra.MaximumNArgs(1),
	Run:   runAccountsLoad,
}

func init() {
	accountsListCmd.Flags().BoolVar(&showInactive, "all", false, "include inactive accounts")

	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsSeedCmd)
	accountsCmd.AddCommand(accountsLoadCmd)
}

func runAccountsList(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	var accounts []ledger.Account
	var err error
	if showInactive {
		accounts, err = a.service.Accounts().List()
	} else {
		accounts, err = a.service.Accounts().ListActive()
	}
	exitOnError(err, "failed to list accounts")

	fmt.Println("\n=== Chart of accounts ===")
	if len(accounts) == 0 {
		fmt.Println("(none) - run \"ledger-migrate accounts seed\"")
	}
	for _, acc := range accounts {
		status := ""
		if !acc.IsActive {
			status = " (inactive)"
		}
		fmt.Printf("%-6s %-30s %s%s\n", orDash(acc.AccountCode), acc.AccountName, acc.AccountType, status)
	}
	fmt.Println()
}

func runAccountsSeed(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	n, err := a.service.Accounts().SeedDefaults(ledger.DefaultChart)
	exitOnError(err, "failed to seed accounts")

	if n == 0 {
		fmt.Println("Chart of accounts already present, nothing seeded")
		return
	}
	fmt.Printf("Seeded %d accounts\n", n)
}

func runAccountsLoad(cmd *cobra.Command, args []string) {
	path := filepath.Join("config", "chart-of-accounts.yaml")
	if len(args) > 0 {
		path = args[0]
	}

	a := openApp()
	defer a.conn.Close()

	slog.Info("Loading chart of accounts", "path", path)
	inputs, err := mappingfile.LoadChart(path)
	exitOnError(err, "failed to load chart of accounts")

	created, skipped, err := mappingfile.ApplyChart(a.service.Accounts(), inputs)
	exitOnError(err, "failed to store accounts")

	fmt.Printf("Created %d accounts (%d already present)\n", created, skipped)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
