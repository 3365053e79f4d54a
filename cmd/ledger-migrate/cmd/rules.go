package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/mappingfile"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/migration"
	"github.com/spf13/cobra"
)

var (
	ruleAccount  string
	rulePriority int
	ruleManual   bool
)

// rulesCmd represents the rules command group.
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage legacy text to account mapping rules",
	Long: `Manage mapping rules. A rule maps any account text containing its pattern
(case-insensitive) to an account. Rules are tried by descending priority
before exact and fuzzy matching against the chart of accounts.

Example:
  ledger-migrate rules add landlord --account "Rent Expense" --priority 10
  ledger-migrate rules load config/mapping-rules.yaml`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mapping rules in the order they are tried",
	Args:  cobra.NoArgs,
	Run:   runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <pattern>",
	Short: "Add a mapping rule",
	Args:  cobra.ExactArgs(1),
	Run:   runRulesAdd,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a mapping rule",
	Args:  cobra.ExactArgs(1),
	Run:   runRulesDelete,
}

var rulesLoadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Load mapping rules from a YAML file (default config/mapping-rules.yaml)",
	Args:  cobra.MaximumNArgs(1),
	Run:   runRulesLoad,
}

func init() {
	rulesAddCmd.Flags().StringVar(&ruleAccount, "account", "", "target account code or name (required)")
	rulesAddCmd.Flags().IntVar(&rulePriority, "priority", 0, "higher priorities are tried first")
	rulesAddCmd.Flags().BoolVar(&ruleManual, "manual", false, "store the rule without applying it automatically")
	rulesAddCmd.MarkFlagRequired("account")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(rulesLoadCmd)
}

func runRulesList(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	rules, err := a.service.Rules().List()
	exitOnError(err, "failed to list rules")

	fmt.Println("\n=== Mapping rules ===")
	if len(rules) == 0 {
		fmt.Println("(none)")
	}
	for _, r := range rules {
		mode := "auto"
		if !r.AutoApply {
			mode = "manual"
		}
		fmt.Printf("#%-4d priority=%-4d %-6s %-30q -> %s\n", r.RuleID, r.Priority, mode, r.LegacyTextPattern, r.AccountName)
	}
	fmt.Println()
}

func runRulesAdd(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	accountID := findAccount(a, ruleAccount)

	id, err := a.service.Rules().Create(migration.RuleInput{
		Pattern:   args[0],
		AccountID: accountID,
		Priority:  rulePriority,
		AutoApply: !ruleManual,
	})
	exitOnError(err, "failed to add rule")

	fmt.Printf("Added rule %d: %q -> %s\n", id, args[0], ruleAccount)
}

func runRulesDelete(cmd *cobra.Command, args []string) {
	ruleID := parseID(args[0], "rule id")

	a := openApp()
	defer a.conn.Close()

	exitOnError(a.service.Rules().Delete(ruleID), "failed to delete rule")
	fmt.Printf("Deleted rule %d\n", ruleID)
}

func runRulesLoad(cmd *cobra.Command, args []string) {
	path := filepath.Join("config", "mapping-rules.yaml")
	if len(args) > 0 {
		path = args[0]
	}

	a := openApp()
	defer a.conn.Close()

	accounts, err := a.service.Accounts().List()
	exitOnError(err, "failed to list accounts")

	slog.Info("Loading mapping rules", "path", path)
	mapper, err := mappingfile.NewRuleMapper(path, accounts)
	exitOnError(err, "failed to load mapping rules")

	inputs, err := mapper.Inputs()
	exitOnError(err, "invalid mapping rules")

	created, skipped, err := mappingfile.ApplyRules(a.service.Rules(), inputs)
	exitOnError(err, "failed to store mapping rules")

	fmt.Printf("Loaded %d rules (%d already present)\n", created, skipped)
}

// findAccount resolves an account code or name given on the command line.
func findAccount(a *app, ref string) int64 {
	accounts, err := a.service.Accounts().List()
	exitOnError(err, "failed to list accounts")

	for _, acc := range accounts {
		if acc.AccountCode == ref {
			return acc.AccountID
		}
	}
	for _, acc := range accounts {
		if equalFold(acc.AccountName, ref) {
			return acc.AccountID
		}
	}

	exitOnError(fmt.Errorf("%w: %s", migration.ErrUnknownAccount, ref), "failed to find account")
	return 0
}
