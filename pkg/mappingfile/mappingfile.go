// Package mappingfile loads the YAML seed files for the chart of accounts and
// the legacy mapping rules.
package mappingfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/migration"
	"gopkg.in/yaml.v3"
)

// AccountEntry is one account in the chart file.
type AccountEntry struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ChartConfig represents config/chart-of-accounts.yaml, grouped by account type.
type ChartConfig struct {
	Assets      []AccountEntry `yaml:"assets"`
	Liabilities []AccountEntry `yaml:"liabilities"`
	Equity      []AccountEntry `yaml:"equity"`
	Income      []AccountEntry `yaml:"income"`
	Expenses    []AccountEntry `yaml:"expenses"`
}

// RuleEntry is one mapping rule. Account refers to an account by code or name.
type RuleEntry struct {
	Pattern   string `yaml:"pattern"`
	Account   string `yaml:"account"`
	Priority  int    `yaml:"priority"`
	AutoApply *bool  `yaml:"auto_apply"`
}

// RulesConfig represents config/mapping-rules.yaml.
type RulesConfig struct {
	Rules []RuleEntry `yaml:"rules"`
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// LoadChart reads a chart file and returns account inputs in file order,
// assets first and expenses last.
func LoadChart(path string) ([]ledger.AccountInput, error) {
	var config ChartConfig
	if err := readYAML(path, &config); err != nil {
		return nil, err
	}

	groups := []struct {
		accountType ledger.AccountType
		entries     []AccountEntry
	}{
		{ledger.AccountTypeAsset, config.Assets},
		{ledger.AccountTypeLiability, config.Liabilities},
		{ledger.AccountTypeEquity, config.Equity},
		{ledger.AccountTypeIncome, config.Income},
		{ledger.AccountTypeExpense, config.Expenses},
	}

	var inputs []ledger.AccountInput
	for _, group := range groups {
		for _, entry := range group.entries {
			inputs = append(inputs, ledger.AccountInput{
				Code:        entry.Code,
				Name:        entry.Name,
				Type:        string(group.accountType),
				Description: entry.Description,
			})
		}
	}
	return inputs, nil
}

// ApplyChart creates the accounts whose code (or, without a code, name) is
// not yet in the store. It returns how many were created and skipped.
func ApplyChart(store *ledger.AccountStore, inputs []ledger.AccountInput) (created, skipped int, err error) {
	existing, err := store.List()
	if err != nil {
		return 0, 0, err
	}

	known := make(map[string]bool, len(existing))
	for _, a := range existing {
		known[accountKey(a.AccountCode, a.AccountName)] = true
	}

	for _, input := range inputs {
		key := accountKey(input.Code, input.Name)
		if known[key] {
			skipped++
			continue
		}
		if _, err := store.Create(input); err != nil {
			return created, skipped, fmt.Errorf("failed to create account %q: %w", input.Name, err)
		}
		known[key] = true
		created++
	}
	return created, skipped, nil
}

func accountKey(code, name string) string {
	if code != "" {
		return "code:" + code
	}
	return "name:" + strings.ToLower(name)
}

// RuleMapper resolves the account references of a rules file against the
// chart of accounts.
type RuleMapper struct {
	config RulesConfig
	byCode map[string]int64
	byName map[string]int64
}

// NewRuleMapper creates a new RuleMapper from a YAML rules file.
func NewRuleMapper(configPath string, accounts []ledger.Account) (*RuleMapper, error) {
	var config RulesConfig
	if err := readYAML(configPath, &config); err != nil {
		return nil, err
	}

	mapper := &RuleMapper{
		config: config,
		byCode: make(map[string]int64),
		byName: make(map[string]int64),
	}
	mapper.buildAccountMaps(accounts)

	return mapper, nil
}

func (m *RuleMapper) buildAccountMaps(accounts []ledger.Account) {
	for _, a := range accounts {
		if a.AccountCode != "" {
			m.byCode[a.AccountCode] = a.AccountID
		}
		m.byName[strings.ToLower(a.AccountName)] = a.AccountID
	}
}

// AccountID returns the account id for a code or a case-insensitive name.
// Codes win over names.
func (m *RuleMapper) AccountID(ref string) (int64, bool) {
	ref = strings.TrimSpace(ref)
	if id, ok := m.byCode[ref]; ok {
		return id, true
	}
	id, ok := m.byName[strings.ToLower(ref)]
	return id, ok
}

// Inputs converts every rule entry into a registry input. A rule whose
// account cannot be found is reported; the whole file is rejected.
func (m *RuleMapper) Inputs() ([]migration.RuleInput, error) {
	inputs := make([]migration.RuleInput, 0, len(m.config.Rules))
	var unknown []string

	for _, entry := range m.config.Rules {
		id, ok := m.AccountID(entry.Account)
		if !ok {
			unknown = append(unknown, fmt.Sprintf("%s -> %s", entry.Pattern, entry.Account))
			continue
		}

		autoApply := true
		if entry.AutoApply != nil {
			autoApply = *entry.AutoApply
		}

		inputs = append(inputs, migration.RuleInput{
			Pattern:   entry.Pattern,
			AccountID: id,
			Priority:  entry.Priority,
			AutoApply: autoApply,
		})
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", migration.ErrUnknownAccount, strings.Join(unknown, ", "))
	}
	return inputs, nil
}

// ApplyRules creates the rules that are not already registered with the same
// pattern and account. It returns how many were created and skipped.
func ApplyRules(registry *migration.RuleRegistry, inputs []migration.RuleInput) (created, skipped int, err error) {
	existing, err := registry.List()
	if err != nil {
		return 0, 0, err
	}

	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[ruleKey(r.LegacyTextPattern, r.MappedAccountID)] = true
	}

	for _, input := range inputs {
		key := ruleKey(input.Pattern, input.AccountID)
		if known[key] {
			skipped++
			continue
		}
		if _, err := registry.Create(input); err != nil {
			return created, skipped, fmt.Errorf("failed to create rule %q: %w", input.Pattern, err)
		}
		known[key] = true
		created++
	}
	return created, skipped, nil
}

func ruleKey(pattern string, accountID int64) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(pattern), accountID)
}
