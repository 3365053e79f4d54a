package migration

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mattn/go-sqlite3"
	"github.com/pigeonworks-llc/legacy-ledger/pkg/db"
)

var validate = validator.New()

// MappingRule maps legacy free text to an account.
type MappingRule struct {
	RuleID            int64
	LegacyTextPattern string
	MappedAccountID   int64
	AccountName       string
	Priority          int
	AutoApply         bool
	CreatedAt         time.Time
}

// RuleInput is the payload for creating or updating a mapping rule.
type RuleInput struct {
	Pattern   string `yaml:"pattern" validate:"required,max=200"`
	AccountID int64  `yaml:"account_id" validate:"required,gt=0"`
	Priority  int    `yaml:"priority"`
	AutoApply bool   `yaml:"auto_apply"`
}

// RuleRegistry manages the mapping rules consulted by the resolver.
type RuleRegistry struct {
	conn *db.Connection
}

// NewRuleRegistry creates a new RuleRegistry instance.
func NewRuleRegistry(conn *db.Connection) *RuleRegistry {
	return &RuleRegistry{conn: conn}
}

// Create inserts a rule. An account id that does not exist yields ErrUnknownAccount.
func (r *RuleRegistry) Create(input RuleInput) (int64, error) {
	if err := validate.Struct(input); err != nil {
		return 0, fmt.Errorf("invalid mapping rule: %w", err)
	}

	res, err := db.Run(r.conn, `
		INSERT INTO legacy_mapping_rules (legacy_text_pattern, mapped_account_id, priority, auto_apply)
		VALUES (?, ?, ?, ?)
	`, input.Pattern, input.AccountID, input.Priority, input.AutoApply)
	if err != nil {
		return 0, wrapRuleError(err, input.AccountID)
	}
	return res.LastInsertID, nil
}

// Get retrieves a rule by id.
func (r *RuleRegistry) Get(ruleID int64) (*MappingRule, error) {
	rules, err := r.query(`WHERE r.rule_id = ?`, ruleID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrRuleNotFound, ruleID)
	}
	return &rules[0], nil
}

// List returns every rule by descending priority, ties in insertion order.
func (r *RuleRegistry) List() ([]MappingRule, error) {
	return r.query(``)
}

// Update replaces a rule's pattern, account, priority and auto-apply flag.
func (r *RuleRegistry) Update(ruleID int64, input RuleInput) error {
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("invalid mapping rule: %w", err)
	}

	res, err := db.Run(r.conn, `
		UPDATE legacy_mapping_rules
		SET legacy_text_pattern = ?, mapped_account_id = ?, priority = ?, auto_apply = ?
		WHERE rule_id = ?
	`, input.Pattern, input.AccountID, input.Priority, input.AutoApply, ruleID)
	if err != nil {
		return wrapRuleError(err, input.AccountID)
	}
	if res.Changes == 0 {
		return fmt.Errorf("%w: %d", ErrRuleNotFound, ruleID)
	}
	return nil
}

// Delete removes a rule.
func (r *RuleRegistry) Delete(ruleID int64) error {
	res, err := db.Run(r.conn, `DELETE FROM legacy_mapping_rules WHERE rule_id = ?`, ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete mapping rule: %w", err)
	}
	if res.Changes == 0 {
		return fmt.Errorf("%w: %d", ErrRuleNotFound, ruleID)
	}
	return nil
}

func (r *RuleRegistry) query(where string, args ...any) ([]MappingRule, error) {
	rows, err := r.conn.Query(`
		SELECT r.rule_id, r.legacy_text_pattern, r.mapped_account_id, COALESCE(a.account_name, ''),
			r.priority, r.auto_apply, r.created_at
		FROM legacy_mapping_rules r
		LEFT JOIN accounts a ON r.mapped_account_id = a.account_id
		`+where+`
		ORDER BY r.priority DESC, r.rule_id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping rules: %w", err)
	}
	defer rows.Close()

	var rules []MappingRule
	for rows.Next() {
		var rule MappingRule
		if err := rows.Scan(
			&rule.RuleID,
			&rule.LegacyTextPattern,
			&rule.MappedAccountID,
			&rule.AccountName,
			&rule.Priority,
			&rule.AutoApply,
			&rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mapping rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func wrapRuleError(err error, accountID int64) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey ||
		strings.Contains(sqliteErr.Error(), "FOREIGN KEY constraint failed")) {
		return fmt.Errorf("%w: %d", ErrUnknownAccount, accountID)
	}
	return fmt.Errorf("failed to save mapping rule: %w", err)
}
