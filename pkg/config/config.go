// Package config provides configuration management for the ledger tools.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Ledger LedgerConfig
	Legacy LegacyConfig
	Debug  bool
}

// LedgerConfig represents storage-related configuration.
type LedgerConfig struct {
	Root      string
	DBPath    string
	ExportDir string
}

// LegacyConfig represents the migration pipeline configuration.
type LegacyConfig struct {
	DataDir            string
	VoucherPrefix      string
	FuzzyThreshold     float64
	GenericAccountSide string
	ExcelImport        bool
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	threshold, err := parseFloatEnv("LEGACY_FUZZY_THRESHOLD", 0.4)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("invalid LEGACY_FUZZY_THRESHOLD: %v is outside (0, 1]", threshold)
	}

	excel, err := parseBoolEnv("LEGACY_EXCEL_IMPORT", false)
	if err != nil {
		return nil, err
	}

	side := strings.ToLower(getEnvOrDefault("LEGACY_GENERIC_ACCOUNT_SIDE", "debit"))
	if side != "debit" && side != "credit" {
		return nil, fmt.Errorf("invalid LEGACY_GENERIC_ACCOUNT_SIDE: %q (expected debit or credit)", side)
	}

	config := &Config{
		Ledger: LedgerConfig{
			Root:      getEnvOrDefault("LEDGER_ROOT", "./ledger-data"),
			DBPath:    os.Getenv("LEDGER_DB_PATH"),
			ExportDir: os.Getenv("LEDGER_EXPORT_DIR"),
		},
		Legacy: LegacyConfig{
			DataDir:            os.Getenv("LEGACY_DATA_DIR"),
			VoucherPrefix:      getEnvOrDefault("LEGACY_VOUCHER_PREFIX", "LGC"),
			FuzzyThreshold:     threshold,
			GenericAccountSide: side,
			ExcelImport:        excel,
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "ledger":
			switch path[1] {
			case "root":
				value = c.Ledger.Root
			case "dbPath":
				value = c.Ledger.DBPath
			case "exportDir":
				value = c.Ledger.ExportDir
			}
		case "legacy":
			switch path[1] {
			case "dataDir":
				value = c.Legacy.DataDir
			case "voucherPrefix":
				value = c.Legacy.VoucherPrefix
			case "genericAccountSide":
				value = c.Legacy.GenericAccountSide
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseFloatEnv parses a float64 from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number value for %s: %s", key, value)
	}

	return parsed, nil
}

// parseBoolEnv parses a bool from an environment variable.
func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean value for %s: %s", key, value)
	}

	return parsed, nil
}
