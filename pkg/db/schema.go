// Package db provides the SQLite store for the ledger and the legacy migration pipeline.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Chart of accounts
CREATE TABLE IF NOT EXISTS accounts (
    account_id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_code TEXT UNIQUE,
    account_name TEXT NOT NULL,
    account_type TEXT NOT NULL CHECK (account_type IN ('Asset', 'Liability', 'Income', 'Expense', 'Equity')),
    description TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_accounts_type ON accounts(account_type);

-- Legacy import batches: one row per imported file
CREATE TABLE IF NOT EXISTS legacy_import_batches (
    batch_id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_file TEXT,
    source_type TEXT CHECK (source_type IN ('CSV', 'Excel', 'JSON', 'Manual')),
    total_records INTEGER NOT NULL DEFAULT 0,
    processed_records INTEGER NOT NULL DEFAULT 0,
    failed_records INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'processing', 'normalized', 'validated', 'posted', 'failed')),
    imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    completed_at TIMESTAMP
);

-- Legacy raw records: source rows as received plus detection annotations
CREATE TABLE IF NOT EXISTS legacy_raw_records (
    raw_id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id INTEGER NOT NULL,
    raw_payload TEXT NOT NULL,         -- JSON object, never updated
    detected_date TEXT,                -- YYYY-MM-DD
    detected_amount REAL,
    detected_debit_account TEXT,
    detected_credit_account TEXT,
    detected_narration TEXT,
    confidence_score REAL NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'raw'
        CHECK (status IN ('raw', 'normalized', 'mapped', 'validated', 'posted', 'failed', 'skipped')),
    validation_errors TEXT,            -- JSON array of strings
    warnings TEXT,                     -- JSON array of strings
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (batch_id) REFERENCES legacy_import_batches(batch_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_legacy_raw_batch ON legacy_raw_records(batch_id);
CREATE INDEX IF NOT EXISTS idx_legacy_raw_status ON legacy_raw_records(status);

-- Vouchers: double-entry transaction headers
CREATE TABLE IF NOT EXISTS vouchers (
    voucher_id INTEGER PRIMARY KEY AUTOINCREMENT,
    voucher_number TEXT UNIQUE NOT NULL,
    voucher_type TEXT NOT NULL CHECK (voucher_type IN ('Debit', 'Credit', 'Journal')),
    voucher_date TEXT NOT NULL,
    narration TEXT,
    total_amount REAL NOT NULL,
    is_posted INTEGER NOT NULL DEFAULT 1,
    legacy_raw_id INTEGER,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (legacy_raw_id) REFERENCES legacy_raw_records(raw_id)
);

CREATE INDEX IF NOT EXISTS idx_vouchers_date ON vouchers(voucher_date);

-- Voucher entries: one debit or credit line each
CREATE TABLE IF NOT EXISTS voucher_entries (
    entry_id INTEGER PRIMARY KEY AUTOINCREMENT,
    voucher_id INTEGER NOT NULL,
    account_id INTEGER NOT NULL,
    debit_amount REAL NOT NULL DEFAULT 0,
    credit_amount REAL NOT NULL DEFAULT 0,
    narration TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (voucher_id) REFERENCES vouchers(voucher_id) ON DELETE CASCADE,
    FOREIGN KEY (account_id) REFERENCES accounts(account_id),
    CHECK (
        (debit_amount > 0 AND credit_amount = 0) OR
        (credit_amount > 0 AND debit_amount = 0) OR
        (debit_amount = 0 AND credit_amount = 0)
    )
);

CREATE INDEX IF NOT EXISTS idx_voucher_entries_voucher ON voucher_entries(voucher_id);
CREATE INDEX IF NOT EXISTS idx_voucher_entries_account ON voucher_entries(account_id);

-- Mapping rules: free text -> account shortcuts
CREATE TABLE IF NOT EXISTS legacy_mapping_rules (
    rule_id INTEGER PRIMARY KEY AUTOINCREMENT,
    legacy_text_pattern TEXT NOT NULL,
    mapped_account_id INTEGER NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    auto_apply INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (mapped_account_id) REFERENCES accounts(account_id)
);

-- Migration audit log (append-only)
-- final_voucher_id carries no foreign key so vouchers can be deleted
-- without touching the log.
CREATE TABLE IF NOT EXISTS migration_audit_log (
    log_id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id INTEGER,
    raw_id INTEGER,
    action_taken TEXT NOT NULL,
    details TEXT,
    warnings TEXT,
    final_voucher_id INTEGER,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (batch_id) REFERENCES legacy_import_batches(batch_id),
    FOREIGN KEY (raw_id) REFERENCES legacy_raw_records(raw_id)
);

CREATE INDEX IF NOT EXISTS idx_audit_batch ON migration_audit_log(batch_id);

CREATE TRIGGER IF NOT EXISTS trg_audit_no_update
BEFORE UPDATE ON migration_audit_log
BEGIN
    SELECT RAISE(ABORT, 'migration_audit_log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS trg_audit_no_delete
BEFORE DELETE ON migration_audit_log
BEGIN
    SELECT RAISE(ABORT, 'migration_audit_log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS trg_raw_payload_immutable
BEFORE UPDATE OF raw_payload ON legacy_raw_records
WHEN NEW.raw_payload IS NOT OLD.raw_payload
BEGIN
    SELECT RAISE(ABORT, 'raw_payload is immutable');
END;

-- Key-value metadata about pipeline runs
CREATE TABLE IF NOT EXISTS ledger_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
