package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNestedTransaction is returned when Transaction is called while another
// transaction is still open on the same connection.
var ErrNestedTransaction = errors.New("nested transactions are not supported")

// Querier is satisfied by *sql.DB, *sql.Tx and *Connection.
// Repositories accept it so the same code runs inside and outside a transaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Connection manages a SQLite database connection.
// Only one transaction may be open at a time (single writer).
type Connection struct {
	db     *sql.DB
	dbPath string
	inTx   atomic.Bool
}

// Open opens a SQLite database connection.
// It enables WAL mode and foreign key constraints, then applies the schema.
func Open(dbPath string) (*Connection, error) {
	// Ensure database file's parent directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn := &Connection{
		db:     db,
		dbPath: dbPath,
	}

	if err := InitializeSchema(conn); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return conn, nil
}

// Close closes the database connection.
func (c *Connection) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// GetPath returns the database file path.
func (c *Connection) GetPath() string {
	return c.dbPath
}

// InTransaction reports whether a transaction is currently open.
func (c *Connection) InTransaction() bool {
	return c.inTx.Load()
}

// Query executes a query that returns rows.
func (c *Connection) Query(query string, args ...any) (*sql.Rows, error) {
	return c.db.Query(query, args...)
}

// QueryRow executes a query that is expected to return at most one row.
func (c *Connection) QueryRow(query string, args ...any) *sql.Row {
	return c.db.QueryRow(query, args...)
}

// Exec executes a query that doesn't return rows.
// Returns sql.Result with information about the operation (LastInsertId, RowsAffected).
func (c *Connection) Exec(query string, args ...any) (sql.Result, error) {
	return c.db.Exec(query, args...)
}

// Transaction executes a function within a transaction.
// If the function returns an error (or panics), the transaction is rolled back
// and the error is returned unchanged. Otherwise, the transaction is committed.
// Calling Transaction from inside fn returns ErrNestedTransaction.
func (c *Connection) Transaction(fn func(*sql.Tx) error) error {
	if !c.inTx.CompareAndSwap(false, true) {
		return ErrNestedTransaction
	}
	defer c.inTx.Store(false)

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Backup writes a consistent copy of the database to destPath.
func (c *Connection) Backup(destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if _, err := c.Exec(`VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}
