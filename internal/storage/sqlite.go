// Package storage provides the durable committed record store for the
// Paperclip runtime, backed by SQLite.
package storage

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cliplabs/paperclip/internal/ledger"
)

// DB is a SQLite-backed record store. It satisfies the runtime's Store
// interface: point reads plus atomic batch commits.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at path and runs schema
// migrations. Pass ":memory:" for an in-memory database (useful for
// tests).
func Open(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrate creates the records table if it does not already exist. Record
// bytes are opaque to the store; the ledger owns their layout.
func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS ledger_records (
    address_hex TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Get returns the record bytes at addr.
func (d *DB) Get(addr ledger.Address) ([]byte, bool, error) {
	var data []byte
	err := d.db.QueryRow(
		`SELECT data FROM ledger_records WHERE address_hex = ?`,
		addr.String(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get record: %w", err)
	}
	return data, true, nil
}

// ApplyBatch commits creates and updates inside a single SQL transaction.
// A create against an occupied address, or an update against an empty
// one, rolls the whole batch back.
func (d *DB) ApplyBatch(creates, updates map[ledger.Address][]byte) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()

	for addr, data := range creates {
		var exists int
		err := tx.QueryRow(
			`SELECT 1 FROM ledger_records WHERE address_hex = ?`, addr.String(),
		).Scan(&exists)
		if err == nil {
			return ledger.ErrRecordExists
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check record: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO ledger_records (address_hex, data, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			addr.String(), data, now, now,
		); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}

	for addr, data := range updates {
		res, err := tx.Exec(
			`UPDATE ledger_records SET data = ?, updated_at = ? WHERE address_hex = ?`,
			data, now, addr.String(),
		)
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		if n == 0 {
			return ledger.ErrRecordNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (d *DB) Count() (int, error) {
	var n int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM ledger_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Addresses returns every stored address, for diagnostics.
func (d *DB) Addresses() ([]ledger.Address, error) {
	rows, err := d.db.Query(`SELECT address_hex FROM ledger_records ORDER BY address_hex`)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addrs []ledger.Address
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != ledger.AddressLength {
			return nil, fmt.Errorf("corrupt address key %q", s)
		}
		var addr ledger.Address
		copy(addr[:], b)
		addrs = append(addrs, addr)
	}
	return addrs, rows.Err()
}
