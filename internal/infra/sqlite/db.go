// Package sqlite is the SQLite-backed player, ledger and global-stats store.
// It uses the pure-Go modernc.org/sqlite driver, so no CGO is required.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "puffquest.db"

// DB wraps the SQL handle. All methods are safe for concurrent use.
type DB struct {
	db *sql.DB
}

// Open creates (or opens) the database in dir and applies every migration.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := "file:" + filepath.Join(dir, FileName) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time keeps read-modify-write player updates serialized.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the database handle.
func (db *DB) Close() error {
	return db.db.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping() error {
	return db.db.Ping()
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\n%s", err, stmt)
		}
	}
	return nil
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Device levels are plain columns so the passive job can filter on them.
		`CREATE TABLE IF NOT EXISTS players (
			id                  TEXT PRIMARY KEY,
			wallet              TEXT NOT NULL UNIQUE,
			vape                INTEGER NOT NULL DEFAULT 0,
			cigarette           INTEGER NOT NULL DEFAULT 0,
			cigar               INTEGER NOT NULL DEFAULT 0,
			balance             REAL NOT NULL DEFAULT 0,
			points              INTEGER NOT NULL DEFAULT 0,
			total_earned        REAL NOT NULL DEFAULT 0,
			total_points        INTEGER NOT NULL DEFAULT 0,
			total_puffs         INTEGER NOT NULL DEFAULT 0,
			streak_days         INTEGER NOT NULL DEFAULT 0,
			last_active_day     TEXT,
			last_passive_claim  TEXT,
			passive_accumulated REAL NOT NULL DEFAULT 0,
			invite_code         TEXT NOT NULL DEFAULT '',
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_devices ON players(vape, cigarette, cigar)`,

		// Ledger
		`CREATE TABLE IF NOT EXISTS transactions (
			id             TEXT PRIMARY KEY,
			player_id      TEXT NOT NULL REFERENCES players(id),
			type           TEXT NOT NULL,
			amount         REAL NOT NULL,
			balance_before REAL NOT NULL,
			balance_after  REAL NOT NULL,
			reference      TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			metadata       TEXT NOT NULL DEFAULT '{}',
			created_at     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_player ON transactions(player_id, created_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(reference) WHERE reference <> ''`,

		// Claims: one pending row per player at most; a signature confirms once.
		`CREATE TABLE IF NOT EXISTS claims (
			id            TEXT PRIMARY KEY,
			player_id     TEXT NOT NULL REFERENCES players(id),
			wallet        TEXT NOT NULL,
			amount        REAL NOT NULL,
			fee           REAL NOT NULL DEFAULT 0,
			status        TEXT NOT NULL,
			signature     TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			resolved_at   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_player ON claims(player_id, status, created_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_claims_signature ON claims(signature) WHERE status = 'confirmed'`,

		// Invite codes
		`CREATE TABLE IF NOT EXISTS invite_codes (
			code       TEXT PRIMARY KEY,
			created_by TEXT NOT NULL DEFAULT '',
			is_active  INTEGER NOT NULL DEFAULT 1,
			used_by    TEXT,
			used_at    TEXT,
			created_at TEXT NOT NULL
		)`,

		// Global stats singleton
		`CREATE TABLE IF NOT EXISTS global_stats (
			id                     INTEGER PRIMARY KEY CHECK (id = 1),
			total_players          INTEGER NOT NULL DEFAULT 0,
			rewards_pool_remaining REAL NOT NULL,
			circulating_supply     REAL NOT NULL DEFAULT 0,
			total_distributed      REAL NOT NULL DEFAULT 0,
			updated_at             TEXT NOT NULL
		)`,
		`INSERT OR IGNORE INTO global_stats (id, rewards_pool_remaining, updated_at)
			VALUES (1, 45000000, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))`,
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx runs fn inside one SQL transaction, committing when it returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
