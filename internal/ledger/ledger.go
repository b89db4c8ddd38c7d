// Package ledger implements the Ledger capability (spec §6): durable,
// transactional storage for trades, risk positions, portfolio
// snapshots, idempotency keys, and audit records.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

type Ledger struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at dsn and runs
// table initialization, following the teacher's init-then-CRUD store
// pattern.
func Open(dsn string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite: serialize writers, avoid SQLITE_BUSY under concurrent callers
	l := &Ledger{db: db}
	if err := l.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init tables: %w", err)
	}
	return l, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) initTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			shares TEXT NOT NULL,
			price TEXT NOT NULL,
			strategy TEXT NOT NULL DEFAULT '',
			venue_order_id TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT NOT NULL,
			filled_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
		`CREATE TABLE IF NOT EXISTS risk_positions (
			symbol TEXT PRIMARY KEY,
			shares TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			entry_time DATETIME NOT NULL,
			stop_loss TEXT NOT NULL,
			take_profit TEXT NOT NULL,
			side TEXT NOT NULL,
			status TEXT NOT NULL,
			risk_amount TEXT NOT NULL,
			closed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			taken_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			equity TEXT NOT NULL,
			peak_equity TEXT NOT NULL,
			drawdown_pct REAL NOT NULL,
			consecutive_losses INTEGER NOT NULL,
			halted BOOLEAN NOT NULL,
			halt_reason TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key TEXT PRIMARY KEY,
			venue_order_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prev_hash TEXT NOT NULL,
			timestamp_utc TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			new_hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications_sent (
			report_date TEXT PRIMARY KEY,
			sent_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on success and
// rolling back on error or panic. Every multi-table write (trade-log +
// risk-position + portfolio update committing atomically, spec §6)
// goes through this helper.
func (l *Ledger) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ReserveIdempotencyKey inserts the key if absent. Returns false
// (no error) if the key already exists and has not expired — the
// caller must treat this as a no-op submission, never a duplicate
// order (spec §3, §6).
func (l *Ledger) ReserveIdempotencyKey(ctx context.Context, tx *sql.Tx, key string, ttl time.Duration) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM idempotency_keys WHERE key = ? AND expires_at > CURRENT_TIMESTAMP`, key).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists > 0 {
		return false, nil
	}
	expiresAt := time.Now().UTC().Add(ttl)
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO idempotency_keys (key, expires_at) VALUES (?, ?)`, key, expiresAt)
	if err != nil {
		return false, err
	}
	return true, nil
}

// VenueOrderIDFor returns the venue order id recorded against an
// unexpired idempotency key, so a duplicate Submit can answer with the
// original order without re-contacting the venue (spec §6). found is
// false both when the key is unknown/expired and when it was reserved
// but the venue order id was never recorded (submitter crashed
// mid-call) — the caller treats both the same way.
func (l *Ledger) VenueOrderIDFor(ctx context.Context, key string) (string, bool, error) {
	var id string
	err := l.db.QueryRowContext(ctx, `SELECT venue_order_id FROM idempotency_keys WHERE key = ? AND expires_at > CURRENT_TIMESTAMP`, key).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// RecordVenueOrderID attaches the venue's returned order id to an
// already-reserved idempotency key.
func (l *Ledger) RecordVenueOrderID(ctx context.Context, key, venueOrderID string) error {
	_, err := l.db.ExecContext(ctx, `UPDATE idempotency_keys SET venue_order_id = ? WHERE key = ?`, venueOrderID, key)
	return err
}

// defaultIdempotencyTTL matches spec §6's "TTL >= one trading day".
const defaultIdempotencyTTL = 36 * time.Hour

// ReserveIdempotencyKeySimple is ReserveIdempotencyKey without an
// existing transaction, for venue adapters that are not already
// inside a WithTx block.
func (l *Ledger) ReserveIdempotencyKeySimple(ctx context.Context, key string) (bool, error) {
	var reserved bool
	err := l.WithTx(ctx, func(tx *sql.Tx) error {
		r, err := l.ReserveIdempotencyKey(ctx, tx, key, defaultIdempotencyTTL)
		reserved = r
		return err
	})
	return reserved, err
}

// RecordFill inserts a filled trade into the trades table inside a
// transaction; it does not write any risk position row.
func (l *Ledger) RecordFill(ctx context.Context, tradeID, symbol, side string, shares, price money.Money, strategy, venueOrderID, idemKey string, filledAt time.Time) error {
	return l.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trades (id, symbol, side, shares, price, strategy, venue_order_id, idempotency_key, filled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tradeID, symbol, side, shares.String(), price.String(), strategy, venueOrderID, idemKey, filledAt)
		return err
	})
}

// SnapshotPortfolio appends a point-in-time portfolio snapshot.
func (l *Ledger) SnapshotPortfolio(ctx context.Context, equity, peakEquity money.Money, drawdownPct float64, consecutiveLosses int, halted bool, haltReason string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO portfolio_snapshots (equity, peak_equity, drawdown_pct, consecutive_losses, halted, halt_reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		equity.String(), peakEquity.String(), drawdownPct, consecutiveLosses, halted, haltReason)
	return err
}

// AppendAuditRecord persists one link of the hash chain.
func (l *Ledger) AppendAuditRecord(ctx context.Context, prevHash, timestampUTC, eventType, payloadJSON, newHash string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_records (prev_hash, timestamp_utc, event_type, payload_json, new_hash)
		VALUES (?, ?, ?, ?, ?)`,
		prevHash, timestampUTC, eventType, payloadJSON, newHash)
	return err
}

// TryRecordDailyReport inserts a notifications_sent row for date if
// absent, returning false if a report was already sent that day — the
// "exactly once per trading day" dedup (spec §4.4) as a database
// constraint rather than an in-memory flag.
func (l *Ledger) TryRecordDailyReport(ctx context.Context, date string) (bool, error) {
	res, err := l.db.ExecContext(ctx, `INSERT OR IGNORE INTO notifications_sent (report_date) VALUES (?)`, date)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
