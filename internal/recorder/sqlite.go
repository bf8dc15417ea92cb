package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"CoinSentry/internal/alert"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_alerts (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			symbol    TEXT NOT NULL,
			current   REAL,
			max_price REAL,
			drop_pct  REAL,
			held_usd  REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON price_alerts(timestamp)`,

		`CREATE TABLE IF NOT EXISTS valuations (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			source      TEXT NOT NULL,
			total_usd   REAL,
			items       INTEGER,
			hidden      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_valuations_ts ON valuations(timestamp)`,

		`CREATE TABLE IF NOT EXISTS trend_entries (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			snapshots   INTEGER,
			rank        INTEGER,
			symbol      TEXT NOT NULL,
			first_ls    REAL,
			last_ls     REAL,
			growth_pct  REAL,
			appearances INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trend_ts ON trend_entries(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAlert(a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO price_alerts
		(timestamp, symbol, current, max_price, drop_pct, held_usd)
		VALUES (?,?,?,?,?,?)`,
		at.Unix(), a.Symbol, a.Current, a.Max, a.Drop*100, a.HeldUSD,
	)
	return err
}

// RecordValuation writes one row per source plus a "total" row.
func (r *SQLiteRecorder) RecordValuation(rec *ValuationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ts := rec.At.Unix()
	const q = `INSERT INTO valuations (timestamp, source, total_usd, items, hidden) VALUES (?,?,?,?,?)`
	for _, s := range rec.Valuation.Sources {
		if _, err := tx.Exec(q, ts, s.Source, s.Total, len(s.Items), s.Hidden); err != nil {
			return fmt.Errorf("insert %s: %w", s.Source, err)
		}
	}
	if _, err := tx.Exec(q, ts, "total", rec.Valuation.GrandTotal, 0, 0); err != nil {
		return fmt.Errorf("insert total: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordTrend(rec *TrendRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ts := rec.At.Unix()
	for i, e := range rec.Entries {
		_, err := tx.Exec(`INSERT INTO trend_entries
			(timestamp, snapshots, rank, symbol, first_ls, last_ls, growth_pct, appearances)
			VALUES (?,?,?,?,?,?,?,?)`,
			ts, rec.Snapshots, i+1, e.Symbol, e.First, e.Last, e.GrowthPct, e.Appearances,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", e.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
