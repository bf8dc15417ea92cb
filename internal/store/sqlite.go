package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLite stores one row per (key, field).
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (or creates) the database and runs migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		doc_key    TEXT NOT NULL,
		field      TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (doc_key, field)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite document store opened")
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM documents WHERE doc_key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	defer rows.Close()

	doc := make(Document)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		doc[field] = []byte(value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *SQLite) Merge(ctx context.Context, key string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	now := time.Now().Unix()
	for field, value := range fields {
		_, err := tx.ExecContext(ctx, `INSERT INTO documents (doc_key, field, value, updated_at)
			VALUES (?,?,?,?)
			ON CONFLICT(doc_key, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, field, string(value), now)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s.%s: %w", key, field, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	log.Info().Msg("closing sqlite document store")
	return s.db.Close()
}
