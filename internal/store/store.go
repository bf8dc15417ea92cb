package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("document not found")

// Document is a flat set of JSON-encoded fields.
type Document map[string]json.RawMessage

// DocumentStore is a keyed document store with shallow merge semantics.
type DocumentStore interface {
	Get(ctx context.Context, key string) (Document, error)
	// Merge upserts the given fields, leaving other fields untouched.
	Merge(ctx context.Context, key string, fields Document) error
	Close() error
}

// Locker is implemented by stores that can serialize writers across
// processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// Config selects and configures a backend.
type Config struct {
	Driver     string      `yaml:"driver" default:"sqlite" validate:"oneof=sqlite redis file memory"`
	SQLitePath string      `yaml:"sqlite_path" default:"data/coin_sentry.db"`
	FilePath   string      `yaml:"file_path" default:"data/state.json"`
	Redis      RedisConfig `yaml:"redis"`
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (DocumentStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "redis":
		return NewRedis(ctx, cfg.Redis)
	case "file":
		return NewFile(cfg.FilePath), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Field decodes one field of doc into out. A missing field leaves out untouched
// and reports false.
func Field(doc Document, name string, out any) (bool, error) {
	raw, ok := doc[name]
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode field %s: %w", name, err)
	}
	return true, nil
}

// Fields encodes values into a Document.
func Fields(values map[string]any) (Document, error) {
	doc := make(Document, len(values))
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", k, err)
		}
		doc[k] = raw
	}
	return doc, nil
}
