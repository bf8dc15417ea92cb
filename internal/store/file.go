package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File persists all documents in one JSON file. Every Merge rewrites the
// file through a temp file and rename.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Get(_ context.Context, key string) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.load()
	if err != nil {
		return nil, err
	}
	doc, ok := all[key]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (f *File) Merge(_ context.Context, key string, fields Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.load()
	if err != nil {
		return err
	}
	doc, ok := all[key]
	if !ok {
		doc = make(Document, len(fields))
		all[key] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	return f.save(all)
}

func (f *File) Close() error { return nil }

// load returns an empty set if the file doesn't exist.
func (f *File) load() (map[string]Document, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Document), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	all := make(map[string]Document)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return all, nil
}

func (f *File) save(all map[string]Document) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return os.Rename(tmp, f.path)
}
