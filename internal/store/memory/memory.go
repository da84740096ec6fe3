package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"budget/internal/core"
	"budget/internal/store"
)

// Store keeps the ledger in process memory. When opened on a file the
// ledger is seeded from it and every save rewrites it. Records that could
// not be read are carried along and written back as they were.
type Store struct {
	mu        sync.Mutex
	path      string
	templates []core.TransactionTemplate
	currency  core.Currency
	preserved []json.RawMessage
}

var _ store.Repository = (*Store)(nil)

// New returns a store holding templates, with no backing file.
func New(templates ...core.TransactionTemplate) *Store {
	return &Store{templates: templates}
}

// Open returns a store backed by the JSON document at path. A missing file
// is an empty ledger; it is created on the first save.
func Open(ctx context.Context, path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	ledger, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if ledger.CurrencyErr != nil {
		slog.WarnContext(ctx, "Ignoring stored currency, falling back to the default",
			"file", path,
			"error", ledger.CurrencyErr)
	}
	for _, rerr := range ledger.Skipped {
		slog.WarnContext(ctx, "Skipping unreadable transaction",
			"file", path,
			"index", rerr.Index,
			"id", rerr.ID,
			"error", rerr.Err)
	}

	s.templates = ledger.Templates
	s.currency = ledger.Currency
	s.preserved = ledger.Preserved()
	return s, nil
}

func (s *Store) LoadTemplates(_ context.Context) ([]core.TransactionTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.TransactionTemplate(nil), s.templates...), nil
}

func (s *Store) SaveTemplates(_ context.Context, templates []core.TransactionTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flush(templates, s.currency); err != nil {
		return err
	}
	s.templates = append([]core.TransactionTemplate(nil), templates...)
	return nil
}

func (s *Store) Currency(_ context.Context) (core.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currency, nil
}

func (s *Store) SetCurrency(_ context.Context, c core.Currency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flush(s.templates, c); err != nil {
		return err
	}
	s.currency = c
	return nil
}

// flush writes the document next to its destination and renames it into
// place, so a crash never leaves a truncated file behind.
func (s *Store) flush(templates []core.TransactionTemplate, currency core.Currency) error {
	if s.path == "" {
		return nil
	}
	data, err := Encode(templates, currency, s.preserved...)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
