package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budget/internal/core"
	"budget/internal/store"

	_ "modernc.org/sqlite"
)

const currencyKey = "currency"

type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type templateRow struct {
	ID          string
	Kind        string
	AmountCents int64
	Description string
	AnchorDate  string
	Recurrence  string
}

func (row templateRow) toTemplate() (core.TransactionTemplate, error) {
	t := core.TransactionTemplate{
		ID:          row.ID,
		Amount:      core.Money{Cents: row.AmountCents},
		Description: row.Description,
	}
	var err error
	if t.Kind, err = core.ParseKind(row.Kind); err != nil {
		return t, err
	}
	if t.AnchorDate, err = core.ParseDate(row.AnchorDate); err != nil {
		return t, err
	}
	if t.Recurrence, err = core.ParseRecurrence(row.Recurrence); err != nil {
		return t, err
	}
	return t, t.Validate()
}

// LoadTemplates implements store.TemplateLoader. Rows that no longer
// validate are logged and skipped.
func (r *SQLiteRepository) LoadTemplates(ctx context.Context) ([]core.TransactionTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, amount_cents, description, anchor_date, recurrence
		FROM templates
		ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []core.TransactionTemplate
	index := make(map[string]int)
	for rows.Next() {
		var row templateRow
		if err := rows.Scan(&row.ID, &row.Kind, &row.AmountCents, &row.Description, &row.AnchorDate, &row.Recurrence); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t, err := row.toTemplate()
		if err != nil {
			slog.WarnContext(ctx, "Skipping invalid template row", "id", row.ID, "error", err)
			continue
		}
		index[t.ID] = len(templates)
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	ledgers, err := r.loadConfirmedDates(ctx)
	if err != nil {
		return nil, err
	}
	for id, dates := range ledgers {
		if i, ok := index[id]; ok {
			templates[i].ConfirmedDates = core.NewDateSet(dates...)
		}
	}

	slog.DebugContext(ctx, "Templates loaded from SQLite", "count", len(templates))
	return templates, nil
}

func (r *SQLiteRepository) loadConfirmedDates(ctx context.Context) (map[string][]core.Date, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT template_id, date FROM confirmed_dates`)
	if err != nil {
		return nil, fmt.Errorf("query confirmed dates: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.Date)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan confirmed date: %w", err)
		}
		d, err := core.ParseDate(raw)
		if err != nil {
			slog.WarnContext(ctx, "Skipping invalid confirmed date", "template_id", id, "date", raw, "error", err)
			continue
		}
		out[id] = append(out[id], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate confirmed dates: %w", err)
	}
	return out, nil
}

// SaveTemplates implements store.TemplateSaver. The collection is replaced
// in one transaction; confirmed dates are only ever inserted. Rows skipped
// by LoadTemplates survive the replace.
func (r *SQLiteRepository) SaveTemplates(ctx context.Context, templates []core.TransactionTemplate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	keep := make(map[string]struct{}, len(templates))
	for i, t := range templates {
		keep[t.ID] = struct{}{}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO templates (id, position, kind, amount_cents, description, anchor_date, recurrence)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				position = excluded.position,
				kind = excluded.kind,
				amount_cents = excluded.amount_cents,
				description = excluded.description,
				anchor_date = excluded.anchor_date,
				recurrence = excluded.recurrence,
				updated_at = CURRENT_TIMESTAMP`,
			t.ID, i, string(t.Kind), t.Amount.Cents, t.Description, t.AnchorDate.String(), string(t.Recurrence),
		); err != nil {
			return fmt.Errorf("upsert template %s: %w", t.ID, err)
		}
		for _, d := range t.ConfirmedDates {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO confirmed_dates (template_id, date) VALUES (?, ?)`,
				t.ID, d.String(),
			); err != nil {
				return fmt.Errorf("insert confirmed date %s@%s: %w", t.ID, d, err)
			}
		}
	}

	removed, err := staleIDs(ctx, tx, keep)
	if err != nil {
		return err
	}
	for _, id := range removed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM confirmed_dates WHERE template_id = ?`, id); err != nil {
			return fmt.Errorf("delete confirmed dates of %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete template %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit templates: %w", err)
	}

	slog.DebugContext(ctx, "Templates saved to SQLite", "count", len(templates), "removed", len(removed))
	return nil
}

// staleIDs lists the stored templates missing from keep. Rows that do not
// load are left alone: the caller never saw them, so their absence from
// keep is not a removal.
func staleIDs(ctx context.Context, tx *sql.Tx, keep map[string]struct{}) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, kind, amount_cents, description, anchor_date, recurrence
		FROM templates`)
	if err != nil {
		return nil, fmt.Errorf("query template ids: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var row templateRow
		if err := rows.Scan(&row.ID, &row.Kind, &row.AmountCents, &row.Description, &row.AnchorDate, &row.Recurrence); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if _, ok := keep[row.ID]; ok {
			continue
		}
		if _, err := row.toTemplate(); err != nil {
			continue
		}
		stale = append(stale, row.ID)
	}
	return stale, rows.Err()
}

// Currency implements store.CurrencyStore.
func (r *SQLiteRepository) Currency(ctx context.Context) (core.Currency, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, currencyKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get currency: %w", err)
	}
	return core.ParseCurrency(value)
}

func (r *SQLiteRepository) SetCurrency(ctx context.Context, c core.Currency) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		currencyKey, string(c),
	); err != nil {
		return fmt.Errorf("set currency: %w", err)
	}
	return nil
}
