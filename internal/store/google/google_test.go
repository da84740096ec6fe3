package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"budget/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestParseTemplates(t *testing.T) {
	values := [][]interface{}{
		{"ID", "Type", "Amount", "Description", "Date", "Recurrence", "Confirmed Dates"},
		{"rent", "expense", 1200.5, "Rent", "2024-01-31", "monthly", "2024-01-31, 2024-02-29"},
		{"salary", "Income", "2500", "Salary", "2024-01-01"},
		{},
		{"bad", "expense", "abc", "Broken", "2024-01-01", "none"},
		{"rent", "expense", 1, "Duplicate", "2024-01-01", "none"},
		{"weird", "expense", 1, "Weird", "2024-01-01", "yearly"},
	}

	got, skipped, err := parseTemplates(values)
	if err != nil {
		t.Fatalf("parseTemplates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d templates, want 2: %+v", len(got), got)
	}

	rent := got[0]
	if rent.Amount.Cents != 120050 || rent.Recurrence != core.Monthly {
		t.Errorf("unexpected rent %+v", rent)
	}
	if ds := rent.ConfirmedDates.Strings(); len(ds) != 2 || ds[1] != "2024-02-29" {
		t.Errorf("ledger = %v", ds)
	}

	salary := got[1]
	if salary.Kind != core.Income || salary.Recurrence != core.None || len(salary.ConfirmedDates) != 0 {
		t.Errorf("short row not defaulted: %+v", salary)
	}

	wantRows := []int{5, 6, 7}
	if len(skipped) != len(wantRows) {
		t.Fatalf("skipped = %v", skipped)
	}
	for i, rerr := range skipped {
		if rerr.Row != wantRows[i] {
			t.Errorf("skipped[%d].Row = %d, want %d", i, rerr.Row, wantRows[i])
		}
	}
	if !errors.Is(skipped[0], core.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", skipped[0])
	}
	if !errors.Is(skipped[2], core.ErrInvalidRecurrence) {
		t.Errorf("expected ErrInvalidRecurrence, got %v", skipped[2])
	}
}

func TestParseTemplates_ReorderedAndMissingColumns(t *testing.T) {
	reordered := [][]interface{}{
		{"Description", "ID", "Date", "Amount", "Type"},
		{"Coffee", "c1", "2024-03-06", "3,50", "expense"},
	}
	got, _, err := parseTemplates(reordered)
	if err != nil {
		t.Fatalf("parseTemplates: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" || got[0].Amount.Cents != 350 {
		t.Fatalf("unexpected result %+v", got)
	}

	_, _, err = parseTemplates([][]interface{}{{"ID", "Type"}})
	if err == nil || !strings.Contains(err.Error(), "missing Amount") {
		t.Fatalf("expected missing header error, got %v", err)
	}
}

func TestParseCurrencyCell(t *testing.T) {
	tests := []struct {
		name    string
		values  [][]interface{}
		want    core.Currency
		wantErr bool
	}{
		{"empty range", nil, "", false},
		{"blank cell", [][]interface{}{{""}}, "", false},
		{"lower case", [][]interface{}{{"ngn"}}, "NGN", false},
		{"unsupported", [][]interface{}{{"DOGE"}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCurrencyCell(tt.values)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("parseCurrencyCell() = %q, %v", got, err)
			}
		})
	}
}

// fakeSheets serves the subset of the Sheets values API the client uses.
type fakeSheets struct {
	mu     sync.Mutex
	ranges map[string][][]interface{} // sheet name -> values
	clears []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	sheet, _, _ := strings.Cut(rng, "!")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
		f.clears = append(f.clears, strings.TrimSuffix(rng, ":clear"))
		json.NewEncoder(w).Encode(map[string]string{"clearedRange": rng})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.ranges[sheet] = vr.Values
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	case r.Method == http.MethodGet:
		values := f.ranges[sheet]
		// Single-cell reads of B1 see only the second column.
		if strings.HasSuffix(rng, "!B1") {
			values = nil
			if rows := f.ranges[sheet]; len(rows) > 0 && len(rows[0]) > 1 {
				values = [][]interface{}{{rows[0][1]}}
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": values})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func newFakeClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{ranges: map[string][][]interface{}{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: "sheet-id"}), fake
}

func TestClient_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	c, fake := newFakeClient(t)

	rent := core.TransactionTemplate{
		ID:             "rent",
		Kind:           core.Expense,
		Amount:         core.Money{Cents: 120050},
		Description:    "Rent",
		AnchorDate:     core.NewDate(2024, 1, 31),
		Recurrence:     core.Monthly,
		ConfirmedDates: core.NewDateSet(core.NewDate(2024, 1, 31)),
	}
	if err := c.SaveTemplates(ctx, []core.TransactionTemplate{rent}); err != nil {
		t.Fatalf("SaveTemplates: %v", err)
	}
	if len(fake.clears) != 1 || fake.clears[0] != "Transactions!A3:G" {
		t.Errorf("expected tail rows to be cleared, got %v", fake.clears)
	}

	got, err := c.LoadTemplates(ctx)
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	if len(got) != 1 || got[0].Amount != rent.Amount || !got[0].ConfirmedDates.Contains(core.NewDate(2024, 1, 31)) {
		t.Fatalf("round trip through sheet changed template: %+v", got)
	}
}

func TestClient_SaveKeepsInvalidRows(t *testing.T) {
	ctx := context.Background()
	c, fake := newFakeClient(t)
	fake.ranges["Transactions"] = [][]interface{}{
		{"Description", "ID", "Type", "Amount", "Date", "Recurrence", "Confirmed Dates"},
		{"Rent", "rent", "expense", 800.0, "2024-03-01", "monthly", ""},
		{"Car tax", "tax", "expense", 300.0, "2024-02-01", "yearly", "2024-02-01"},
	}

	got, err := c.LoadTemplates(ctx)
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d templates, want 1", len(got))
	}
	got[0].Description = "Rent and bills"
	if err := c.SaveTemplates(ctx, got); err != nil {
		t.Fatalf("SaveTemplates: %v", err)
	}

	rows := fake.ranges["Transactions"]
	if len(rows) != 3 {
		t.Fatalf("sheet has %d rows, want header, template and kept row: %v", len(rows), rows)
	}
	want := []interface{}{"tax", "expense", 300.0, "Car tax", "2024-02-01", "yearly", "2024-02-01"}
	if !reflect.DeepEqual(rows[2], want) {
		t.Errorf("kept row = %v, want %v", rows[2], want)
	}
	if fake.clears[len(fake.clears)-1] != "Transactions!A4:G" {
		t.Errorf("cleared %v", fake.clears)
	}

	// The rewritten sheet loads the same way.
	again, err := c.LoadTemplates(ctx)
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	if len(again) != 1 || again[0].Description != "Rent and bills" {
		t.Errorf("reloaded templates = %+v", again)
	}
}

func TestClient_Currency(t *testing.T) {
	ctx := context.Background()
	c, _ := newFakeClient(t)

	if cur, err := c.Currency(ctx); err != nil || cur != "" {
		t.Fatalf("Currency() = %s, %v; want unset", cur, err)
	}
	if err := c.SetCurrency(ctx, "KES"); err != nil {
		t.Fatalf("SetCurrency: %v", err)
	}
	if cur, err := c.Currency(ctx); err != nil || cur != "KES" {
		t.Fatalf("Currency() = %s, %v; want KES", cur, err)
	}
}

func TestNew_MissingConfig(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheet: "Transactions"}
	if _, err := c.LoadTemplates(context.Background()); err == nil {
		t.Fatal("expected error with nil service")
	}
}
