package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budget/internal/middleware/trace"
	"budget/internal/services"
	"budget/internal/store/memory"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	now := func() time.Time { return time.Date(2024, time.June, 10, 9, 30, 0, 0, time.UTC) }
	ledger := services.NewLedgerService(memory.New(), services.LogNotifier{},
		services.WithClock(now), services.WithLocation(time.UTC))
	if err := ledger.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := NewServer(":0", ledger, opts...)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ledger.Close()
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func createLunch(t *testing.T, srv *Server) templateResponse {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/api/templates",
		`{"type":"expense","amount":"12,50","description":"Lunch","date":"2024-06-08","recurrence":"daily"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decode[templateResponse](t, rr)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get(trace.HeaderRequestID) == "" {
			t.Errorf("%s: missing request id header", path)
		}
	}

	failing := newTestServer(t, WithReadiness(fakePinger{err: errors.New("db closed")}))
	if rr := do(t, failing, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
}

func TestCreateTemplate(t *testing.T) {
	srv := newTestServer(t)

	created := createLunch(t, srv)
	if created.ID == "" || created.Amount != "12.50" || created.Recurrence != "daily" {
		t.Fatalf("unexpected template: %+v", created)
	}
	if len(created.ConfirmedDates) != 0 {
		t.Errorf("new template has ledger: %v", created.ConfirmedDates)
	}

	rr := do(t, srv, http.MethodGet, "/api/templates/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/templates", "")
	if list := decode[[]templateResponse](t, rr); len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list = %+v", list)
	}
}

func TestCreateTemplate_Invalid(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{"malformed json", `{"type":`, http.StatusBadRequest, "malformed request"},
		{"zero amount", `{"type":"expense","amount":0,"description":"x","date":"2024-06-01"}`, http.StatusUnprocessableEntity, "invalid amount"},
		{"negative amount", `{"type":"income","amount":"-5","description":"x","date":"2024-06-01"}`, http.StatusUnprocessableEntity, "invalid amount"},
		{"empty description", `{"type":"income","amount":5,"description":"  ","date":"2024-06-01"}`, http.StatusUnprocessableEntity, "empty description"},
		{"bad date", `{"type":"income","amount":5,"description":"x","date":"June 1st"}`, http.StatusUnprocessableEntity, "invalid date"},
		{"bad kind", `{"type":"gift","amount":5,"description":"x","date":"2024-06-01"}`, http.StatusUnprocessableEntity, "invalid transaction type"},
		{"bad recurrence", `{"type":"income","amount":5,"description":"x","date":"2024-06-01","recurrence":"yearly"}`, http.StatusUnprocessableEntity, "invalid recurrence"},
		{"description too long", `{"type":"income","amount":5,"description":"` + strings.Repeat("a", 201) + `","date":"2024-06-01"}`, http.StatusUnprocessableEntity, "description too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/templates", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d, want %d (body %s)", rr.Code, tt.status, rr.Body.String())
			}
			if got := decode[errorResponse](t, rr); !strings.Contains(got.Error, tt.errMsg) {
				t.Errorf("error = %q, want it to contain %q", got.Error, tt.errMsg)
			}
		})
	}

	if list := decode[[]templateResponse](t, do(t, srv, http.MethodGet, "/api/templates", "")); len(list) != 0 {
		t.Errorf("invalid input was stored: %+v", list)
	}
}

func TestMonthView(t *testing.T) {
	srv := newTestServer(t)
	lunch := createLunch(t, srv)

	rr := do(t, srv, http.MethodGet, "/api/month?year=2024&month=6", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	month := decode[monthResponse](t, rr)
	if month.Year != 2024 || month.Month != 6 || month.Today != "2024-06-10" || month.Currency != "USD" {
		t.Fatalf("unexpected header: %+v", month)
	}
	if len(month.Occurrences) != 23 || month.Pending != 3 {
		t.Fatalf("occurrences=%d pending=%d, want 23 and 3", len(month.Occurrences), month.Pending)
	}
	if month.Totals.Expenses != "0.00" || month.Totals.Savings != "0.00" {
		t.Errorf("totals = %+v", month.Totals)
	}

	do(t, srv, http.MethodPost, "/api/decisions", `{"templateId":"`+lunch.ID+`","date":"2024-06-08","decision":"confirm"}`)
	month = decode[monthResponse](t, do(t, srv, http.MethodGet, "/api/month", ""))
	if month.Pending != 2 || month.Totals.Expenses != "12.50" || month.Totals.Savings != "-12.50" {
		t.Errorf("after confirm: pending=%d totals=%+v", month.Pending, month.Totals)
	}

	may := decode[monthResponse](t, do(t, srv, http.MethodGet, "/api/month?year=2024&month=5", ""))
	if len(may.Occurrences) != 0 {
		t.Errorf("occurrences before anchor: %d", len(may.Occurrences))
	}

	for _, q := range []string{"month=13", "month=0", "year=abc", "month=x"} {
		if rr := do(t, srv, http.MethodGet, "/api/month?"+q, ""); rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status=%d, want 422", q, rr.Code)
		}
	}
}

func TestRecordDecision(t *testing.T) {
	srv := newTestServer(t)
	lunch := createLunch(t, srv)

	body := `{"templateId":"` + lunch.ID + `","date":"2024-06-09","decision":"skip"}`
	rr := do(t, srv, http.MethodPost, "/api/decisions", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[templateResponse](t, rr)
	if len(got.ConfirmedDates) != 1 || got.ConfirmedDates[0] != "2024-06-09" {
		t.Fatalf("ledger = %v", got.ConfirmedDates)
	}

	// Repeating a decision leaves the ledger unchanged.
	rr = do(t, srv, http.MethodPost, "/api/decisions", body)
	if got := decode[templateResponse](t, rr); len(got.ConfirmedDates) != 1 {
		t.Fatalf("repeat changed ledger: %v", got.ConfirmedDates)
	}

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unknown template", `{"templateId":"nope","date":"2024-06-09"}`, http.StatusNotFound},
		{"before anchor", `{"templateId":"` + lunch.ID + `","date":"2024-06-01"}`, http.StatusUnprocessableEntity},
		{"bad decision", `{"templateId":"` + lunch.ID + `","date":"2024-06-09","decision":"later"}`, http.StatusUnprocessableEntity},
		{"missing template id", `{"date":"2024-06-09"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"templateId":"` + lunch.ID + `","date":"2024-02-30"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, http.MethodPost, "/api/decisions", tt.body); rr.Code != tt.status {
				t.Errorf("status=%d, want %d (body %s)", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestUpdateTemplate(t *testing.T) {
	srv := newTestServer(t)
	lunch := createLunch(t, srv)
	do(t, srv, http.MethodPost, "/api/decisions", `{"templateId":"`+lunch.ID+`","date":"2024-06-08"}`)

	rr := do(t, srv, http.MethodPut, "/api/templates/"+lunch.ID,
		`{"type":"expense","amount":15,"description":"Lunch out","date":"2024-06-08","recurrence":"daily"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[templateResponse](t, rr)
	if got.ID != lunch.ID || got.Amount != "15.00" || got.Description != "Lunch out" {
		t.Errorf("unexpected template: %+v", got)
	}
	if len(got.ConfirmedDates) != 1 || got.ConfirmedDates[0] != "2024-06-08" {
		t.Errorf("ledger not preserved: %v", got.ConfirmedDates)
	}

	rr = do(t, srv, http.MethodPut, "/api/templates/ghost",
		`{"type":"expense","amount":15,"description":"Ghost","date":"2024-06-08"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown template status=%d, want 404", rr.Code)
	}
}

func TestDueFlow(t *testing.T) {
	srv := newTestServer(t)

	if rr := do(t, srv, http.MethodGet, "/api/due", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("empty ledger due status=%d, want 204", rr.Code)
	}

	lunch := createLunch(t, srv)
	rr := do(t, srv, http.MethodGet, "/api/due", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("due status=%d", rr.Code)
	}
	due := decode[dueResponse](t, rr)
	if due.Occurrence.TemplateID != lunch.ID || due.Occurrence.Date != "2024-06-10" {
		t.Fatalf("due = %+v", due.Occurrence)
	}
	if due.Message != `Your recurring transaction "Lunch" is due. Please confirm.` {
		t.Errorf("message = %q", due.Message)
	}

	// The surfaced occurrence stays until it is settled or dismissed.
	do(t, srv, http.MethodPost, "/api/decisions", `{"templateId":"`+lunch.ID+`","date":"2024-06-09"}`)
	if again := decode[dueResponse](t, do(t, srv, http.MethodGet, "/api/due", "")); again.Occurrence.Date != "2024-06-10" {
		t.Fatalf("surfaced occurrence changed to %s", again.Occurrence.Date)
	}

	rr = do(t, srv, http.MethodPost, "/api/due/dismiss", "")
	if next := decode[dueResponse](t, rr); next.Occurrence.Date != "2024-06-08" {
		t.Fatalf("after dismiss = %+v", next.Occurrence)
	}
	if rr := do(t, srv, http.MethodPost, "/api/due/dismiss", ""); rr.Code != http.StatusNoContent {
		t.Errorf("last dismiss status=%d, want 204", rr.Code)
	}

	pending := decode[[]occurrenceResponse](t, do(t, srv, http.MethodGet, "/api/pending", ""))
	if len(pending) != 2 {
		t.Errorf("dismissed occurrences must stay pending, got %d", len(pending))
	}
}

func TestCurrency(t *testing.T) {
	srv := newTestServer(t)

	got := decode[currencyResponse](t, do(t, srv, http.MethodGet, "/api/currency", ""))
	if got.Currency != "USD" || len(got.Supported) != 9 {
		t.Fatalf("currency = %+v", got)
	}

	rr := do(t, srv, http.MethodPut, "/api/currency", `{"currency":"eur"}`)
	if rr.Code != http.StatusOK || decode[currencyResponse](t, rr).Currency != "EUR" {
		t.Fatalf("set currency status=%d body=%s", rr.Code, rr.Body.String())
	}
	if month := decode[monthResponse](t, do(t, srv, http.MethodGet, "/api/month", "")); month.Currency != "EUR" {
		t.Errorf("month currency = %s", month.Currency)
	}

	if rr := do(t, srv, http.MethodPut, "/api/currency", `{"currency":"BTC"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unsupported currency status=%d, want 422", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	if rr := do(t, srv, http.MethodDelete, "/api/templates", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status=%d, want 405", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(2))

	body := `{"currency":"USD"}`
	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPut, "/api/currency", body); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPut, "/api/currency", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("status=%d, want 429 with Retry-After", rr.Code)
	}
	// Reads are not limited.
	if rr := do(t, srv, http.MethodGet, "/api/currency", ""); rr.Code != http.StatusOK {
		t.Errorf("read status=%d", rr.Code)
	}
	if m := srv.Metrics(); m.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", m.TotalRequests)
	}
}
