package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"budget/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	today := core.NewDate(2024, time.March, 15)

	tests := []struct {
		name      string
		query     string
		wantYear  int
		wantMonth time.Month
		wantErr   bool
	}{
		{"defaults to today", "", 2024, time.March, false},
		{"explicit", "year=2023&month=12", 2023, time.December, false},
		{"month only", "month=1", 2024, time.January, false},
		{"year only", "year=2025", 2025, time.March, false},
		{"whitespace", "month=%202%20", 2024, time.February, false},
		{"month 13", "month=13", 0, 0, true},
		{"month 0", "month=0", 0, 0, true},
		{"year 0", "year=0", 0, 0, true},
		{"not a number", "year=twenty", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			year, month, err := parseMonthParams(q, today)
			if tt.wantErr {
				if !errors.Is(err, errInvalidMonth) {
					t.Fatalf("err = %v, want errInvalidMonth", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if year != tt.wantYear || month != tt.wantMonth {
				t.Errorf("got %d-%v, want %d-%v", year, month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestAmountField(t *testing.T) {
	tests := []struct {
		in   string
		want amountField
	}{
		{`12.5`, "12.5"},
		{`"12,50"`, "12,50"},
		{`null`, ""},
		{` 7 `, "7"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var a amountField
			if err := json.Unmarshal([]byte(tt.in), &a); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if a != tt.want {
				t.Errorf("got %q, want %q", a, tt.want)
			}
		})
	}
}

func TestTemplateRequest_ToTemplate(t *testing.T) {
	req := templateRequest{
		Type:        "Income",
		Amount:      "2500",
		Description: "  Salary\x00 ",
		Date:        "2024-01-31T00:00:00Z",
		Recurrence:  "MONTHLY",
	}
	got, err := req.toTemplate("abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := core.TransactionTemplate{
		ID:          "abc",
		Kind:        core.Income,
		Amount:      core.Money{Cents: 250000},
		Description: "Salary",
		AnchorDate:  core.NewDate(2024, time.January, 31),
		Recurrence:  core.Monthly,
	}
	if got.ID != want.ID || got.Kind != want.Kind || got.Amount != want.Amount ||
		got.Description != want.Description || !got.AnchorDate.Equal(want.AnchorDate) ||
		got.Recurrence != want.Recurrence {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// Missing recurrence means a one-time transaction.
	req.Recurrence = ""
	if got, _ := req.toTemplate("abc"); got.Recurrence != core.None {
		t.Errorf("recurrence = %q, want none", got.Recurrence)
	}
}

func TestTemplateRequest_ToTemplateReportsEveryProblem(t *testing.T) {
	_, err := templateRequest{Type: "gift", Amount: "-1", Date: "yesterday", Recurrence: "hourly"}.toTemplate("")
	for _, want := range []error{
		core.ErrInvalidKind,
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
		core.ErrInvalidRecurrence,
		core.ErrEmptyDescription,
	} {
		if !errors.Is(err, want) {
			t.Errorf("error %v does not wrap %v", err, want)
		}
	}
}

func TestDecisionRequest_Parse(t *testing.T) {
	tests := []struct {
		name     string
		req      decisionRequest
		want     core.Decision
		wantErr  error
		wantDate core.Date
	}{
		{"default confirm", decisionRequest{TemplateID: "t1", Date: "2024-05-01"}, core.Confirm, nil, core.NewDate(2024, time.May, 1)},
		{"skip", decisionRequest{TemplateID: "t1", Date: "2024-05-01", Decision: "SKIP"}, core.Skip, nil, core.NewDate(2024, time.May, 1)},
		{"no id", decisionRequest{TemplateID: " ", Date: "2024-05-01"}, "", core.ErrEmptyID, core.Date{}},
		{"bad date", decisionRequest{TemplateID: "t1", Date: "05/01/2024"}, "", core.ErrInvalidDate, core.Date{}},
		{"bad decision", decisionRequest{TemplateID: "t1", Date: "2024-05-01", Decision: "maybe"}, "", core.ErrInvalidDecision, core.Date{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, decision, err := tt.req.parse()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if decision != tt.want || key.TemplateID != "t1" || !key.Date.Equal(tt.wantDate) {
				t.Errorf("got %v %v", key, decision)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"object", `{"currency":"EUR"}`, false},
		{"trailing whitespace", "{\"currency\":\"EUR\"}\n", false},
		{"trailing object", `{"currency":"EUR"}{}`, true},
		{"empty", ``, true},
		{"too large", `{"currency":"` + strings.Repeat("x", maxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, "/api/currency", strings.NewReader(tt.body))
			var req currencyRequest
			err := decodeJSON(httptest.NewRecorder(), r, &req)
			if tt.wantErr {
				if !errors.Is(err, errBadRequest) {
					t.Fatalf("err = %v, want errBadRequest", err)
				}
				return
			}
			if err != nil || req.Currency != "EUR" {
				t.Fatalf("got %+v, %v", req, err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Rent  ", "Rent"},
		{"Rent\x00\x07", "Rent"},
		{"line\tone\nline two", "line\tone\nline two"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
