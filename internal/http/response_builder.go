package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"budget/internal/core"
	applog "budget/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Amounts are decimal strings with two places; formatting with a currency
// symbol is left to the client.
type templateResponse struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Amount         string   `json:"amount"`
	Description    string   `json:"description"`
	Date           string   `json:"date"`
	Recurrence     string   `json:"recurrence"`
	ConfirmedDates []string `json:"confirmedDates"`
}

type occurrenceResponse struct {
	TemplateID  string `json:"templateId"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Recurrence  string `json:"recurrence"`
}

type totalsResponse struct {
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
	Savings  string `json:"savings"`
}

type monthResponse struct {
	Year        int                  `json:"year"`
	Month       int                  `json:"month"`
	Today       string               `json:"today"`
	Currency    string               `json:"currency"`
	Totals      totalsResponse       `json:"totals"`
	Pending     int                  `json:"pending"`
	Occurrences []occurrenceResponse `json:"occurrences"`
}

type dueResponse struct {
	Occurrence occurrenceResponse `json:"occurrence"`
	Message    string             `json:"message"`
}

type currencyResponse struct {
	Currency  string   `json:"currency"`
	Supported []string `json:"supported"`
}

func newTemplateResponse(t core.TransactionTemplate) templateResponse {
	dates := t.ConfirmedDates.Strings()
	if dates == nil {
		dates = []string{}
	}
	return templateResponse{
		ID:             t.ID,
		Type:           string(t.Kind),
		Amount:         t.Amount.String(),
		Description:    t.Description,
		Date:           t.AnchorDate.String(),
		Recurrence:     string(t.Recurrence),
		ConfirmedDates: dates,
	}
}

func newTemplateList(templates []core.TransactionTemplate) []templateResponse {
	out := make([]templateResponse, len(templates))
	for i, t := range templates {
		out[i] = newTemplateResponse(t)
	}
	return out
}

func newOccurrenceResponse(o core.Occurrence) occurrenceResponse {
	return occurrenceResponse{
		TemplateID:  o.ID,
		Date:        o.Date.String(),
		Status:      string(o.Status),
		Type:        string(o.Kind),
		Amount:      o.Amount.String(),
		Description: o.Description,
		Recurrence:  string(o.Recurrence),
	}
}

func newOccurrenceList(occs []core.Occurrence) []occurrenceResponse {
	out := make([]occurrenceResponse, len(occs))
	for i, o := range occs {
		out[i] = newOccurrenceResponse(o)
	}
	return out
}

func newMonthResponse(v core.MonthView, currency core.Currency) monthResponse {
	pending := 0
	for _, o := range v.Occurrences {
		if o.Status == core.Pending {
			pending++
		}
	}
	return monthResponse{
		Year:     v.Year,
		Month:    int(v.Month),
		Today:    v.Today.String(),
		Currency: string(currency),
		Totals: totalsResponse{
			Income:   v.Totals.Income.String(),
			Expenses: v.Totals.Expenses.String(),
			Savings:  v.Totals.Savings.String(),
		},
		Pending:     pending,
		Occurrences: newOccurrenceList(v.Occurrences),
	}
}

func newCurrencyResponse(c core.Currency) currencyResponse {
	supported := core.SupportedCurrencies()
	out := currencyResponse{Currency: string(c), Supported: make([]string, len(supported))}
	for i, sc := range supported {
		out.Supported[i] = string(sc)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// validationErrors are rejected input; the message is safe to return.
var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrInvalidKind,
	core.ErrInvalidRecurrence,
	core.ErrInvalidDecision,
	core.ErrEmptyID,
	core.ErrNotAnOccurrence,
	core.ErrUnsupportedCurrency,
	errInvalidMonth,
}

// statusFor maps an error to the response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTemplateNotFound):
		return http.StatusNotFound
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// writeError renders err with the status it maps to. Internal errors are
// logged and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, op, applog.NewFields())
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
