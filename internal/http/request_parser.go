package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budget/internal/core"
)

const maxBodyBytes = 64 << 10

// errBadRequest marks input that could not be decoded at all.
var errBadRequest = errors.New("malformed request")

// errInvalidMonth marks a year/month query that does not name a month.
var errInvalidMonth = errors.New("invalid month")

// parseMonthParams extracts year and month from the query. Missing values
// default to the month containing today.
func parseMonthParams(query url.Values, today core.Date) (int, time.Month, error) {
	year, month := today.Year(), today.Month()

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return 0, 0, fmt.Errorf("%w: year %q", errInvalidMonth, v)
		}
		year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("%w: month %q", errInvalidMonth, v)
		}
		month = time.Month(m)
	}
	return year, month, nil
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// amountField accepts an amount written as a JSON number or a string, so
// both 12.5 and "12,50" reach the decimal parser unchanged.
type amountField string

func (a *amountField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	*a = amountField(data)
	return nil
}

type templateRequest struct {
	Type        string      `json:"type"`
	Amount      amountField `json:"amount"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Recurrence  string      `json:"recurrence"`
}

// toTemplate converts the request into a template with the given id. All
// problems are reported together.
func (req templateRequest) toTemplate(id string) (core.TransactionTemplate, error) {
	t := core.TransactionTemplate{
		ID:          id,
		Description: sanitizeInput(req.Description),
	}

	var errs []error
	var err error
	if t.Kind, err = core.ParseKind(req.Type); err != nil {
		errs = append(errs, err)
	}
	if t.Amount, err = core.ParseMoney(string(req.Amount)); err != nil {
		errs = append(errs, err)
	}
	if t.AnchorDate, err = core.ParseDate(req.Date); err != nil {
		errs = append(errs, err)
	}
	if t.Recurrence, err = core.ParseRecurrence(req.Recurrence); err != nil {
		errs = append(errs, err)
	}
	if t.Description == "" {
		errs = append(errs, core.ErrEmptyDescription)
	}
	return t, errors.Join(errs...)
}

type decisionRequest struct {
	TemplateID string `json:"templateId"`
	Date       string `json:"date"`
	Decision   string `json:"decision"`
}

func (req decisionRequest) parse() (core.OccurrenceKey, core.Decision, error) {
	id := strings.TrimSpace(req.TemplateID)
	if id == "" {
		return core.OccurrenceKey{}, "", core.ErrEmptyID
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.OccurrenceKey{}, "", err
	}
	decision := core.Confirm
	if strings.TrimSpace(req.Decision) != "" {
		if decision, err = core.ParseDecision(req.Decision); err != nil {
			return core.OccurrenceKey{}, "", err
		}
	}
	return core.OccurrenceKey{TemplateID: id, Date: date}, decision, nil
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
