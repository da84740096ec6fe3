package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Document is the JSON export of the whole ledger:
//
//	{"currency":"USD","transactions":[{"id":"...","type":"expense",...}]}
//
// A bare array of transactions is accepted on decode as well.
type Document struct {
	Currency     string            `json:"currency,omitempty"`
	Transactions []json.RawMessage `json:"transactions"`
}

type record struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	Date           string          `json:"date"`
	Recurrence     string          `json:"recurrence,omitempty"`
	ProcessedDates []string        `json:"processedDates,omitempty"`
}

// RecordError describes a transaction that could not be loaded. The other
// records of the document are unaffected. Raw holds the record as read so
// it can be written back untouched.
type RecordError struct {
	Index int
	ID    string
	Raw   json.RawMessage
	Err   error
}

func (e *RecordError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("transaction %d (%s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("transaction %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Ledger is the result of decoding a document.
type Ledger struct {
	Templates []core.TransactionTemplate
	// Currency is empty when the document has none or names an
	// unsupported one; CurrencyErr tells the two apart.
	Currency    core.Currency
	CurrencyErr error
	Skipped     []*RecordError
}

// Preserved returns the raw skipped records in document order.
func (l Ledger) Preserved() []json.RawMessage {
	if len(l.Skipped) == 0 {
		return nil
	}
	out := make([]json.RawMessage, 0, len(l.Skipped))
	for _, rerr := range l.Skipped {
		out = append(out, rerr.Raw)
	}
	return out
}

// Decode parses a ledger document. Records written by older versions are
// repaired: a missing recurrence means one-time, a missing ledger means
// nothing settled, a missing id gets a fresh one. Records that cannot be
// repaired are reported in Skipped and left out. Only a document that is
// not JSON at all is an error.
func Decode(data []byte) (Ledger, error) {
	var (
		doc Document
		out Ledger
		err error
	)
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return out, nil
	case trimmed[0] == '[':
		err = json.Unmarshal(trimmed, &doc.Transactions)
	default:
		err = json.Unmarshal(trimmed, &doc)
	}
	if err != nil {
		return Ledger{}, fmt.Errorf("decode ledger document: %w", err)
	}

	if doc.Currency != "" {
		if out.Currency, err = core.ParseCurrency(doc.Currency); err != nil {
			out.Currency = ""
			out.CurrencyErr = err
		}
	}

	seen := make(map[string]struct{}, len(doc.Transactions))
	for i, raw := range doc.Transactions {
		t, err := decodeRecord(raw)
		if err == nil {
			if _, dup := seen[t.ID]; dup {
				err = fmt.Errorf("duplicate id")
			}
		}
		if err != nil {
			out.Skipped = append(out.Skipped, &RecordError{Index: i, ID: t.ID, Raw: raw, Err: err})
			continue
		}
		seen[t.ID] = struct{}{}
		out.Templates = append(out.Templates, t)
	}
	return out, nil
}

func decodeRecord(raw json.RawMessage) (core.TransactionTemplate, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return core.TransactionTemplate{}, err
	}

	t := core.TransactionTemplate{
		ID:          strings.TrimSpace(r.ID),
		Description: strings.TrimSpace(r.Description),
	}
	if t.ID == "" {
		t.ID = core.NewTemplateID()
	}

	var errs []error
	var err error
	if t.Kind, err = core.ParseKind(r.Type); err != nil {
		errs = append(errs, err)
	}
	if t.Amount, err = core.MoneyFromDecimal(r.Amount); err != nil {
		errs = append(errs, err)
	}
	if t.AnchorDate, err = core.ParseDate(r.Date); err != nil {
		errs = append(errs, err)
	}
	if t.Recurrence, err = core.ParseRecurrence(r.Recurrence); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return t, errors.Join(errs...)
	}

	dates := make([]core.Date, 0, len(r.ProcessedDates))
	for _, s := range r.ProcessedDates {
		d, err := core.ParseDate(s)
		if err != nil {
			return t, fmt.Errorf("processed date %q: %w", s, err)
		}
		dates = append(dates, d)
	}
	t.ConfirmedDates = core.NewDateSet(dates...)

	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Encode renders the ledger as an indented document. Preserved records are
// appended after the templates byte for byte.
func Encode(templates []core.TransactionTemplate, currency core.Currency, preserved ...json.RawMessage) ([]byte, error) {
	doc := struct {
		Currency     string `json:"currency,omitempty"`
		Transactions []any  `json:"transactions"`
	}{
		Currency:     string(currency),
		Transactions: make([]any, 0, len(templates)+len(preserved)),
	}
	for _, t := range templates {
		doc.Transactions = append(doc.Transactions, record{
			ID:             t.ID,
			Type:           string(t.Kind),
			Amount:         t.Amount.Decimal(),
			Description:    t.Description,
			Date:           t.AnchorDate.String(),
			Recurrence:     string(t.Recurrence),
			ProcessedDates: t.ConfirmedDates.Strings(),
		})
	}
	for _, raw := range preserved {
		doc.Transactions = append(doc.Transactions, raw)
	}
	return json.MarshalIndent(doc, "", "  ")
}
