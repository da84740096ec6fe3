package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	None    Recurrence = "none"
	Daily   Recurrence = "daily"
	Weekly  Recurrence = "weekly"
	Monthly Recurrence = "monthly"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	Paid    Status = "paid"
	Pending Status = "pending"
	Future  Status = "future"
)

const (
	Confirm Decision = "confirm"
	Skip    Decision = "skip"
)

// DateLayout is the wire format of every calendar date.
const DateLayout = "2006-01-02"

const maxDescriptionLen = 200

type (
	Recurrence string
	Kind       string
	Status     string
	Decision   string

	// Date is a calendar date. The wrapped time is always midnight UTC so that
	// comparisons and day arithmetic never cross a DST boundary.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// DateSet is the confirmation ledger of a template: sorted, no duplicates.
	// It is treated as immutable; With returns a new set.
	DateSet []Date

	TransactionTemplate struct {
		ID             string
		Kind           Kind
		Amount         Money
		Description    string
		AnchorDate     Date
		Recurrence     Recurrence
		ConfirmedDates DateSet
	}

	// Occurrence is one dated instance of a template inside an evaluated month.
	Occurrence struct {
		TransactionTemplate
		Date   Date
		Status Status
	}

	// OccurrenceKey identifies an occurrence across re-evaluations.
	OccurrenceKey struct {
		TemplateID string
		Date       Date
	}
)

var (
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidKind         = errors.New("invalid transaction type")
	ErrInvalidRecurrence   = errors.New("invalid recurrence")
	ErrInvalidDecision     = errors.New("invalid decision")
	ErrEmptyID             = errors.New("empty template id")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrNotAnOccurrence     = errors.New("date is not an occurrence of the template")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// NewDate creates a new Date from year, month, day. Out of range values are
// normalised the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock and location of t, keeping its local calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp; only the date
// part of a timestamp is kept.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	// Timestamps without zone, e.g. 2024-03-06T00:00:00
	if len(s) > len(DateLayout) && s[len(DateLayout)] == 'T' {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// DaysUntil returns the number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	return d.Time.Compare(other.Time)
}

// SameMonth reports whether d falls in the given year and month.
func (d Date) SameMonth(year int, month time.Month) bool {
	return d.Year() == year && d.Month() == month
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (r Recurrence) Validate() error {
	switch r {
	case None, Daily, Weekly, Monthly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRecurrence, string(r))
	}
}

// IsRecurring reports whether the template produces more than one occurrence.
func (r Recurrence) IsRecurring() bool {
	return r != None
}

// ParseRecurrence maps a stored value to a Recurrence. Empty input is legacy
// data written before recurrence existed and means None.
func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return None, nil
	}
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

func (k Kind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
	}
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Confirm, Skip:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDecision, s)
	}
}

// NewDateSet builds a ledger from dates in any order, dropping duplicates.
func NewDateSet(dates ...Date) DateSet {
	out := make(DateSet, 0, len(dates))
	for _, d := range dates {
		out = out.With(d)
	}
	return out
}

func (s DateSet) index(d Date) (int, bool) {
	return slices.BinarySearchFunc(s, d, func(a, b Date) int { return a.Compare(b) })
}

func (s DateSet) Contains(d Date) bool {
	_, found := s.index(d)
	return found
}

// With returns a set that also contains d. When d is already present the
// receiver itself is returned, otherwise a fresh slice is allocated so the
// receiver is never modified.
func (s DateSet) With(d Date) DateSet {
	i, found := s.index(d)
	if found {
		return s
	}
	out := make(DateSet, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, d)
	out = append(out, s[i:]...)
	return out
}

// Strings returns the dates in wire format.
func (s DateSet) Strings() []string {
	out := make([]string, len(s))
	for i, d := range s {
		out[i] = d.String()
	}
	return out
}

// NewTemplateID returns a fresh random identifier.
func NewTemplateID() string {
	return uuid.NewString()
}

// Validate checks the invariants every template must satisfy before the
// engine sees it.
func (t TransactionTemplate) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if err := t.AnchorDate.Validate(); err != nil {
		return fmt.Errorf("invalid anchor date: %w", err)
	}
	if err := t.Recurrence.Validate(); err != nil {
		return err
	}
	return nil
}

// Key returns the identity of the occurrence.
func (o Occurrence) Key() OccurrenceKey {
	return OccurrenceKey{TemplateID: o.ID, Date: o.Date}
}

func (k OccurrenceKey) String() string {
	return k.TemplateID + "@" + k.Date.String()
}
