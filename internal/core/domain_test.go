package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-03-06", NewDate(2024, 3, 6), true},
		{" 2024-03-06 ", NewDate(2024, 3, 6), true},
		{"2024-02-29T00:00:00.000Z", NewDate(2024, 2, 29), true},
		{"2024-02-29T18:30:00+02:00", NewDate(2024, 2, 29), true},
		{"2024-02-29T10:00:00", NewDate(2024, 2, 29), true},
		{"2023-02-29", Date{}, false},
		{"06/03/2024", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDaysIn(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tc := range cases {
		if got := DaysIn(tc.year, tc.month); got != tc.want {
			t.Errorf("DaysIn(%d, %v) = %d, want %d", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, 2, 27)
	if got := d.AddDays(3); !got.Equal(NewDate(2024, 3, 1)) {
		t.Fatalf("AddDays across leap day = %v", got)
	}
	if got := NewDate(2024, 1, 1).DaysUntil(NewDate(2024, 12, 31)); got != 365 {
		t.Fatalf("DaysUntil = %d, want 365", got)
	}
	if !NewDate(2024, 6, 1).SameMonth(2024, time.June) || NewDate(2023, 6, 1).SameMonth(2024, time.June) {
		t.Fatalf("SameMonth mismatch")
	}
}

func TestDateSet(t *testing.T) {
	a, b, c := NewDate(2024, 1, 3), NewDate(2024, 1, 1), NewDate(2024, 1, 2)
	s := NewDateSet(a, b, c, a)
	if len(s) != 3 {
		t.Fatalf("expected 3 unique dates, got %v", s.Strings())
	}
	want := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	for i, v := range s.Strings() {
		if v != want[i] {
			t.Fatalf("unexpected order: %v", s.Strings())
		}
	}

	t.Run("with existing returns same set", func(t *testing.T) {
		again := s.With(b)
		if len(again) != len(s) || &again[0] != &s[0] {
			t.Fatalf("expected receiver to be returned unchanged")
		}
	})

	t.Run("with new does not touch receiver", func(t *testing.T) {
		d := NewDate(2023, 12, 31)
		grown := s.With(d)
		if len(s) != 3 || s.Contains(d) {
			t.Fatalf("receiver modified: %v", s.Strings())
		}
		if !grown.Contains(d) || !grown[0].Equal(d) {
			t.Fatalf("expected %v first in %v", d, grown.Strings())
		}
	})

	var empty DateSet
	if empty.Contains(a) {
		t.Fatalf("nil set must be empty")
	}
	if got := empty.With(a); len(got) != 1 {
		t.Fatalf("With on nil set = %v", got)
	}
}

func TestTemplateValidate(t *testing.T) {
	good := TransactionTemplate{
		ID:          "t1",
		Kind:        Expense,
		Amount:      Money{Cents: 100},
		Description: "Rent",
		AnchorDate:  NewDate(2024, 1, 31),
		Recurrence:  Monthly,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name   string
		mutate func(*TransactionTemplate)
		want   error
	}{
		{"empty id", func(tt *TransactionTemplate) { tt.ID = " " }, ErrEmptyID},
		{"bad kind", func(tt *TransactionTemplate) { tt.Kind = "transfer" }, ErrInvalidKind},
		{"zero amount", func(tt *TransactionTemplate) { tt.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tt *TransactionTemplate) { tt.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"blank description", func(tt *TransactionTemplate) { tt.Description = "  " }, ErrEmptyDescription},
		{"long description", func(tt *TransactionTemplate) { tt.Description = string(long) }, ErrDescriptionTooLong},
		{"zero anchor", func(tt *TransactionTemplate) { tt.AnchorDate = Date{} }, ErrInvalidDate},
		{"bad recurrence", func(tt *TransactionTemplate) { tt.Recurrence = "yearly" }, ErrInvalidRecurrence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := good
			tt.mutate(&tpl)
			if err := tpl.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseRecurrence(t *testing.T) {
	tests := []struct {
		in      string
		want    Recurrence
		wantErr bool
	}{
		{"", None, false},
		{"none", None, false},
		{"Weekly", Weekly, false},
		{" monthly ", Monthly, false},
		{"yearly", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRecurrence(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseRecurrence(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseRecurrence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseKindAndDecision(t *testing.T) {
	if k, err := ParseKind("INCOME"); err != nil || k != Income {
		t.Fatalf("ParseKind = %q, %v", k, err)
	}
	if _, err := ParseKind(""); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if d, err := ParseDecision("skip"); err != nil || d != Skip {
		t.Fatalf("ParseDecision = %q, %v", d, err)
	}
	if _, err := ParseDecision("later"); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
}

func TestParseCurrency(t *testing.T) {
	if c, err := ParseCurrency("eur"); err != nil || c != "EUR" {
		t.Fatalf("ParseCurrency = %q, %v", c, err)
	}
	if _, err := ParseCurrency("BTC"); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
	list := SupportedCurrencies()
	list[0] = "XXX"
	if SupportedCurrencies()[0] != DefaultCurrency {
		t.Fatalf("SupportedCurrencies must return a copy")
	}
}

func TestNewTemplateIDUnique(t *testing.T) {
	a, b := NewTemplateID(), NewTemplateID()
	if a == "" || a == b {
		t.Fatalf("expected distinct ids, got %q and %q", a, b)
	}
}

func TestDueNoticeMessage(t *testing.T) {
	n := DueNotice{Description: "Rent"}
	if got := n.Message(); got != `Your recurring transaction "Rent" is due. Please confirm.` {
		t.Fatalf("Message() = %q", got)
	}
}
