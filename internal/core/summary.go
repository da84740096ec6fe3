package core

import (
	"fmt"
	"strings"
	"time"
)

// Totals folds the paid occurrences of a month.
type Totals struct {
	Income   Money
	Expenses Money
	Savings  Money // Income - Expenses, may be negative
}

// MonthView is the evaluated state of one month.
type MonthView struct {
	Year        int
	Month       time.Month
	Today       Date
	Occurrences []Occurrence // display order
	Totals      Totals
}

// DueNotice is what the notification collaborator receives for the single
// surfaced pending occurrence.
type DueNotice struct {
	TemplateID  string
	Description string
	DueDate     Date
	Kind        Kind
	Amount      Money
}

// NoticeFor builds the notice for an occurrence.
func NoticeFor(o Occurrence) DueNotice {
	return DueNotice{
		TemplateID:  o.ID,
		Description: o.Description,
		DueDate:     o.Date,
		Kind:        o.Kind,
		Amount:      o.Amount,
	}
}

// Message returns the human readable notification body.
func (n DueNotice) Message() string {
	return fmt.Sprintf("Your recurring transaction %q is due. Please confirm.", n.Description)
}

// Currency is an ISO 4217 code used by the display collaborator.
type Currency string

// DefaultCurrency is used when nothing has been stored yet.
const DefaultCurrency Currency = "USD"

var supportedCurrencies = []Currency{"USD", "EUR", "JPY", "GBP", "NGN", "KES", "ZAR", "GHS", "XAF"}

// SupportedCurrencies returns the selectable display currencies.
func SupportedCurrencies() []Currency {
	return append([]Currency(nil), supportedCurrencies...)
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, sc := range supportedCurrencies {
		if c == sc {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
}
