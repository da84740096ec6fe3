package engine

import (
	"slices"
	"time"

	"budget/internal/core"
)

// Classify returns the lifecycle status of the occurrence of t on date.
// One-time templates never reach this function; Expand marks them paid.
func Classify(date core.Date, t core.TransactionTemplate, today core.Date) core.Status {
	switch {
	case t.ConfirmedDates.Contains(date):
		return core.Paid
	case !date.After(today):
		return core.Pending
	default:
		return core.Future
	}
}

// Aggregate sums the paid occurrences by kind. Amounts are integer cents, so
// the result does not depend on summation order and Savings is always
// exactly Income - Expenses.
func Aggregate(occurrences []core.Occurrence) core.Totals {
	var totals core.Totals
	for _, o := range occurrences {
		if o.Status != core.Paid {
			continue
		}
		switch o.Kind {
		case core.Income:
			totals.Income = totals.Income.Add(o.Amount)
		case core.Expense:
			totals.Expenses = totals.Expenses.Add(o.Amount)
		}
	}
	totals.Savings = totals.Income.Sub(totals.Expenses)
	return totals
}

// SortForDisplay returns a copy of occurrences ordered by date, newest first.
// Occurrences on the same date keep their input order.
func SortForDisplay(occurrences []core.Occurrence) []core.Occurrence {
	out := slices.Clone(occurrences)
	slices.SortStableFunc(out, func(a, b core.Occurrence) int {
		return b.Date.Compare(a.Date)
	})
	return out
}

// PendingOccurrences returns the pending occurrences in the order given.
func PendingOccurrences(occurrences []core.Occurrence) []core.Occurrence {
	var out []core.Occurrence
	for _, o := range occurrences {
		if o.Status == core.Pending {
			out = append(out, o)
		}
	}
	return out
}

// FirstPending returns the first pending occurrence of a display-sorted list.
func FirstPending(sorted []core.Occurrence) (core.Occurrence, bool) {
	for _, o := range sorted {
		if o.Status == core.Pending {
			return o, true
		}
	}
	return core.Occurrence{}, false
}

// Evaluate expands all templates for the month, sorts the result for display
// and aggregates it. Templates are expanded in collection order, which is
// the tie-break for occurrences sharing a date.
func Evaluate(templates []core.TransactionTemplate, year int, month time.Month, today core.Date) core.MonthView {
	occurrences := SortForDisplay(ExpandAll(templates, MonthWindow(year, month), today))
	return core.MonthView{
		Year:        year,
		Month:       month,
		Today:       today,
		Occurrences: occurrences,
		Totals:      Aggregate(occurrences),
	}
}
