package engine

import (
	"fmt"
	"time"

	"budget/internal/core"
)

// Window is an inclusive range of calendar dates.
type Window struct {
	Start core.Date
	End   core.Date
}

// MonthWindow returns the first and last day of the given month.
func MonthWindow(year int, month time.Month) Window {
	return Window{
		Start: core.NewDate(year, month, 1),
		End:   core.NewDate(year, month, core.DaysIn(year, month)),
	}
}

// Contains reports whether d lies inside the window, bounds included.
func (w Window) Contains(d core.Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Expand produces the occurrences of t inside w, in ascending date order,
// each already classified against today.
//
// Preconditions: t satisfies core.TransactionTemplate.Validate. An unknown
// recurrence panics.
func Expand(t core.TransactionTemplate, w Window, today core.Date) []core.Occurrence {
	switch t.Recurrence {
	case core.None:
		if !t.AnchorDate.SameMonth(w.Start.Year(), w.Start.Month()) {
			return nil
		}
		// One-time transactions are settled when they are recorded.
		return []core.Occurrence{{TransactionTemplate: t, Date: t.AnchorDate, Status: core.Paid}}
	case core.Daily, core.Weekly, core.Monthly:
		return expandRecurring(t, StepperFor(t.Recurrence), w, today)
	default:
		panic(fmt.Sprintf("engine: unknown recurrence %q for template %s", string(t.Recurrence), t.ID))
	}
}

func expandRecurring(t core.TransactionTemplate, s Stepper, w Window, today core.Date) []core.Occurrence {
	if t.AnchorDate.After(w.End) {
		return nil
	}
	var out []core.Occurrence
	for d := s.Seek(t.AnchorDate, w.Start); !d.After(w.End); d = s.Next(t.AnchorDate, d) {
		out = append(out, core.Occurrence{
			TransactionTemplate: t,
			Date:                d,
			Status:              Classify(d, t, today),
		})
	}
	return out
}

// ExpandAll expands every template in collection order.
func ExpandAll(templates []core.TransactionTemplate, w Window, today core.Date) []core.Occurrence {
	var out []core.Occurrence
	for _, t := range templates {
		out = append(out, Expand(t, w, today)...)
	}
	return out
}

// OccursOn reports whether t produces an occurrence on d.
func OccursOn(t core.TransactionTemplate, d core.Date) bool {
	for _, o := range Expand(t, MonthWindow(d.Year(), d.Month()), d) {
		if o.Date.Equal(d) {
			return true
		}
	}
	return false
}
