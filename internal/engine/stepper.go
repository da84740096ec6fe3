// Package engine expands transaction templates into the dated occurrences of
// a month and folds them into totals.
//
// Every function here is pure: it reads an immutable snapshot of templates
// and a reference date and returns fresh values. Callers re-run the whole
// evaluation whenever the templates or the current date change.
package engine

import (
	"fmt"

	"budget/internal/core"
)

// Stepper is the strategy for walking the occurrence dates of one recurrence
// type. Each implementation encapsulates the calendar arithmetic for a
// specific frequency.
type Stepper interface {
	// Seek returns the first occurrence date on or after from. The anchor is
	// itself the first occurrence, so the result is never before anchor.
	Seek(anchor, from core.Date) core.Date
	// Next returns the occurrence following current.
	Next(anchor, current core.Date) core.Date
}

// fixedStepper steps a constant number of days from the anchor.
type fixedStepper struct {
	days int
}

// DailyStepper steps one day at a time.
var DailyStepper Stepper = fixedStepper{days: 1}

// WeeklyStepper steps seven days at a time, so every occurrence keeps the
// anchor's weekday.
var WeeklyStepper Stepper = fixedStepper{days: 7}

func (s fixedStepper) Seek(anchor, from core.Date) core.Date {
	if !anchor.Before(from) {
		return anchor
	}
	// Whole steps that still land before from, then one more.
	steps := (anchor.DaysUntil(from) + s.days - 1) / s.days
	return anchor.AddDays(steps * s.days)
}

func (s fixedStepper) Next(_, current core.Date) core.Date {
	return current.AddDays(s.days)
}

// MonthlyStepper advances one calendar month at a time. The day of month is
// always derived from the anchor and clamped to the length of the target
// month, so an anchor on the 31st lands on the 30th of April and the 28th or
// 29th of February, then returns to the 31st in March.
type MonthlyStepper struct{}

func (MonthlyStepper) Seek(anchor, from core.Date) core.Date {
	if !anchor.Before(from) {
		return anchor
	}
	months := (from.Year()-anchor.Year())*12 + int(from.Month()-anchor.Month())
	d := monthlyAt(anchor, months)
	if d.Before(from) {
		d = monthlyAt(anchor, months+1)
	}
	return d
}

func (MonthlyStepper) Next(anchor, current core.Date) core.Date {
	months := (current.Year()-anchor.Year())*12 + int(current.Month()-anchor.Month())
	return monthlyAt(anchor, months+1)
}

// monthlyAt returns the occurrence n months after the anchor.
func monthlyAt(anchor core.Date, n int) core.Date {
	// Day 1 never overflows, so the month arithmetic is exact.
	first := core.NewDate(anchor.Year(), anchor.Month(), 1).AddDate(0, n, 0)
	day := min(anchor.Day(), core.DaysIn(first.Year(), first.Month()))
	return core.NewDate(first.Year(), first.Month(), day)
}

// steppers maps each recurring type to its strategy. None has no stepper:
// one-time templates are handled directly by Expand.
var steppers = map[core.Recurrence]Stepper{
	core.Daily:   DailyStepper,
	core.Weekly:  WeeklyStepper,
	core.Monthly: MonthlyStepper{},
}

// StepperFor returns the strategy of a recurring type. The set of recurrence
// types is closed; asking for anything else is a programming error and
// panics.
func StepperFor(r core.Recurrence) Stepper {
	s, ok := steppers[r]
	if !ok {
		panic(fmt.Sprintf("engine: no stepper for recurrence %q", string(r)))
	}
	return s
}
