package engine

import (
	"fmt"
	"slices"

	"budget/internal/core"
)

// RecordDecision settles the occurrence identified by key and returns the new
// template collection. Confirm and skip record the same thing: the date joins
// the template's ledger and the occurrence is never pending again. Applying
// the same decision twice yields the same ledger.
//
// The input slice and its templates are never modified. When the date is
// already settled the input is returned as is.
func RecordDecision(templates []core.TransactionTemplate, key core.OccurrenceKey, decision core.Decision) ([]core.TransactionTemplate, error) {
	if decision != core.Confirm && decision != core.Skip {
		return templates, fmt.Errorf("%w: %q", core.ErrInvalidDecision, string(decision))
	}
	i := IndexOf(templates, key.TemplateID)
	if i < 0 {
		return templates, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, key.TemplateID)
	}
	if templates[i].ConfirmedDates.Contains(key.Date) {
		return templates, nil
	}
	out := slices.Clone(templates)
	out[i].ConfirmedDates = templates[i].ConfirmedDates.With(key.Date)
	return out, nil
}

// IndexOf returns the position of the template with the given id, or -1.
func IndexOf(templates []core.TransactionTemplate, id string) int {
	return slices.IndexFunc(templates, func(t core.TransactionTemplate) bool { return t.ID == id })
}

// AddTemplate returns a new collection with t appended.
func AddTemplate(templates []core.TransactionTemplate, t core.TransactionTemplate) []core.TransactionTemplate {
	out := make([]core.TransactionTemplate, 0, len(templates)+1)
	out = append(out, templates...)
	return append(out, t)
}

// ReplaceTemplate returns a new collection where the template with t.ID is
// replaced by t. The existing ledger is kept: it only ever grows, so entries
// in t.ConfirmedDates are merged into it rather than replacing it.
func ReplaceTemplate(templates []core.TransactionTemplate, t core.TransactionTemplate) ([]core.TransactionTemplate, error) {
	i := IndexOf(templates, t.ID)
	if i < 0 {
		return templates, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, t.ID)
	}
	ledger := templates[i].ConfirmedDates
	for _, d := range t.ConfirmedDates {
		ledger = ledger.With(d)
	}
	t.ConfirmedDates = ledger
	out := slices.Clone(templates)
	out[i] = t
	return out, nil
}
