package services

import (
	"sync"

	"budget/internal/core"
)

// DueSelector implements the single-outstanding confirmation policy: among
// the pending occurrences of a display-sorted list it surfaces the first one
// and keeps surfacing it until it is settled or dismissed.
//
// Dismissed occurrences stay suppressed while they are listed. Once an
// occurrence drops out of the list, at the turn of the month or when its
// template is removed, its dismissal is forgotten.
type DueSelector struct {
	mu        sync.Mutex
	current   *core.OccurrenceKey
	dismissed map[string]struct{}
}

func NewDueSelector() *DueSelector {
	return &DueSelector{dismissed: make(map[string]struct{})}
}

// Select returns the surfaced occurrence for sorted, if any. fresh reports
// whether it was surfaced by this call, which is when callers notify.
func (s *DueSelector) Select(sorted []core.Occurrence) (occ core.Occurrence, fresh, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneDismissed(sorted)
	if s.current != nil {
		for _, o := range sorted {
			if o.Status == core.Pending && o.ID == s.current.TemplateID && o.Date.Equal(s.current.Date) {
				return o, false, true
			}
		}
		// Settled, or its template is gone.
		s.current = nil
	}

	for _, o := range sorted {
		if o.Status != core.Pending {
			continue
		}
		key := o.Key()
		if _, skip := s.dismissed[key.String()]; skip {
			continue
		}
		s.current = &key
		return o, true, true
	}
	return core.Occurrence{}, false, false
}

func (s *DueSelector) pruneDismissed(sorted []core.Occurrence) {
	if len(s.dismissed) == 0 {
		return
	}
	listed := make(map[string]struct{}, len(sorted))
	for _, o := range sorted {
		listed[o.Key().String()] = struct{}{}
	}
	for key := range s.dismissed {
		if _, ok := listed[key]; !ok {
			delete(s.dismissed, key)
		}
	}
}

// Current returns the key of the surfaced occurrence.
func (s *DueSelector) Current() (core.OccurrenceKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return core.OccurrenceKey{}, false
	}
	return *s.current, true
}

// Dismiss withdraws the surfaced occurrence without settling it.
func (s *DueSelector) Dismiss() (core.OccurrenceKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return core.OccurrenceKey{}, false
	}
	key := *s.current
	s.dismissed[key.String()] = struct{}{}
	s.current = nil
	return key, true
}
