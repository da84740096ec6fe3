package services

import (
	"testing"

	"budget/internal/core"
)

func occurrence(id string, day int, status core.Status) core.Occurrence {
	return core.Occurrence{
		TransactionTemplate: core.TransactionTemplate{ID: id, Description: id},
		Date:                core.NewDate(2024, 6, day),
		Status:              status,
	}
}

func TestDueSelector(t *testing.T) {
	s := NewDueSelector()
	sorted := []core.Occurrence{
		occurrence("a", 12, core.Future),
		occurrence("b", 10, core.Pending),
		occurrence("c", 9, core.Paid),
		occurrence("d", 7, core.Pending),
	}

	occ, fresh, ok := s.Select(sorted)
	if !ok || !fresh || occ.ID != "b" {
		t.Fatalf("Select() = %s, fresh=%v, ok=%v", occ.ID, fresh, ok)
	}

	// A new pending item that sorts first does not displace the current one.
	withNewer := append([]core.Occurrence{occurrence("e", 11, core.Pending)}, sorted...)
	occ, fresh, ok = s.Select(withNewer)
	if !ok || fresh || occ.ID != "b" {
		t.Fatalf("Select() = %s, fresh=%v, ok=%v; want b still surfaced", occ.ID, fresh, ok)
	}

	// Once b is settled the next one in display order is surfaced.
	withNewer[2].Status = core.Paid
	occ, fresh, ok = s.Select(withNewer)
	if !ok || !fresh || occ.ID != "e" {
		t.Fatalf("Select() = %s, fresh=%v, ok=%v; want e", occ.ID, fresh, ok)
	}

	key, ok := s.Dismiss()
	if !ok || key.TemplateID != "e" {
		t.Fatalf("Dismiss() = %v, %v", key, ok)
	}
	if _, ok := s.Current(); ok {
		t.Fatal("nothing should be surfaced right after a dismiss")
	}
	occ, _, ok = s.Select(withNewer)
	if !ok || occ.ID != "d" {
		t.Fatalf("Select() after dismiss = %s, %v; want d", occ.ID, ok)
	}
}

func TestDueSelector_Empty(t *testing.T) {
	s := NewDueSelector()
	if _, _, ok := s.Select([]core.Occurrence{occurrence("a", 3, core.Paid)}); ok {
		t.Fatal("no pending occurrences, nothing to surface")
	}
	if _, ok := s.Dismiss(); ok {
		t.Fatal("Dismiss with nothing surfaced must report false")
	}
}

func TestDueSelector_ForgetsDismissalsNoLongerListed(t *testing.T) {
	s := NewDueSelector()
	june := []core.Occurrence{occurrence("rent", 1, core.Pending)}

	if occ, _, ok := s.Select(june); !ok || occ.ID != "rent" {
		t.Fatalf("Select() = %s, %v", occ.ID, ok)
	}
	s.Dismiss()
	if _, _, ok := s.Select(june); ok {
		t.Fatal("dismissed occurrence surfaced again")
	}
	if len(s.dismissed) != 1 {
		t.Fatalf("dismissed = %v", s.dismissed)
	}

	july := []core.Occurrence{{
		TransactionTemplate: core.TransactionTemplate{ID: "rent", Description: "rent"},
		Date:                core.NewDate(2024, 7, 1),
		Status:              core.Pending,
	}}
	occ, fresh, ok := s.Select(july)
	if !ok || !fresh || !occ.Date.Equal(core.NewDate(2024, 7, 1)) {
		t.Fatalf("Select(july) = %+v, fresh=%v, ok=%v", occ, fresh, ok)
	}
	if len(s.dismissed) != 0 {
		t.Errorf("stale dismissals kept: %v", s.dismissed)
	}
}
