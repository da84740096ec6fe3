package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/engine"
	"budget/internal/store"
)

const defaultNotifyTimeout = 10 * time.Second

// LedgerService owns the current template snapshot. Every mutation builds a
// new collection, persists it and only then swaps it in; readers always see
// a complete snapshot and views are recomputed from scratch.
type LedgerService struct {
	repo     store.Repository
	notifier Notifier
	due      *DueSelector
	views    cache.Cache[core.MonthView]
	now      func() time.Time
	location *time.Location

	notifyTimeout time.Duration
	inflight      sync.WaitGroup

	defaultCurrency core.Currency

	mu        sync.RWMutex
	templates []core.TransactionTemplate
	currency  core.Currency
	rev       uint64
	lastDay   core.Date
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithLocation sets the zone used to decide which calendar day "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *LedgerService) { s.location = loc }
}

// WithViewCache memoizes month views. Entries are keyed by revision and day
// and purged on every mutation.
func WithViewCache(c cache.Cache[core.MonthView]) Option {
	return func(s *LedgerService) { s.views = c }
}

// WithDefaultCurrency is used while the repository holds no currency or
// holds one that is no longer supported.
func WithDefaultCurrency(c core.Currency) Option {
	return func(s *LedgerService) { s.defaultCurrency = c }
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *LedgerService) { s.notifyTimeout = d }
}

// NewLedgerService creates the controller. A nil notifier logs notices.
func NewLedgerService(repo store.Repository, notifier Notifier, opts ...Option) *LedgerService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	s := &LedgerService{
		repo:            repo,
		notifier:        notifier,
		due:             NewDueSelector(),
		now:             time.Now,
		location:        time.Local,
		notifyTimeout:   defaultNotifyTimeout,
		defaultCurrency: core.DefaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.currency = s.defaultCurrency
	return s
}

// Load replaces the snapshot with what the repository holds.
func (s *LedgerService) Load(ctx context.Context) error {
	templates, err := s.repo.LoadTemplates(ctx)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	currency, err := s.repo.Currency(ctx)
	if err != nil {
		if !errors.Is(err, core.ErrUnsupportedCurrency) {
			return fmt.Errorf("load currency: %w", err)
		}
		slog.WarnContext(ctx, "Stored currency is not supported, using default",
			"error", err, "currency", string(s.defaultCurrency))
		currency = ""
	}
	if currency == "" {
		currency = s.defaultCurrency
	}

	s.mu.Lock()
	s.templates = templates
	s.currency = currency
	s.bump()
	s.mu.Unlock()

	slog.InfoContext(ctx, "Ledger loaded",
		"templates", len(templates),
		"currency", string(currency))
	return nil
}

// Today returns the current calendar day.
func (s *LedgerService) Today() core.Date {
	return core.DateOf(s.now().In(s.location))
}

// Templates returns the current collection. The slice is shared with the
// snapshot and must not be modified.
func (s *LedgerService) Templates() []core.TransactionTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates
}

func (s *LedgerService) Template(id string) (core.TransactionTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := engine.IndexOf(s.templates, id)
	if i < 0 {
		return core.TransactionTemplate{}, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	return s.templates[i], nil
}

func (s *LedgerService) Currency() core.Currency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currency
}

// MonthView evaluates the given month against today.
func (s *LedgerService) MonthView(year int, month time.Month) core.MonthView {
	today := s.Today()

	s.mu.RLock()
	templates, rev := s.templates, s.rev
	s.mu.RUnlock()

	key := fmt.Sprintf("%d/%04d-%02d/%s", rev, year, int(month), today)
	if s.views != nil {
		if v, ok := s.views.Get(key); ok {
			return v
		}
	}
	view := engine.Evaluate(templates, year, month, today)
	if s.views != nil {
		s.views.Set(key, view)
	}
	return view
}

// CurrentMonthView evaluates the month containing today.
func (s *LedgerService) CurrentMonthView() core.MonthView {
	today := s.Today()
	return s.MonthView(today.Year(), today.Month())
}

// Pending returns every pending occurrence of the current month in display
// order.
func (s *LedgerService) Pending() []core.Occurrence {
	return engine.PendingOccurrences(s.CurrentMonthView().Occurrences)
}

// CreateTemplate validates t, gives it a fresh id and an empty ledger, and
// adds it to the collection.
func (s *LedgerService) CreateTemplate(ctx context.Context, t core.TransactionTemplate) (core.TransactionTemplate, error) {
	t.ID = core.NewTemplateID()
	t.ConfirmedDates = nil
	if err := t.Validate(); err != nil {
		return core.TransactionTemplate{}, err
	}

	err := s.mutate(ctx, func(cur []core.TransactionTemplate) ([]core.TransactionTemplate, error) {
		return engine.AddTemplate(cur, t), nil
	})
	if err != nil {
		return core.TransactionTemplate{}, err
	}

	slog.InfoContext(ctx, "Template created",
		"template_id", t.ID,
		"kind", string(t.Kind),
		"recurrence", string(t.Recurrence),
		"amount_cents", t.Amount.Cents)
	return t, nil
}

// UpdateTemplate replaces the fields of an existing template. The id and the
// confirmation ledger are preserved.
func (s *LedgerService) UpdateTemplate(ctx context.Context, t core.TransactionTemplate) (core.TransactionTemplate, error) {
	t.ConfirmedDates = nil
	if err := t.Validate(); err != nil {
		return core.TransactionTemplate{}, err
	}

	var updated core.TransactionTemplate
	err := s.mutate(ctx, func(cur []core.TransactionTemplate) ([]core.TransactionTemplate, error) {
		next, err := engine.ReplaceTemplate(cur, t)
		if err != nil {
			return nil, err
		}
		updated = next[engine.IndexOf(next, t.ID)]
		return next, nil
	})
	if err != nil {
		return core.TransactionTemplate{}, err
	}

	slog.InfoContext(ctx, "Template updated", "template_id", t.ID)
	return updated, nil
}

// RecordDecision settles one occurrence. Confirm and skip are recorded the
// same way; recording an already settled occurrence is a no-op.
func (s *LedgerService) RecordDecision(ctx context.Context, key core.OccurrenceKey, decision core.Decision) error {
	if err := key.Date.Validate(); err != nil {
		return err
	}

	err := s.mutate(ctx, func(cur []core.TransactionTemplate) ([]core.TransactionTemplate, error) {
		i := engine.IndexOf(cur, key.TemplateID)
		if i >= 0 && !engine.OccursOn(cur[i], key.Date) {
			return nil, fmt.Errorf("%w: %s", core.ErrNotAnOccurrence, key)
		}
		return engine.RecordDecision(cur, key, decision)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Decision recorded",
		"template_id", key.TemplateID,
		"date", key.Date.String(),
		"decision", string(decision))
	return nil
}

// SetCurrency persists the display currency.
func (s *LedgerService) SetCurrency(ctx context.Context, c core.Currency) error {
	c, err := core.ParseCurrency(string(c))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SetCurrency(ctx, c); err != nil {
		return fmt.Errorf("save currency: %w", err)
	}
	s.currency = c
	return nil
}

// Due returns the surfaced pending occurrence of the current month. When an
// occurrence is surfaced for the first time its notice is sent in the
// background.
func (s *LedgerService) Due(ctx context.Context) (core.Occurrence, bool) {
	occ, fresh, ok := s.due.Select(s.CurrentMonthView().Occurrences)
	if ok && fresh {
		s.notify(ctx, core.NoticeFor(occ))
	}
	return occ, ok
}

// DismissDue withdraws the surfaced occurrence without settling it. The next
// pending occurrence, if any, is surfaced on the following Due call.
func (s *LedgerService) DismissDue(ctx context.Context) (core.OccurrenceKey, bool) {
	key, ok := s.due.Dismiss()
	if ok {
		slog.InfoContext(ctx, "Due occurrence dismissed", "occurrence", key.String())
	}
	return key, ok
}

// Refresh re-evaluates after time has passed: a new day can turn future
// occurrences into pending ones.
func (s *LedgerService) Refresh(ctx context.Context) {
	today := s.Today()

	s.mu.Lock()
	rolled := !s.lastDay.IsZero() && !s.lastDay.Equal(today)
	s.lastDay = today
	if rolled && s.views != nil {
		s.views.Purge()
	}
	s.mu.Unlock()

	if rolled {
		slog.InfoContext(ctx, "Day changed, re-evaluating", "today", today.String())
	}
	s.Due(ctx)
}

// Run calls Refresh every interval until ctx is cancelled.
func (s *LedgerService) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Refresh(ctx)
	for {
		select {
		case <-ticker.C:
			s.Refresh(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Close waits for in-flight notifications.
func (s *LedgerService) Close() error {
	s.inflight.Wait()
	return nil
}

// mutate applies fn to the current snapshot, persists the result and swaps
// it in. The write lock is held across the save so concurrent mutations
// never build on a stale collection.
func (s *LedgerService) mutate(ctx context.Context, fn func([]core.TransactionTemplate) ([]core.TransactionTemplate, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.templates)
	if err != nil {
		return err
	}
	if sameCollection(next, s.templates) {
		return nil
	}
	if err := s.repo.SaveTemplates(ctx, next); err != nil {
		return fmt.Errorf("save templates: %w", err)
	}
	s.templates = next
	s.bump()
	return nil
}

// sameCollection reports whether a mutation handed back the snapshot
// untouched. Engine mutations always copy, so sharing storage means no-op.
func sameCollection(a, b []core.TransactionTemplate) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

// bump must be called with the write lock held.
func (s *LedgerService) bump() {
	s.rev++
	if s.views != nil {
		s.views.Purge()
	}
}

func (s *LedgerService) notify(ctx context.Context, n core.DueNotice) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyDue(ctx, n); err != nil {
			slog.WarnContext(ctx, "Failed to deliver due notice",
				"template_id", n.TemplateID,
				"due_date", n.DueDate.String(),
				"error", err)
		}
	}()
}
