package services

import (
	"context"
	"log/slog"

	"budget/internal/core"
)

// Notifier delivers the alert for the surfaced pending occurrence. Delivery
// is fire-and-forget: callers log failures and never retry.
type Notifier interface {
	NotifyDue(ctx context.Context, n core.DueNotice) error
}

// LogNotifier writes due notices to the log. Used when no message broker is
// configured.
type LogNotifier struct{}

func (LogNotifier) NotifyDue(ctx context.Context, n core.DueNotice) error {
	slog.InfoContext(ctx, n.Message(),
		"template_id", n.TemplateID,
		"due_date", n.DueDate.String(),
		"kind", string(n.Kind),
		"amount", n.Amount.String())
	return nil
}
