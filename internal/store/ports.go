package store

import (
	"context"

	"budget/internal/core"
)

// Ports for outbound storage adapters.
type (
	// TemplateLoader reads the full template collection. Records written by
	// older versions are repaired on the way in: a missing recurrence means
	// one-time and a missing ledger means nothing settled yet.
	TemplateLoader interface {
		LoadTemplates(ctx context.Context) ([]core.TransactionTemplate, error)
	}

	// TemplateSaver persists the full template collection, replacing what
	// was stored before. Confirmed dates of surviving templates are never
	// dropped.
	TemplateSaver interface {
		SaveTemplates(ctx context.Context, templates []core.TransactionTemplate) error
	}

	// CurrencyStore holds the display currency. Currency returns "" when
	// none has been stored yet.
	CurrencyStore interface {
		Currency(ctx context.Context) (core.Currency, error)
		SetCurrency(ctx context.Context, c core.Currency) error
	}

	// Repository is what every backend provides.
	Repository interface {
		TemplateLoader
		TemplateSaver
		CurrencyStore
	}
)
