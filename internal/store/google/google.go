package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"budget/internal/core"
	"budget/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID     string
	SheetName         string // templates, default "Transactions"
	SettingsSheetName string // currency in B1, default "Settings"
	CredentialsJSON   string
	CredentialsFile   string

	// User credentials, used instead of the service account when
	// OAuthTokenFile is set. The token comes from cmd/oauth-init.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	settingsSheet string
}

var _ store.Repository = (*Client)(nil)

// New creates a Sheets-backed repository authenticated with a saved OAuth
// token or a service account. GOOGLE_APPLICATION_CREDENTIALS is used when cfg
// names no credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Transactions"
	}
	settings := strings.TrimSpace(cfg.SettingsSheetName)
	if settings == "" {
		settings = "Settings"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheet:         sheet,
		settingsSheet: settings,
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	if strings.TrimSpace(cfg.OAuthTokenFile) != "" {
		auth, err := oauthClientOption(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Using OAuth user credentials", "token_file", cfg.OAuthTokenFile)
		return gsheet.NewService(ctx, auth)
	}

	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	file := strings.TrimSpace(cfg.CredentialsFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.InfoContext(ctx, "Using inline service account credentials")
	case file != "":
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", file)
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (c *Client) readRows(ctx context.Context) ([]core.TransactionTemplate, []*RowError, error) {
	rng := fmt.Sprintf("%s!A:G", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseTemplates(resp.Values)
}

// LoadTemplates implements store.TemplateLoader.
func (c *Client) LoadTemplates(ctx context.Context) ([]core.TransactionTemplate, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	templates, skipped, err := c.readRows(ctx)
	if err != nil {
		return nil, err
	}
	for _, rerr := range skipped {
		slog.WarnContext(ctx, "Skipping invalid sheet row",
			"sheet", c.sheet,
			"row", rerr.Row,
			"id", rerr.ID,
			"error", rerr.Err)
	}
	return templates, nil
}

// SaveTemplates implements store.TemplateSaver. The sheet is rewritten from
// the top; rows below the new collection are cleared afterwards. Rows that
// LoadTemplates would skip are read back first and kept after the templates.
func (c *Client) SaveTemplates(ctx context.Context, templates []core.TransactionTemplate) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	_, skipped, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	preserved := make([][]interface{}, len(skipped))
	for i, rerr := range skipped {
		preserved[i] = rerr.Values
	}

	rows := formatTemplates(templates, preserved...)
	rng := fmt.Sprintf("%s!A1:G%d", c.sheet, len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}

	tail := fmt.Sprintf("%s!A%d:G", c.sheet, len(rows)+1)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, tail, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", tail, err)
	}

	slog.DebugContext(ctx, "Templates written to sheet",
		"sheet", c.sheet,
		"count", len(templates),
		"preserved", len(preserved))
	return nil
}

// Currency implements store.CurrencyStore.
func (c *Client) Currency(ctx context.Context) (core.Currency, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!B1", c.settingsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rng, err)
	}
	return parseCurrencyCell(resp.Values)
}

func (c *Client) SetCurrency(ctx context.Context, cur core.Currency) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A1:B1", c.settingsSheet)
	vr := &gsheet.ValueRange{Values: [][]interface{}{{"Currency", string(cur)}}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}

func parseCurrencyCell(values [][]interface{}) (core.Currency, error) {
	if len(values) == 0 || len(values[0]) == 0 {
		return "", nil
	}
	s := strings.TrimSpace(toStrings(values[0])[0])
	if s == "" {
		return "", nil
	}
	return core.ParseCurrency(s)
}
