package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"sixjars/internal/core"
	ports "sixjars/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultCacheValidDuration = 10 * time.Minute

type Options struct {
	SpreadsheetID string
	// SheetName defaults to "Ledger".
	SheetName string
	// CredentialsJSON takes precedence over CredentialsFile. With neither,
	// GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsJSON string
	CredentialsFile string
	Location        *time.Location
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	loc           *time.Location

	// Known event ids, loaded from the sheet and refreshed after
	// cacheValidDuration so rows written by other workers are seen.
	mu                 sync.Mutex
	knownIDs           map[string]struct{}
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var (
	_ ports.LedgerMirror = (*Client)(nil)
	_ ports.MirrorReader = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts.CredentialsJSON, opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newWithService(svc, opts), nil
}

func newWithService(svc *gsheet.Service, opts Options) *Client {
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Ledger"
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      strings.TrimSpace(opts.SpreadsheetID),
		sheet:              sheet,
		loc:                loc,
		cacheValidDuration: defaultCacheValidDuration,
	}
}

func newSheetsService(ctx context.Context, credsJSON, credsFile string) (*gsheet.Service, error) {
	credsJSON = strings.TrimSpace(credsJSON)
	credsFile = strings.TrimSpace(credsFile)
	if credsJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case credsJSON != "":
		credentialsJSON = []byte(credsJSON)
	case credsFile != "":
		b, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A:G", c.sheet)
}

// AppendEvent appends one row for ev unless its event id is already in the sheet.
func (c *Client) AppendEvent(ctx context.Context, ev core.LedgerEvent) (string, error) {
	if ev.ID == "" {
		return "", errors.New("event without id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	known, err := c.isKnown(ctx, ev.ID)
	if err != nil {
		return "", err
	}
	if known {
		slog.DebugContext(ctx, "Event already mirrored", "event_id", ev.ID)
		return "", nil
	}

	row := ports.RowFromEvent(ev, c.loc)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.dataRange(), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}

	c.mu.Lock()
	if c.knownIDs != nil {
		c.knownIDs[ev.ID] = struct{}{}
	}
	c.mu.Unlock()

	ref := c.dataRange()
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

func (c *Client) isKnown(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	if c.knownIDs != nil && time.Now().Before(c.cacheExpiresAt) {
		_, ok := c.knownIDs[id]
		c.mu.Unlock()
		return ok, nil
	}
	c.mu.Unlock()

	rows, err := c.ListRows(ctx)
	if err != nil {
		return false, err
	}
	ids := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		ids[r.EventID] = struct{}{}
	}

	c.mu.Lock()
	c.knownIDs = ids
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	_, ok := ids[id]
	return ok, nil
}

// InvalidateCache forces the next append to reload known event ids.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheExpiresAt = time.Time{}
}

// ListRows reads every mirrored row, skipping the header and malformed rows.
func (c *Client) ListRows(ctx context.Context) ([]ports.Row, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.dataRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.dataRange(), err)
	}
	return parseRows(resp.Values, c.loc), nil
}
