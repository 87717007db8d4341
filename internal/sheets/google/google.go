// Package google mirrors ledger records into a Google Sheet, one row per
// record, keyed by the ID column.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// Ensure interface conformance
var (
	_ ports.Mirror       = (*Client)(nil)
	_ ports.MirrorReader = (*Client)(nil)
)

// Config selects the spreadsheet and the service account used to reach it.
// Exactly one of CredentialsJSON and CredentialsFile is needed.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// valuesAPI is the slice of the Sheets API the mirror needs. Row indexes
// are 0-based.
type valuesAPI interface {
	get(ctx context.Context, rng string) ([][]any, error)
	update(ctx context.Context, rng string, rows [][]any) error
	append(ctx context.Context, rng string, rows [][]any) error
	deleteRow(ctx context.Context, row int) error
}

type Client struct {
	api   valuesAPI
	sheet string
	// mu serialises read-modify-write cycles against the sheet.
	mu sync.Mutex
}

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Ledger"
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceAPI{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheet: sheet}, sheet), nil
}

func newClient(api valuesAPI, sheet string) *Client {
	return &Client{api: api, sheet: sheet}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
// Credentials are layered on top by the option package.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) rng(cols string) string {
	return fmt.Sprintf("%s!%s", c.sheet, cols)
}

// UpsertRecord rewrites the row carrying r.ID, or appends one. An empty
// sheet gets the header row first.
func (c *Client) UpsertRecord(ctx context.Context, r core.Record) error {
	if r.ID == "" {
		return errors.New("record has no id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.api.get(ctx, c.rng("A:A"))
	if err != nil {
		return fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}

	row := recordRow(r)
	if i := findRow(ids, r.ID); i >= 0 {
		n := i + 1
		if err := c.api.update(ctx, c.rng(fmt.Sprintf("A%d:F%d", n, n)), [][]any{row}); err != nil {
			return fmt.Errorf("update row %d in %s: %w", n, c.sheet, err)
		}
		return nil
	}

	rows := [][]any{row}
	if len(ids) == 0 {
		rows = [][]any{headerRow(), row}
	}
	if err := c.api.append(ctx, c.rng("A:F"), rows); err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	return nil
}

func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.api.get(ctx, c.rng("A:A"))
	if err != nil {
		return fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}
	i := findRow(ids, id)
	if i < 1 {
		// Row 0 is the header; an id there is never a record.
		return nil
	}
	if err := c.api.deleteRow(ctx, i); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", i+1, c.sheet, err)
	}
	return nil
}

// Records reads every mirrored row. Well-formed rows are returned even
// when others fail to parse; the error then joins one *core.DataError per
// bad row.
func (c *Client) Records(ctx context.Context) ([]core.Record, error) {
	values, err := c.api.get(ctx, c.rng("A:F"))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.sheet, err)
	}
	return parseRows(values)
}

type serviceAPI struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	// sheetID is resolved on first delete; Client.mu guards it.
	sheetID *int64
}

func (a *serviceAPI) get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(a.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a *serviceAPI) update(ctx context.Context, rng string, rows [][]any) error {
	_, err := a.svc.Spreadsheets.Values.Update(a.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (a *serviceAPI) append(ctx context.Context, rng string, rows [][]any) error {
	_, err := a.svc.Spreadsheets.Values.Append(a.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (a *serviceAPI) deleteRow(ctx context.Context, row int) error {
	sheetID, err := a.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row),
					EndIndex:   int64(row) + 1,
				},
			},
		}},
	}
	_, err = a.svc.Spreadsheets.BatchUpdate(a.spreadsheetID, req).Context(ctx).Do()
	return err
}

// lookupSheetID resolves the numeric id of the named tab. Failures are not
// cached.
func (a *serviceAPI) lookupSheetID(ctx context.Context) (int64, error) {
	if a.sheetID != nil {
		return *a.sheetID, nil
	}
	ss, err := a.svc.Spreadsheets.Get(a.spreadsheetID).
		Fields(googleapi.Field("sheets.properties")).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == a.sheet {
			id := sh.Properties.SheetId
			a.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", a.sheet)
}
