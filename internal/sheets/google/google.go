// Package google appends CRM transactions to a Google Sheets ledger.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"estatecrm/internal/core"
	"estatecrm/internal/log"
	"estatecrm/internal/sheets"
)

var _ sheets.LedgerWriter = (*Client)(nil)

// Options locate the spreadsheet and the OAuth material. Inline JSON wins
// over files.
type Options struct {
	SpreadsheetID   string
	Sheet           string
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// indirection for tests
var jsonUnmarshal = json.Unmarshal

func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.Sheet, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	if sheet == "" {
		sheet = "Ledger"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

// newSheetsService builds a Sheets service authorised with a stored OAuth
// token. The token is refreshed transparently by the oauth2 transport.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientJSON, err := readSecret(opts.OAuthClientJSON, opts.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if clientJSON == nil {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := google.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON, err := readSecret(opts.OAuthTokenJSON, opts.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var tok oauth2.Token
	if err := jsonUnmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func readSecret(inline, file string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(file) != "":
		return os.ReadFile(file)
	default:
		return nil, nil
	}
}

// newHTTPClientWithPooling is the base transport under the oauth2 client.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// AppendTransaction adds one row below the last row of the ledger sheet and
// returns the A1 range it landed in.
func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{Values: [][]any{ledgerRow(t)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, ledgerRange(c.sheet), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}

	ref := ledgerRange(c.sheet)
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Ledger row appended", log.FieldTransactionID, t.ID, "range", ref)
	return ref, nil
}
