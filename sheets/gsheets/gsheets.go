// Package gsheets is the Google Sheets backend of the sheets.Store interface, using
// the Sheets v4 API with service-account credentials.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"boletos/sheets"
)

// valueInputOption makes the API parse written values as if typed into the UI, so
// that numbers are stored as numbers.
const valueInputOption = "USER_ENTERED"

// Credentials holds the service-account material. Exactly one of JSON or File is
// expected; JSON wins when both are set.
type Credentials struct {
	JSON []byte
	File string
}

// load returns the raw service-account json.
func (c Credentials) load() ([]byte, error) {
	if len(c.JSON) > 0 {
		return c.JSON, nil
	}
	if c.File == "" {
		return nil, errors.New("no service account credentials provided")
	}
	b, err := os.ReadFile(c.File)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}
	return b, nil
}

// Client is a sheets.Store backed by one Google spreadsheet.
type Client struct {
	srv           *gsheet.Service
	spreadsheetID string
	log           *log.Logger

	mu     sync.Mutex
	titles map[string]int64 // worksheet title to sheet id, loaded once
}

// Ensure interface conformance.
var _ sheets.Store = (*Client)(nil)

// NewClient authenticates with the service-account credentials and checks that the
// spreadsheet can be opened. Any failure is returned as a sheets.ConnectionError.
func NewClient(ctx context.Context, spreadsheetID string, creds Credentials, logger *log.Logger) (*Client, error) {
	b, err := creds.load()
	if err != nil {
		return nil, &sheets.ConnectionError{Op: "load credentials", Err: err}
	}

	config, err := google.JWTConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, &sheets.ConnectionError{Op: "parse credentials", Err: err}
	}

	srv, err := gsheet.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, &sheets.ConnectionError{Op: "create sheets service", Err: err}
	}
	return newClient(ctx, srv, spreadsheetID, logger)
}

// NewClientWithOptions builds a Client from explicit client options. It is used to
// point the client at a test server.
func NewClientWithOptions(ctx context.Context, spreadsheetID string, logger *log.Logger, opts ...option.ClientOption) (*Client, error) {
	srv, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, &sheets.ConnectionError{Op: "create sheets service", Err: err}
	}
	return newClient(ctx, srv, spreadsheetID, logger)
}

func newClient(ctx context.Context, srv *gsheet.Service, spreadsheetID string, logger *log.Logger) (*Client, error) {
	if spreadsheetID == "" {
		return nil, &sheets.ConnectionError{Op: "open spreadsheet", Err: errors.New("empty spreadsheet id")}
	}
	if logger == nil {
		logger = log.Default()
	}
	c := &Client{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		log:           logger.WithPrefix("gsheets"),
	}
	if err := c.loadTitles(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// loadTitles fetches the spreadsheet metadata, proving the credentials and id work.
func (c *Client) loadTitles(ctx context.Context) error {
	sp, err := c.srv.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return &sheets.ConnectionError{Op: "open spreadsheet", Err: describe(err)}
	}
	titles := make(map[string]int64, len(sp.Sheets))
	for _, s := range sp.Sheets {
		if s.Properties == nil {
			continue
		}
		titles[s.Properties.Title] = s.Properties.SheetId
	}
	c.mu.Lock()
	c.titles = titles
	c.mu.Unlock()
	c.log.Debug("spreadsheet opened", "id", c.spreadsheetID, "worksheets", len(titles))
	return nil
}

// Worksheet returns the named worksheet.
func (c *Client) Worksheet(_ context.Context, name string) (sheets.Worksheet, error) {
	c.mu.Lock()
	_, ok := c.titles[name]
	c.mu.Unlock()
	if !ok {
		return nil, &sheets.ConnectionError{
			Op:  "open worksheet",
			Err: fmt.Errorf("%w: %q", sheets.ErrWorksheetNotFound, name),
		}
	}
	return &worksheet{c: c, name: name}, nil
}

// worksheet is a single Google Sheets tab.
type worksheet struct {
	c    *Client
	name string
}

func (w *worksheet) Name() string { return w.name }

// ReadAll returns the formatted values of the whole worksheet.
func (w *worksheet) ReadAll(ctx context.Context) ([][]string, error) {
	return w.read(ctx, sheets.QualifiedRange(w.name, ""))
}

// ReadRange returns the formatted values of an A1 range.
func (w *worksheet) ReadRange(ctx context.Context, a1 string) ([][]string, error) {
	return w.read(ctx, sheets.QualifiedRange(w.name, a1))
}

func (w *worksheet) read(ctx context.Context, rng string) ([][]string, error) {
	resp, err := w.c.srv.Spreadsheets.Values.Get(w.c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, &sheets.ConnectionError{Op: "read " + rng, Err: describe(err)}
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = fmt.Sprint(v)
		}
	}
	w.c.log.Debug("read", "range", rng, "rows", len(out))
	return out, nil
}

// WriteRange writes values into an A1 range.
func (w *worksheet) WriteRange(ctx context.Context, a1 string, values [][]any) error {
	rng := sheets.QualifiedRange(w.name, a1)
	vr := &gsheet.ValueRange{Range: rng, Values: values}
	_, err := w.c.srv.Spreadsheets.Values.Update(w.c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return &sheets.ConnectionError{Op: "write " + rng, Err: describe(err)}
	}
	w.c.log.Debug("wrote", "range", rng)
	return nil
}

// BatchWrite writes several ranges in a single request.
func (w *worksheet) BatchWrite(ctx context.Context, updates []sheets.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: valueInputOption}
	for _, u := range updates {
		req.Data = append(req.Data, &gsheet.ValueRange{
			Range:  sheets.QualifiedRange(w.name, u.Range),
			Values: u.Values,
		})
	}
	_, err := w.c.srv.Spreadsheets.Values.BatchUpdate(w.c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return &sheets.ConnectionError{Op: "batch write " + w.name, Err: describe(err)}
	}
	w.c.log.Debug("batch wrote", "worksheet", w.name, "ranges", len(updates))
	return nil
}

// describe shortens googleapi errors to their status and message.
func describe(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("spreadsheet not found (%d): %s", gerr.Code, gerr.Message)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("access denied (%d): %s", gerr.Code, gerr.Message)
		}
		return fmt.Errorf("sheets api error (%d): %s", gerr.Code, gerr.Message)
	}
	return err
}
