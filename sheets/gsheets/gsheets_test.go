package gsheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"

	"boletos/sheets"
)

// fakeSheets is a minimal stand-in for the Sheets v4 values API.
type fakeSheets struct {
	t       *testing.T
	values  map[string][][]any
	updates []string
	inputs  []string
	batch   int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const prefix = "/v4/spreadsheets/sheet-id"
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		http.Error(w, `{"error":{"code":404,"message":"Requested entity was not found."}}`, http.StatusNotFound)
		return
	}
	rest := strings.TrimPrefix(path, prefix)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"sheets":[{"properties":{"title":"INPUT - BOLETOS","sheetId":11}}]}`)

	case rest == "/values:batchUpdate" && r.Method == http.MethodPost:
		var req struct {
			ValueInputOption string `json:"valueInputOption"`
			Data             []struct {
				Range string `json:"range"`
			} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("batch decode: %v", err)
		}
		f.batch += len(req.Data)
		f.inputs = append(f.inputs, req.ValueInputOption)
		_, _ = io.WriteString(w, `{}`)

	case strings.HasPrefix(rest, "/values/") && r.Method == http.MethodGet:
		rng := strings.TrimPrefix(rest, "/values/")
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": f.values[rng]})

	case strings.HasPrefix(rest, "/values/") && r.Method == http.MethodPut:
		rng := strings.TrimPrefix(rest, "/values/")
		f.updates = append(f.updates, rng)
		f.inputs = append(f.inputs, r.URL.Query().Get("valueInputOption"))
		_, _ = io.WriteString(w, `{}`)

	default:
		http.Error(w, `{"error":{"code":400,"message":"bad"}}`, http.StatusBadRequest)
	}
}

func setup(t *testing.T, spreadsheetID string) (*fakeSheets, *Client, error) {
	t.Helper()
	fake := &fakeSheets{
		t: t,
		values: map[string][][]any{
			"'INPUT - BOLETOS'": {
				{"SQUAD", "Key", "Clientes"},
				{"Alfa", "42", "Padaria"},
				{"Beta", 7, "Mercado"},
			},
		},
	}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := NewClientWithOptions(
		context.Background(),
		spreadsheetID,
		log.New(io.Discard),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	return fake, client, err
}

func TestClientReadWrite(t *testing.T) {

	ctx := context.Background()
	fake, client, err := setup(t, "sheet-id")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.Worksheet(ctx, "OUTPUT - BOLETOS"); !errors.Is(err, sheets.ErrWorksheetNotFound) {
		t.Fatalf("expected worksheet not found, got %v", err)
	}

	ws, err := client.Worksheet(ctx, "INPUT - BOLETOS")
	if err != nil {
		t.Fatal(err)
	}

	grid, err := ws.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"SQUAD", "Key", "Clientes"},
		{"Alfa", "42", "Padaria"},
		{"Beta", "7", "Mercado"},
	}
	if diff := cmp.Diff(want, grid); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}

	err = ws.WriteRange(ctx, "I2:P2", [][]any{{"PIX", 1500.0, "10/10", 45.0, "Boleto", 0.0, "", 0.0}})
	if err != nil {
		t.Fatal(err)
	}
	err = ws.BatchWrite(ctx, []sheets.CellUpdate{
		{Range: "Z1", Values: [][]any{{"x"}}},
		{Range: "Z2", Values: [][]any{{"y"}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"'INPUT - BOLETOS'!I2:P2"}, fake.updates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	if got, want := fake.batch, 2; got != want {
		t.Errorf("batch ranges got %d want %d", got, want)
	}
	for _, opt := range fake.inputs {
		if opt != "USER_ENTERED" {
			t.Errorf("value input option got %q want USER_ENTERED", opt)
		}
	}
}

func TestClientSpreadsheetNotFound(t *testing.T) {

	_, _, err := setup(t, "other-id")
	if err == nil {
		t.Fatal("expected error for unknown spreadsheet")
	}
	if !sheets.IsConnectionError(err) {
		t.Errorf("expected ConnectionError, got %T %v", err, err)
	}
}

func TestCredentials(t *testing.T) {

	if _, err := (Credentials{}).load(); err == nil {
		t.Error("expected error for empty credentials")
	}
	if _, err := (Credentials{File: "testdata/doesNotExist.json"}).load(); err == nil {
		t.Error("expected error for missing file")
	}
	b, err := (Credentials{JSON: []byte(`{}`), File: "ignored"}).load()
	if err != nil || string(b) != "{}" {
		t.Errorf("expected inline json to win, got %q %v", b, err)
	}
}
