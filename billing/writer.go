package billing

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"boletos/internal/values"
	"boletos/sheets"
)

// PlatformInput holds the four inputs of one ad platform.
type PlatformInput struct {
	Method string // payment method
	Credit string // current credit, free currency text
	Date   string // balance date, DD/MM
	Spend  string // daily spend, free currency text
}

// SyncRequest is one operator submission for a client.
type SyncRequest struct {
	Key       string // raw key text as held in the input worksheet
	PlatformA PlatformInput
	PlatformB PlatformInput
}

// InputWidth is the number of input cells written per sync.
const InputWidth = 8

// Row returns the eight cell values in write order: method, credit, date, spend for
// platform A then platform B. Currency text is converted to numbers.
func (r SyncRequest) Row() []any {
	row := make([]any, 0, InputWidth)
	for _, p := range []PlatformInput{r.PlatformA, r.PlatformB} {
		row = append(row,
			p.Method,
			values.ParseMoney(p.Credit),
			strings.TrimSpace(p.Date),
			values.ParseMoney(p.Spend),
		)
	}
	return row
}

// Warnings lists the currency fields that will be written as zero because they are
// not currency values, and the balance dates that are not DD/MM.
func (r SyncRequest) Warnings(platformA, platformB string) []string {
	var w []string
	for _, p := range []struct {
		name  string
		input PlatformInput
	}{{platformA, r.PlatformA}, {platformB, r.PlatformB}} {
		for _, m := range []struct{ field, v string }{{"credit", p.input.Credit}, {"daily spend", p.input.Spend}} {
			if !values.IsMoneyLike(m.v) {
				w = append(w, fmt.Sprintf("%s %s %q is not a currency value and was written as 0", p.name, m.field, m.v))
			}
		}
		if !values.IsDayMonth(p.input.Date) {
			w = append(w, fmt.Sprintf("%s balance date %q is not DD/MM and was written as typed", p.name, strings.TrimSpace(p.input.Date)))
		}
	}
	return w
}

// Validate checks the key and payment methods.
func (r SyncRequest) Validate(methods []string) error {
	if strings.TrimSpace(r.Key) == "" {
		return &InputError{Field: "key", Reason: "empty"}
	}
	for _, m := range []string{r.PlatformA.Method, r.PlatformB.Method} {
		if !slices.Contains(methods, m) {
			return &InputError{Field: "payment method", Reason: fmt.Sprintf("%q is not one of %s", m, strings.Join(methods, ", "))}
		}
	}
	return nil
}

// Locate returns the 1-based row of the worksheet whose cell in the 0-based keyCol
// equals key exactly. No normalization is applied, as the key is used for a write.
func Locate(ctx context.Context, ws sheets.Worksheet, keyCol int, key string) (int, error) {
	rows, err := sheets.FindRows(ctx, ws, keyCol, key)
	if err != nil {
		return 0, err
	}
	return single(rows, key, ws.Name())
}

// locateIn is Locate over an already read grid.
func locateIn(grid [][]string, keyCol int, key, worksheet string) (int, error) {
	var rows []int
	for i, row := range grid {
		if keyCol < len(row) && row[keyCol] == key {
			rows = append(rows, i+1)
		}
	}
	return single(rows, key, worksheet)
}

func single(rows []int, key, worksheet string) (int, error) {
	switch len(rows) {
	case 0:
		return 0, &NotFoundError{Key: key, Worksheet: worksheet}
	case 1:
		return rows[0], nil
	default:
		return 0, &AmbiguousKeyError{Key: key, Worksheet: worksheet, Rows: rows}
	}
}

// WriteInputs writes the eight inputs of req into row, starting at the 0-based
// inputsCol.
func WriteInputs(ctx context.Context, ws sheets.Worksheet, inputsCol, row int, req SyncRequest) error {
	a1 := sheets.RowRange(inputsCol, row, InputWidth)
	if err := ws.WriteRange(ctx, a1, [][]any{req.Row()}); err != nil {
		return fmt.Errorf("write inputs %s!%s: %w", ws.Name(), a1, err)
	}
	return nil
}
