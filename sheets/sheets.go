// Package sheets describes the tabular store the billing tool reads and writes: a
// spreadsheet of named worksheets addressed by A1 ranges. Backends live in
// sub-packages; an in-memory implementation is provided here for tests.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store opens worksheets by name within a single spreadsheet.
type Store interface {
	Worksheet(ctx context.Context, name string) (Worksheet, error)
}

// Worksheet is a single named sheet.
//
// Ranges are given in A1 notation without the sheet name, for example "I12:P12".
// Written values are interpreted as if typed by a user, so numeric values and
// numeric-looking strings are stored as numbers rather than literal text.
type Worksheet interface {
	Name() string
	ReadAll(ctx context.Context) ([][]string, error)
	ReadRange(ctx context.Context, a1 string) ([][]string, error)
	WriteRange(ctx context.Context, a1 string, values [][]any) error
	BatchWrite(ctx context.Context, updates []CellUpdate) error
}

// CellUpdate is one entry of a batch write.
type CellUpdate struct {
	Range  string
	Values [][]any
}

// ConnectionError reports that the store could not be reached, the credentials were
// refused or the spreadsheet or worksheet does not exist. It is fatal at startup and
// terminal for an interaction.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("store connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrWorksheetNotFound is wrapped in a ConnectionError when a named worksheet is
// absent.
var ErrWorksheetNotFound = errors.New("worksheet not found")

// IsConnectionError reports whether err is, or wraps, a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// FindRows returns the 1-based row numbers whose cell in the 0-based column col
// equals value exactly. No trimming or normalization is applied to the cell text,
// mirroring a spreadsheet "find" restricted to a column.
func FindRows(ctx context.Context, ws Worksheet, col int, value string) ([]int, error) {
	grid, err := ws.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	var rows []int
	for i, row := range grid {
		if col < len(row) && row[col] == value {
			rows = append(rows, i+1)
		}
	}
	return rows, nil
}

// WriteCell writes a single value to a cell such as "C7".
func WriteCell(ctx context.Context, ws Worksheet, cell string, value any) error {
	return ws.WriteRange(ctx, cell, [][]any{{value}})
}

// ColumnLetter converts a 0-based column index into its A1 letters.
func ColumnLetter(col int) string {
	if col < 0 {
		return ""
	}
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// ColumnIndex converts A1 column letters into a 0-based index.
func ColumnIndex(letters string) (int, error) {
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return 0, errors.New("empty column reference")
	}
	n := 0
	for _, r := range letters {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column reference %q", letters)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, nil
}

// Cell returns the A1 reference for a 0-based column and 1-based row.
func Cell(col, row int) string {
	return fmt.Sprintf("%s%d", ColumnLetter(col), row)
}

// RowRange returns the A1 range covering width cells of a row starting at the
// 0-based column col.
func RowRange(col, row, width int) string {
	if width <= 1 {
		return Cell(col, row)
	}
	return fmt.Sprintf("%s:%s", Cell(col, row), Cell(col+width-1, row))
}

// ParseCell splits an A1 cell reference such as "AB12" into a 0-based column and a
// 1-based row.
func ParseCell(ref string) (int, int, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
	}
	col, err := ColumnIndex(ref[:i])
	if err != nil {
		return 0, 0, err
	}
	row := 0
	for _, r := range ref[i:] {
		if r < '0' || r > '9' {
			return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
		}
		row = row*10 + int(r-'0')
	}
	if row < 1 {
		return 0, 0, fmt.Errorf("invalid row in cell reference %q", ref)
	}
	return col, row, nil
}

// ParseRange splits an A1 range such as "I5:P5" into its 0-based start column,
// 1-based start row and inclusive end cell. A single cell yields equal start and end.
func ParseRange(a1 string) (startCol, startRow, endCol, endRow int, err error) {
	parts := strings.SplitN(a1, ":", 2)
	startCol, startRow, err = ParseCell(parts[0])
	if err != nil {
		return
	}
	if len(parts) == 1 {
		return startCol, startRow, startCol, startRow, nil
	}
	endCol, endRow, err = ParseCell(parts[1])
	if err != nil {
		return
	}
	if endCol < startCol || endRow < startRow {
		err = fmt.Errorf("inverted range %q", a1)
	}
	return
}

// QualifiedRange prefixes an A1 range with a quoted sheet name, as the Sheets API
// expects, for example 'INPUT - BOLETOS'!I5:P5.
func QualifiedRange(sheet, a1 string) string {
	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	if a1 == "" {
		return quoted
	}
	return quoted + "!" + a1
}
