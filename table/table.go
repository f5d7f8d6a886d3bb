// Package table turns the raw cell grid of a worksheet into a table of records
// addressable both by header name and by column position.
//
// Worksheets in the billing spreadsheet carry title rows above the real header, and
// that layout has moved over time. The preferred way to find the header is therefore
// to scan for a row holding known header tokens, with a fixed row index available as
// a fallback.
package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoHeader reports that a header scan found no matching row.
var ErrNoHeader = errors.New("no header row found")

// HeaderStrategy describes how the header row of a worksheet is located.
type HeaderStrategy struct {
	// Tokens are the header names, compared case-insensitively, that must all
	// appear in a row for it to be taken as the header. A token may list
	// alternatives separated by "|", such as "key|id", any one of which
	// satisfies it. Used when FixedRow < 0.
	Tokens []string
	// FixedRow is the 0-based index of the header row. A negative value selects
	// scanning.
	FixedRow int
}

// ScanFor returns a scanning HeaderStrategy for the given tokens.
func ScanFor(tokens ...string) HeaderStrategy {
	return HeaderStrategy{Tokens: tokens, FixedRow: -1}
}

// FixedAt returns a HeaderStrategy with the header at the 0-based row index.
func FixedAt(row int) HeaderStrategy {
	return HeaderStrategy{FixedRow: row}
}

// headerIndex finds the header row in grid.
func (h HeaderStrategy) headerIndex(grid [][]string) (int, error) {
	if h.FixedRow >= 0 {
		if h.FixedRow >= len(grid) {
			return 0, fmt.Errorf("fixed header row %d beyond %d rows", h.FixedRow, len(grid))
		}
		return h.FixedRow, nil
	}
	if len(h.Tokens) == 0 {
		return 0, errors.New("header scan requires at least one token")
	}
	for i, row := range grid {
		seen := make(map[string]bool, len(row))
		for _, c := range row {
			seen[strings.ToLower(strings.TrimSpace(c))] = true
		}
		all := true
		for _, tok := range h.Tokens {
			if !anySeen(seen, tok) {
				all = false
				break
			}
		}
		if all {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w with tokens %v", ErrNoHeader, h.Tokens)
}

// anySeen reports whether any of the "|" separated alternatives of tok is in seen.
func anySeen(seen map[string]bool, tok string) bool {
	for _, alt := range strings.Split(tok, "|") {
		alt = strings.ToLower(strings.TrimSpace(alt))
		if alt != "" && seen[alt] {
			return true
		}
	}
	return false
}

// Table is a worksheet with a located header.
type Table struct {
	Headers   []string       // trimmed header cells, positionally aligned with the grid
	HeaderRow int            // 1-based sheet row of the header
	Records   []Record       // data rows following the header
	columns   map[string]int // header name to 0-based column, first occurrence wins
}

// Record is a single data row.
type Record struct {
	Row   int // 1-based sheet row number
	cells []string
	table *Table
}

// FromGrid builds a Table from a grid of cell strings. Rows above the header are
// discarded and columns whose header is empty are not addressable by name.
func FromGrid(grid [][]string, h HeaderStrategy) (*Table, error) {
	idx, err := h.headerIndex(grid)
	if err != nil {
		return nil, err
	}

	t := &Table{
		HeaderRow: idx + 1,
		columns:   map[string]int{},
	}
	t.Headers = make([]string, len(grid[idx]))
	for i, c := range grid[idx] {
		name := strings.TrimSpace(c)
		t.Headers[i] = name
		if name == "" {
			continue
		}
		if _, ok := t.columns[name]; !ok {
			t.columns[name] = i
		}
	}

	for i := idx + 1; i < len(grid); i++ {
		t.Records = append(t.Records, Record{Row: i + 1, cells: grid[i], table: t})
	}
	return t, nil
}

// HasColumn reports whether the table has a named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns the 0-based position of a named column.
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.columns[name]
	return i, ok
}

// Filter returns the records for which keep returns true.
func (t *Table) Filter(keep func(Record) bool) []Record {
	var out []Record
	for _, r := range t.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the trimmed value of the named column, or "" when the column or cell
// is absent.
func (r Record) Get(name string) string {
	if r.table == nil {
		return ""
	}
	i, ok := r.table.columns[name]
	if !ok {
		return ""
	}
	return r.At(i)
}

// Lookup is like Get but reports whether the column exists.
func (r Record) Lookup(name string) (string, bool) {
	if r.table == nil {
		return "", false
	}
	i, ok := r.table.columns[name]
	if !ok {
		return "", false
	}
	return r.At(i), true
}

// At returns the trimmed value at the 0-based column position. Short rows, which
// the Sheets API produces by dropping trailing empty cells, read as "".
func (r Record) At(pos int) string {
	if pos < 0 || pos >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[pos])
}

// Map returns the named fields of the record.
func (r Record) Map() map[string]string {
	m := map[string]string{}
	if r.table == nil {
		return m
	}
	for name, i := range r.table.columns {
		m[name] = r.At(i)
	}
	return m
}
