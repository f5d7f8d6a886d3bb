// Package xlsx is a local workbook backend of the sheets.Store interface. It lets
// operators rehearse a sync against a downloaded copy of the billing spreadsheet.
//
// Formula cells are evaluated on read with the excelize calculation engine, so
// derived check columns follow the inputs just as they do in the shared
// spreadsheet, as far as excelize supports the functions used.
package xlsx

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"boletos/sheets"
)

// Workbook is a sheets.Store backed by an xlsx file.
type Workbook struct {
	mu   sync.Mutex
	f    *excelize.File
	path string // empty for in-memory workbooks, which are never saved
	log  *log.Logger
}

// Ensure interface conformance.
var _ sheets.Store = (*Workbook)(nil)

// Open opens the workbook at path. Writes are saved back to the same file.
func Open(path string, logger *log.Logger) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &sheets.ConnectionError{Op: "open workbook", Err: err}
	}
	return newWorkbook(f, path, logger), nil
}

// New wraps an existing excelize file without a backing path.
func New(f *excelize.File, logger *log.Logger) *Workbook {
	return newWorkbook(f, "", logger)
}

func newWorkbook(f *excelize.File, path string, logger *log.Logger) *Workbook {
	if logger == nil {
		logger = log.Default()
	}
	return &Workbook{f: f, path: path, log: logger.WithPrefix("xlsx")}
}

// Close closes the underlying file.
func (wb *Workbook) Close() error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.f.Close()
}

// Worksheet returns the named worksheet.
func (wb *Workbook) Worksheet(_ context.Context, name string) (sheets.Worksheet, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	idx, err := wb.f.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil, &sheets.ConnectionError{
			Op:  "open worksheet",
			Err: fmt.Errorf("%w: %q", sheets.ErrWorksheetNotFound, name),
		}
	}
	return &worksheet{wb: wb, name: name}, nil
}

type worksheet struct {
	wb   *Workbook
	name string
}

func (w *worksheet) Name() string { return w.name }

// ReadAll returns the worksheet values with formula cells evaluated.
func (w *worksheet) ReadAll(_ context.Context) ([][]string, error) {
	w.wb.mu.Lock()
	defer w.wb.mu.Unlock()
	return w.readAll()
}

func (w *worksheet) readAll() ([][]string, error) {
	f := w.wb.f
	rows, err := f.GetRows(w.name)
	if err != nil {
		return nil, &sheets.ConnectionError{Op: "read " + w.name, Err: err}
	}

	// Formula cells without a cached value may lie beyond what GetRows returns, so
	// size the grid from the sheet dimension as well.
	maxRow, maxCol := len(rows), 0
	for _, r := range rows {
		if len(r) > maxCol {
			maxCol = len(r)
		}
	}
	if dim, err := f.GetSheetDimension(w.name); err == nil && dim != "" {
		if _, _, ec, er, err := sheets.ParseRange(dim); err == nil {
			maxRow = max(maxRow, er)
			maxCol = max(maxCol, ec+1)
		}
	}

	grid := make([][]string, maxRow)
	for r := 0; r < maxRow; r++ {
		grid[r] = make([]string, maxCol)
		if r < len(rows) {
			copy(grid[r], rows[r])
		}
		for c := 0; c < maxCol; c++ {
			cell := sheets.Cell(c, r+1)
			formula, err := f.GetCellFormula(w.name, cell)
			if err != nil || formula == "" {
				continue
			}
			v, err := f.CalcCellValue(w.name, cell)
			if err != nil {
				w.wb.log.Debug("formula evaluation failed", "cell", cell, "formula", formula, "err", err)
				grid[r][c] = "#ERROR"
				continue
			}
			grid[r][c] = v
		}
	}
	return grid, nil
}

// ReadRange returns the cells of an A1 range, formulas evaluated.
func (w *worksheet) ReadRange(_ context.Context, a1 string) ([][]string, error) {
	sc, sr, ec, er, err := sheets.ParseRange(a1)
	if err != nil {
		return nil, err
	}
	w.wb.mu.Lock()
	defer w.wb.mu.Unlock()
	grid, err := w.readAll()
	if err != nil {
		return nil, err
	}
	var out [][]string
	for r := sr; r <= er; r++ {
		var row []string
		for c := sc; c <= ec; c++ {
			v := ""
			if r-1 < len(grid) && c < len(grid[r-1]) {
				v = grid[r-1][c]
			}
			row = append(row, v)
		}
		out = append(out, row)
	}
	return out, nil
}

// WriteRange writes values starting at the top-left cell of a1 and saves the file.
func (w *worksheet) WriteRange(_ context.Context, a1 string, values [][]any) error {
	w.wb.mu.Lock()
	defer w.wb.mu.Unlock()
	if err := w.write(a1, values); err != nil {
		return err
	}
	return w.wb.save()
}

// BatchWrite applies each update and saves once.
func (w *worksheet) BatchWrite(_ context.Context, updates []sheets.CellUpdate) error {
	w.wb.mu.Lock()
	defer w.wb.mu.Unlock()
	for _, u := range updates {
		if err := w.write(u.Range, u.Values); err != nil {
			return err
		}
	}
	return w.wb.save()
}

func (w *worksheet) write(a1 string, values [][]any) error {
	sc, sr, _, _, err := sheets.ParseRange(a1)
	if err != nil {
		return err
	}
	for i, row := range values {
		for j, v := range row {
			cell := sheets.Cell(sc+j, sr+i)
			if err := w.wb.f.SetCellValue(w.name, cell, userEntered(v)); err != nil {
				return &sheets.ConnectionError{Op: "write " + cell, Err: err}
			}
		}
	}
	w.wb.log.Debug("wrote", "worksheet", w.name, "range", a1)
	return nil
}

// userEntered coerces numeric-looking strings to numbers, as a spreadsheet does with
// typed input.
func userEntered(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	return f
}

func (wb *Workbook) save() error {
	if wb.path == "" {
		return nil
	}
	if err := wb.f.Save(); err != nil {
		return &sheets.ConnectionError{Op: "save workbook", Err: err}
	}
	return nil
}
