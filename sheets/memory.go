package sheets

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Memory is an in-memory Store. It is used by tests and by the CLI's dry runs. Each
// worksheet is a grid of strings; numeric values are stored in their canonical
// dot-decimal text.
type Memory struct {
	mu     sync.Mutex
	sheets map[string]*MemoryWorksheet
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{sheets: map[string]*MemoryWorksheet{}}
}

// Add registers a worksheet holding a copy of grid and returns it.
func (m *Memory) Add(name string, grid [][]string) *MemoryWorksheet {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws := &MemoryWorksheet{name: name, grid: copyGrid(grid)}
	m.sheets[name] = ws
	return ws
}

// Worksheet returns the named worksheet or a ConnectionError.
func (m *Memory) Worksheet(_ context.Context, name string) (Worksheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.sheets[name]
	if !ok {
		return nil, &ConnectionError{Op: "open worksheet", Err: fmt.Errorf("%w: %q", ErrWorksheetNotFound, name)}
	}
	return ws, nil
}

// MemoryWorksheet is a Worksheet held in memory.
type MemoryWorksheet struct {
	mu   sync.Mutex
	name string
	grid [][]string

	// Writes records every range written, in order.
	Writes []CellUpdate
	// Reads counts ReadAll and ReadRange calls.
	Reads int
	// AfterWrite, if set, is called after each write with the lock released. Tests
	// use it to emulate the spreadsheet recomputing derived cells.
	AfterWrite func(ws *MemoryWorksheet)
	// ReadErr, if set, is returned by reads.
	ReadErr error
}

// Name returns the worksheet name.
func (ws *MemoryWorksheet) Name() string { return ws.name }

// ReadAll returns a copy of the grid.
func (ws *MemoryWorksheet) ReadAll(_ context.Context) ([][]string, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.Reads++
	if ws.ReadErr != nil {
		return nil, ws.ReadErr
	}
	return copyGrid(ws.grid), nil
}

// ReadRange returns the cells of an A1 range.
func (ws *MemoryWorksheet) ReadRange(_ context.Context, a1 string) ([][]string, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.Reads++
	if ws.ReadErr != nil {
		return nil, ws.ReadErr
	}
	sc, sr, ec, er, err := ParseRange(a1)
	if err != nil {
		return nil, err
	}
	var out [][]string
	for r := sr; r <= er; r++ {
		var row []string
		for c := sc; c <= ec; c++ {
			row = append(row, ws.get(c, r))
		}
		out = append(out, row)
	}
	return out, nil
}

// WriteRange writes values starting at the top-left cell of a1.
func (ws *MemoryWorksheet) WriteRange(_ context.Context, a1 string, values [][]any) error {
	if err := ws.write(a1, values); err != nil {
		return err
	}
	ws.afterWrite()
	return nil
}

// BatchWrite applies each update in order.
func (ws *MemoryWorksheet) BatchWrite(_ context.Context, updates []CellUpdate) error {
	for _, u := range updates {
		if err := ws.write(u.Range, u.Values); err != nil {
			return err
		}
	}
	ws.afterWrite()
	return nil
}

// Set sets a single cell, for test setup.
func (ws *MemoryWorksheet) Set(cell, value string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	c, r, err := ParseCell(cell)
	if err != nil {
		panic(err)
	}
	ws.set(c, r, value)
}

// Get returns a single cell.
func (ws *MemoryWorksheet) Get(cell string) string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	c, r, err := ParseCell(cell)
	if err != nil {
		return ""
	}
	return ws.get(c, r)
}

func (ws *MemoryWorksheet) write(a1 string, values [][]any) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	sc, sr, _, _, err := ParseRange(a1)
	if err != nil {
		return err
	}
	for i, row := range values {
		for j, v := range row {
			ws.set(sc+j, sr+i, FormatValue(v))
		}
	}
	ws.Writes = append(ws.Writes, CellUpdate{Range: a1, Values: values})
	return nil
}

func (ws *MemoryWorksheet) afterWrite() {
	if ws.AfterWrite != nil {
		ws.AfterWrite(ws)
	}
}

func (ws *MemoryWorksheet) get(col, row int) string {
	if row-1 >= len(ws.grid) || col >= len(ws.grid[row-1]) {
		return ""
	}
	return ws.grid[row-1][col]
}

func (ws *MemoryWorksheet) set(col, row int, v string) {
	for len(ws.grid) < row {
		ws.grid = append(ws.grid, []string{})
	}
	for len(ws.grid[row-1]) <= col {
		ws.grid[row-1] = append(ws.grid[row-1], "")
	}
	ws.grid[row-1][col] = v
}

// FormatValue renders a written value as cell text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

func copyGrid(grid [][]string) [][]string {
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}
	return out
}
