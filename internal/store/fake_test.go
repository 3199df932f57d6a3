package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JonMunkholm/sheetstore/internal/sheets"
)

// fakeTables is an in-memory TableClient. Row 0 of every tab is the header.
type fakeTables struct {
	mu     sync.Mutex
	tabs   map[string][][]string
	writes int
	reads  int

	// failAppend makes appends to a tab fail with the given error.
	failAppend map[string]error
}

func newFakeTables() *fakeTables {
	return &fakeTables{
		tabs:       make(map[string][][]string),
		failAppend: make(map[string]error),
	}
}

func (f *fakeTables) EnsureTable(_ context.Context, name string, header []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows, ok := f.tabs[name]
	if !ok || len(rows) == 0 {
		f.tabs[name] = [][]string{slices.Clone(header)}
		f.writes++
		return nil
	}
	if !slices.Equal(rows[0], header) {
		return fmt.Errorf("%w: %s", sheets.ErrHeaderMismatch, name)
	}
	return nil
}

func (f *fakeTables) ReadAll(_ context.Context, name string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++

	rows, ok := f.tabs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheets.ErrNoSuchTable, name)
	}
	out := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		out = append(out, slices.Clone(r))
	}
	return out, nil
}

func (f *fakeTables) AppendRow(ctx context.Context, name string, row []string) error {
	return f.AppendRows(ctx, name, [][]string{row})
}

func (f *fakeTables) AppendRows(_ context.Context, name string, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failAppend[name]; err != nil {
		return err
	}
	if _, ok := f.tabs[name]; !ok {
		return fmt.Errorf("%w: %s", sheets.ErrNoSuchTable, name)
	}
	for _, r := range rows {
		f.tabs[name] = append(f.tabs[name], slices.Clone(r))
	}
	f.writes++
	return nil
}

func (f *fakeTables) UpdateRow(_ context.Context, name string, rowIndex int, row []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.tabs[name]
	if rowIndex+1 >= len(rows) {
		return fmt.Errorf("update %s: row %d out of range", name, rowIndex)
	}
	rows[rowIndex+1] = slices.Clone(row)
	f.writes++
	return nil
}

func (f *fakeTables) DeleteRow(_ context.Context, name string, rowIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.tabs[name]
	if rowIndex+1 >= len(rows) {
		return fmt.Errorf("delete %s: row %d out of range", name, rowIndex)
	}
	f.tabs[name] = slices.Delete(rows, rowIndex+1, rowIndex+2)
	f.writes++
	return nil
}

func (f *fakeTables) setFailAppend(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failAppend, name)
		return
	}
	f.failAppend[name] = err
}

func (f *fakeTables) rowCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tabs[name]) - 1
}

func (f *fakeTables) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}
