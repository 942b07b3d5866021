package jsonldb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// ErrNotFound is returned when no row has the requested id.
var ErrNotFound = errors.New("row not found")

// Row is implemented by types stored in a Table.
type Row[T any] interface {
	// Clone returns a deep copy.
	Clone() T
	// GetID returns the row's id. It must be positive.
	GetID() int64
}

// Table handles storage and in-memory caching for a single table in JSONL format.
type Table[T Row[T]] struct {
	path string
	mu   sync.RWMutex

	header schemaHeader
	rows   []T
}

// NewTable creates a new Table and loads all data from the file.
func NewTable[T Row[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	cols, err := schemaFromType[T]()
	if err != nil {
		return nil, err
	}
	table := &Table[T]{
		path:   path,
		header: schemaHeader{Version: currentVersion, Columns: cols},
	}
	if err := table.load(); err != nil {
		return nil, err
	}
	return table, nil
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.rows = []T{}
			return nil
		}
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var rows []T
	seen := make(map[int64]bool)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if first {
			first = false
			var h schemaHeader
			if err := json.Unmarshal(line, &h); err != nil {
				return fmt.Errorf("failed to unmarshal schema header in %s: %w", t.path, err)
			}
			if err := h.Validate(); err != nil {
				return fmt.Errorf("invalid schema header in %s: %w", t.path, err)
			}
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("failed to unmarshal row in %s: %w", t.path, err)
		}
		id := row.GetID()
		if id <= 0 {
			return fmt.Errorf("invalid row id %d in %s", id, t.path)
		}
		if seen[id] {
			return fmt.Errorf("duplicate row id %d in %s", id, t.path)
		}
		seen[id] = true
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	if rows == nil {
		rows = []T{}
	}
	t.rows = rows
	return nil
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// MaxID returns the largest id in the table, or 0 if empty.
func (t *Table[T]) MaxID() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var m int64
	for _, row := range t.rows {
		m = max(m, row.GetID())
	}
	return m
}

// All returns an iterator over clones of all rows.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Get returns a clone of the row with that id.
func (t *Table[T]) Get(id int64) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i := t.index(id)
	if i < 0 {
		var zero T
		return zero, ErrNotFound
	}
	return t.rows[i].Clone(), nil
}

// Append adds a new row to the table and persists it.
func (t *Table[T]) Append(row T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := row.GetID()
	if id <= 0 {
		return fmt.Errorf("invalid row id %d", id)
	}
	if t.index(id) >= 0 {
		return fmt.Errorf("duplicate row id %d", id)
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	if len(t.rows) == 0 {
		// Rewrite so the file starts with the schema header.
		rows := []T{row.Clone()}
		if err := t.flush(rows); err != nil {
			return err
		}
		t.rows = rows
		return nil
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // G302: data file
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	t.rows = append(t.rows, row.Clone())
	return nil
}

// Modify applies fn to a clone of the row with that id and persists the
// result. The write lock is held for the whole read-modify-write. The id of
// the returned row must not change.
func (t *Table[T]) Modify(id int64, fn func(row T) (T, error)) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	i := t.index(id)
	if i < 0 {
		return zero, ErrNotFound
	}
	updated, err := fn(t.rows[i].Clone())
	if err != nil {
		return zero, err
	}
	if updated.GetID() != id {
		return zero, fmt.Errorf("row id changed from %d to %d", id, updated.GetID())
	}
	rows := slices.Clone(t.rows)
	rows[i] = updated.Clone()
	if err := t.flush(rows); err != nil {
		return zero, err
	}
	t.rows = rows
	return updated, nil
}

// Delete removes the row with that id and persists the table.
func (t *Table[T]) Delete(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(id)
	if i < 0 {
		return ErrNotFound
	}
	rows := slices.Delete(slices.Clone(t.rows), i, i+1)
	if err := t.flush(rows); err != nil {
		return err
	}
	t.rows = rows
	return nil
}

// Replace replaces all rows with the provided slice and persists it.
func (t *Table[T]) Replace(rows []T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[int64]bool, len(rows))
	clones := make([]T, 0, len(rows))
	for _, row := range rows {
		id := row.GetID()
		if id <= 0 || seen[id] {
			return fmt.Errorf("invalid or duplicate row id %d", id)
		}
		seen[id] = true
		clones = append(clones, row.Clone())
	}
	if err := t.flush(clones); err != nil {
		return err
	}
	t.rows = clones
	return nil
}

func (t *Table[T]) index(id int64) int {
	return slices.IndexFunc(t.rows, func(row T) bool { return row.GetID() == id })
}

// flush writes the header and rows to a temporary file and renames it over
// the table file. Must hold t.mu.
func (t *Table[T]) flush(rows []T) error {
	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	writer := bufio.NewWriter(tmp)
	enc := json.NewEncoder(writer)
	if err := enc.Encode(&t.header); err != nil {
		return fmt.Errorf("failed to write schema header: %w", err)
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close table file: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("failed to replace table file: %w", err)
	}
	return nil
}
