package jsonldb

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

type testRow struct {
	ID   int64    `json:"id" jsonschema:"description=Row identifier"`
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

func (r *testRow) Clone() *testRow {
	c := *r
	c.Tags = slices.Clone(r.Tags)
	return &c
}

func (r *testRow) GetID() int64 {
	return r.ID
}

func names(tbl *Table[*testRow]) []string {
	var out []string
	for r := range tbl.All() {
		out = append(out, r.Name)
	}
	return out
}

func TestTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "test.jsonl")

	table, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if table.Len() != 0 || table.MaxID() != 0 {
		t.Fatalf("new table not empty")
	}

	for _, r := range []*testRow{{ID: 1, Name: "One"}, {ID: 2, Name: "Two"}, {ID: 5, Name: "Five"}} {
		if err := table.Append(r); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := table.Append(&testRow{ID: 2, Name: "dup"}); err == nil {
		t.Error("expected duplicate id error")
	}
	if err := table.Append(&testRow{ID: 0}); err == nil {
		t.Error("expected invalid id error")
	}
	if table.Len() != 3 || table.MaxID() != 5 {
		t.Errorf("Len=%d MaxID=%d", table.Len(), table.MaxID())
	}

	// Reload reproduces the rows.
	table2, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatalf("re-loading table failed: %v", err)
	}
	if got := names(table2); !slices.Equal(got, []string{"One", "Two", "Five"}) {
		t.Errorf("re-loaded data mismatch: %v", got)
	}

	// Modify persists.
	updated, err := table.Modify(2, func(r *testRow) (*testRow, error) {
		r.Name = "Deux"
		return r, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Deux" {
		t.Errorf("Modify returned %+v", updated)
	}
	if _, err := table.Modify(2, func(r *testRow) (*testRow, error) {
		r.ID = 3
		return r, nil
	}); err == nil {
		t.Error("expected error when changing the id")
	}
	boom := errors.New("boom")
	if _, err := table.Modify(2, func(r *testRow) (*testRow, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if _, err := table.Modify(9, func(r *testRow) (*testRow, error) { return r, nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Delete persists.
	if err := table.Delete(1); err != nil {
		t.Fatal(err)
	}
	if err := table.Delete(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	table3, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(table3); !slices.Equal(got, []string{"Deux", "Five"}) {
		t.Errorf("after modify+delete: %v", got)
	}

	// Append after a rewrite keeps the file loadable.
	if err := table.Append(&testRow{ID: 6, Name: "Six"}); err != nil {
		t.Fatal(err)
	}
	table4, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(table4); !slices.Equal(got, []string{"Deux", "Five", "Six"}) {
		t.Errorf("after append: %v", got)
	}
}

func TestTableGetIsolation(t *testing.T) {
	table, err := NewTable[*testRow](filepath.Join(t.TempDir(), "t.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	row := &testRow{ID: 1, Name: "a", Tags: []string{"x"}}
	if err := table.Append(row); err != nil {
		t.Fatal(err)
	}
	row.Tags[0] = "mutated"
	got, err := table.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tags[0] != "x" {
		t.Error("table shares memory with the appended row")
	}
	got.Name = "changed"
	again, _ := table.Get(1)
	if again.Name != "a" {
		t.Error("table shares memory with Get results")
	}
	if _, err := table.Get(2); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTableReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	table, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if err := table.Replace([]*testRow{{ID: 3, Name: "Three"}}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if err := table.Replace([]*testRow{{ID: 1}, {ID: 1}}); err == nil {
		t.Error("expected duplicate id error")
	}
	reloaded, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(reloaded); !slices.Equal(got, []string{"Three"}) {
		t.Errorf("got %v", got)
	}
}

func TestTableSchemaHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	table, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if err := table.Append(&testRow{ID: 1, Name: "a"}); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	s := bufio.NewScanner(f)
	if !s.Scan() {
		t.Fatal("empty file")
	}
	var h schemaHeader
	if err := json.Unmarshal(s.Bytes(), &h); err != nil {
		t.Fatal(err)
	}
	if h.Version != currentVersion {
		t.Errorf("version = %q", h.Version)
	}
	want := []column{
		{Name: "id", Type: columnTypeNumber, Required: true, Description: "Row identifier"},
		{Name: "name", Type: columnTypeText, Required: true},
		{Name: "tags", Type: columnTypeJSONB},
	}
	if !slices.Equal(h.Columns, want) {
		t.Errorf("columns = %+v, want %+v", h.Columns, want)
	}
}

func TestTableLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad header", "not json\n"},
		{"missing version", `{"columns":[]}` + "\n"},
		{"bad row", `{"version":"1.0","columns":[]}` + "\n{\n"},
		{"zero id", `{"version":"1.0","columns":[]}` + "\n" + `{"id":0}` + "\n"},
		{"duplicate id", `{"version":"1.0","columns":[]}` + "\n" + `{"id":1}` + "\n" + `{"id":1}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "t.jsonl")
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := NewTable[*testRow](path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
