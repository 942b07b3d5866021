package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/maruel/datagrid/internal/grid"
)

func TestCSV(t *testing.T) {
	view := grid.View{
		{ID: 2, DisplayIndex: 2, Fields: grid.Fields{"title": "BB", "body": "line1\nline2", "age": float64(3)}},
		{ID: 1, DisplayIndex: 1, Fields: grid.Fields{"title": "A, b", "body": "x"}},
	}
	var buf bytes.Buffer
	if err := CSV(&buf, grid.DefaultColumns(), view, nil); err != nil {
		t.Fatal(err)
	}
	want := "#,ID,Title,Message,Age\n" +
		"2,2,BB,\"line1\nline2\",3\n" +
		"1,1,\"A, b\",x,\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestCSVOptions(t *testing.T) {
	view := grid.View{{ID: 5, DisplayIndex: 1, Fields: grid.Fields{"title": "t"}}}
	cols := grid.Columns{{Field: "title"}}

	var buf bytes.Buffer
	if err := CSV(&buf, cols, view, &Options{Comma: ';', NoHeader: true}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "1;5;t\n" {
		t.Errorf("got %q", got)
	}

	if err := CSV(&buf, cols, view, &Options{Comma: '"'}); err == nil || !strings.Contains(err.Error(), "delimiter") {
		t.Errorf("expected delimiter error, got %v", err)
	}
}
