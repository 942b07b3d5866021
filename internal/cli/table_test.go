package cli

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/maruel/datagrid/internal/grid"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  load  ", []string{"load"}},
		{"set title hello world", []string{"set", "title", "hello", "world"}},
		{`add title="a b" body=c`, []string{"add", "title=a b", "body=c"}},
		{`say "quote \" inside"`, []string{"say", `quote " inside`}},
		{`empty ""`, []string{"empty", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SplitArgs(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
	if _, err := SplitArgs(`a "b`); err == nil {
		t.Error("expected unterminated quote error")
	}
}

func TestParseValue(t *testing.T) {
	num := &grid.Column{Field: "age", Kind: grid.KindNumber}
	text := &grid.Column{Field: "title"}
	tests := []struct {
		name    string
		col     *grid.Column
		in      string
		want    any
		wantErr bool
	}{
		{"number", num, "42", 42.0, false},
		{"decimal", num, " 1.5 ", 1.5, false},
		{"empty number", num, "", "", false},
		{"bad number", num, "abc", nil, true},
		{"text", text, "42", "42", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.col, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestPrintView(t *testing.T) {
	cols := grid.DefaultColumns()
	view := grid.View{
		{ID: 7, DisplayIndex: 1, Fields: grid.Fields{"title": "short", "body": strings.Repeat("word ", 20), "age": 3.0}},
		{ID: 9, DisplayIndex: 2, Fields: grid.Fields{"title": "multi\nline"}},
	}
	var buf bytes.Buffer
	if err := PrintView(&buf, cols, view, 9); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[0], "Title") || !strings.Contains(lines[0], "Age") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "…") {
		t.Errorf("long cell not truncated: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "*") || !strings.Contains(lines[2], "multi line") {
		t.Errorf("edited row = %q", lines[2])
	}
}
