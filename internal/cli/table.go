package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/maruel/datagrid/internal/grid"
	"github.com/maruel/datagrid/internal/store"
)

// maxCell is the display width beyond which cells are truncated.
const maxCell = 40

// PrintView renders view as an aligned table. The row of the record under
// edit, if any, is marked with '*'.
func PrintView(w io.Writer, cols grid.Columns, view grid.View, editing int64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{" ", "#", "ID"}
	for i := range cols {
		header = append(header, cols[i].Header())
	}
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, r := range view {
		mark := " "
		if editing != 0 && r.ID == editing {
			mark = "*"
		}
		row := []string{mark, strconv.Itoa(r.DisplayIndex), strconv.FormatInt(r.ID, 10)}
		for _, c := range cols {
			row = append(row, truncate(grid.StringValue(r.Fields[c.Field]), maxCell))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// truncate shortens s to n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// ParseValue converts text typed by the user to the value stored for col.
// Number columns parse numbers; an empty input stays empty so that the
// draft fails validation instead of storing 0.
func ParseValue(col *grid.Column, text string) (any, error) {
	if col.Kind != grid.KindNumber || strings.TrimSpace(text) == "" {
		return text, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil, fmt.Errorf("%s expects a number, got %q", col.Field, text)
	}
	return f, nil
}

// ParseAssignments parses field=value arguments into fields. Every field
// must be a column.
func ParseAssignments(cols grid.Columns, args []string) (grid.Fields, error) {
	fields := grid.Fields{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected field=value, got %q", a)
		}
		col := cols.Lookup(k)
		if col == nil {
			return nil, fmt.Errorf("%w: %q", store.ErrUnknownColumn, k)
		}
		val, err := ParseValue(col, v)
		if err != nil {
			return nil, err
		}
		fields[col.Field] = val
	}
	return fields, nil
}

// SplitArgs splits a command line on whitespace. Double quotes group words
// and support backslash escapes.
func SplitArgs(line string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inArg, inQuote, escaped := false, false, false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			inArg = true
		case !inQuote && (r == ' ' || r == '\t'):
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
