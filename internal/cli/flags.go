package cli

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/maruel/datagrid/internal/grid"
)

// ParseSortFlag parses "field", "field:asc" or "field:desc".
func ParseSortFlag(s string) (string, grid.SortDir, error) {
	field, d, found := strings.Cut(s, ":")
	field = strings.TrimSpace(field)
	if field == "" {
		return "", grid.SortNone, fmt.Errorf("invalid sort %q: missing field", s)
	}
	if !found {
		return field, grid.SortAsc, nil
	}
	dir, err := grid.ParseSortDir(d)
	if err != nil {
		return "", grid.SortNone, err
	}
	return field, dir, nil
}

// ParseDelimiter parses a single character delimiter. "\t" and "tab" mean a
// tab.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("invalid delimiter %q: must be a single character", s)
	}
	return r, nil
}
