// Provides filtering and sorting logic for the collection view.

package grid

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// SortDir defines the sort direction.
type SortDir string

const (
	// SortNone keeps the filter order.
	SortNone SortDir = ""
	// SortAsc sorts in ascending order.
	SortAsc SortDir = "asc"
	// SortDesc sorts in descending order.
	SortDesc SortDir = "desc"
)

// ParseSortDir parses "asc", "desc", "none" or "" (case-insensitive).
func ParseSortDir(s string) (SortDir, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascend", "ascending":
		return SortAsc, nil
	case "desc", "descend", "descending":
		return SortDesc, nil
	case "", "none":
		return SortNone, nil
	default:
		return SortNone, fmt.Errorf("unknown sort direction %q", s)
	}
}

// Sort defines the column sort of a view.
type Sort struct {
	Field     string
	Direction SortDir
}

// IsZero returns true when no sort is applied.
func (s Sort) IsZero() bool {
	return s.Field == "" || s.Direction == SortNone
}

// View is the derived, read-only sequence handed to the presentation layer.
type View []*Record

// IDs returns the record ids in view order.
func (v View) IDs() []int64 {
	ids := make([]int64, len(v))
	for i, r := range v {
		ids[i] = r.ID
	}
	return ids
}

// Query filters records by text across searchable columns, then sorts them.
// The input slice is not modified.
func Query(records []*Record, cols Columns, text string, s Sort) View {
	result := FilterRecords(records, cols, text)
	if len(result) == len(records) {
		// FilterRecords may return its input as-is.
		result = slices.Clone(result)
	}
	SortRecords(result, cols, s)
	return result
}

// FilterRecords returns the records where any searchable column's string form
// contains text, ignoring case. Empty text matches every record.
func FilterRecords(records []*Record, cols Columns, text string) []*Record {
	if text == "" {
		return records
	}
	needle := strings.ToLower(text)
	result := make([]*Record, 0, len(records))
	for _, r := range records {
		if matches(r, cols, needle) {
			result = append(result, r)
		}
	}
	return result
}

func matches(r *Record, cols Columns, needle string) bool {
	for i := range cols {
		if !cols[i].Searchable {
			continue
		}
		v, ok := r.Fields[cols[i].Field]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(StringValue(v)), needle) {
			return true
		}
	}
	return false
}

// SortRecords sorts records in place, stable, by the sort column. Unknown
// fields and SortNone leave the order untouched.
func SortRecords(records []*Record, cols Columns, s Sort) {
	if s.IsZero() {
		return
	}
	col := cols.Lookup(s.Field)
	if col == nil {
		return
	}
	slices.SortStableFunc(records, func(a, b *Record) int {
		c := compareValues(col, a.Fields[s.Field], b.Fields[s.Field])
		if s.Direction == SortDesc {
			return -c
		}
		return c
	})
}

// compareValues compares two values according to the column kind.
func compareValues(col *Column, a, b any) int {
	if col.kind() == KindNumber {
		fa, oka := toNumber(a)
		fb, okb := toNumber(b)
		switch {
		case !oka && !okb:
			return 0
		case !oka:
			return -1
		case !okb:
			return 1
		}
		return cmp.Compare(fa, fb)
	}
	sa, sb := StringValue(a), StringValue(b)
	if col.textOrder() == OrderAlpha {
		return cmp.Compare(sa, sb)
	}
	return cmp.Compare(utf8.RuneCountInString(sa), utf8.RuneCountInString(sb))
}

// toNumber converts a value to float64.
func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// StringValue converts a value to its string representation.
func StringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// IsEmpty checks if a value is empty/null. Blank strings are empty.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
