// Package export renders a collection view to delimited text.
package export

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	"github.com/maruel/datagrid/internal/grid"
)

// Options configures CSV.
type Options struct {
	// Comma is the field delimiter. Defaults to ','.
	Comma rune
	// NoHeader omits the header row.
	NoHeader bool
}

// CSV writes the view as delimited text: the display index, the id, then one
// cell per column in column order.
func CSV(w io.Writer, cols grid.Columns, view grid.View, opts *Options) error {
	cw := csv.NewWriter(w)
	if opts != nil && opts.Comma != 0 {
		if opts.Comma == '"' || opts.Comma == '\r' || opts.Comma == '\n' {
			return errors.New("invalid delimiter")
		}
		cw.Comma = opts.Comma
	}
	if opts == nil || !opts.NoHeader {
		header := make([]string, 0, len(cols)+2)
		header = append(header, "#", "ID")
		for i := range cols {
			header = append(header, cols[i].Header())
		}
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	row := make([]string, len(cols)+2)
	for _, r := range view {
		row[0] = strconv.Itoa(r.DisplayIndex)
		row[1] = strconv.FormatInt(r.ID, 10)
		for i := range cols {
			row[i+2] = grid.StringValue(r.Fields[cols[i].Field])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
