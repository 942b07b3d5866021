// Defines static column descriptors consumed by filter, sort, edit and render.

package grid

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ValueKind defines how a column's values are compared.
type ValueKind string

const (
	// KindText compares values as strings.
	KindText ValueKind = "text"
	// KindNumber compares values numerically.
	KindNumber ValueKind = "number"
)

// TextOrder defines the natural ordering of a text column.
type TextOrder string

const (
	// OrderLength orders text by its length in characters.
	OrderLength TextOrder = "length"
	// OrderAlpha orders text lexicographically.
	OrderAlpha TextOrder = "alpha"
)

// Column describes one field of the collection.
type Column struct {
	Field      string    `json:"field" yaml:"field" jsonschema:"description=Record field name"`
	Title      string    `json:"title,omitempty" yaml:"title,omitempty" jsonschema:"description=Header shown by the presentation layer; defaults to the field name"`
	Editable   bool      `json:"editable,omitempty" yaml:"editable,omitempty" jsonschema:"description=Whether the field can be edited; editable fields are required on save"`
	Searchable bool      `json:"searchable,omitempty" yaml:"searchable,omitempty" jsonschema:"description=Whether the filter text is matched against this field"`
	Sortable   bool      `json:"sortable,omitempty" yaml:"sortable,omitempty" jsonschema:"description=Whether the view can be sorted by this field"`
	Kind       ValueKind `json:"kind,omitempty" yaml:"kind,omitempty" jsonschema:"enum=text,enum=number,description=Value kind (text/number); defaults to text"`
	TextOrder  TextOrder `json:"text_order,omitempty" yaml:"text_order,omitempty" jsonschema:"enum=length,enum=alpha,description=Ordering of text values (length/alpha); defaults to length"`
	Random     *Range    `json:"random,omitempty" yaml:"random,omitempty" jsonschema:"description=Number column only: random integer assigned on load to records the remote returns without this field"`
}

// Range is an inclusive integer interval.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Header returns the display title of the column.
func (c *Column) Header() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Field
}

// Validate checks that the column is well-formed.
func (c *Column) Validate() error {
	if c.Field == "" {
		return errors.New("field is required")
	}
	if c.Field == "id" {
		return errors.New("field \"id\" is reserved")
	}
	switch c.Kind {
	case "", KindText, KindNumber:
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	switch c.TextOrder {
	case "", OrderLength, OrderAlpha:
	default:
		return fmt.Errorf("unknown text order %q", c.TextOrder)
	}
	if c.Random != nil {
		if c.kind() != KindNumber {
			return errors.New("random requires a number column")
		}
		if c.Random.Min > c.Random.Max {
			return fmt.Errorf("random min %d is above max %d", c.Random.Min, c.Random.Max)
		}
	}
	return nil
}

func (c *Column) kind() ValueKind {
	if c.Kind == "" {
		return KindText
	}
	return c.Kind
}

func (c *Column) textOrder() TextOrder {
	if c.TextOrder == "" {
		return OrderLength
	}
	return c.TextOrder
}

// Columns is the ordered list of column descriptors of a deployment.
type Columns []Column

// DefaultColumns returns the columns of the posts grid: title, message and age.
//
// Hosted post collections carry no age, so it is drawn in [1, 99] on load.
func DefaultColumns() Columns {
	return Columns{
		{Field: "title", Title: "Title", Editable: true, Searchable: true, Sortable: true, Kind: KindText},
		{Field: "body", Title: "Message", Editable: true, Searchable: true, Sortable: true, Kind: KindText},
		{Field: "age", Title: "Age", Editable: true, Searchable: true, Sortable: true, Kind: KindNumber, Random: &Range{Min: 1, Max: 99}},
	}
}

// Validate checks every column and rejects duplicate fields.
func (cols Columns) Validate() error {
	if len(cols) == 0 {
		return errors.New("at least one column is required")
	}
	seen := make(map[string]bool, len(cols))
	for i := range cols {
		if err := cols[i].Validate(); err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
		if seen[cols[i].Field] {
			return fmt.Errorf("column %d: duplicate field %q", i, cols[i].Field)
		}
		seen[cols[i].Field] = true
	}
	return nil
}

// Lookup returns the column for a field, or nil.
func (cols Columns) Lookup(field string) *Column {
	for i := range cols {
		if cols[i].Field == field {
			return &cols[i]
		}
	}
	return nil
}

// Editable returns the editable columns in declaration order.
func (cols Columns) Editable() Columns {
	var out Columns
	for _, c := range cols {
		if c.Editable {
			out = append(out, c)
		}
	}
	return out
}

// FillMissing assigns a value to every field of f that is absent and whose
// column has a Random range. Fields present in f, even empty, are kept.
func (cols Columns) FillMissing(f Fields) {
	for _, c := range cols {
		if c.Random == nil {
			continue
		}
		if _, ok := f[c.Field]; ok {
			continue
		}
		f[c.Field] = float64(c.Random.Min + rand.IntN(c.Random.Max-c.Random.Min+1))
	}
}

// MissingRequired returns the editable fields whose value in f is empty, in
// column order.
func (cols Columns) MissingRequired(f Fields) []string {
	var missing []string
	for _, c := range cols {
		if c.Editable && IsEmpty(f[c.Field]) {
			missing = append(missing, c.Field)
		}
	}
	return missing
}
