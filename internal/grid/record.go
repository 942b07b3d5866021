// Package grid defines the records, column descriptors and view computation
// shared by the record store, the remote client and the presentation layer.
package grid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
)

var errIDRequired = errors.New("id is required")

// Fields is the open attribute map of a record, keyed by field name.
type Fields map[string]any

// Clone returns a shallow copy of the map. Values are JSON scalars in practice
// so this is enough to isolate drafts from the authoritative record.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// UnmarshalJSON decodes a JSON object. Numbers decode to float64 as with a
// plain map[string]any. null is a no-op.
func (f *Fields) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	var m map[string]any
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	if err := d.Decode(&m); err != nil {
		return err
	}
	if m == nil {
		return errors.New("fields must be a JSON object")
	}
	for k, v := range m {
		m[k] = normalize(v)
	}
	*f = m
	return nil
}

// Record is one row of the managed collection.
type Record struct {
	// ID is assigned by the remote resource and never changes.
	ID int64
	// Fields holds every attribute except the id.
	Fields Fields
	// DisplayIndex is the 1-based position at load time. Cosmetic only.
	DisplayIndex int
}

// Clone returns a deep enough copy of the record for callers to mutate.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = r.Fields.Clone()
	return &c
}

// Validate checks that the Record is valid.
func (r *Record) Validate() error {
	if r.ID == 0 {
		return errIDRequired
	}
	return nil
}

// MarshalJSON encodes the record as a flat object with an "id" key next to
// the fields. DisplayIndex is local state and is not sent.
func (r *Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		m[k] = v
	}
	m["id"] = r.ID
	return json.Marshal(m)
}

// UnmarshalJSON decodes a flat object. The "id" key is required and must be
// an integer; every other key lands in Fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	if err := d.Decode(&m); err != nil {
		return err
	}
	if m == nil {
		return errors.New("record must be a JSON object")
	}
	raw, ok := m["id"]
	if !ok {
		return errIDRequired
	}
	id, err := parseID(raw)
	if err != nil {
		return err
	}
	delete(m, "id")
	fields := make(Fields, len(m))
	for k, v := range m {
		fields[k] = normalize(v)
	}
	r.ID = id
	r.Fields = fields
	return nil
}

func parseID(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("invalid id %q", t.String())
		}
		return int64(f), nil
	case nil:
		return 0, errIDRequired
	default:
		return 0, fmt.Errorf("invalid id type %T", v)
	}
}

// normalize converts json.Number values back to float64 so field values have
// the same shape as a plain json.Unmarshal would produce.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
		return t
	default:
		return v
	}
}
