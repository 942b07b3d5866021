package sandbox

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/maruel/datagrid/internal/grid"
)

// Item is the stored form of a collection member.
type Item struct {
	ID     int64       `json:"id" jsonschema:"description=Identifier assigned by the server"`
	Fields grid.Fields `json:"fields" jsonschema:"description=Attributes other than the id"`
}

// Clone implements jsonldb.Row.
func (i *Item) Clone() *Item {
	return &Item{ID: i.ID, Fields: i.Fields.Clone()}
}

// GetID implements jsonldb.Row.
func (i *Item) GetID() int64 {
	return i.ID
}

// Record returns the wire form of the item.
func (i *Item) Record() *grid.Record {
	return &grid.Record{ID: i.ID, Fields: i.Fields.Clone()}
}

// itemRequest is the input of the item routes. Its JSON body is the flat
// item object; the id comes from the path.
type itemRequest struct {
	ID     int64 `path:"id"`
	Fields grid.Fields
}

func (r *itemRequest) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.Fields)
}

// fields validates the body and returns it without the id key. A body id is
// accepted only if it matches want; 0 means no id is expected.
func (r *itemRequest) fields(want int64) (grid.Fields, error) {
	if r.Fields == nil {
		return nil, BadRequest("request body must be a JSON object")
	}
	f := r.Fields.Clone()
	if raw, ok := f["id"]; ok {
		if want == 0 {
			delete(f, "id")
			return f, nil
		}
		if n, ok := raw.(float64); !ok || n != float64(want) {
			return nil, BadRequest(fmt.Sprintf("body id %v does not match path id %d", raw, want))
		}
		delete(f, "id")
	}
	return f, nil
}

// createdRecord is answered with 201 Created.
type createdRecord struct {
	*grid.Record
}

func (c *createdRecord) StatusCode() int {
	return http.StatusCreated
}

func (c *createdRecord) MarshalJSON() ([]byte, error) {
	return c.Record.MarshalJSON()
}
