// Handles the schema header and reflection-based column extraction.

package jsonldb

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

var errSchemaVersionRequired = errors.New("schema version is required")

// currentVersion is the current version of the JSONL table format.
const currentVersion = "1.0"

// columnType represents the type of a table column.
type columnType string

const (
	columnTypeText   columnType = "text"
	columnTypeNumber columnType = "number"
	columnTypeBool   columnType = "bool"
	columnTypeJSONB  columnType = "jsonb"
)

// column represents a table column in storage.
type column struct {
	Name        string     `json:"name"`
	Type        columnType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Description string     `json:"description,omitempty"`
}

// schemaHeader is the first line of a table file.
type schemaHeader struct {
	Version string   `json:"version"`
	Columns []column `json:"columns"`
}

// Validate checks that the schema header is well-formed.
func (h *schemaHeader) Validate() error {
	if h.Version == "" {
		return errSchemaVersionRequired
	}
	for i, col := range h.Columns {
		if col.Name == "" {
			return fmt.Errorf("column %d: name is required", i)
		}
		if col.Type == "" {
			return fmt.Errorf("column %d: type is required", i)
		}
	}
	return nil
}

// schemaFromType extracts column definitions using JSON Schema reflection.
//
// Descriptions come from `jsonschema:"description=..."` tags; a field is
// required unless its json tag has omitempty.
func schemaFromType[T any]() ([]column, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type must be a struct or pointer to struct, got %s", t.Kind())
	}

	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schema := r.ReflectFromType(t)

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var columns []column
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		columns = append(columns, column{
			Name:        pair.Key,
			Type:        schemaTypeToColumnType(pair.Value.Type),
			Required:    required[pair.Key],
			Description: pair.Value.Description,
		})
	}
	return columns, nil
}

// schemaTypeToColumnType maps JSON Schema types to column types.
func schemaTypeToColumnType(t string) columnType {
	switch t {
	case "string":
		return columnTypeText
	case "integer", "number":
		return columnTypeNumber
	case "boolean":
		return columnTypeBool
	default:
		return columnTypeJSONB
	}
}
