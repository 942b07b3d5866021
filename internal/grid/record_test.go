package grid

import (
	"encoding/json"
	"testing"
)

func TestRecordUnmarshalJSON(t *testing.T) {
	var r Record
	data := `{"userId": 1, "id": 3, "title": "ea molestias", "body": "et iusto", "tags": [1, "a"]}`
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatal(err)
	}
	if r.ID != 3 {
		t.Errorf("ID = %d, want 3", r.ID)
	}
	if _, ok := r.Fields["id"]; ok {
		t.Error("id must not be kept in Fields")
	}
	if r.Fields["userId"] != float64(1) {
		t.Errorf("userId = %#v, want float64(1)", r.Fields["userId"])
	}
	if r.Fields["title"] != "ea molestias" {
		t.Errorf("title = %#v", r.Fields["title"])
	}
	tags, ok := r.Fields["tags"].([]any)
	if !ok || tags[0] != float64(1) {
		t.Errorf("tags = %#v", r.Fields["tags"])
	}
	if r.DisplayIndex != 0 {
		t.Errorf("DisplayIndex = %d, want 0", r.DisplayIndex)
	}
}

func TestRecordUnmarshalJSONErrors(t *testing.T) {
	for _, data := range []string{
		`{"title": "no id"}`,
		`{"id": "abc"}`,
		`{"id": 1.5}`,
		`{"id": null}`,
		`null`,
		`[1]`,
	} {
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err == nil {
			t.Errorf("%s: expected error", data)
		}
	}
}

func TestRecordMarshalJSON(t *testing.T) {
	r := &Record{ID: 7, Fields: Fields{"title": "t", "age": float64(4)}, DisplayIndex: 2}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["id"] != float64(7) || m["title"] != "t" || m["age"] != float64(4) {
		t.Errorf("unexpected payload %s", data)
	}
	if _, ok := m["DisplayIndex"]; ok {
		t.Errorf("DisplayIndex leaked: %s", data)
	}
}

func TestRecordClone(t *testing.T) {
	r := &Record{ID: 1, Fields: Fields{"title": "a"}}
	c := r.Clone()
	c.Fields["title"] = "b"
	if r.Fields["title"] != "a" {
		t.Error("clone shares fields with the original")
	}
	empty := (&Record{ID: 2}).Clone()
	if empty.Fields == nil {
		t.Error("clone of nil fields must be writable")
	}
}

func TestFieldsUnmarshalJSON(t *testing.T) {
	var f Fields
	if err := json.Unmarshal([]byte(`{"age": 30, "nested": {"n": 2}}`), &f); err != nil {
		t.Fatal(err)
	}
	if f["age"] != float64(30) {
		t.Errorf("age = %#v", f["age"])
	}
	if n, _ := f["nested"].(map[string]any); n["n"] != float64(2) {
		t.Errorf("nested = %#v", f["nested"])
	}
	for _, data := range []string{`[1]`, `"x"`} {
		var g Fields
		if err := json.Unmarshal([]byte(data), &g); err == nil {
			t.Errorf("%s: expected error", data)
		}
	}
}
