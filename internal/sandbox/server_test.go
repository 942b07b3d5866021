package sandbox

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/maruel/datagrid/internal/grid"
	"github.com/maruel/datagrid/internal/ratelimit"
	"github.com/maruel/datagrid/internal/remote"
	"github.com/maruel/datagrid/internal/store"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "items.jsonl")
	s, err := Open(p)
	if err != nil {
		t.Fatal(err)
	}
	return s, p
}

type errorEnvelope struct {
	Error struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServerRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler("/items", nil)

	if w := do(t, h, "GET", "/healthz", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("healthz: %d %s", w.Code, w.Body)
	}
	if w := do(t, h, "GET", "/items", ""); w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("empty list: %d %s", w.Code, w.Body)
	}

	w := do(t, h, "POST", "/items", `{"title":"a","age":3}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	var created grid.Record
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID != 1 || created.Fields["title"] != "a" || created.Fields["age"] != float64(3) {
		t.Errorf("created = %+v", created)
	}

	// A body id on create is ignored.
	w = do(t, h, "POST", "/items", `{"id":42,"title":"b"}`)
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID != 2 {
		t.Errorf("second id = %d, want 2", created.ID)
	}

	w = do(t, h, "PUT", "/items/1", `{"id":1,"title":"renamed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body)
	}
	var updated grid.Record
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.ID != 1 || updated.Fields["title"] != "renamed" {
		t.Errorf("updated = %+v", updated)
	}
	if _, ok := updated.Fields["age"]; ok {
		t.Error("PUT must replace the fields")
	}

	if w := do(t, h, "DELETE", "/items/2", ""); w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "{}" {
		t.Errorf("delete: %d %s", w.Code, w.Body)
	}
	w = do(t, h, "GET", "/items", "")
	var list []*grid.Record
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestServerErrors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler("/items", nil)
	if w := do(t, h, "POST", "/items", `{"title":"a"}`); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   ErrorCode
	}{
		{"get missing", "GET", "/items/9", "", http.StatusNotFound, ErrNotFound},
		{"put missing", "PUT", "/items/9", `{"title":"x"}`, http.StatusNotFound, ErrNotFound},
		{"delete missing", "DELETE", "/items/9", "", http.StatusNotFound, ErrNotFound},
		{"bad id", "GET", "/items/abc", "", http.StatusBadRequest, ErrValidationFailed},
		{"bad json", "POST", "/items", `{"title":`, http.StatusBadRequest, ErrValidationFailed},
		{"not an object", "POST", "/items", `[1,2]`, http.StatusBadRequest, ErrValidationFailed},
		{"no body", "POST", "/items", "", http.StatusBadRequest, ErrValidationFailed},
		{"id mismatch", "PUT", "/items/1", `{"id":2,"title":"x"}`, http.StatusBadRequest, ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body)
			}
			var env errorEnvelope
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatal(err)
			}
			if env.Error.Code != tt.code || env.Error.Message == "" {
				t.Errorf("error = %+v", env.Error)
			}
		})
	}
}

func TestServerRateLimit(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler("/items", ratelimit.NewLimiter(0.001, 1))
	if w := do(t, h, "GET", "/items", ""); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	w := do(t, h, "GET", "/items", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error.Code != ErrRateLimited {
		t.Errorf("code = %q", env.Error.Code)
	}
}

func TestSeed(t *testing.T) {
	s, p := newTestServer(t)
	n, err := s.Seed(t.Context())
	if err != nil || n != 10 {
		t.Fatalf("Seed = %d, %v", n, err)
	}
	if n, err := s.Seed(t.Context()); err != nil || n != 0 {
		t.Errorf("second Seed = %d, %v", n, err)
	}
	reopened, err := Open(p)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.items.Len(); got != 10 {
		t.Errorf("reopened Len = %d", got)
	}
}

// TestClientRoundTrip drives the sandbox through the HTTP client and the
// record store.
func TestClientRoundTrip(t *testing.T) {
	s, p := newTestServer(t)
	if _, err := s.Seed(t.Context()); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(s.Handler("/posts", nil))
	defer srv.Close()

	c, err := remote.NewClient(srv.URL, remote.WithPath("/posts"), remote.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()
	st := store.New(c, grid.DefaultColumns())
	if err := st.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if st.Len() != 10 {
		t.Fatalf("Len = %d", st.Len())
	}

	if err := st.BeginEdit(3); err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateDraft(grid.Fields{"title": "changed"}); err != nil {
		t.Fatal(err)
	}
	if err := st.CommitEdit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.Remove(ctx, 2); err != nil {
		t.Fatal(err)
	}
	added, err := st.Add(ctx, grid.Fields{"title": "new", "body": "text", "age": 7.0})
	if err != nil {
		t.Fatal(err)
	}
	if added.ID != 11 || added.DisplayIndex != 11 {
		t.Errorf("added = %+v", added)
	}

	// The server persisted every mutation.
	reopened, err := Open(p)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.items.Len(); got != 10 {
		t.Errorf("persisted Len = %d", got)
	}
	it, err := reopened.items.Get(3)
	if err != nil {
		t.Fatal(err)
	}
	if it.Fields["title"] != "changed" || it.Fields["age"] != 19.0 {
		t.Errorf("item 3 = %+v", it.Fields)
	}

	// Remote failures surface as NetworkError with the server's message.
	if _, err := c.Update(ctx, 99, grid.Fields{"title": "x"}); err != nil {
		var ne *remote.NetworkError
		if !errors.As(err, &ne) || ne.StatusCode != http.StatusNotFound || ne.Message != "item not found" {
			t.Errorf("err = %#v", err)
		}
	} else {
		t.Error("expected an error")
	}

	// A fresh load sees the same collection as the store.
	st2 := store.New(c, grid.DefaultColumns())
	if err := st2.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got, want := st2.View().IDs(), st.View().IDs(); !slices.Equal(got, want) {
		t.Errorf("reload ids = %v, want %v", got, want)
	}
}
