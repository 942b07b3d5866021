// Package sandbox serves a collection resource over HTTP with the same
// contract as the remote collections the grid manages, backed by a JSONL
// table. It is used for local development and integration tests.
package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"sync"

	"github.com/maruel/datagrid/internal/grid"
	"github.com/maruel/datagrid/internal/jsonldb"
	"github.com/maruel/datagrid/internal/ratelimit"
)

// Server implements the collection routes over a table of items.
type Server struct {
	items *jsonldb.Table[*Item]
	// mu serializes id allocation with the append.
	mu sync.Mutex
}

// New returns a Server storing its items in the table.
func New(items *jsonldb.Table[*Item]) *Server {
	return &Server{items: items}
}

// Open opens or creates the items table at p.
func Open(p string) (*Server, error) {
	t, err := jsonldb.NewTable[*Item](p)
	if err != nil {
		return nil, err
	}
	return New(t), nil
}

// Handler returns the router serving the collection under prefix, e.g.
// "/items". A nil limiter disables rate limiting.
func (s *Server) Handler(prefix string, l *ratelimit.Limiter) http.Handler {
	prefix = path.Join("/", prefix)
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", Wrap(s.health))

	mux.Handle("GET "+prefix, Wrap(s.listItems))
	mux.Handle("POST "+prefix, Wrap(s.createItem))
	mux.Handle("GET "+prefix+"/{id}", Wrap(s.getItem))
	mux.Handle("PUT "+prefix+"/{id}", Wrap(s.updateItem))
	mux.Handle("DELETE "+prefix+"/{id}", Wrap(s.deleteItem))

	return ratelimit.Middleware(l, writeRateLimitError, logRequests(mux))
}

type healthResponse struct {
	Status string `json:"status"`
	Items  int    `json:"items"`
}

func (s *Server) health(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	return &healthResponse{Status: "ok", Items: s.items.Len()}, nil
}

func (s *Server) listItems(ctx context.Context, _ *struct{}) (*[]*grid.Record, error) {
	out := make([]*grid.Record, 0, s.items.Len())
	for it := range s.items.All() {
		out = append(out, it.Record())
	}
	return &out, nil
}

func (s *Server) getItem(ctx context.Context, req *itemRequest) (*grid.Record, error) {
	it, err := s.items.Get(req.ID)
	if err != nil {
		return nil, tableError(err)
	}
	return it.Record(), nil
}

func (s *Server) createItem(ctx context.Context, req *itemRequest) (*createdRecord, error) {
	fields, err := req.fields(0)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it := &Item{ID: s.items.MaxID() + 1, Fields: fields}
	if err := s.items.Append(it); err != nil {
		return nil, Internal("failed to store item", err)
	}
	slog.InfoContext(ctx, "Created item", "id", it.ID)
	return &createdRecord{Record: it.Record()}, nil
}

func (s *Server) updateItem(ctx context.Context, req *itemRequest) (*grid.Record, error) {
	fields, err := req.fields(req.ID)
	if err != nil {
		return nil, err
	}
	it, err := s.items.Modify(req.ID, func(it *Item) (*Item, error) {
		it.Fields = fields
		return it, nil
	})
	if err != nil {
		return nil, tableError(err)
	}
	slog.InfoContext(ctx, "Updated item", "id", it.ID)
	return it.Record(), nil
}

func (s *Server) deleteItem(ctx context.Context, req *itemRequest) (*struct{}, error) {
	if err := s.items.Delete(req.ID); err != nil {
		return nil, tableError(err)
	}
	slog.InfoContext(ctx, "Deleted item", "id", req.ID)
	return &struct{}{}, nil
}

func tableError(err error) error {
	if errors.Is(err, jsonldb.ErrNotFound) {
		return NotFound("item")
	}
	return Internal("storage error", err)
}

// logRequests logs each request at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.DebugContext(r.Context(), "Request", "method", r.Method, "path", r.URL.Path, "ip", ratelimit.ClientIP(r, nil))
		next.ServeHTTP(w, r)
	})
}
