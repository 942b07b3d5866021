package sandbox

import (
	"context"
	"log/slog"

	"github.com/maruel/datagrid/internal/grid"
)

var samplePosts = []grid.Fields{
	{"title": "sunt aut facere repellat", "body": "quia et suscipit recusandae consequuntur", "age": 32.0},
	{"title": "qui est esse", "body": "est rerum tempore vitae sequi sint", "age": 41.0},
	{"title": "ea molestias quasi", "body": "et iusto sed quo iure", "age": 19.0},
	{"title": "eum et est occaecati", "body": "ullam et saepe reiciendis voluptatem", "age": 27.0},
	{"title": "nesciunt quas odio", "body": "repudiandae veniam quaerat sunt sed", "age": 55.0},
	{"title": "dolorem eum magni", "body": "ut aspernatur corporis harum nihil", "age": 23.0},
	{"title": "magnam facilis autem", "body": "dolore placeat quibusdam ea quo vitae", "age": 38.0},
	{"title": "dolorem dolore est ipsam", "body": "dignissimos aperiam dolorem qui eum", "age": 61.0},
	{"title": "nesciunt iure omnis", "body": "consectetur animi nesciunt iure dolore", "age": 45.0},
	{"title": "optio molestias id", "body": "quo et expedita modi cum officia vel", "age": 30.0},
}

// SamplePosts returns the records Seed stores, numbered from 1.
func SamplePosts() []*grid.Record {
	out := make([]*grid.Record, len(samplePosts))
	for i, f := range samplePosts {
		out[i] = &grid.Record{ID: int64(i + 1), Fields: f.Clone()}
	}
	return out
}

// Seed stores the sample posts if the table is empty. It returns how many
// items were added.
func (s *Server) Seed(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items.Len() != 0 {
		return 0, nil
	}
	records := SamplePosts()
	items := make([]*Item, len(records))
	for i, r := range records {
		items[i] = &Item{ID: r.ID, Fields: r.Fields}
	}
	if err := s.items.Replace(items); err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Seeded items", "count", len(items))
	return len(items), nil
}
