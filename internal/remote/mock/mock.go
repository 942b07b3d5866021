// Package mock provides an in-memory remote.Collection for tests and offline
// use of the grid.
package mock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/maruel/datagrid/internal/grid"
	"github.com/maruel/datagrid/internal/remote"
)

type hold struct {
	started chan struct{}
	release chan struct{}
}

// Collection implements remote.Collection over an in-memory slice.
//
// Failures can be injected per operation with FailNext and calls can be held
// in flight with Hold to exercise interleavings.
type Collection struct {
	mu      sync.Mutex
	records []*grid.Record
	fail    map[remote.Op][]error
	holds   map[remote.Op][]*hold
	calls   map[remote.Op]int
}

var _ remote.Collection = (*Collection)(nil)

// New creates a collection containing clones of records.
func New(records ...*grid.Record) *Collection {
	c := &Collection{
		fail:  make(map[remote.Op][]error),
		holds: make(map[remote.Op][]*hold),
		calls: make(map[remote.Op]int),
	}
	for _, r := range records {
		c.records = append(c.records, r.Clone())
	}
	return c
}

// FailNext makes the next call of op fail with err. A nil err fails with a
// 500 NetworkError. Calls queue up.
func (c *Collection) FailNext(op remote.Op, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		err = &remote.NetworkError{Op: op, StatusCode: http.StatusInternalServerError, Message: "injected failure"}
	}
	c.fail[op] = append(c.fail[op], err)
}

// Hold makes the next call of op block after it has computed its result and
// before it returns. started is closed once the call is blocked; release lets
// it return.
func (c *Collection) Hold(op remote.Op) (started <-chan struct{}, release func()) {
	h := &hold{started: make(chan struct{}), release: make(chan struct{})}
	c.mu.Lock()
	c.holds[op] = append(c.holds[op], h)
	c.mu.Unlock()
	var once sync.Once
	return h.started, func() { once.Do(func() { close(h.release) }) }
}

// Calls returns how many times op was invoked.
func (c *Collection) Calls(op remote.Op) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Records returns clones of the current records.
func (c *Collection) Records() []*grid.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*grid.Record, len(c.records))
	for i, r := range c.records {
		out[i] = r.Clone()
	}
	return out
}

// Set replaces the records.
func (c *Collection) Set(records ...*grid.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = c.records[:0]
	for _, r := range records {
		c.records = append(c.records, r.Clone())
	}
}

// FetchAll implements remote.Collection.
func (c *Collection) FetchAll(ctx context.Context) ([]*grid.Record, error) {
	out, err := func() ([]*grid.Record, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.begin(remote.OpFetch); err != nil {
			return nil, err
		}
		out := make([]*grid.Record, len(c.records))
		for i, r := range c.records {
			out[i] = r.Clone()
			out[i].DisplayIndex = 0
		}
		return out, nil
	}()
	return out, c.wait(ctx, remote.OpFetch, err)
}

// Create implements remote.Collection.
func (c *Collection) Create(ctx context.Context, fields grid.Fields) (*grid.Record, error) {
	r, err := func() (*grid.Record, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.begin(remote.OpCreate); err != nil {
			return nil, err
		}
		var next int64
		for _, r := range c.records {
			next = max(next, r.ID)
		}
		r := &grid.Record{ID: next + 1, Fields: fields.Clone()}
		delete(r.Fields, "id")
		c.records = append(c.records, r)
		return r.Clone(), nil
	}()
	return r, c.wait(ctx, remote.OpCreate, err)
}

// Update implements remote.Collection.
func (c *Collection) Update(ctx context.Context, id int64, fields grid.Fields) (*grid.Record, error) {
	r, err := func() (*grid.Record, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.begin(remote.OpUpdate); err != nil {
			return nil, err
		}
		i := c.index(id)
		if i < 0 {
			return nil, notFound(remote.OpUpdate, id)
		}
		c.records[i].Fields = fields.Clone()
		delete(c.records[i].Fields, "id")
		return c.records[i].Clone(), nil
	}()
	return r, c.wait(ctx, remote.OpUpdate, err)
}

// Delete implements remote.Collection.
func (c *Collection) Delete(ctx context.Context, id int64) (int64, error) {
	err := func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.begin(remote.OpDelete); err != nil {
			return err
		}
		i := c.index(id)
		if i < 0 {
			return notFound(remote.OpDelete, id)
		}
		c.records = slices.Delete(c.records, i, i+1)
		return nil
	}()
	if err := c.wait(ctx, remote.OpDelete, err); err != nil {
		return 0, err
	}
	return id, nil
}

// begin counts the call and pops an injected failure. Must hold c.mu.
func (c *Collection) begin(op remote.Op) error {
	c.calls[op]++
	if q := c.fail[op]; len(q) > 0 {
		c.fail[op] = q[1:]
		return q[0]
	}
	return nil
}

// wait blocks on a pending Hold for op, then returns err.
func (c *Collection) wait(ctx context.Context, op remote.Op, err error) error {
	c.mu.Lock()
	var h *hold
	if q := c.holds[op]; len(q) > 0 {
		h = q[0]
		c.holds[op] = q[1:]
	}
	c.mu.Unlock()
	if h == nil {
		return err
	}
	close(h.started)
	select {
	case <-h.release:
		return err
	case <-ctx.Done():
		return &remote.NetworkError{Op: op, Err: ctx.Err()}
	}
}

func (c *Collection) index(id int64) int {
	return slices.IndexFunc(c.records, func(r *grid.Record) bool { return r.ID == id })
}

func notFound(op remote.Op, id int64) error {
	return &remote.NetworkError{
		Op:         op,
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("item %d not found", id),
		Err:        errors.New("not found"),
	}
}
