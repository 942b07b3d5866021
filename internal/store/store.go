// Package store holds the client-side authoritative copy of a remote
// collection.
//
// # Synchronization
//
// The Store mirrors remote mutations into local state only after the
// specific request it issued succeeded. It never re-fetches after a mutation
// and never retries.
//
// # Concurrency
//
// Every exported method is safe for concurrent use. The mutex is never held
// across a remote call: each operation snapshots what it needs, releases the
// lock, calls the remote, then re-acquires the lock and validates that its
// response still applies (load generation, mutation count, edit session
// sequence) before mutating. A response that no longer applies is discarded.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/maruel/datagrid/internal/grid"
	"github.com/maruel/datagrid/internal/remote"
)

// session is the single edit session of a Store.
type session struct {
	id         int64
	draft      grid.Fields
	seq        uint64
	committing bool
}

// Store is the record store. Create it with New.
type Store struct {
	remote remote.Collection
	cols   grid.Columns

	mu      sync.Mutex
	records []*grid.Record
	byID    map[int64]*grid.Record
	filter  string
	sort    grid.Sort
	edit    *session
	seq     uint64
	loadGen uint64
	loading int
	lastErr error

	// mutations counts remote-confirmed Add, CommitEdit and Remove calls. A
	// Load whose fetch overlapped one of them is stale.
	mutations uint64
}

// New returns an empty Store backed by c. cols describes the collection; it
// is validated by the caller (see grid.Columns.Validate).
func New(c remote.Collection, cols grid.Columns) *Store {
	return &Store{
		remote: c,
		cols:   slices.Clone(cols),
		byID:   make(map[int64]*grid.Record),
	}
}

// Columns returns the column descriptors.
func (s *Store) Columns() grid.Columns {
	return slices.Clone(s.cols)
}

// Load fetches the remote collection and replaces the local one.
//
// DisplayIndex is assigned by response order starting at 1. Fields absent
// from a record are filled per grid.Columns.FillMissing. On failure the prior
// collection is kept and the failure is recorded for LastError.
//
// The response is discarded with ErrSuperseded when a later Load started, or
// when a mutation was confirmed by the remote while the fetch was in flight.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	mut := s.mutations
	s.loading++
	s.mu.Unlock()

	records, err := s.remote.FetchAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if gen != s.loadGen {
		slog.DebugContext(ctx, "Discarding superseded load", "gen", gen, "current", s.loadGen)
		return ErrSuperseded
	}
	if err != nil {
		s.lastErr = err
		slog.WarnContext(ctx, "Failed to load records", "err", err)
		return err
	}
	if mut != s.mutations {
		slog.DebugContext(ctx, "Discarding load overlapping a mutation", "mutations", s.mutations-mut)
		return ErrSuperseded
	}
	byID := make(map[int64]*grid.Record, len(records))
	list := make([]*grid.Record, 0, len(records))
	for i, r := range records {
		if _, ok := byID[r.ID]; ok {
			err := &remote.NetworkError{Op: remote.OpFetch, Err: fmt.Errorf("%w %d in response", ErrDuplicateID, r.ID)}
			s.lastErr = err
			return err
		}
		c := r.Clone()
		c.DisplayIndex = i + 1
		s.cols.FillMissing(c.Fields)
		byID[c.ID] = c
		list = append(list, c)
	}
	s.records = list
	s.byID = byID
	s.lastErr = nil
	if s.edit != nil {
		if _, ok := byID[s.edit.id]; !ok {
			s.edit = nil
		}
	}
	slog.InfoContext(ctx, "Loaded records", "count", len(list))
	return nil
}

// Loading reports whether a Load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// LastError returns the failure of the most recent remote operation, or nil
// if it succeeded.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Len returns the number of records in the authoritative collection.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns a clone of the record with that id.
func (s *Store) Get(id int64) (*grid.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// BeginEdit opens the edit session on a record, discarding any other session.
func (s *Store) BeginEdit(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.seq++
	s.edit = &session{id: id, draft: r.Fields.Clone(), seq: s.seq}
	return nil
}

// UpdateDraft merges fields into the active draft.
func (s *Store) UpdateDraft(fields grid.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edit == nil {
		return ErrNoActiveSession
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		s.edit.draft[k] = v
	}
	return nil
}

// Session returns the id and a copy of the draft of the open session.
func (s *Store) Session() (int64, grid.Fields, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edit == nil {
		return 0, nil, false
	}
	return s.edit.id, s.edit.draft.Clone(), true
}

// CancelEdit discards the active session. It is a no-op without one.
func (s *Store) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edit = nil
}

// CommitEdit validates the draft and sends it to the remote.
//
// A *ValidationError leaves the session open and nothing is sent. On remote
// failure the session stays open and the collection is unchanged. On success
// the record's fields are replaced by the draft and the session is closed,
// unless the session was cancelled or superseded meanwhile, in which case
// the response is discarded and ErrSessionClosed is returned.
func (s *Store) CommitEdit(ctx context.Context) error {
	s.mu.Lock()
	if s.edit == nil {
		s.mu.Unlock()
		return ErrNoActiveSession
	}
	if s.edit.committing {
		s.mu.Unlock()
		return ErrCommitInProgress
	}
	if missing := s.cols.MissingRequired(s.edit.draft); len(missing) > 0 {
		s.mu.Unlock()
		return &ValidationError{Fields: missing}
	}
	ed := s.edit
	ed.committing = true
	id, seq, draft := ed.id, ed.seq, ed.draft.Clone()
	s.mu.Unlock()

	_, err := s.remote.Update(ctx, id, draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	ed.committing = false
	if s.edit == nil || s.edit.seq != seq {
		slog.DebugContext(ctx, "Discarding update for closed session", "id", id, "err", err)
		if err != nil {
			return err
		}
		return ErrSessionClosed
	}
	if err != nil {
		s.lastErr = err
		slog.WarnContext(ctx, "Failed to update record", "id", id, "err", err)
		return err
	}
	s.lastErr = nil
	s.edit = nil
	s.mutations++
	r, ok := s.byID[id]
	if !ok {
		// Removed by a concurrent Remove or Load; nothing left to update.
		return ErrNotFound
	}
	r.Fields = draft
	slog.InfoContext(ctx, "Updated record", "id", id)
	return nil
}

// Remove deletes a record remotely, then locally once the remote confirmed.
func (s *Store) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	_, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	_, err := s.remote.Delete(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		slog.WarnContext(ctx, "Failed to delete record", "id", id, "err", err)
		return err
	}
	s.lastErr = nil
	s.mutations++
	if _, ok := s.byID[id]; ok {
		delete(s.byID, id)
		s.records = slices.DeleteFunc(s.records, func(r *grid.Record) bool { return r.ID == id })
	}
	if s.edit != nil && s.edit.id == id {
		s.edit = nil
	}
	slog.InfoContext(ctx, "Deleted record", "id", id)
	return nil
}

// Add creates a record remotely and appends it once the remote confirmed.
// Editable fields are required, as for CommitEdit.
func (s *Store) Add(ctx context.Context, fields grid.Fields) (*grid.Record, error) {
	if missing := s.cols.MissingRequired(fields); len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	r, err := s.remote.Create(ctx, fields.Clone())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		slog.WarnContext(ctx, "Failed to create record", "err", err)
		return nil, err
	}
	s.lastErr = nil
	s.mutations++
	if _, ok := s.byID[r.ID]; ok {
		return nil, fmt.Errorf("%w %d", ErrDuplicateID, r.ID)
	}
	c := r.Clone()
	c.DisplayIndex = 1
	for _, e := range s.records {
		c.DisplayIndex = max(c.DisplayIndex, e.DisplayIndex+1)
	}
	s.records = append(s.records, c)
	s.byID[c.ID] = c
	slog.InfoContext(ctx, "Created record", "id", c.ID)
	return c.Clone(), nil
}

// SetFilterText sets the text matched against searchable columns.
func (s *Store) SetFilterText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = text
}

// FilterText returns the current filter text.
func (s *Store) FilterText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetSort sorts the view by field. grid.SortNone restores the filter order.
func (s *Store) SetSort(field string, dir grid.SortDir) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir == grid.SortNone {
		s.sort = grid.Sort{}
		return nil
	}
	if c := s.cols.Lookup(field); c == nil || !c.Sortable {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, field)
	}
	s.sort = grid.Sort{Field: field, Direction: dir}
	return nil
}

// ResetSort clears the sort.
func (s *Store) ResetSort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sort = grid.Sort{}
}

// Sort returns the current sort.
func (s *Store) Sort() grid.Sort {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sort
}

// View computes the filtered then sorted projection of the collection. The
// returned records are clones.
func (s *Store) View() grid.View {
	s.mu.Lock()
	records := make([]*grid.Record, len(s.records))
	for i, r := range s.records {
		records[i] = r.Clone()
	}
	cols, text, srt := s.cols, s.filter, s.sort
	s.mu.Unlock()
	return grid.Query(records, cols, text, srt)
}
