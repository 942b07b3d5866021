package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when an id is absent from the collection.
	ErrNotFound = errors.New("record not found")
	// ErrNoActiveSession is returned by draft operations without an open edit session.
	ErrNoActiveSession = errors.New("no active edit session")
	// ErrSessionClosed is returned by CommitEdit when the session was cancelled
	// or superseded while the update was in flight. The response is discarded.
	ErrSessionClosed = errors.New("edit session closed while saving")
	// ErrCommitInProgress is returned by CommitEdit while a save of the same
	// session is in flight.
	ErrCommitInProgress = errors.New("save already in progress")
	// ErrSuperseded is returned by Load when a later Load started, or a
	// mutation was confirmed, before the response arrived. The response is
	// discarded.
	ErrSuperseded = errors.New("load superseded")
	// ErrUnknownColumn is returned by SetSort for a field that is not a
	// sortable column.
	ErrUnknownColumn = errors.New("unknown or unsortable column")
	// ErrDuplicateID is returned when the remote answers with an id already
	// present in the collection.
	ErrDuplicateID = errors.New("duplicate record id")
)

// ValidationError lists the editable fields left empty in a draft.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}
