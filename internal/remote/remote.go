// Package remote implements the client side of a REST collection resource.
//
// A collection exposes GET /items, POST /items, PUT /items/{id} and
// DELETE /items/{id}, each exchanging JSON objects carrying an "id" key next
// to the record fields. Every failure is reported as a *NetworkError; nothing
// panics across the package boundary and no request is retried.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/maruel/datagrid/internal/grid"
)

// Collection is the contract between the record store and the remote
// resource. Implementations hold no state beyond the lifetime of a request.
type Collection interface {
	// FetchAll returns every record in response order.
	FetchAll(ctx context.Context) ([]*grid.Record, error)
	// Create adds a record and returns it with its server-assigned id.
	Create(ctx context.Context, fields grid.Fields) (*grid.Record, error)
	// Update replaces the fields of a record and returns the server's copy.
	Update(ctx context.Context, id int64, fields grid.Fields) (*grid.Record, error)
	// Delete removes a record and returns its id.
	Delete(ctx context.Context, id int64) (int64, error)
}

// Op names a Collection operation in errors and logs.
type Op string

const (
	// OpFetch is FetchAll.
	OpFetch Op = "fetch"
	// OpCreate is Create.
	OpCreate Op = "create"
	// OpUpdate is Update.
	OpUpdate Op = "update"
	// OpDelete is Delete.
	OpDelete Op = "delete"
)

// NetworkError reports a transport failure or an error answered by the
// remote resource.
type NetworkError struct {
	Op     Op
	Method string
	URL    string
	// StatusCode is 0 when no response was received.
	StatusCode int
	// Body is the raw error payload returned by the server, if any.
	Body []byte
	// Message is the server-reported error message, when one could be decoded.
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := string(e.Op)
	if e.Method != "" {
		prefix = fmt.Sprintf("%s %s %s", e.Op, e.Method, e.URL)
	}
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", prefix, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", prefix, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return prefix + ": failed"
	}
}

// Unwrap returns the underlying transport error, if any.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is, or wraps, a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
