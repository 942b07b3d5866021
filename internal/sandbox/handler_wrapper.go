package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/maruel/datagrid/internal/ratelimit"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// statusCoder is implemented by responses answered with a status other than
// 200.
type statusCoder interface {
	StatusCode() int
}

// Wrap wraps a handler function to work as an http.Handler.
//
// The request body, if any, is decoded into In. Fields of In tagged with
// `path:"name"` are populated from the route pattern. The returned *Out is
// encoded as JSON; errors are answered with the error envelope.
func Wrap[In any, Out any](fn func(context.Context, *In) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err2 := r.Body.Close(); err == nil {
			err = err2
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to read request body", "err", err)
			writeError(ctx, w, BadRequest("failed to read request body"))
			return
		}
		if len(body) > maxBody {
			writeError(ctx, w, BadRequest("request body too large"))
			return
		}
		input := new(In)
		if len(bytes.TrimSpace(body)) > 0 {
			d := json.NewDecoder(bytes.NewReader(body))
			d.DisallowUnknownFields()
			if err := d.Decode(input); err != nil {
				slog.DebugContext(ctx, "Failed to decode request body", "err", err)
				writeError(ctx, w, BadRequest("invalid request body").Wrap(err))
				return
			}
		}
		if err := populatePathParams(r, input); err != nil {
			writeError(ctx, w, BadRequest(err.Error()))
			return
		}

		output, err := fn(ctx, input)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		status := http.StatusOK
		if sc, ok := any(output).(statusCoder); ok {
			status = sc.StatusCode()
		}
		writeJSON(ctx, w, status, output)
	})
}

// populatePathParams sets the string and integer fields of input tagged with
// `path:"name"` from the request's path values.
func populatePathParams(r *http.Request, input any) error {
	elem := reflect.ValueOf(input).Elem()
	if elem.Kind() != reflect.Struct {
		return nil
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" {
			continue
		}
		v := r.PathValue(tag)
		if v == "" {
			continue
		}
		//nolint:exhaustive // Only string and int64 path params are used.
		switch field.Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(v)
		case reflect.Int64:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s %q", tag, v)
			}
			elem.Field(i).SetInt(n)
		default:
		}
	}
	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// writeError answers with the error envelope. Errors that are not an
// *APIError are reported as internal errors.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = Internal("internal error", err)
	}
	if apiErr.StatusCode() >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", apiErr.StatusCode(), "code", apiErr.Code())
	} else {
		slog.DebugContext(ctx, "Handler error", "err", err, "statusCode", apiErr.StatusCode(), "code", apiErr.Code())
	}
	resp := map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code(),
			"message": apiErr.Error(),
		},
	}
	if d := apiErr.Details(); len(d) > 0 {
		resp["details"] = d
	}
	writeJSON(ctx, w, apiErr.StatusCode(), resp)
}

// writeRateLimitError answers a request rejected by the limiter.
func writeRateLimitError(w http.ResponseWriter, r *http.Request, result ratelimit.Result) {
	writeError(r.Context(), w, RateLimited(int(result.RetryAfter.Seconds())))
}
