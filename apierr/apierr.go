// Package apierr maps the service's internal error conditions onto the
// external HTTP status codes and JSON error bodies every aggregator
// endpoint returns, so a caller integrating against one endpoint sees the
// same shape from every other.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"frostcustody/logs"
)

// Kind is a stable machine-readable error identifier, distinct from the
// HTTP status it maps to — a client should branch on Kind, not status,
// since a Kind's status is not fixed: NewStatus pairs a Kind with another
// status (Write answers an unclassified failure with 500 under
// KindResource, whose own status is 423). The five
// taxonomy buckets each carry a different retry policy for the caller:
// Input is never retryable as-is, State is caller-fixable (wait or
// resubmit), Protocol means a peer failed verification, Resource means
// the node itself is unusable right now, and Quorum means the
// aggregator already tried an alternate node and still came up short.
type Kind string

const (
	KindInput    Kind = "input"
	KindState    Kind = "state"
	KindProtocol Kind = "protocol"
	KindResource Kind = "resource"
	KindQuorum   Kind = "quorum"
)

var kindStatus = map[Kind]int{
	KindInput:    http.StatusBadRequest,
	KindState:    http.StatusConflict,
	KindProtocol: http.StatusUnprocessableEntity,
	KindResource: http.StatusLocked,
	KindQuorum:   http.StatusServiceUnavailable,
}

// Error is the typed error every aggregator handler should return (or
// wrap) once it knows which external kind applies; handlers that don't
// construct one explicitly get KindResource/500 via Write's fallback.
type Error struct {
	Kind   Kind
	Detail string
	status int
	cause  error
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, cause: cause}
}

// NewStatus builds an Error with an HTTP status that doesn't follow
// from Kind alone — used for the 500/unexpected-failure case, which the
// taxonomy deliberately doesn't assign its own Kind.
func NewStatus(kind Kind, status int, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, status: status}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Detail + ": " + e.cause.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Status() int {
	if e.status != 0 {
		return e.status
	}
	if status, ok := kindStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type body struct {
	ErrorKind Kind   `json:"error_kind"`
	Detail    string `json:"detail"`
}

// Write renders err as the service's standard JSON error body. A plain
// (non-*Error) err is treated as an unclassified internal failure and its
// detail is not leaked to the client — only logged by the caller.
func Write(w http.ResponseWriter, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = NewStatus(KindResource, http.StatusInternalServerError, "internal error")
	}
	WriteStatus(w, apiErr.Status(), apiErr.Kind, apiErr.Detail)
}

// KindForStatus maps a raw HTTP status back onto its taxonomy Kind, for
// call sites (the node's handlers) that already decided a status code
// directly rather than constructing an *Error.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindInput
	case http.StatusConflict:
		return KindState
	case http.StatusUnprocessableEntity:
		return KindProtocol
	case http.StatusLocked:
		return KindResource
	case http.StatusServiceUnavailable:
		return KindQuorum
	default:
		return KindResource
	}
}

// WriteStatus writes the standard {error_kind, detail} body for a status
// code and message chosen directly by the caller.
func WriteStatus(w http.ResponseWriter, status int, kind Kind, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body{ErrorKind: kind, Detail: detail}); err != nil {
		logs.Error("write error response: %v", err)
	}
}
