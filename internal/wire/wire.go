// Package wire defines the JSON shapes shared by the server and the
// dispatcher transports.
package wire

import (
	"fmt"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/shared"
)

// Error codes carried in error bodies and websocket acks.
const (
	CodeBadRequest    = "bad_request"
	CodeUnauthorized  = "unauthorized"
	CodeReducerFailed = "reducer_failed"
	CodeReducerPanic  = "reducer_panic"
	CodeBatchFailed   = "batch_failed"
	CodeInternal      = "internal_error"
	CodeUnavailable   = "unavailable"
)

// APIError is a structured error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Index   *int   `json:"index,omitempty"` // Failing position within a batch
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse wraps an APIError for HTTP bodies.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// BatchRequest is the body of POST /v1/events/batch.
type BatchRequest struct {
	Events []ir.Event `json:"events"`
}

// DigestResponse is the body of GET /v1/state/digest.
type DigestResponse struct {
	Digest     string   `json:"digest"`
	Containers []string `json:"containers"`
	Seq        int64    `json:"seq"`
}

// Frame is one websocket message.
//
// Client to server: ID and Event. Server to client: an ack (ID, optional
// Error) or a change notification (Changes, no ID).
type Frame struct {
	ID      int64           `json:"id,omitempty"`
	Event   *ir.Event       `json:"event,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
	Changes []shared.Change `json:"changes,omitempty"`
}

// IsAck reports whether the frame acknowledges a client frame.
func (f Frame) IsAck() bool {
	return f.ID != 0 && f.Event == nil
}
