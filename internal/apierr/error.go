package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 64 * 1024

// Reason classifies a failure.
type Reason int

const (
	// ReasonUnknown is reported for errors that are not an *Error.
	ReasonUnknown Reason = iota

	// ReasonConfig is a missing credential or endpoint. No request was sent.
	ReasonConfig

	// ReasonTransport is a connection failure or timeout before a response arrived.
	ReasonTransport

	// ReasonUpstream is a non-success HTTP status returned by the API.
	ReasonUpstream

	// ReasonMalformed is a response body that could not be decoded.
	ReasonMalformed

	// ReasonCanceled means the caller cancelled the operation.
	ReasonCanceled

	// ReasonInvalidInput is user input rejected before any request was built.
	ReasonInvalidInput
)

// String returns the reason code used in logs and JSON output.
func (r Reason) String() string {
	switch r {
	case ReasonConfig:
		return "config"
	case ReasonTransport:
		return "transport"
	case ReasonUpstream:
		return "upstream"
	case ReasonMalformed:
		return "malformed"
	case ReasonCanceled:
		return "canceled"
	case ReasonInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is a tagged page failure.
type Error struct {
	// Reason is the failure class.
	Reason Reason

	// Op names the page operation, e.g. "vision.annotate".
	Op string

	// Status is the HTTP status for ReasonUpstream, zero otherwise.
	Status int

	// Message is the user-facing description. For upstream failures it is
	// the API's own error message when one could be parsed.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	switch {
	case e.Message != "" && e.Err != nil:
		sb.WriteString(e.Message)
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	case e.Message != "":
		sb.WriteString(e.Message)
	case e.Err != nil:
		sb.WriteString(e.Err.Error())
	default:
		sb.WriteString(e.Reason.String() + " error")
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf returns the reason of the first *Error in err's chain.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonUnknown
}

// IsTransient reports whether err is a transport-level failure that a
// retry may recover from.
func IsTransient(err error) bool {
	return ReasonOf(err) == ReasonTransport
}

// StatusOf returns the upstream HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// Config returns a configuration failure.
func Config(op string, err error) *Error {
	return &Error{Reason: ReasonConfig, Op: op, Err: err}
}

// InvalidInput returns an input validation failure.
func InvalidInput(op string, err error) *Error {
	return &Error{Reason: ReasonInvalidInput, Op: op, Err: err}
}

// Malformed returns a decoding failure for a response body.
func Malformed(op string, err error) *Error {
	return &Error{Reason: ReasonMalformed, Op: op, Message: "unexpected response format", Err: err}
}

// FromTransport classifies an error returned by http.Client.Do.
// Caller cancellation becomes ReasonCanceled; everything else, including
// client and context deadlines, is ReasonTransport.
func FromTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Reason: ReasonCanceled, Op: op, Message: "request cancelled", Err: err}
	}
	msg := "connection failed"
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = "request timed out"
	}
	return &Error{Reason: ReasonTransport, Op: op, Message: msg, Err: err}
}

// CheckResponse returns nil for 2xx responses. For any other status it
// drains the body and returns a ReasonUpstream error built by FromHTTP.
// The body is not closed.
func CheckResponse(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // partial body is still useful
	return FromHTTP(op, resp.StatusCode, body)
}

// FromHTTP builds an upstream failure. When body carries an error message
// in one of the shapes used by Google, Azure and OpenAI APIs, that message
// is used verbatim; otherwise the message is "Error <status>: <body>".
func FromHTTP(op string, status int, body []byte) *Error {
	msg := upstreamMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("Error %d: %s", status, strings.TrimSpace(string(body)))
	}
	return &Error{Reason: ReasonUpstream, Op: op, Status: status, Message: msg}
}

// upstreamMessage extracts {"error":{"message":...}}, {"error":"..."} or
// {"message":"..."} from body.
func upstreamMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Message != "" {
			return detail.Message
		}
		var text string
		if err := json.Unmarshal(envelope.Error, &text); err == nil && text != "" {
			return text
		}
	}
	return envelope.Message
}
