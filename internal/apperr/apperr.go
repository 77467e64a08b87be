package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	MissingAuthentication      Kind = "MissingAuthentication"
	InvalidControlPayload      Kind = "InvalidControlPayload"
	InvalidCredentialsEncoding Kind = "InvalidCredentialsEncoding"
	UpstreamNetworkError       Kind = "UpstreamNetworkError"
	UpstreamDecodeError        Kind = "UpstreamDecodeError"
	BroadcastChannelFailure    Kind = "BroadcastChannelFailure"
	SharedPollingError         Kind = "SharedPollingError"
	MissingRequiredParameters  Kind = "MissingRequiredParameters"
)

// Status returns the HTTP status used when an error of this kind is the
// response to a request.
func (k Kind) Status() int {
	switch k {
	case MissingAuthentication, InvalidCredentialsEncoding:
		return http.StatusUnauthorized
	case InvalidControlPayload, MissingRequiredParameters:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New creates an error of the given kind with a fixed message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies err under kind. The message is prefixed to err's text.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for this error.
func (e *Error) Status() int { return e.Kind.Status() }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// MarshalJSON renders {"error":{"<Kind>":"<message>"}}.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[Kind]string{
		"error": {e.Kind: e.Error()},
	})
}

// Sentinels for errors.Is classification by kind.
var (
	ErrMissingAuthentication      = &Error{Kind: MissingAuthentication}
	ErrInvalidControlPayload      = &Error{Kind: InvalidControlPayload}
	ErrInvalidCredentialsEncoding = &Error{Kind: InvalidCredentialsEncoding}
	ErrUpstreamNetwork            = &Error{Kind: UpstreamNetworkError}
	ErrUpstreamDecode             = &Error{Kind: UpstreamDecodeError}
	ErrBroadcastChannel           = &Error{Kind: BroadcastChannelFailure}
	ErrSharedPolling              = &Error{Kind: SharedPollingError}
	ErrMissingRequiredParameters  = &Error{Kind: MissingRequiredParameters}
)

// Common fixed-message constructors.

func MissingAuth() *Error {
	return New(MissingAuthentication, "missing authentication cookie")
}

func InvalidPayload() *Error {
	return New(InvalidControlPayload,
		`invalid WebSocket payload; expected JSON control message of the form: {"type":"add|remove|subscribe","symbols":["AAPL","MSFT",...]}`)
}

func MissingParameters(names ...string) *Error {
	return New(MissingRequiredParameters, fmt.Sprintf("missing required query parameters: %v", names))
}

// Shared is an upstream failure captured once per poll cycle and handed, by
// pointer, to every subscriber of that cycle. It is immutable after creation.
type Shared struct {
	err *Error
}

// Share wraps err for broadcast. A nil err yields nil.
func Share(err *Error) *Shared {
	if err == nil {
		return nil
	}
	return &Shared{err: err}
}

// Cause returns the underlying classified error.
func (s *Shared) Cause() *Error { return s.err }

func (s *Shared) Error() string {
	return "shared error in polling: " + s.err.Error()
}

func (s *Shared) Unwrap() error { return s.err }

// Is makes errors.Is(s, ErrSharedPolling) true in addition to matching the
// wrapped kind through Unwrap.
func (s *Shared) Is(target error) bool {
	return target == ErrSharedPolling
}

// AsError converts the shared failure into a SharedPollingError suitable for
// a response. The cause stays reachable through errors.Unwrap.
func (s *Shared) AsError() *Error {
	return Wrap(SharedPollingError, "shared error in polling", s.err)
}

// From classifies an arbitrary error. Errors that are already classified are
// returned as is; a *Shared becomes a SharedPollingError; everything else is
// reported under fallback.
func From(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var shared *Shared
	if errors.As(err, &shared) {
		return shared.AsError()
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(fallback, "", err)
}
