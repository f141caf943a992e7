package capmux

import (
	"errors"
	"fmt"
	"time"
)

// ErrSolutionNotReady is the retryable signal a solution fetch returns while
// the service is still working on the task. The polling loop consumes it;
// callers only see it when driving the task lifecycle by hand.
var ErrSolutionNotReady = errors.New("solution not ready yet")

// ErrNotSolved is returned when a SolvedCaptcha is built from a task whose
// result slot is still empty.
var ErrNotSolved = errors.New("captcha is not solved yet")

// =============================================================================
// Service errors
// =============================================================================

// ErrorKind classifies a service-reported failure. Every raw error code a
// service can return maps to exactly one kind; codes we don't recognize fall
// through to KindService.
type ErrorKind int

const (
	// KindService is the generic catch-all for unrecognized service errors.
	KindService ErrorKind = iota
	// KindAccessDenied: wrong/revoked API key, banned or disallowed IP.
	KindAccessDenied
	// KindLowBalance: account balance too low to accept the task.
	KindLowBalance
	// KindServiceTooBusy: no worker slots available right now.
	KindServiceTooBusy
	// KindTooManyRequests: request rate limit exceeded.
	KindTooManyRequests
	// KindMalformedRequest: the service rejected the request as structurally
	// invalid. Treated as a library bug signal, never retried.
	KindMalformedRequest
	// KindBadInput: caller-supplied CAPTCHA parameters were rejected.
	KindBadInput
	// KindUnsolvable: the service tried and failed. A legitimate terminal
	// outcome, not a bug.
	KindUnsolvable
	// KindProxy: the caller-supplied proxy was rejected or failed.
	KindProxy
)

var errorKindNames = map[ErrorKind]string{
	KindService:          "service error",
	KindAccessDenied:     "access denied",
	KindLowBalance:       "low balance",
	KindServiceTooBusy:   "service too busy",
	KindTooManyRequests:  "too many requests",
	KindMalformedRequest: "malformed request",
	KindBadInput:         "bad input data",
	KindUnsolvable:       "unable to solve",
	KindProxy:            "proxy error",
}

func (k ErrorKind) String() string { return errorKindNames[k] }

// APIError is a failure reported by a solving service, normalized into the
// fixed taxonomy. Code keeps the raw service vocabulary for logging; callers
// should branch on Kind only.
type APIError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func newAPIError(kind ErrorKind, code, message string) *APIError {
	return &APIError{Kind: kind, Code: code, Message: message}
}

// IsErrorKind reports whether err is an APIError of the given kind.
func IsErrorKind(err error, kind ErrorKind) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == kind
}

// =============================================================================
// Transport errors
// =============================================================================

// NetworkError wraps connection, timeout and HTTP-status failures from the
// transport. Protocol-level errors never use it.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError checks whether err originated at the transport layer.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// =============================================================================
// Capability and timeout errors
// =============================================================================

// UnsupportedError is returned when the chosen service has no handler for the
// requested CAPTCHA kind or operation. It is distinguishable from anything the
// service itself reports.
type UnsupportedError struct {
	Service ServiceName
	Op      string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported by %s", e.Op, e.Service)
}

// IsUnsupported reports whether err is a capability error.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

// SolutionTimeoutError means the overall solve timeout elapsed before the
// service produced a result. The task may still resolve later on the service
// side; the library gives up.
type SolutionTimeoutError struct {
	Timeout time.Duration
}

func (e *SolutionTimeoutError) Error() string {
	return fmt.Sprintf("no solution received within %s", e.Timeout)
}

// IsTimeout reports whether err is a solve-wait timeout.
func IsTimeout(err error) bool {
	var te *SolutionTimeoutError
	return errors.As(err, &te)
}

// badInputError builds the local pre-network variant of KindBadInput, used by
// descriptor validation so obviously-bad input never reaches the wire.
func badInputError(format string, args ...any) *APIError {
	return newAPIError(KindBadInput, "BAD_INPUT", fmt.Sprintf(format, args...))
}
