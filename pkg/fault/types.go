package fault

import (
	"net/http"
	"time"
)

// ErrorType names the kind of failure a request asks to simulate.
// Any string is accepted; only the declared constants carry a distinct message.
type ErrorType string

const (
	// ErrorTypeInternal simulates a generic server-side failure
	ErrorTypeInternal ErrorType = "INTERNAL_ERROR"
	// ErrorTypeValidation simulates rejected input
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	// ErrorTypeTimeout simulates an operation that ran out of time
	ErrorTypeTimeout ErrorType = "TIMEOUT_ERROR"
	// ErrorTypeDependency simulates an unreachable downstream service
	ErrorTypeDependency ErrorType = "DEPENDENCY_ERROR"
)

// Simulated failure messages, keyed by error type.
const (
	MessageInternal   = "Internal server error occurred"
	MessageValidation = "Validation failed: Invalid input parameters"
	MessageTimeout    = "Operation timed out"
	MessageDependency = "Failed to reach dependent service"

	// MessageSuccess is returned when the roll does not produce a failure.
	MessageSuccess = "Request processed successfully"
)

// KnownErrorTypes lists the error types with a dedicated failure message.
var KnownErrorTypes = []ErrorType{
	ErrorTypeInternal,
	ErrorTypeValidation,
	ErrorTypeTimeout,
	ErrorTypeDependency,
}

// Known reports whether t is one of the declared error types.
func (t ErrorType) Known() bool {
	switch t {
	case ErrorTypeInternal, ErrorTypeValidation, ErrorTypeTimeout, ErrorTypeDependency:
		return true
	default:
		return false
	}
}

// Normalize maps unrecognized types to ErrorTypeInternal.
func (t ErrorType) Normalize() ErrorType {
	if t.Known() {
		return t
	}
	return ErrorTypeInternal
}

// Message returns the simulated failure message for t.
func (t ErrorType) Message() string {
	switch t {
	case ErrorTypeValidation:
		return MessageValidation
	case ErrorTypeTimeout:
		return MessageTimeout
	case ErrorTypeDependency:
		return MessageDependency
	default:
		return MessageInternal
	}
}

// Kind tags an Outcome.
type Kind int

const (
	// KindSuccess means the request is answered normally
	KindSuccess Kind = iota
	// KindSimulatedFailure means a failure of the requested type is produced
	KindSimulatedFailure
)

// String returns the lowercase label used in logs and metrics.
func (k Kind) String() string {
	if k == KindSimulatedFailure {
		return "failure"
	}
	return "success"
}

// Outcome is the result of a single decision. It exists only for the
// duration of one request.
type Outcome struct {
	Kind Kind
	// Type is the normalized error type. Empty on success.
	Type ErrorType
	// Message is the failure message. Empty on success.
	Message string
}

// Failed reports whether the outcome is a simulated failure.
func (o Outcome) Failed() bool {
	return o.Kind == KindSimulatedFailure
}

// Err returns the outcome as an error, or nil on success.
func (o Outcome) Err() error {
	if !o.Failed() {
		return nil
	}
	return &SimulatedError{Type: o.Type, Message: o.Message}
}

// StatusCode returns the HTTP status for the outcome.
func (o Outcome) StatusCode() int {
	if o.Failed() {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// SimulatedError is the error recorded on the span when a failure is simulated.
type SimulatedError struct {
	Type    ErrorType
	Message string
}

func (e *SimulatedError) Error() string {
	return e.Message
}

// TimestampFormat renders timestamps as ISO-8601 UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Payload is the JSON body returned for every request.
type Payload struct {
	Message   string `json:"message"`
	ErrorType string `json:"errorType"`
	Timestamp string `json:"timestamp"`
}

// Response is what the injector hands back to its caller.
type Response struct {
	StatusCode int
	Payload    Payload
	Outcome    Outcome
	// Latency is the delay that was actually injected.
	Latency time.Duration
}
