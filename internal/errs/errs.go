// Package errs defines the failure taxonomy shared by the path executor,
// the workflow engine and the background job worker.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure. Kinds are stable strings because they travel in
// JSON job results.
type Kind string

const (
	KindConfiguration Kind = "configuration_error"
	KindRouting       Kind = "routing_error"
	KindTransport     Kind = "transport_error"
	KindFormat        Kind = "invalid_output_format"
	KindWorkerCrash   Kind = "worker_crash"
	KindValidation    Kind = "validation_error"
	KindTimeout       Kind = "timeout"
	KindUnknown       Kind = "unknown"
)

var (
	// ErrNotFound is returned by stores when a key is absent or expired.
	ErrNotFound = errors.New("not found")

	// ErrProviderNotRegistered indicates no provider is registered under an id.
	ErrProviderNotRegistered = errors.New("provider not registered")

	// ErrAssistantNotFound indicates a managed assistant id does not exist.
	ErrAssistantNotFound = errors.New("assistant not found")

	// ErrVendorUnsupported indicates no vendor recognises an assistant id.
	ErrVendorUnsupported = errors.New("no vendor supports assistant id")
)

// Error carries enough context to name the hop, backend or step that failed.
type Error struct {
	Kind      Kind
	Op        string // operation, e.g. "execute_step", "validate_path"
	Hop       string // "en_to_fr" when the failure belongs to one hop
	BackendID string
	Step      string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	var parts []string
	if e.Hop != "" {
		parts = append(parts, "hop "+e.Hop)
	}
	if e.Step != "" {
		parts = append(parts, "step "+e.Step)
	}
	if e.BackendID != "" {
		parts = append(parts, "backend "+e.BackendID)
	}

	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	if len(parts) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %s", strings.Join(parts, ", "), msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches both the wrapped cause and another *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && t.Op == "" && t.Message == ""
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithHop returns a copy of e scoped to a hop and backend.
func (e *Error) WithHop(hop, backendID string) *Error {
	c := *e
	c.Hop = hop
	if backendID != "" {
		c.BackendID = backendID
	}
	return &c
}

// WithStep returns a copy of e scoped to a workflow step.
func (e *Error) WithStep(step string) *Error {
	c := *e
	c.Step = step
	return &c
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether err may be retried once at the transport layer.
func Retryable(err error) bool {
	return KindOf(err) == KindTransport
}

// Transport is shorthand for a transport failure wrapping err.
func Transport(err error, format string, args ...any) *Error {
	return Wrap(KindTransport, err, format, args...)
}

// Format is shorthand for an invalid_output_format failure.
func Format(format string, args ...any) *Error {
	return New(KindFormat, format, args...)
}

// Config is shorthand for a configuration failure.
func Config(format string, args ...any) *Error {
	return New(KindConfiguration, format, args...)
}

// AtHop scopes err to a hop and backend. Errors without a kind are
// classified as unknown.
func AtHop(err error, hop, backendID string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e.WithHop(hop, backendID)
	}
	return (&Error{Kind: KindUnknown, Err: err}).WithHop(hop, backendID)
}

// AtStep scopes err to a workflow step.
func AtStep(err error, step string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e.WithStep(step)
	}
	return (&Error{Kind: KindUnknown, Err: err}).WithStep(step)
}
