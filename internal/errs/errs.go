// Package errs defines the failure taxonomy shared by the booking and seating
// engines and the request-handling layer.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure by who caused it and whether a retry can help.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindFlightNotBookable
	KindTicketNotFound
	KindNoSeatAvailable
	KindConstraintViolation
	KindTransient
)

var kindNames = map[Kind]string{
	KindInternal:            "InternalFailure",
	KindValidation:          "ValidationError",
	KindNotFound:            "NotFound",
	KindFlightNotBookable:   "FlightNotBookable",
	KindTicketNotFound:      "TicketNotFound",
	KindNoSeatAvailable:     "NoSeatAvailable",
	KindConstraintViolation: "ConstraintViolation",
	KindTransient:           "TransientStoreFailure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String. Unknown names map to KindInternal.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindInternal
}

// Error is a classified failure. Message is safe to show to the caller; Err
// keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind, so errors.Is(err, errs.ErrNoSeatAvailable)
// holds for any NoSeatAvailable failure regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrInternal            = &Error{Kind: KindInternal}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrFlightNotBookable   = &Error{Kind: KindFlightNotBookable}
	ErrTicketNotFound      = &Error{Kind: KindTicketNotFound}
	ErrNoSeatAvailable     = &Error{Kind: KindNoSeatAvailable}
	ErrConstraintViolation = &Error{Kind: KindConstraintViolation}
	ErrTransient           = &Error{Kind: KindTransient}
)

// New builds a classified error.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Ensure returns err as a classified error, wrapping unclassified causes as
// internal failures.
func Ensure(message string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Internal(message, err)
}

// ClientAttributable reports whether the caller caused the failure.
func ClientAttributable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindFlightNotBookable, KindTicketNotFound,
		KindNoSeatAvailable, KindConstraintViolation:
		return true
	}
	return false
}

// Retryable reports whether the same request may succeed when sent again
// unchanged.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindInternal:
		return true
	}
	return false
}

// Diagnostic is the caller-facing text for err. Constraint violations keep only
// the first line of the store's message. Server-side failures never expose
// their cause.
func Diagnostic(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Kind {
	case KindConstraintViolation:
		msg := e.Message
		if msg == "" && e.Err != nil {
			msg = e.Err.Error()
		}
		first, _, _ := strings.Cut(msg, "\n")
		return strings.TrimSpace(first)
	case KindTransient:
		return "service temporarily unavailable, please retry"
	case KindInternal:
		return "internal error"
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}
