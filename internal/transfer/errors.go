package transfer

import (
	"errors"

	"github.com/odyssey-erp/stockflow/internal/shared"
)

// Kind classifies withdrawal failures.
type Kind string

const (
	KindInvalidQuantity    Kind = "invalid_quantity"
	KindMissingDestination Kind = "missing_destination"
	KindInvalidInput       Kind = "invalid_input"
	KindItemNotFound       Kind = "item_not_found"
	KindPermissionDenied   Kind = "permission_denied"
	KindUnavailable        Kind = "unavailable"
)

// Error is a withdrawal failure with a kind and a human readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Kind sentinels for errors.Is.
var (
	ErrInvalidQuantity    = &Error{Kind: KindInvalidQuantity}
	ErrMissingDestination = &Error{Kind: KindMissingDestination}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrItemNotFound       = &Error{Kind: KindItemNotFound}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrUnavailable        = &Error{Kind: KindUnavailable}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return "transfer: " + msg + ": " + e.Err.Error()
	}
	return "transfer: " + msg
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Unwrap exposes the cause and the shared error class of the kind.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Err != nil {
		out = append(out, e.Err)
	}
	if class := e.Kind.class(); class != nil {
		out = append(out, class)
	}
	return out
}

func (k Kind) class() error {
	switch k {
	case KindInvalidQuantity, KindMissingDestination, KindInvalidInput:
		return shared.ErrValidation
	case KindItemNotFound:
		return shared.ErrNotFound
	case KindPermissionDenied:
		return shared.ErrForbidden
	case KindUnavailable:
		return shared.ErrUnavailable
	}
	return nil
}

// KindOf extracts the kind of err, or "" when err is not a withdrawal error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
