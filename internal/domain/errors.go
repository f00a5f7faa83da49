package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every way a conversion can fail.
type ErrorKind string

const (
	KindMissingField  ErrorKind = "MissingField"
	KindEmptyField    ErrorKind = "EmptyField"
	KindRenderFailed  ErrorKind = "RenderFailed"
	KindEmptyOutput   ErrorKind = "EmptyOutput"
	KindRenderTimeout ErrorKind = "RenderTimeout"
	KindInternalError ErrorKind = "InternalError"
)

// IsClientError reports whether the kind is caused by the caller's input.
func (k ErrorKind) IsClientError() bool {
	return k == KindMissingField || k == KindEmptyField
}

var (
	// ErrMissingField signals an absent or malformed body, or a body without an "html" string.
	ErrMissingField = errors.New("invalid request, JSON body with 'html' key is required")
	// ErrEmptyField signals an "html" key that is null, empty or blank.
	ErrEmptyField = errors.New("'html' key is present but value is empty or null")
	// ErrRenderTimeout signals that the renderer was killed after exceeding its time budget.
	ErrRenderTimeout = errors.New("renderer timed out")
)

// ConversionError attaches a kind and an operation to an underlying cause.
type ConversionError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *ConversionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError wraps err with an operation name and a kind.
func NewError(op string, kind ErrorKind, err error) error {
	return &ConversionError{Op: op, Kind: kind, Err: err}
}

// KindOf reports the kind carried by err. Errors that carry no kind are
// treated as internal faults.
func KindOf(err error) ErrorKind {
	var ce *ConversionError
	if errors.As(err, &ce) && ce.Kind != "" {
		return ce.Kind
	}
	switch {
	case errors.Is(err, ErrMissingField):
		return KindMissingField
	case errors.Is(err, ErrEmptyField):
		return KindEmptyField
	case errors.Is(err, ErrRenderTimeout):
		return KindRenderTimeout
	}
	return KindInternalError
}
