// Package apperror defines the error taxonomy shared by the rental core and the
// HTTP layer.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error carries a kind, a client-safe message and optional diagnostic fields
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind so errors.Is(err, ErrNotFound) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrPersistence       = &Error{Kind: KindPersistence}
)

// Validation reports malformed input, invalid enum values or constraint violations
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a referenced id that does not exist
func NotFound(resource string, id interface{}) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Fields:  map[string]interface{}{"id": fmt.Sprint(id)},
	}
}

// InsufficientStock reports a reservation that would drive stock negative
func InsufficientStock(productID interface{}, available, requested int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for product %v: available %d, requested %d", productID, available, requested),
		Fields: map[string]interface{}{
			"productId": fmt.Sprint(productID),
			"available": available,
			"requested": requested,
		},
	}
}

// Persistence wraps a storage or transaction failure
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: "failed to " + op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Wrap leaves domain errors untouched and turns anything else into a Persistence error
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return Persistence(op, err)
}
