// Package apperr holds the error taxonomy shared by cart, checkout and order.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSessionExpired    = errors.New("checkout session expired")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrInvalidState      = errors.New("invalid state")
	ErrConflict          = errors.New("conflict")
)

// Invalid wraps ErrInvalidArgument with a field-level reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func NotFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}

func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// StockError names the line that could not be reserved so the customer can
// adjust the quantity.
type StockError struct {
	ProductID   string
	ProductName string
	VariantID   string
	VariantName string
	Requested   int
	Available   int // -1 when unknown (conditional update reported zero rows)
}

func (e *StockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	if e.VariantName != "" {
		name += " (" + e.VariantName + ")"
	} else if e.VariantID != "" {
		name += " (" + e.VariantID + ")"
	}
	if e.Available >= 0 {
		return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d", name, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// PaymentError carries the gateway's failure code and message verbatim.
type PaymentError struct {
	Code    string
	Message string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed: %s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error { return ErrPaymentFailed }
