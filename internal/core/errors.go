package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors. Every typed error below unwraps to exactly one of these so callers
// can branch with errors.Is without caring about the concrete type.
var (
	ErrUnknownDataSource         = errors.New("unknown data source")
	ErrUnknownField              = errors.New("unknown field")
	ErrInvalidFilter             = errors.New("invalid filter")
	ErrInvalidDateRange          = errors.New("invalid date range")
	ErrInvalidInput              = errors.New("invalid input")
	ErrNotFound                  = errors.New("not found")
	ErrCurrencyMismatch          = errors.New("currency mismatch")
	ErrInsufficientLayerQuantity = errors.New("insufficient layer quantity")
)

// ValidationError is a caller error detected before any computation runs.
type ValidationError struct {
	Err     error  // one of the sentinels above
	Field   string // offending field or parameter, if any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%v: %s: %s", e.Err, e.Field, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Code returns a stable machine-readable code for the error class.
func (e *ValidationError) Code() string {
	switch {
	case errors.Is(e.Err, ErrUnknownDataSource):
		return "UNKNOWN_DATA_SOURCE"
	case errors.Is(e.Err, ErrUnknownField):
		return "UNKNOWN_FIELD"
	case errors.Is(e.Err, ErrInvalidFilter):
		return "INVALID_FILTER"
	case errors.Is(e.Err, ErrInvalidDateRange):
		return "INVALID_DATE_RANGE"
	case errors.Is(e.Err, ErrNotFound):
		return "NOT_FOUND"
	default:
		return "VALIDATION_ERROR"
	}
}

func newValidationError(sentinel error, field, format string, args ...any) *ValidationError {
	return &ValidationError{Err: sentinel, Field: field, Message: fmt.Sprintf(format, args...)}
}

// CurrencyMismatchError is returned whenever an operation would combine amounts in
// different currencies without an explicit conversion.
type CurrencyMismatchError struct {
	Op    string
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch in %s: %s vs %s", e.Op, e.Left, e.Right)
}

func (e *CurrencyMismatchError) Unwrap() error { return ErrCurrencyMismatch }

// InsufficientLayerQuantityError is a data-integrity error: an item claims more stock
// on hand than its cost layers ever received.
type InsufficientLayerQuantityError struct {
	ItemID   string
	OnHand   decimal.Decimal
	Received decimal.Decimal
}

func (e *InsufficientLayerQuantityError) Error() string {
	return fmt.Sprintf("item %s: quantity on hand %s exceeds received layer quantity %s",
		e.ItemID, e.OnHand.String(), e.Received.String())
}

func (e *InsufficientLayerQuantityError) Unwrap() error { return ErrInsufficientLayerQuantity }

// IsCallerError reports whether err is a non-transient error caused by the request
// or by the data it ran against (as opposed to a store or transport failure).
func IsCallerError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrInsufficientLayerQuantity)
}
