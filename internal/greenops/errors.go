package greenops

import (
	"errors"
	"fmt"
)

// constError is an immutable error type for sentinel errors.
// It implements the error interface and provides compile-time safety.
type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors for emission calculations.
// These are compared with errors.Is().
var (
	// ErrInvalidUnit indicates an unrecognized emission mass unit.
	ErrInvalidUnit = constError("invalid carbon unit")

	// ErrNegativeValue indicates a negative mass.
	ErrNegativeValue = constError("negative carbon value")

	// ErrNegativeQuantity indicates a negative activity quantity.
	// Negative quantities are rejected, never clamped.
	ErrNegativeQuantity = constError("negative activity quantity")

	// ErrNegativeFactor indicates a negative emission factor.
	ErrNegativeFactor = constError("negative emission factor")

	// ErrNegativeUncertainty indicates a negative uncertainty percentage.
	ErrNegativeUncertainty = constError("negative uncertainty")

	// ErrInvalidScope indicates a scope outside scope1/scope2/scope3.
	ErrInvalidScope = constError("invalid emission scope")

	// ErrUnknownGas indicates a gas without a GWP.
	ErrUnknownGas = constError("unknown greenhouse gas")

	// ErrUnknownGWPSet indicates an unknown GWP table name.
	ErrUnknownGWPSet = constError("unknown GWP table")

	// ErrInvalidStatus indicates an entry status other than validated/draft.
	ErrInvalidStatus = constError("invalid entry status")

	// ErrCalculationOverflow indicates a value too large to calculate safely.
	// This is a safety check to prevent floating point overflow.
	ErrCalculationOverflow = constError("calculation overflow")
)

// ValidationError reports input rejected at the boundary. Callers extract it
// with errors.As to render a field-level message; errors.Is still matches the
// wrapped sentinel.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
