package recengine

import (
	"errors"
	"fmt"

	"github.com/freshcart/cartsense-go/pkg/llm"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStoreUnavailable indicates that an event store read failed.
	// This is fatal for the request; nothing is recovered locally.
	ErrStoreUnavailable = errors.New("event store unavailable")

	// ErrCatalogEmpty indicates the product catalog has no products.
	ErrCatalogEmpty = errors.New("product catalog is empty")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited is surfaced when the generation service rejected the
	// call with a rate-limit condition; the caller may retry later.
	ErrRateLimited = llm.ErrRateLimited

	// ErrQuotaExhausted is surfaced when the generation service's usage
	// quota is exhausted; retrying will not help until the quota resets.
	ErrQuotaExhausted = llm.ErrQuotaExhausted
)

// EngineError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &EngineError{
//	    Op:  "Recommend",
//	    Err: ErrStoreUnavailable,
//	}
//	// Error() returns: "cartsense: Recommend: event store unavailable"
type EngineError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "cartsense: <Op>: <Err>"
func (e *EngineError) Error() string {
	return fmt.Sprintf("cartsense: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with EngineError.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewEngineError("Recommend", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Recommend", "NewEngine")
//   - err: The underlying error to wrap
//
// Returns an EngineError, or nil if err is nil.
func NewEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{
		Op:  op,
		Err: err,
	}
}
