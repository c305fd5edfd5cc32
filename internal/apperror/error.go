package apperror

import (
	"errors"
	"fmt"
)

// Application error codes. Handlers translate them into gRPC status codes.
const (
	EVALIDATION        = "validation"           // malformed input, rejected before any write
	ENOTFOUND          = "not_found"            // missing client, product or order
	EINSUFFICIENTSTOCK = "insufficient_stock"   // stock check failed at create/confirm time
	EOUTOFSTOCK        = "out_of_stock"         // ledger exit would drive stock negative
	EINVALIDTRANSITION = "invalid_transition"   // illegal order status change
	ECONFLICT          = "concurrency_conflict" // lock contention, caller retries the operation
	EPERSISTENCE       = "persistence_failure"  // storage error, surfaced as-is
)

// Error is a coded application error. It supports wrapping so the storage
// error that caused a failure stays available for logging.
type Error struct {
	// Code is a machine-readable error code (EVALIDATION, ENOTFOUND, ...).
	Code string

	// Message is safe to show to API callers.
	Message string

	// Op is the operation that failed, e.g. "order.create".
	Op string

	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code extracts the error code from err.
// Returns EPERSISTENCE for errors that did not originate here.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EPERSISTENCE
}

// Message extracts a caller-facing message from err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an internal error occurred"
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return Code(err) == code
}

// Errorf creates a coded error with a formatted message.
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches a code and operation to err. Returns nil if err is nil.
// Errors that are already coded keep their code.
func Wrap(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

func Invalid(op, format string, args ...interface{}) error {
	return Errorf(EVALIDATION, op, format, args...)
}

// NotFound creates a not found error for a resource.
// Example: apperror.NotFound("order.get", "order", id)
func NotFound(op, resource, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

// InsufficientStock names the product whose stock cannot cover the request.
func InsufficientStock(op, product, available, requested string) error {
	return &Error{
		Code:    EINSUFFICIENTSTOCK,
		Op:      op,
		Message: fmt.Sprintf("insufficient stock for %s: available %s, requested %s", product, available, requested),
	}
}

func OutOfStock(op, productID, available, requested string) error {
	return &Error{
		Code:    EOUTOFSTOCK,
		Op:      op,
		Message: fmt.Sprintf("product %s out of stock: available %s, requested %s", productID, available, requested),
	}
}

func InvalidTransition(op, from, to string) error {
	return &Error{
		Code:    EINVALIDTRANSITION,
		Op:      op,
		Message: fmt.Sprintf("invalid transition: %s -> %s", from, to),
	}
}

// Conflict reports lock contention. The whole operation can be retried.
func Conflict(err error, op, message string) error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Persistence wraps a storage failure.
func Persistence(err error, op, message string) error {
	return Wrap(err, EPERSISTENCE, op, message)
}
