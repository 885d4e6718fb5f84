// internal/pkg/apperr/errors.go
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain error types shared by all services. Handlers map these to HTTP
// status codes; anything that is none of them is treated as internal.

// ValidationError indicates bad input shape or range
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError indicates a referenced entity is absent
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// InsufficientStockError indicates requested quantity exceeds available inventory
type InsufficientStockError struct {
	ProductID uint
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// InsufficientBalanceError indicates a debit or checkout exceeds the account
// balance. Remaining carries the exact shortfall so the caller can prompt a
// top-up of that amount.
type InsufficientBalanceError struct {
	Remaining decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %s more required", e.Remaining.StringFixed(2))
}

// ConflictError indicates a concurrent-mutation race was detected, e.g. a
// second checkout attempt on a cart that is already checked out.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// Constructors

func Validation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

func InsufficientStock(productID uint, available, requested int) error {
	return &InsufficientStockError{ProductID: productID, Available: available, Requested: requested}
}

func InsufficientBalance(remaining decimal.Decimal) error {
	return &InsufficientBalanceError{Remaining: remaining}
}

func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// Predicates

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsInsufficientStock(err error) bool {
	var e *InsufficientStockError
	return errors.As(err, &e)
}

func IsInsufficientBalance(err error) bool {
	var e *InsufficientBalanceError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// AsInsufficientBalance unwraps the error so callers can read the shortfall.
func AsInsufficientBalance(err error) (*InsufficientBalanceError, bool) {
	var e *InsufficientBalanceError
	ok := errors.As(err, &e)
	return e, ok
}
