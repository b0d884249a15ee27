package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrDuplicateRequest   = errors.New("request already processed")
)

// ValidationError rejects malformed input before any store is touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientStockError names the book that is missing or short of stock.
// The placement transaction was rolled back.
type InsufficientStockError struct {
	BookID int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for book ID: %d", e.BookID)
}

// TransactionError wraps a storage failure inside the placement
// transaction. Error() stays generic; the cause is kept for logs.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return "order could not be placed, please try again"
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// Cause describes the failed step for logging.
func (e *TransactionError) Cause() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}
