package persistence

import (
	"errors"
	"fmt"
	"strings"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrGraphNotFound indicates a flow graph was not found for the tenant.
	ErrGraphNotFound = errors.New("flow graph not found")

	// ErrExecutionContextNotFound indicates a conversation has no execution context.
	ErrExecutionContextNotFound = errors.New("execution context not found")

	// ErrInvalidID indicates an identifier that cannot be used as a storage key.
	ErrInvalidID = errors.New("invalid identifier")
)

// StoreError wraps store errors with the operation and key involved.
type StoreError struct {
	Op  string // Operation being performed (e.g., "LoadGraph", "SaveContext")
	Key string // Tenant-scoped key of the record
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for store errors.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a store error for the key built from parts.
func NewStoreError(op string, err error, parts ...string) *StoreError {
	return &StoreError{Op: op, Key: strings.Join(parts, "/"), Err: err}
}

// IsGraphNotFound checks if an error indicates a flow graph was not found.
func IsGraphNotFound(err error) bool {
	return errors.Is(err, ErrGraphNotFound)
}

// IsExecutionContextNotFound checks if an error indicates no execution context exists.
func IsExecutionContextNotFound(err error) bool {
	return errors.Is(err, ErrExecutionContextNotFound)
}

// ValidateID rejects empty identifiers and ones that could escape a
// storage namespace.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\:`) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidID, id)
	}

	return nil
}
