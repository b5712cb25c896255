package store

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrFeatureNotFound = errors.New("feature not found")
	ErrLayerNotFound   = errors.New("layer not found")
	ErrLayerExists     = errors.New("layer already exists")
	ErrDuplicateID     = errors.New("duplicate feature ID")
	ErrStoreClosed     = errors.New("store is closed")
)

// StoreError provides structured error information for store operations.
type StoreError struct {
	Op      string // Operation that failed (e.g., "Get", "Delete")
	Layer   string // Layer name
	ID      int64  // Feature ID (if applicable)
	Field   string // Field name (for attribute operations)
	Cause   error  // Underlying error
	Context string // Additional context
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != 0 {
		if e.Field != "" {
			return fmt.Sprintf("%s %s/%d (field %s): %v", e.Op, e.Layer, e.ID, e.Field, e.Cause)
		}
		return fmt.Sprintf("%s %s/%d: %v", e.Op, e.Layer, e.ID, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s %s (field %s): %v", e.Op, e.Layer, e.Field, e.Cause)
	}
	if e.Context != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Layer, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Layer, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error or its cause.
func (e *StoreError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// FeatureNotFoundError creates a feature not found error.
func FeatureNotFoundError(op, layer string, id int64) error {
	return &StoreError{Op: op, Layer: layer, ID: id, Cause: ErrFeatureNotFound}
}

// LayerNotFoundError creates a layer not found error.
func LayerNotFoundError(op, layer string) error {
	return &StoreError{Op: op, Layer: layer, Cause: ErrLayerNotFound}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFeatureNotFound) || errors.Is(err, ErrLayerNotFound)
}
