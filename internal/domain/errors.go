package domain

import (
	"fmt"
	"time"
)

// Error codes for different failure scenarios
const (
	ErrInvalidInput    = "INVALID_INPUT"
	ErrValidation      = "VALIDATION_ERROR"
	ErrReferenceTables = "REFERENCE_TABLE_ERROR"
	ErrDatabaseError   = "DATABASE_ERROR"
	ErrNotFound        = "NOT_FOUND"
	ErrRateLimit       = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
)

// ValidationError represents a structural validation failure on a single
// input record. It excludes that record from processing but never aborts
// the batch.
type ValidationError struct {
	RecordIndex int         `json:"record_index"`
	Field       string      `json:"field"`
	Message     string      `json:"message"`
	Value       interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(index int, field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		RecordIndex: index,
		Field:       field,
		Message:     message,
		Value:       value,
	}
}

// BatchError represents a whole-batch failure: malformed input that is not
// a sequence of objects at all, or missing reference tables. These are the
// only errors fatal to a run.
type BatchError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBatchError creates a new BatchError with timestamp
func NewBatchError(code, message, details string) *BatchError {
	return &BatchError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}
