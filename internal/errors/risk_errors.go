package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the classes of failure the risk engine surfaces
type ErrorCategory string

const (
	// Malformed or out-of-range inputs, always surfaced to the caller
	ErrorCategoryInvalidInput ErrorCategory = "INVALID_INPUT"

	// Historical or backtest data missing or insufficient
	ErrorCategoryDataUnavailable ErrorCategory = "DATA_UNAVAILABLE"

	// Risk-event log append failed after retry
	ErrorCategoryPersistence ErrorCategory = "PERSISTENCE"

	// A named admission check could not be evaluated
	ErrorCategoryValidation ErrorCategory = "VALIDATION"

	// Caller deadline expired before the check completed
	ErrorCategoryTimeout ErrorCategory = "TIMEOUT"
)

// RiskError is a categorized error with component and operation context
type RiskError struct {
	Category   ErrorCategory
	Component  string
	Op         string
	Message    string
	Underlying error
	Retryable  bool
}

// Error implements the error interface
func (e *RiskError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Op, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Op, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *RiskError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether the failed operation can be retried
func (e *RiskError) IsRetryable() bool {
	return e.Retryable
}

// New creates a categorized risk error
func New(category ErrorCategory, component, op, message string) *RiskError {
	return &RiskError{
		Category:  category,
		Component: component,
		Op:        op,
		Message:   message,
		Retryable: isRetryableCategory(category),
	}
}

// Wrap attaches category and context to an existing error
func Wrap(err error, category ErrorCategory, component, op string) *RiskError {
	if err == nil {
		return nil
	}
	return &RiskError{
		Category:   category,
		Component:  component,
		Op:         op,
		Message:    "operation failed",
		Underlying: err,
		Retryable:  isRetryableCategory(category),
	}
}

// WithRetryable overrides the retryable flag
func (e *RiskError) WithRetryable(retryable bool) *RiskError {
	e.Retryable = retryable
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryPersistence, ErrorCategoryTimeout:
		return true
	default:
		return false
	}
}

// NewInvalidInput reports a malformed or out-of-range input field
func NewInvalidInput(component, op, message string) *RiskError {
	return New(ErrorCategoryInvalidInput, component, op, message)
}

// NewDataUnavailable reports missing or insufficient historical data
func NewDataUnavailable(component, op, message string) *RiskError {
	return New(ErrorCategoryDataUnavailable, component, op, message)
}

// NewPersistence wraps a failed log append
func NewPersistence(component, op string, err error) *RiskError {
	return Wrap(err, ErrorCategoryPersistence, component, op)
}

// NewValidation reports a check that could not be evaluated
func NewValidation(component, op, message string) *RiskError {
	return New(ErrorCategoryValidation, component, op, message)
}

// IsCategory reports whether err carries the given category anywhere in its chain
func IsCategory(err error, category ErrorCategory) bool {
	var riskErr *RiskError
	if errors.As(err, &riskErr) {
		return riskErr.Category == category
	}
	return false
}

// IsInvalidInput reports whether err is an invalid-input error
func IsInvalidInput(err error) bool {
	return IsCategory(err, ErrorCategoryInvalidInput)
}

// IsDataUnavailable reports whether err is a data-unavailable error
func IsDataUnavailable(err error) bool {
	return IsCategory(err, ErrorCategoryDataUnavailable)
}

// IsPersistence reports whether err is a persistence error
func IsPersistence(err error) bool {
	return IsCategory(err, ErrorCategoryPersistence)
}
