package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Authentication Errors (AUTH_*)
	ErrorCodeAuthMissing ErrorCode = "AUTH_MISSING"
	ErrorCodeAuthInvalid ErrorCode = "AUTH_INVALID"

	// Template Errors (TEMPLATE_*)
	ErrorCodeTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrorCodeTemplateInactive ErrorCode = "TEMPLATE_INACTIVE"
	ErrorCodeTemplateConflict ErrorCode = "TEMPLATE_CONFLICT"

	// Invoice Errors (INVOICE_*)
	ErrorCodeInvoiceNotFound ErrorCode = "INVOICE_NOT_FOUND"

	// Customer Errors (CUSTOMER_*)
	ErrorCodeCustomerNotFound ErrorCode = "CUSTOMER_NOT_FOUND"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationDayOfMonth    ErrorCode = "VALIDATION_DAY_OF_MONTH"
	ErrorCodeValidationDateRange     ErrorCode = "VALIDATION_DATE_RANGE"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeTemplateNotFound ||
		code == ErrorCodeInvoiceNotFound ||
		code == ErrorCodeCustomerNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationDayOfMonth ||
		code == ErrorCodeValidationDateRange
}

// IsConflictError checks if an error is a persistence conflict
func IsConflictError(err error) bool {
	return GetErrorCode(err) == ErrorCodeTemplateConflict
}

// IsAuthError checks if an error is authentication related
func IsAuthError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAuthMissing || code == ErrorCodeAuthInvalid
}

// Structured error instances
var (
	ErrAuthMissing = NewDomainError(ErrorCodeAuthMissing, "authentication required")
	ErrAuthInvalid = NewDomainError(ErrorCodeAuthInvalid, "invalid authentication")

	ErrTemplateNotFound = NewDomainError(ErrorCodeTemplateNotFound, "recurring invoice template not found")
	ErrTemplateInactive = NewDomainError(ErrorCodeTemplateInactive, "recurring invoice template is not active")
	ErrTemplateConflict = NewDomainError(ErrorCodeTemplateConflict, "template was modified concurrently")

	ErrInvoiceNotFound = NewDomainError(ErrorCodeInvoiceNotFound, "invoice not found")

	ErrCustomerNotFound = NewDomainError(ErrorCodeCustomerNotFound, "customer not found or does not belong to merchant")

	ErrValidationFailed        = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "amount must be positive")
	ErrValidationDayOfMonth    = NewDomainError(ErrorCodeValidationDayOfMonth, "day_of_month must be between 1 and 31")
	ErrValidationDateRange     = NewDomainError(ErrorCodeValidationDateRange, "end_date cannot be before start_date")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
