package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypePrivacy       ErrorType = "privacy"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeJob           ErrorType = "job"
	ErrorTypeInternal      ErrorType = "internal"
)

// Error codes for the anonymization engine and its collaborators
const (
	CodeUnknownMethod    = "UNKNOWN_METHOD"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeMissingColumn    = "MISSING_COLUMN"
	CodeEmptyDataset     = "EMPTY_DATASET"
	CodeTransformFailure = "TRANSFORM_FAILURE"

	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeReadFailed       = "READ_FAILED"
	CodeWriteFailed      = "WRITE_FAILED"
	CodeDataNotFound     = "DATA_NOT_FOUND"
	CodeJobFailed        = "JOB_FAILED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. AppError.Is matches on type and code, so any error
// built by the constructors below matches its sentinel.
var (
	ErrUnknownMethod    = NewAppError(ErrorTypeValidation, CodeUnknownMethod, "unknown anonymization method")
	ErrInvalidParameter = NewAppError(ErrorTypeValidation, CodeInvalidParameter, "invalid parameter")
	ErrMissingColumn    = NewAppError(ErrorTypeValidation, CodeMissingColumn, "missing column")
	ErrEmptyDataset     = NewAppError(ErrorTypeValidation, CodeEmptyDataset, "dataset is empty")
	ErrTransformFailure = NewAppError(ErrorTypePrivacy, CodeTransformFailure, "transformation failed")

	ErrDataNotFound = errors.New("data not found")
	ErrNotConnected = errors.New("storage not connected")
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s - %s", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewUnknownMethodError reports a method name outside the supported set.
func NewUnknownMethodError(method string) *AppError {
	return NewValidationError(CodeUnknownMethod, fmt.Sprintf("unknown anonymization method: %q", method)).
		WithContext("method", method)
}

// NewInvalidParameterError reports a type, range or cross-field violation.
func NewInvalidParameterError(param, message string) *AppError {
	return NewValidationError(CodeInvalidParameter, fmt.Sprintf("parameter %s %s", param, message)).
		WithContext("parameter", param)
}

// NewMissingColumnError reports a referenced column absent from the dataset.
func NewMissingColumnError(column, role string) *AppError {
	return NewValidationError(CodeMissingColumn, fmt.Sprintf("%s column %q not found in dataset", role, column)).
		WithContext("column", column)
}

// NewEmptyDatasetError reports a dataset without rows or columns.
func NewEmptyDatasetError(details string) *AppError {
	return NewValidationError(CodeEmptyDataset, "dataset is empty").WithDetails(details)
}

// NewTransformError reports a failed generalization, suppression or noise step.
func NewTransformError(stage string, cause error) *AppError {
	return WrapError(cause, ErrorTypePrivacy, CodeTransformFailure, fmt.Sprintf("%s failed", stage)).
		WithContext("stage", stage)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// ValidationErrorDetail represents detailed validation error information
type ValidationErrorDetail struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Message string                  `json:"message"`
	Errors  []ValidationErrorDetail `json:"errors"`
}

// Error implements the error interface for ValidationErrors
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", ve.Message, ve.Errors[0].Message)
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field, code, message string, value interface{}) {
	ve.Errors = append(ve.Errors, ValidationErrorDetail{
		Field:   field,
		Value:   value,
		Message: message,
		Code:    code,
	})
}

// HasErrors checks if there are any validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// NewValidationErrors creates a new ValidationErrors instance
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Message: "Validation failed",
		Errors:  make([]ValidationErrorDetail, 0),
	}
}

// CodeOf returns the AppError code carried by err, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
