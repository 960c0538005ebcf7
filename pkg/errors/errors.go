package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown       ErrorCode = "UNKNOWN"
	ErrInternal      ErrorCode = "INTERNAL"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// Profile errors
	ErrProfileNotFound ErrorCode = "PROFILE_NOT_FOUND"
	ErrProfileParse    ErrorCode = "PROFILE_PARSE"
	ErrProfileCycle    ErrorCode = "PROFILE_CYCLE"

	// Rule errors
	ErrRuleInvalid ErrorCode = "RULE_INVALID"

	// Limiter errors
	ErrLimiterBudget  ErrorCode = "LIMITER_BUDGET"
	ErrLimiterCleared ErrorCode = "LIMITER_CLEARED"

	// Transform errors
	ErrTransformerNotFound ErrorCode = "TRANSFORMER_NOT_FOUND"
	ErrTransformFailed     ErrorCode = "TRANSFORM_FAILED"

	// Pipeline errors
	ErrStageFailed     ErrorCode = "STAGE_FAILED"
	ErrPipelineAborted ErrorCode = "PIPELINE_ABORTED"

	// FileSystem errors
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrFileRead     ErrorCode = "FILE_READ"
	ErrFileStat     ErrorCode = "FILE_STAT"
)

// CopytreeError represents a structured error with code and details
type CopytreeError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *CopytreeError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *CopytreeError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *CopytreeError) Is(target error) bool {
	var targetErr *CopytreeError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new CopytreeError with the given code and message
func New(code ErrorCode, message string) *CopytreeError {
	return &CopytreeError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new CopytreeError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *CopytreeError {
	return &CopytreeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a CopytreeError
func Wrap(err error, code ErrorCode, message string) *CopytreeError {
	if err == nil {
		return nil
	}
	return &CopytreeError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *CopytreeError {
	if err == nil {
		return nil
	}
	return &CopytreeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *CopytreeError) WithDetail(key string, value interface{}) *CopytreeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var ctErr *CopytreeError
	if errors.As(err, &ctErr) {
		return ctErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a CopytreeError
func GetErrorCode(err error) ErrorCode {
	var ctErr *CopytreeError
	if errors.As(err, &ctErr) {
		return ctErr.Code
	}
	return ErrUnknown
}
