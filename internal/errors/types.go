package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
)

// RemixureError is a structured error type with context.
type RemixureError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Component string
	FilePath  string
	Line      int
	Column    int
	// Fatal errors abort the run with a non-zero exit status.
	Fatal bool
}

// Error implements the error interface.
func (e *RemixureError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *RemixureError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison. Two RemixureErrors match when type and code agree.
func (e *RemixureError) Is(target error) bool {
	var t *RemixureError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *RemixureError) WithContext(key string, value interface{}) *RemixureError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *RemixureError) WithLocation(filePath string, line, column int) *RemixureError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithComponent adds component context.
func (e *RemixureError) WithComponent(component string) *RemixureError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *RemixureError {
	return &RemixureError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Fatal:   true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *RemixureError {
	return &RemixureError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
		Fatal:   true,
	}
}

// AsFatal marks the error as aborting the run.
func (e *RemixureError) AsFatal() *RemixureError {
	e.Fatal = true

	return e
}

// NewBuildError creates a build error. Whether it is fatal depends on the build mode.
func NewBuildError(code, message string, cause error) *RemixureError {
	return &RemixureError{
		Type:    ErrorTypeBuild,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *RemixureError {
	return &RemixureError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
		Fatal:   true,
	}
}

// IsFatal reports whether err should abort the run.
func IsFatal(err error) bool {
	var re *RemixureError
	if errors.As(err, &re) {
		return re.Fatal
	}

	return err != nil
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return isType(err, ErrorTypeConfig)
}

func isType(err error, t ErrorType) bool {
	var re *RemixureError
	if errors.As(err, &re) {
		return re.Type == t
	}

	return false
}

// Common error codes.
const (
	ErrCodeConfigMissing    = "ERR_CONFIG_MISSING"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeNoEntries        = "ERR_NO_ENTRIES"
	ErrCodeReservedEntry    = "ERR_RESERVED_ENTRY"
	ErrCodeBuildFailed      = "ERR_BUILD_FAILED"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// FieldValidationError describes one invalid configuration field.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []*FieldValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	return fmt.Sprintf("validation failed with %d errors", len(vec.Errors))
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(field string, value interface{}, message string) {
	vec.Errors = append(vec.Errors, &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
	})
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ToRemixureError converts the collection into a single fatal validation error.
func (vec *ValidationErrorCollection) ToRemixureError() *RemixureError {
	if !vec.HasErrors() {
		return nil
	}

	messages := make([]string, 0, len(vec.Errors))
	err := NewValidationError(ErrCodeValidationFailed, "")
	for _, fe := range vec.Errors {
		messages = append(messages, fe.Error())
		err.WithContext(fe.FieldName, fe.FieldValue)
	}
	err.Message = strings.Join(messages, "; ")

	return err
}
