package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeProcess    ErrorType = "process"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"

	ErrorTypeLockTimeout          ErrorType = "lock_timeout"
	ErrorTypeLockRelease          ErrorType = "lock_release"
	ErrorTypeTemplateKeyNotFound  ErrorType = "template_key_not_found"
	ErrorTypeTemplateConvergence  ErrorType = "template_convergence"
	ErrorTypePropertiesIO         ErrorType = "properties_io"
	ErrorTypeInvalidServiceConfig ErrorType = "invalid_service_configuration"
	ErrorTypeStartVerification    ErrorType = "start_verification"
	ErrorTypeStopTimeout          ErrorType = "stop_timeout"
	ErrorTypeSetupRequired        ErrorType = "setup_required"
)

// DomainError represents a structured error with type and context
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *DomainError) Is(target error) bool {
	if other, ok := target.(*DomainError); ok {
		return e.Type == other.Type
	}
	return false
}

// WithContext adds context information to the error
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

func NewValidationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, cause)
}

func NewNotFoundError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeNotFound, message, cause)
}

func NewProcessError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeProcess, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeIO, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, cause)
}

// Locking errors
func NewLockTimeoutError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeLockTimeout, message, cause)
}

// NewLockReleaseError reports a lock directory that could not be removed.
// The guarded resource stays blocked until an operator removes it by hand.
func NewLockReleaseError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeLockRelease, message, cause)
}

// Template and configuration errors
func NewTemplateKeyNotFoundError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeTemplateKeyNotFound, message, cause)
}

func NewTemplateConvergenceError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeTemplateConvergence, message, cause)
}

func NewPropertiesIOError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypePropertiesIO, message, cause)
}

func NewInvalidServiceConfigError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInvalidServiceConfig, message, cause)
}

// Lifecycle errors
func NewStartVerificationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeStartVerification, message, cause)
}

func NewStopTimeoutError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeStopTimeout, message, cause)
}

func NewSetupRequiredError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeSetupRequired, message, cause)
}

func isType(err error, errorType ErrorType) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == errorType
}

// Error checking helpers
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

func IsProcessError(err error) bool {
	return isType(err, ErrorTypeProcess)
}

func IsIOError(err error) bool {
	return isType(err, ErrorTypeIO)
}

func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

func IsLockTimeoutError(err error) bool {
	return isType(err, ErrorTypeLockTimeout)
}

func IsLockReleaseError(err error) bool {
	return isType(err, ErrorTypeLockRelease)
}

func IsTemplateKeyNotFoundError(err error) bool {
	return isType(err, ErrorTypeTemplateKeyNotFound)
}

func IsTemplateConvergenceError(err error) bool {
	return isType(err, ErrorTypeTemplateConvergence)
}

func IsPropertiesIOError(err error) bool {
	return isType(err, ErrorTypePropertiesIO)
}

func IsInvalidServiceConfigError(err error) bool {
	return isType(err, ErrorTypeInvalidServiceConfig)
}

func IsStartVerificationError(err error) bool {
	return isType(err, ErrorTypeStartVerification)
}

func IsStopTimeoutError(err error) bool {
	return isType(err, ErrorTypeStopTimeout)
}

func IsSetupRequiredError(err error) bool {
	return isType(err, ErrorTypeSetupRequired)
}

// ErrorCollection aggregates errors from a critical section and its cleanup
type ErrorCollection struct {
	Errors []error
}

func (e *ErrorCollection) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(e.Errors), e.Errors[0])
}

func (e *ErrorCollection) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *ErrorCollection) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes every collected error to errors.Is and errors.As
func (e *ErrorCollection) Unwrap() []error {
	return e.Errors
}

// ToError returns nil for an empty collection, the single error when only one
// was collected, and the collection otherwise
func (e *ErrorCollection) ToError() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	default:
		return e
	}
}

// NewErrorCollection creates a new error collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		Errors: make([]error, 0),
	}
}
