// Package services provides the workflow use-cases and their error taxonomy.
package services

import (
	"errors"
	"fmt"

	"github.com/penguintechinc/waddlebot-sub014/pkg/license"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence"
	"github.com/penguintechinc/waddlebot-sub014/pkg/workflow"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrCommunityRequired    = errors.New("community id is required")
	ErrCommunityMismatch    = errors.New("event community does not match workflow community")

	// Business Logic Conflicts (409 Conflict).
	ErrCannotModifyPublished = errors.New("cannot modify published workflow")

	// Not Found (404).
	ErrWorkflowNotFound  = persistence.ErrWorkflowNotFound
	ErrExecutionNotFound = persistence.ErrExecutionNotFound
)

// Error codes carried by ServiceError.
const (
	CodeValidation  = "validation_error"
	CodeConflict    = "conflict"
	CodeEntitlement = "license_denied"
	CodeNotFound    = "not_found"
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrCommunityRequired) ||
		errors.Is(err, ErrCommunityMismatch) ||
		errors.Is(err, workflow.ErrInvalidWorkflow) ||
		errors.Is(err, workflow.ErrMalformedDefinition)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyPublished) ||
		errors.Is(err, workflow.ErrAlreadyPublished) ||
		errors.Is(err, workflow.ErrNotPublished)
}

// IsEntitlementError checks if an error is an admission denial that should return HTTP 402.
func IsEntitlementError(err error) bool {
	return errors.Is(err, license.ErrLicenseDenied)
}

// IsNotFoundError checks if an error names a missing workflow or execution.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) || errors.Is(err, ErrExecutionNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    CodeValidation,
		Message: message,
		Err:     err,
	}
}

// wrap attaches op and the matching code to err. Unclassified errors are returned as-is.
func wrap(op string, err error) error {
	code := ""

	switch {
	case IsValidationError(err):
		code = CodeValidation
	case IsConflictError(err):
		code = CodeConflict
	case IsEntitlementError(err):
		code = CodeEntitlement
	case IsNotFoundError(err):
		code = CodeNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}

	return &ServiceError{Op: op, Code: code, Err: err}
}
