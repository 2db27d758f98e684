package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/invenops/ticketing/internal/domain"
	"github.com/invenops/ticketing/internal/lifecycle"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

// NewAuthorizationRejection carries the lifecycle engine's rejection message
// verbatim to the requester.
func NewAuthorizationRejection(message string) error {
	return NewDomainError("AUTHORIZATION_REJECTED", message, http.StatusForbidden, nil)
}

// NewIllegalTransition carries the engine's table rejection verbatim. The
// conflict status signals the caller to re-fetch and re-derive legal actions
// rather than retry the same transition.
func NewIllegalTransition(message string) error {
	return NewDomainError("ILLEGAL_TRANSITION", message, http.StatusConflict, nil)
}

// NewTransportError wraps a store failure with a retry-suggested message.
func NewTransportError(err error) error {
	return &DomainError{
		Code:       "TRANSPORT_ERROR",
		Message:    "store unreachable, please retry",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError, mapping validation,
// lifecycle, not-found, and timeout failures onto the error taxonomy.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return NewValidationError(validation.Reason, nil).(*DomainError)
	}
	if errors.Is(err, lifecycle.ErrNotAuthorized) {
		return NewAuthorizationRejection(lifecycle.ErrNotAuthorized.Error()).(*DomainError)
	}
	if errors.Is(err, lifecycle.ErrDeleteRequiresClosed) {
		return NewDomainError("DELETE_REJECTED", lifecycle.ErrDeleteRequiresClosed.Error(), http.StatusConflict, nil)
	}
	var illegal *lifecycle.IllegalTransitionError
	if errors.As(err, &illegal) {
		return NewIllegalTransition(illegal.Error()).(*DomainError)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransportError(err).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}
