package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeNotATicket          = "NOT_A_TICKET"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeAuthorizationDenied = "AUTHORIZATION_DENIED"
	CodeInvalidTarget       = "INVALID_TARGET"
	CodeNoLongerEligible    = "NO_LONGER_ELIGIBLE"
	CodePlatformCall        = "PLATFORM_CALL_FAILURE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
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
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewNotATicket reports a channel that does not carry a ticket.
func NewNotATicket(channelID string) error {
	return NewDomainError(CodeNotATicket, "this is not a ticket channel", http.StatusNotFound,
		map[string]any{"channel_id": channelID})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewDenied reports a failed authorization guard. No state was changed.
func NewDenied(message string) error {
	return NewDomainError(CodeAuthorizationDenied, message, http.StatusForbidden, nil)
}

// NewInvalidTarget reports a transfer or add target that cannot receive the ticket.
func NewInvalidTarget(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTarget, message, http.StatusUnprocessableEntity, details)
}

// NewNoLongerEligible reports that the ticket changed between the guard and the write.
func NewNoLongerEligible(message string) error {
	return NewDomainError(CodeNoLongerEligible, message, http.StatusConflict, nil)
}

// NewPlatformFailure wraps a failed chat-platform call. partial reports whether
// any side effect landed before the failure; rolledBack whether it was undone.
func NewPlatformFailure(op string, err error, partial, rolledBack bool) error {
	msg := fmt.Sprintf("platform call failed during %s, retry", op)
	switch {
	case partial && rolledBack:
		msg = fmt.Sprintf("%s was partially applied and rolled back, retry", op)
	case partial:
		msg = fmt.Sprintf("%s was partially applied, retry", op)
	}
	return &DomainError{
		Code:       CodePlatformCall,
		Message:    msg,
		HTTPStatus: http.StatusBadGateway,
		Details: map[string]any{
			"operation":         op,
			"partially_applied": partial,
			"rolled_back":       partial && rolledBack,
			"retry":             true,
		},
		Err: err,
	}
}

func NewRateLimited() error {
	return NewDomainError(CodeRateLimited, "too many requests", http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// IsDenial reports errors that are guard outcomes rather than failures.
func IsDenial(err error) bool {
	return HasCode(err, CodeAuthorizationDenied) ||
		HasCode(err, CodeInvalidTarget) ||
		HasCode(err, CodeNoLongerEligible) ||
		HasCode(err, CodeNotATicket)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
