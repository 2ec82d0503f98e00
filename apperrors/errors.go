// Package apperrors defines the error taxonomy shared by services and handlers.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ValidationError        ErrorType = "VALIDATION_ERROR"
	NotFoundError          ErrorType = "NOT_FOUND"
	ForbiddenError         ErrorType = "FORBIDDEN"
	UnauthorizedError      ErrorType = "UNAUTHORIZED"
	AlreadyMemberError     ErrorType = "ALREADY_MEMBER"
	DuplicatePendingError  ErrorType = "DUPLICATE_PENDING"
	InvalidTransitionError ErrorType = "INVALID_STATUS_TRANSITION"
	UpstreamError          ErrorType = "UPSTREAM_FAILURE"
)

// AppError is a classified failure. Raw keeps the underlying cause for logs;
// it is never shown to callers.
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Raw
}

// Retryable reports whether the caller may safely repeat the operation.
func (e *AppError) Retryable() bool {
	return e.Type == UpstreamError
}

func New(errType ErrorType, message, detail string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: statusFor(errType),
	}
}

func Validation(message, detail string) *AppError {
	return New(ValidationError, message, detail)
}

func NotFound(entity, id string) *AppError {
	return New(NotFoundError, fmt.Sprintf("%s not found", entity), fmt.Sprintf("ID: %s", id))
}

func Forbidden(message string) *AppError {
	return New(ForbiddenError, message, "")
}

func Unauthorized(message string) *AppError {
	return New(UnauthorizedError, message, "")
}

func AlreadyMember(userID string) *AppError {
	return New(AlreadyMemberError, "user is already a member of this group", fmt.Sprintf("user: %s", userID))
}

func DuplicatePending(groupID, userID string) *AppError {
	return New(DuplicatePendingError, "a pending invitation already exists for this user",
		fmt.Sprintf("group: %s, user: %s", groupID, userID))
}

func InvalidTransition(from, to string) *AppError {
	return New(InvalidTransitionError, "invalid status transition",
		fmt.Sprintf("cannot transition from %s to %s", from, to))
}

// Upstream wraps a store, network, gateway or storage failure.
func Upstream(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       UpstreamError,
		Message:    message,
		Detail:     "temporary failure, please retry",
		HTTPStatus: statusFor(UpstreamError),
		Raw:        err,
	}
}

// TypeOf returns the classification of err, or UpstreamError for anything
// that is not an AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return UpstreamError
}

func Is(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	return TypeOf(err) == errType
}

func statusFor(errType ErrorType) int {
	switch errType {
	case ValidationError, InvalidTransitionError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case ForbiddenError:
		return http.StatusForbidden
	case UnauthorizedError:
		return http.StatusUnauthorized
	case AlreadyMemberError, DuplicatePendingError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
