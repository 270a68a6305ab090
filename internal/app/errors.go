package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/auth"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/authpw"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/export"
	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/rbac"
)

// DomainError carries HTTP-level failures that have no place in apperr.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func forbidden(actor Actor, action rbac.Action) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", map[string]any{
		"role":   string(actor.Role),
		"action": string(action),
	})
}

// authorize reports whether actor may perform action.
func authorize(actor Actor, action rbac.Action) error {
	if !rbac.Can(actor.Role, action) {
		return forbidden(actor, action)
	}
	return nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		status := appErr.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if appErr.Code == apperr.CodeStorage {
			// keep driver errors out of responses
			return status, appErr.Code, appErr.Message, nil
		}
		return status, appErr.Code, appErr.Message, appErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error(), nil
	}
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
