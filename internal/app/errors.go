package app

import (
	"fmt"
	"net/http"
)

// DomainError is the failure type returned by Service operations. Status
// carries an HTTP-style classification so callers can map outcomes without
// matching on message text.
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

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func notFound(resource string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", resource+" not found", nil)
}
