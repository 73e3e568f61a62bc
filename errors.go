package oidc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/256dpi/xo"
)

// Error is a wire stable endpoint error. The name is rendered in the error
// field of the payload while the description is optional human readable
// context.
type Error struct {
	Status      int
	Name        string
	Description string
	State       string
}

// Error implements the error interface.
func (e *Error) Error() string {
	// append description if available
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Description)
	}

	return e.Name
}

// RequireLogin constructs an error that requests an end user login.
func RequireLogin(description string) *Error {
	return &Error{
		Status:      http.StatusUnauthorized,
		Name:        "require_login",
		Description: description,
	}
}

// EntityNotFound constructs an error for a missing referenced entity.
func EntityNotFound(description string) *Error {
	return &Error{
		Status:      http.StatusBadRequest,
		Name:        "entity_not_found",
		Description: description,
	}
}

// LoginFailed constructs an error for rejected login credentials.
func LoginFailed(description string) *Error {
	return &Error{
		Status:      http.StatusBadRequest,
		Name:        "login_failed",
		Description: description,
	}
}

// DuplicatedEntity constructs an error for a name that is already taken.
func DuplicatedEntity(description string) *Error {
	return &Error{
		Status:      http.StatusBadRequest,
		Name:        "duplicated_entity",
		Description: description,
	}
}

// ConflictDetected constructs an error for a conflicting concurrent change.
func ConflictDetected(description string) *Error {
	return &Error{
		Status:      http.StatusBadRequest,
		Name:        "conflict_detected",
		Description: description,
	}
}

// WrongPassword constructs an error for a rejected password change.
func WrongPassword(description string) *Error {
	return &Error{
		Status:      http.StatusBadRequest,
		Name:        "wrong_password",
		Description: description,
	}
}

// AccessDenied constructs an error for a denied authorization.
func AccessDenied(description string) *Error {
	return &Error{
		Status:      http.StatusBadRequest,
		Name:        "access_denied",
		Description: description,
	}
}

// UnauthorizedClient constructs an error for failed client authentication.
func UnauthorizedClient(description string) *Error {
	return &Error{
		Status:      http.StatusUnauthorized,
		Name:        "unauthorized_client",
		Description: description,
	}
}

// UserinfoError constructs an error for a rejected userinfo request. The
// error is accompanied by a bearer token challenge.
func UserinfoError(description string) *Error {
	return &Error{
		Status:      http.StatusUnauthorized,
		Name:        "userinfo_error",
		Description: description,
	}
}

// TemporarilyUnavailable constructs an error for a transiently unavailable
// backing service.
func TemporarilyUnavailable(description string) *Error {
	return &Error{
		Status:      http.StatusServiceUnavailable,
		Name:        "temporarily_unavailable",
		Description: description,
	}
}

// WriteError will write the provided error to the response writer.
func WriteError(w http.ResponseWriter, err *Error) error {
	// prepare payload
	doc := map[string]string{
		"error": err.Name,
	}
	if err.Description != "" {
		doc["error_description"] = err.Description
	}
	if err.State != "" {
		doc["state"] = err.State
	}

	// add a bearer challenge for userinfo failures
	if err.Name == "userinfo_error" {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer error="%s", error_description="%s"`, err.Name, err.Description))
	}

	return writeJSON(w, err.Status, doc)
}

// writeJSON will encode the provided document and write it with the provided
// status code.
func writeJSON(w http.ResponseWriter, status int, doc interface{}) error {
	// encode document
	data, err := json.Marshal(doc)
	if err != nil {
		return xo.W(err)
	}

	// write response
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)

	_, err = w.Write(data)

	return xo.W(err)
}
