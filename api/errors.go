package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/saareats/storefront/core"
)

// Error is a non-2xx backend response. The backend writes errors as
// {"message": ...} or {"error": ...}, optionally with a machine-readable
// {"code": ...}; both body shapes are tolerated and an empty body still
// yields a usable error.
type Error struct {
	Status  int    // HTTP status code
	Code    string // machine-readable code, e.g. "TOKEN_EXPIRED"
	Message string // human-readable message from the body, may be empty
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("api: status %d", e.Status)}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ": ")
}

// Unwrap maps expired or missing credentials onto core.ErrUnauthorized so
// callers can use errors.Is without inspecting status codes. The backend
// signals expiry either with a plain 401 or with code TOKEN_EXPIRED.
func (e *Error) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Code == "TOKEN_EXPIRED" {
		return core.ErrUnauthorized
	}
	return nil
}

// UserMessage returns text suitable for direct display. When the backend
// sent nothing displayable the generic fallback is used.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return "Request failed"
}

// errorEnvelope matches the backend's error body variants.
type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func decodeError(status int, body []byte) *Error {
	apiErr := &Error{Status: status}

	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		apiErr.Code = env.Code
		switch {
		case env.Message != "":
			apiErr.Message = env.Message
		case env.Error != "":
			apiErr.Message = env.Error
		}
	}
	return apiErr
}
