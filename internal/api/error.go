package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSessionExpired marks an authentication state that cannot be recovered
// by a token refresh. The session manager reacts by forcing a logout.
var ErrSessionExpired = errors.New("session expired")

// Error is a structured API failure. Detail carries the human-readable
// message the server sent (or a generic fallback); Fields preserves any
// per-field validation detail verbatim for display.
type Error struct {
	Status int
	Detail string
	Fields map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Detail, e.Status)
}

// IsStatus reports whether err is an API error with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// decodeError builds an *Error from a non-2xx response body. Django-style
// bodies put the summary under "detail" and validation errors under the
// field names themselves.
func decodeError(status int, body []byte) *Error {
	apiErr := &Error{Status: status, Detail: "request failed"}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || len(payload) == 0 {
		return apiErr
	}
	if detail, ok := payload["detail"].(string); ok && detail != "" {
		apiErr.Detail = detail
		delete(payload, "detail")
	}
	if len(payload) > 0 {
		apiErr.Fields = payload
	}
	return apiErr
}
