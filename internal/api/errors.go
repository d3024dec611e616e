package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// UnknownErrorMessage is the fallback shown when a failure carries no usable
// message of its own.
const UnknownErrorMessage = "an unknown error occurred"

// Error is a server-reported failure: a non-success status with whatever
// message could be extracted from the response body.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// DecodeError reports a response body the client could not turn into a typed
// value. It names the resource and the offending field so malformed input is
// rejected at the boundary instead of coerced silently.
type DecodeError struct {
	Resource string
	Field    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid %s payload: missing or invalid %s", e.Resource, e.Field)
}

// errorMessageFromBody extracts a human-readable message from an error
// response body. Precedence: a JSON object's "message" field, then its
// "error" field, then a plain-text or JSON-string body, then the generic
// fallback.
func errorMessageFromBody(body []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"message", "error"} {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
				return s
			}
		}
		return UnknownErrorMessage
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil && strings.TrimSpace(s) != "" {
		return s
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}

	return UnknownErrorMessage
}

// Message normalizes any failure into a single user-facing string. Server
// messages win; everything else falls back to the error's own text.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownErrorMessage
}
