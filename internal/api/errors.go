package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common API errors, matched with errors.Is against *StatusError
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
)

// StatusError is a non-2xx response from the backend
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Status  string // e.g. "502 Bad Gateway"
	Message string // error/message field of the body, if any
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is lets callers branch on the common status classes
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrForbidden:
		return e.Code == http.StatusForbidden
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrBadRequest:
		return e.Code == http.StatusBadRequest
	}
	return false
}

// StatusText returns the reason phrase without the numeric code
func (e *StatusError) StatusText() string {
	return strings.TrimSpace(strings.TrimPrefix(e.Status, fmt.Sprint(e.Code)))
}

// Retryable reports whether the failure is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// NetworkError is a failure before any response arrived
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is a response whose body is not JSON
type MalformedResponseError struct {
	Code   int
	Status string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %s", e.Status)
}

// IsUnauthorized reports whether err is a 401 from the backend
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// errorBody is the error shape the backend uses. Django REST views answer
// with "error", "message" or "detail" depending on the layer.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func messageFromBody(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	switch {
	case eb.Error != "":
		return eb.Error
	case eb.Message != "":
		return eb.Message
	default:
		return eb.Detail
	}
}
