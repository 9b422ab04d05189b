// Package apperr defines the error taxonomy shared by the session guard,
// the upstream client and the order/voucher workflows.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrAuthenticationRequired means no credential is stored for the session.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrSessionExpired means the upstream rejected the stored credential.
	ErrSessionExpired = errors.New("session expired")
)

// Notice texts shown to the operator for the two authentication failures.
const (
	MsgLoginRequired  = "Please login to continue"
	MsgSessionExpired = "Session expired. Please login again."
)

// ValidationError is a client-side precondition failure. It never reaches the network.
// Fields maps the offending field (JSON name) to its message; Reason is the
// first failing reason in check order.
type ValidationError struct {
	Reason string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Reason
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed: %s (%s)", e.Reason, strings.Join(keys, ", "))
}

// Invalid builds a ValidationError with a single reason and no field map.
func Invalid(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// InvalidFields builds a ValidationError from a field map.
func InvalidFields(reason string, fields map[string]string) *ValidationError {
	return &ValidationError{Reason: reason, Fields: fields}
}

// RequestError is a network or server failure. Message comes from the
// response envelope when present, otherwise from the transport error.
type RequestError struct {
	StatusCode int // 0 for transport errors
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
	}
	return "request failed: " + e.Message
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsAuth reports whether err is one of the authentication failures.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuthenticationRequired) || errors.Is(err, ErrSessionExpired)
}

// AsValidation unwraps a ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsRequest unwraps a RequestError.
func AsRequest(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// HTTPStatus maps err to the status the admin API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsAuth(err):
		return http.StatusUnauthorized
	}
	if _, ok := AsValidation(err); ok {
		return http.StatusBadRequest
	}
	if re, ok := AsRequest(err); ok {
		if re.StatusCode >= 400 && re.StatusCode < 500 {
			return re.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the operator-facing text for err.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthenticationRequired):
		return MsgLoginRequired
	case errors.Is(err, ErrSessionExpired):
		return MsgSessionExpired
	}
	if ve, ok := AsValidation(err); ok {
		return ve.Reason
	}
	if re, ok := AsRequest(err); ok {
		return re.Message
	}
	return "unexpected error"
}
