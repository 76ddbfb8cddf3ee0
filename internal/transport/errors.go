// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for pipeline failures.
var (
	// ErrUnauthenticated indicates the call required a credential and none
	// was usable. No network request was made.
	ErrUnauthenticated = errors.New("not signed in")

	// ErrSessionVoid is wrapped by the RejectedError of a 401 response. By
	// the time the caller sees it the credential store has been cleared,
	// unless the request carried an explicit token that was already replaced.
	ErrSessionVoid = errors.New("session is no longer valid")

	// ErrResponseTooLarge indicates the body exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response exceeded maximum size")
)

// RejectedError is a non-2xx response from the backend. An empty Code means
// the body was not an error envelope; Message then holds the raw body text.
type RejectedError struct {
	Status  int
	Code    string
	Field   string
	Message string
	Body    []byte
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("request rejected [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("request rejected (HTTP %d): %s", e.Status, e.Message)
}

// Unwrap exposes ErrSessionVoid for 401 responses.
func (e *RejectedError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrSessionVoid
	}
	return nil
}

// TransportError is a failure to build, send or read a request.
type TransportError struct {
	// Op is one of "encode", "request", "rate_limit", "send" or "read".
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether retrying the same request could succeed:
// connection and read failures, 5xx and 429 responses. Encoding failures,
// cancellation and every other rejection are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		switch te.Op {
		case "encode", "request":
			return false
		}
		return !errors.Is(te.Cause, context.Canceled) && !errors.Is(te.Cause, ErrResponseTooLarge)
	}

	var re *RejectedError
	if errors.As(err, &re) {
		return re.Status >= 500 || re.Status == http.StatusTooManyRequests
	}
	return false
}

// errorEnvelope is the backend's error body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

// rejection converts a non-2xx response body into a RejectedError. An
// unparseable body becomes the message verbatim with an empty code.
func rejection(status int, body []byte) *RejectedError {
	re := &RejectedError{Status: status, Body: body}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && (env.Error.Code != "" || env.Error.Message != "") {
		re.Code = env.Error.Code
		re.Field = env.Error.Field
		re.Message = env.Error.Message
	} else {
		re.Message = strings.TrimSpace(string(body))
	}

	if re.Message == "" {
		re.Message = http.StatusText(status)
	}
	return re
}
