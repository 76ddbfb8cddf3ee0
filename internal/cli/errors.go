// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/clientdesk/internal/config"
	"github.com/jeranaias/clientdesk/internal/transport"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "login", "clients")
	Action  string // Action being performed (e.g., "create")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports a malformed command line.
type UsageError struct {
	Message string
	Example string
}

func (e *UsageError) Error() string {
	if e.Example != "" {
		return fmt.Sprintf("%s\nExample: %s", e.Message, e.Example)
	}
	return e.Message
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	var usage *UsageError
	var verrs config.ValidateErrors
	var terr *transport.TransportError
	var rejected *transport.RejectedError

	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &verrs):
		return ExitConfigError
	case errors.Is(err, transport.ErrUnauthenticated), errors.Is(err, transport.ErrSessionVoid):
		return ExitAuthError
	case errors.As(err, &terr):
		return ExitNetworkError
	case errors.As(err, &rejected) && transport.IsTransient(err):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}
