// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the envelope of every --json output.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w, indented.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// StatusData is the --json payload of the status command.
type StatusData struct {
	ConfigPath   string         `json:"config_path"`
	BaseURL      string         `json:"base_url"`
	Credential   CredentialInfo `json:"credential"`
	Session      SessionInfo    `json:"session"`
	SignedIn     bool           `json:"signed_in"`
	User         string         `json:"user,omitempty"`
	ServerStatus string         `json:"server_status,omitempty"`
}

// CredentialInfo describes the stored credential without revealing it.
type CredentialInfo struct {
	Backend     string `json:"backend"`
	Path        string `json:"path,omitempty"`
	Present     bool   `json:"present"`
	Fingerprint string `json:"fingerprint,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Expired     bool   `json:"expired,omitempty"`
}

// SessionInfo describes the inactivity policy.
type SessionInfo struct {
	Enabled          bool     `json:"enabled"`
	IdleTimeout      string   `json:"idle_timeout"`
	CountdownSeconds int      `json:"countdown_seconds"`
	ActivitySignals  []string `json:"activity_signals"`
}
