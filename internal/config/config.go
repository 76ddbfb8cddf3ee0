// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/clientdesk/internal/session"
	"github.com/jeranaias/clientdesk/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete clientdesk configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Session    SessionConfig    `toml:"session"`
	Credential CredentialConfig `toml:"credential"`
	Collision  CollisionConfig  `toml:"collision"`
	Log        LogConfig        `toml:"log"`
}

// APIConfig describes the backend connection.
type APIConfig struct {
	BaseURL     string `toml:"base_url"`
	TimeoutSecs int    `toml:"timeout_secs"`

	// RotationHeader is the response header carrying a replacement credential.
	RotationHeader string `toml:"rotation_header"`
	UserAgent      string `toml:"user_agent"`

	// RequestsPerSecond limits outgoing requests; 0 disables limiting.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// SessionConfig configures inactivity sign-out.
type SessionConfig struct {
	IdleTimeoutMs    int      `toml:"idle_timeout_ms"`
	CountdownSeconds int      `toml:"countdown_seconds"`
	ActivitySignals  []string `toml:"activity_signals"`
	Enabled          bool     `toml:"enabled"`
}

// CredentialConfig selects where the bearer credential is persisted.
type CredentialConfig struct {
	// Backend is one of "file", "sqlite" or "memory".
	Backend string `toml:"backend"`

	// Path overrides the backend's default location.
	Path string `toml:"path"`

	// Watch follows external changes to a file-backed credential.
	Watch bool `toml:"watch"`
}

// CollisionConfig tunes client-generated identifier retries.
type CollisionConfig struct {
	MaxAttempts  int    `toml:"max_attempts"`
	DelayMs      int    `toml:"delay_ms"`
	Code         string `toml:"code"`
	Field        string `toml:"field"`
	LegacyMarker string `toml:"legacy_marker"`
}

// LogConfig configures the structured log.
type LogConfig struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

// Credential backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Default returns the default configuration.
func Default() *Config {
	signals := session.AllSignals().Slice()
	names := make([]string, len(signals))
	for i, s := range signals {
		names[i] = string(s)
	}

	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080/api",
			TimeoutSecs:    30,
			RotationHeader: "X-Refreshed-Token",
			UserAgent:      "clientdesk/1.0",
			Burst:          5,
		},
		Session: SessionConfig{
			IdleTimeoutMs:    int(session.DefaultIdleTimeout / time.Millisecond),
			CountdownSeconds: session.DefaultCountdownSeconds,
			ActivitySignals:  names,
			Enabled:          true,
		},
		Credential: CredentialConfig{
			Backend: BackendFile,
			Watch:   true,
		},
		Collision: CollisionConfig{
			MaxAttempts: 3,
			DelayMs:     100,
			Code:        "unique_violation",
			Field:       "code",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the clientdesk configuration directory. CLIENTDESK_HOME
// overrides the default of ~/.clientdesk.
func Dir() (string, error) {
	if dir := os.Getenv("CLIENTDESK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".clientdesk"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CredentialPath resolves the credential location for the configured
// backend. The memory backend has no path.
func (c *Config) CredentialPath() (string, error) {
	if c.Credential.Path != "" {
		return c.Credential.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	switch c.Credential.Backend {
	case BackendSQLite:
		return filepath.Join(dir, "clientdesk.db"), nil
	case BackendMemory:
		return "", nil
	default:
		return filepath.Join(dir, "credential"), nil
	}
}

// LogPath resolves the log file location.
func (c *Config) LogPath() (string, error) {
	if c.Log.Path != "" {
		return c.Log.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "clientdesk.log"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the default config file if it exists, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load for an explicit path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML with owner-only permissions.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# clientdesk configuration file")
	fmt.Fprintln(&buf, "")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies CLIENTDESK_* environment variables:
//
//   - CLIENTDESK_API_URL: api.base_url
//   - CLIENTDESK_IDLE_TIMEOUT_MS: session.idle_timeout_ms
//   - CLIENTDESK_COUNTDOWN_SECONDS: session.countdown_seconds
//   - CLIENTDESK_SESSION_ENABLED: session.enabled
//   - CLIENTDESK_CREDENTIAL_BACKEND: credential.backend
//   - CLIENTDESK_CREDENTIAL_PATH: credential.path
//   - CLIENTDESK_LOG_LEVEL: log.level
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("CLIENTDESK_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("CLIENTDESK_IDLE_TIMEOUT_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CLIENTDESK_IDLE_TIMEOUT_MS: %w", err)
		}
		c.Session.IdleTimeoutMs = n
	}
	if v := os.Getenv("CLIENTDESK_COUNTDOWN_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CLIENTDESK_COUNTDOWN_SECONDS: %w", err)
		}
		c.Session.CountdownSeconds = n
	}
	if v := os.Getenv("CLIENTDESK_SESSION_ENABLED"); v != "" {
		c.Session.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CLIENTDESK_CREDENTIAL_BACKEND"); v != "" {
		c.Credential.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("CLIENTDESK_CREDENTIAL_PATH"); v != "" {
		c.Credential.Path = v
	}
	if v := os.Getenv("CLIENTDESK_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate returns a ValidateErrors listing every invalid setting, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api.base_url", "must be an absolute http or https URL, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutSecs <= 0 {
		add("api.timeout_secs", "must be positive, got %d", c.API.TimeoutSecs)
	}
	if c.API.RequestsPerSecond < 0 {
		add("api.requests_per_second", "must not be negative, got %v", c.API.RequestsPerSecond)
	}
	if c.API.Burst < 0 {
		add("api.burst", "must not be negative, got %d", c.API.Burst)
	}

	// Session
	if c.Session.IdleTimeoutMs <= 0 {
		add("session.idle_timeout_ms", "must be positive, got %d", c.Session.IdleTimeoutMs)
	}
	if c.Session.CountdownSeconds <= 0 {
		add("session.countdown_seconds", "must be positive, got %d", c.Session.CountdownSeconds)
	}
	if _, err := session.ParseSignals(c.Session.ActivitySignals); err != nil {
		add("session.activity_signals", "%v", err)
	}

	// Credential
	switch c.Credential.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		add("credential.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Credential.Backend)
	}

	// Collision
	if c.Collision.MaxAttempts < 1 {
		add("collision.max_attempts", "must be at least 1, got %d", c.Collision.MaxAttempts)
	}
	if c.Collision.DelayMs < 0 {
		add("collision.delay_ms", "must not be negative, got %d", c.Collision.DelayMs)
	}
	if c.Collision.Code == "" {
		add("collision.code", "must not be empty")
	}

	// Log
	if _, err := parseLevel(c.Log.Level); err != nil {
		add("log.level", "%v", err)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// SessionTimer converts the [session] section into a timer configuration.
func (c *Config) SessionTimer() (session.Config, error) {
	signals, err := session.ParseSignals(c.Session.ActivitySignals)
	if err != nil {
		return session.Config{}, err
	}
	cfg := session.Config{
		IdleTimeout:      time.Duration(c.Session.IdleTimeoutMs) * time.Millisecond,
		CountdownSeconds: c.Session.CountdownSeconds,
		Signals:          signals,
		Enabled:          c.Session.Enabled,
	}
	return cfg, cfg.Validate()
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// CollisionDelay returns the pause between identifier retries.
func (c *Config) CollisionDelay() time.Duration {
	return time.Duration(c.Collision.DelayMs) * time.Millisecond
}

// LogLevel returns the configured slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid level '%s', must be one of: debug, info, warn, error", s)
	}
}
