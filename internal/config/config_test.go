// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/clientdesk/internal/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	timer, err := cfg.SessionTimer()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, timer.IdleTimeout)
	assert.Equal(t, 60, timer.CountdownSeconds)
	assert.Len(t, timer.Signals, 6)
	assert.True(t, timer.Enabled)

	assert.Equal(t, 3, cfg.Collision.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.CollisionDelay())
	assert.Equal(t, "unique_violation", cfg.Collision.Code)
	assert.Empty(t, cfg.Collision.LegacyMarker)
	assert.Equal(t, "X-Refreshed-Token", cfg.API.RotationHeader)
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromPath_PartialFile(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://desk.example.com/api"

[session]
idle_timeout_ms = 1000
countdown_seconds = 3
activity_signals = ["keypress", "click"]
enabled = false

[credential]
backend = "sqlite"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://desk.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.TimeoutSecs, "unset keys keep their defaults")
	assert.Equal(t, BackendSQLite, cfg.Credential.Backend)
	assert.True(t, cfg.Credential.Watch)

	timer, err := cfg.SessionTimer()
	require.NoError(t, err)
	assert.Equal(t, time.Second, timer.IdleTimeout)
	assert.Equal(t, 3, timer.CountdownSeconds)
	assert.Equal(t, []session.Signal{session.SignalClick, session.SignalKeyPress}, timer.Signals.Slice())
	assert.False(t, timer.Enabled)
}

func TestLoadFromPath_TightensPermissions(t *testing.T) {
	path := writeConfig(t, "[log]\nlevel = \"debug\"\n")
	require.NoError(t, os.Chmod(path, 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadFromPath_DecodeError(t *testing.T) {
	path := writeConfig(t, "[api\nbase_url = ")
	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero idle timeout", func(c *Config) { c.Session.IdleTimeoutMs = 0 }, "session.idle_timeout_ms"},
		{"negative countdown", func(c *Config) { c.Session.CountdownSeconds = -1 }, "session.countdown_seconds"},
		{"unknown signal", func(c *Config) { c.Session.ActivitySignals = []string{"keypress", "hover"} }, "session.activity_signals"},
		{"relative url", func(c *Config) { c.API.BaseURL = "/api" }, "api.base_url"},
		{"zero timeout", func(c *Config) { c.API.TimeoutSecs = 0 }, "api.timeout_secs"},
		{"negative rate", func(c *Config) { c.API.RequestsPerSecond = -1 }, "api.requests_per_second"},
		{"bad backend", func(c *Config) { c.Credential.Backend = "keyring" }, "credential.backend"},
		{"zero attempts", func(c *Config) { c.Collision.MaxAttempts = 0 }, "collision.max_attempts"},
		{"empty code", func(c *Config) { c.Collision.Code = "" }, "collision.code"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Session.IdleTimeoutMs = 0
	cfg.Session.CountdownSeconds = 0
	cfg.Credential.Backend = ""

	err := cfg.Validate()
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
	assert.Contains(t, err.Error(), "session.idle_timeout_ms")
	assert.Contains(t, err.Error(), "credential.backend")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CLIENTDESK_API_URL", "https://override.example.com")
	t.Setenv("CLIENTDESK_IDLE_TIMEOUT_MS", "5000")
	t.Setenv("CLIENTDESK_COUNTDOWN_SECONDS", "10")
	t.Setenv("CLIENTDESK_SESSION_ENABLED", "false")
	t.Setenv("CLIENTDESK_CREDENTIAL_BACKEND", "MEMORY")
	t.Setenv("CLIENTDESK_LOG_LEVEL", "warn")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.API.BaseURL)
	assert.Equal(t, 5000, cfg.Session.IdleTimeoutMs)
	assert.Equal(t, 10, cfg.Session.CountdownSeconds)
	assert.False(t, cfg.Session.Enabled)
	assert.Equal(t, BackendMemory, cfg.Credential.Backend)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel())
}

func TestApplyEnvOverrides_BadNumber(t *testing.T) {
	t.Setenv("CLIENTDESK_IDLE_TIMEOUT_MS", "soon")
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "none.toml"))
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CLIENTDESK_HOME", home)

	path, err := Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml"), path)

	cfg := Default()
	cred, err := cfg.CredentialPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "credential"), cred)

	cfg.Credential.Backend = BackendSQLite
	cred, err = cfg.CredentialPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "clientdesk.db"), cred)

	cfg.Credential.Path = "/tmp/explicit"
	cred, err = cfg.CredentialPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit", cred)

	logPath, err := cfg.LogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "clientdesk.log"), logPath)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.API.BaseURL = "https://saved.example.com"
	cfg.Session.CountdownSeconds = 15

	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
