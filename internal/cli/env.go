// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/clientdesk/internal/app"
	"github.com/jeranaias/clientdesk/internal/collision"
	"github.com/jeranaias/clientdesk/internal/config"
	"github.com/jeranaias/clientdesk/internal/credential"
	"github.com/jeranaias/clientdesk/internal/session"
	"github.com/jeranaias/clientdesk/internal/transport"
)

// =============================================================================
// ENVIRONMENT
// =============================================================================

// Env is everything a command needs: configuration, the credential store
// and the backend client built over it.
type Env struct {
	Config     *config.Config
	ConfigPath string
	Store      *credential.Store
	Pipeline   *transport.Pipeline
	API        *app.API
	Logger     *slog.Logger

	closers []func() error
}

// EnvOptions controls how OpenEnv builds an Env.
type EnvOptions struct {
	// Config skips loading when already read.
	Config *config.Config

	// LogOutput receives structured logs. Nil discards them.
	LogOutput io.Writer

	// LogLevel overrides the configured level when set.
	LogLevel *slog.Level

	// Watch keeps the store in sync with a file slot other processes use.
	Watch bool
}

// LoadConfig reads the configuration named by --config, or the default file.
func LoadConfig(args Args) (*config.Config, string, error) {
	path := args.ConfigPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// OpenEnv loads configuration and wires the credential store, request
// pipeline and collision submitter from it. Close releases the slot.
func OpenEnv(args Args, opts EnvOptions) (*Env, error) {
	cfg, path := opts.Config, args.ConfigPath
	if cfg == nil {
		var err error
		if cfg, path, err = LoadConfig(args); err != nil {
			return nil, err
		}
	}

	level := cfg.LogLevel()
	if opts.LogLevel != nil {
		level = *opts.LogLevel
	}
	out := opts.LogOutput
	if out == nil {
		out = io.Discard
	}
	logger := ConfigureLogging(out, level)

	env := &Env{Config: cfg, ConfigPath: path, Logger: logger}

	slot, err := env.openSlot(opts.Watch)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Store = credential.NewStore(slot)
	if err := env.Store.Load(); err != nil {
		logger.Warn("credential_load_failed", "error", err)
	}

	if fs, ok := slot.(*credential.FileSlot); ok && opts.Watch {
		if err := env.watch(fs); err != nil {
			// The store still works; other instances' changes go unnoticed.
			logger.Warn("credential_watch_failed", "error", err)
		}
	}

	env.Pipeline = transport.New(cfg.API.BaseURL, env.Store,
		transport.WithTimeout(cfg.Timeout()),
		transport.WithRotationHeader(cfg.API.RotationHeader),
		transport.WithUserAgent(cfg.API.UserAgent),
		transport.WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst),
	)

	submitter := collision.New(env.Pipeline, collision.ReferenceCodeGenerator("CL", 8),
		collision.WithMaxAttempts(cfg.Collision.MaxAttempts),
		collision.WithDelay(cfg.CollisionDelay()),
		collision.WithCollisionCode(cfg.Collision.Code),
		collision.WithField(cfg.Collision.Field),
		collision.WithLegacyMarker(cfg.Collision.LegacyMarker),
	)
	env.API = app.NewAPI(env.Pipeline, env.Store, submitter)

	return env, nil
}

// Close releases the slot and any watcher. Safe to call more than once.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func (e *Env) openSlot(watch bool) (credential.Slot, error) {
	path, err := e.Config.CredentialPath()
	if err != nil {
		return nil, err
	}

	switch e.Config.Credential.Backend {
	case config.BackendMemory:
		return credential.NewMemorySlot(), nil

	case config.BackendSQLite:
		s, err := credential.OpenSQLiteSlot(path)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, s.Close)
		return s, nil

	default:
		if watch {
			// The watcher needs the directory before the first sign-in.
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return nil, fmt.Errorf("failed to create credential directory: %w", err)
			}
		}
		return credential.NewFileSlot(path), nil
	}
}

func (e *Env) watch(slot *credential.FileSlot) error {
	if !e.Config.Credential.Watch {
		return nil
	}
	w, err := credential.Watch(context.Background(), e.Store, slot)
	if err != nil {
		return err
	}
	e.closers = append(e.closers, w.Close)
	return nil
}

// =============================================================================
// LOGGING
// =============================================================================

// ConfigureLogging installs a text handler writing to w at level as the
// logger of every package and as the slog default.
func ConfigureLogging(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))

	slog.SetDefault(logger)
	session.SetLogger(logger)
	transport.SetLogger(logger)
	collision.SetLogger(logger)
	credential.SetLogger(logger)
	app.SetLogger(logger)

	return logger
}

// headlessLogLevel is the stderr level for one-shot commands.
func headlessLogLevel(args Args) *slog.Level {
	level := slog.LevelWarn
	if args.Verbose {
		level = slog.LevelDebug
	}
	return &level
}

// commandContext bounds a headless command, including collision retries.
func commandContext(env *Env) (context.Context, context.CancelFunc) {
	budget := env.Config.Timeout() * time.Duration(env.Config.Collision.MaxAttempts+1)
	return context.WithTimeout(context.Background(), budget)
}
