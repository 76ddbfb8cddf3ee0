// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/clientdesk/internal/app"
)

// RunTUI starts the full-screen application. Logs go to the configured log
// file since the terminal belongs to Bubble Tea.
func RunTUI(args Args) error {
	cfg, path, err := LoadConfig(args)
	if err != nil {
		return err
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	env, err := OpenEnv(Args{ConfigPath: path}, EnvOptions{Config: cfg, LogOutput: logFile, Watch: true})
	if err != nil {
		return err
	}
	defer env.Close()

	timerCfg, err := cfg.SessionTimer()
	if err != nil {
		return err
	}

	m := app.New(app.Options{API: env.API, Session: timerCfg})
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),      // Use alternate screen buffer
		tea.WithMouseAllMotion(), // Pointer movement counts as activity
	)
	m.Attach(p)
	defer m.Close()

	env.Logger.Info("tui_started", "base_url", cfg.API.BaseURL, "session_enabled", timerCfg.Enabled)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running clientdesk: %w", err)
	}
	return nil
}

// Run executes cmd and returns the process exit code.
func Run(cmd Command, args Args) int {
	s := StdStreams()
	err := dispatch(cmd, args, s)
	if err == nil {
		return ExitSuccess
	}
	if args.JSON {
		_ = NewJSONErrorResponse(args.Name, err).Write(s.Out)
	} else {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
	}
	return ExitCode(err)
}

func dispatch(cmd Command, args Args, s Streams) error {
	switch cmd {
	case CmdTUI:
		return RunTUI(args)
	case CmdHelp:
		PrintUsage(s.Out, IsStdoutTTY())
		return nil
	case CmdVersion:
		return HandleVersion(s.Out, args)
	case CmdUnknown:
		return &UsageError{Message: fmt.Sprintf("unknown command %q", args.Name), Example: "clientdesk help"}
	}

	env, err := OpenEnv(args, EnvOptions{LogOutput: s.Err, LogLevel: headlessLogLevel(args)})
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := commandContext(env)
	defer cancel()

	switch cmd {
	case CmdLogin:
		return HandleLogin(ctx, env, args, s)
	case CmdLogout:
		return HandleLogout(ctx, env, args, s)
	case CmdStatus:
		return HandleStatus(ctx, env, args, s)
	case CmdClients:
		return HandleClients(ctx, env, args, s)
	}
	return nil
}
