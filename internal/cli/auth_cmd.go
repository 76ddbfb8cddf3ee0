// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/clientdesk/internal/credential"
	"github.com/jeranaias/clientdesk/internal/ui/styles"
)

// =============================================================================
// LOGIN
// =============================================================================

// LoginData is the --json payload of the login command.
type LoginData struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// HandleLogin signs in and stores the credential in the configured slot.
func HandleLogin(ctx context.Context, env *Env, args Args, s Streams) error {
	email := strings.TrimSpace(args.Parser.Flag("email"))

	prompter := s.NewPrompter()
	defer prompter.Close()

	var err error
	if email == "" {
		email, err = prompter.Prompt("Email: ")
		if err != nil {
			return NewCommandError("login", "prompt", "could not read email", err)
		}
		email = strings.TrimSpace(email)
	}
	if email == "" {
		return &UsageError{Message: "email is required", Example: "clientdesk login --email you@example.com"}
	}

	password, err := prompter.PasswordPrompt("Password: ")
	if err != nil {
		return NewCommandError("login", "prompt", "could not read password", err)
	}
	if password == "" {
		return &UsageError{Message: "password is required"}
	}

	user, err := env.API.Login(ctx, email, password)
	if err != nil {
		return NewCommandError("login", "sign in", "backend refused the request", err)
	}

	if args.JSON {
		return NewJSONResponse("login", LoginData{UserID: user.ID, Name: user.Name, Email: user.Email}).Write(s.Out)
	}
	fmt.Fprintln(s.Out, styles.RenderSuccess("Signed in as "+user.DisplayName()))
	return nil
}

// =============================================================================
// LOGOUT
// =============================================================================

// HandleLogout revokes the stored credential (best effort) and removes it.
func HandleLogout(ctx context.Context, env *Env, args Args, s Streams) error {
	token, ok := env.Store.Get()
	if !ok {
		if args.JSON {
			return NewJSONResponse("logout", map[string]bool{"signed_out": false}).Write(s.Out)
		}
		fmt.Fprintln(s.Out, styles.RenderInfo("Not signed in."))
		return nil
	}

	if err := env.API.Logout(ctx, token); err != nil {
		env.Logger.Warn("logout_request_failed", "error", err)
	}
	if err := env.Store.Clear(); err != nil {
		return NewCommandError("logout", "clear", "could not remove the stored credential", err)
	}

	if args.JSON {
		return NewJSONResponse("logout", map[string]bool{"signed_out": true}).Write(s.Out)
	}
	fmt.Fprintln(s.Out, styles.RenderSuccess("Signed out."))
	return nil
}

// =============================================================================
// STATUS
// =============================================================================

// HandleStatus reports configuration and credential state. Unless --offline
// is given, a present credential is checked against the backend.
func HandleStatus(ctx context.Context, env *Env, args Args, s Streams) error {
	cfg := env.Config
	data := StatusData{
		ConfigPath: env.ConfigPath,
		BaseURL:    cfg.API.BaseURL,
		Credential: CredentialInfo{Backend: cfg.Credential.Backend},
		Session: SessionInfo{
			Enabled:          cfg.Session.Enabled,
			IdleTimeout:      (time.Duration(cfg.Session.IdleTimeoutMs) * time.Millisecond).String(),
			CountdownSeconds: cfg.Session.CountdownSeconds,
			ActivitySignals:  cfg.Session.ActivitySignals,
		},
	}
	if path, err := cfg.CredentialPath(); err == nil {
		data.Credential.Path = path
	}

	if token, ok := env.Store.Get(); ok {
		data.Credential.Present = true
		data.Credential.Fingerprint = credential.Fingerprint(token)
		if exp, ok := env.Store.Expiry(); ok {
			data.Credential.ExpiresAt = exp.UTC().Format(time.RFC3339)
			data.Credential.Expired = credential.Expired(token, time.Now())
		}

		if !args.Parser.BoolFlag("offline") {
			user, err := env.API.Me(ctx)
			if err != nil {
				data.ServerStatus = err.Error()
			} else {
				data.SignedIn = true
				data.User = user.DisplayName()
				data.ServerStatus = "ok"
			}
		}
	}

	if args.JSON {
		return NewJSONResponse("status", data).Write(s.Out)
	}

	fmt.Fprintf(s.Out, "Config:      %s\n", data.ConfigPath)
	fmt.Fprintf(s.Out, "Backend:     %s\n", data.BaseURL)
	fmt.Fprintf(s.Out, "Credential:  %s", data.Credential.Backend)
	if data.Credential.Path != "" {
		fmt.Fprintf(s.Out, " (%s)", data.Credential.Path)
	}
	fmt.Fprintln(s.Out)

	if data.Session.Enabled {
		fmt.Fprintf(s.Out, "Inactivity:  sign out after %s idle, %ds warning\n",
			data.Session.IdleTimeout, data.Session.CountdownSeconds)
	} else {
		fmt.Fprintln(s.Out, "Inactivity:  disabled")
	}

	switch {
	case !data.Credential.Present:
		fmt.Fprintln(s.Out, styles.RenderInfo("Not signed in."))
	case data.SignedIn:
		fmt.Fprintln(s.Out, styles.RenderSuccess("Signed in as "+data.User+" ["+data.Credential.Fingerprint+"]"))
	case data.Credential.Expired:
		fmt.Fprintln(s.Out, styles.RenderWarning("Stored credential expired at "+data.Credential.ExpiresAt))
	case data.ServerStatus != "":
		fmt.Fprintln(s.Out, styles.RenderWarning("Stored credential could not be verified: "+data.ServerStatus))
	default:
		fmt.Fprintln(s.Out, styles.RenderInfo("Stored credential ["+data.Credential.Fingerprint+"]"))
	}
	return nil
}
