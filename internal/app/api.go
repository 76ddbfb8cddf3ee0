// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/clientdesk/internal/collision"
	"github.com/jeranaias/clientdesk/internal/credential"
	"github.com/jeranaias/clientdesk/internal/transport"
)

// Backend endpoints.
const (
	EndpointLogin   = "/auth/login"
	EndpointMe      = "/auth/me"
	EndpointLogout  = "/auth/logout"
	EndpointClients = "/clients"
)

// ErrNoToken is returned when a sign-in response carries no credential.
var ErrNoToken = errors.New("sign-in response did not include a token")

// User is the signed-in account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// DisplayName returns the name, falling back to the email address.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Client is a client record created from the home view.
type Client struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// =============================================================================
// API
// =============================================================================

// API is the typed backend client used by the TUI and the headless commands.
type API struct {
	pipeline *transport.Pipeline
	store    *credential.Store
	clients  *collision.Submitter
}

// NewAPI creates an API. A nil submitter creates clients with reference codes
// of the form CL-XXXXXXXX and the default retry policy.
func NewAPI(pipeline *transport.Pipeline, store *credential.Store, clients *collision.Submitter) *API {
	if clients == nil {
		clients = collision.New(pipeline, collision.ReferenceCodeGenerator("CL", 8))
	}
	return &API{pipeline: pipeline, store: store, clients: clients}
}

// Pipeline returns the underlying request pipeline.
func (a *API) Pipeline() *transport.Pipeline {
	return a.pipeline
}

// Store returns the credential store the pipeline reads from.
func (a *API) Store() *credential.Store {
	return a.store
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a bearer token and stores it.
func (a *API) Login(ctx context.Context, email, password string) (User, error) {
	resp, err := a.pipeline.Send(ctx, EndpointLogin, transport.Options{
		Method: http.MethodPost,
		Body:   loginRequest{Email: strings.TrimSpace(email), Password: password},
	})
	if err != nil {
		return User{}, err
	}

	var out loginResponse
	if err := resp.Decode(&out); err != nil {
		return User{}, err
	}
	if out.Token == "" {
		return User{}, ErrNoToken
	}

	if err := a.store.Set(out.Token); err != nil {
		// The credential is current in memory; only persistence was lost.
		logger.Warn("credential_persist_failed", "error", err)
	}
	return out.User, nil
}

// Me returns the account owning the current credential.
func (a *API) Me(ctx context.Context) (User, error) {
	resp, err := a.pipeline.Send(ctx, EndpointMe, transport.Options{RequireAuth: true})
	if err != nil {
		return User{}, err
	}
	var u User
	if err := resp.Decode(&u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Logout tells the backend to revoke token, which need not be the current
// credential. The local store is not touched, callers clear it before or after
// as their flow requires. An empty token is a no-op.
func (a *API) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if _, err := a.pipeline.Send(ctx, EndpointLogout, transport.Options{
		Method: http.MethodPost,
		Token:  token,
	}); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// CreateClient creates a client record under a freshly generated reference
// code, regenerating the code when the backend reports it is taken.
func (a *API) CreateClient(ctx context.Context, name string) (Client, error) {
	name = strings.TrimSpace(name)
	resp, code, err := a.clients.Create(ctx, EndpointClients, func(id string) any {
		return map[string]string{"code": id, "name": name}
	})
	if err != nil {
		return Client{}, err
	}

	var c Client
	if err := resp.Decode(&c); err != nil {
		return Client{}, err
	}
	if c.Code == "" {
		c.Code = code
	}
	if c.Name == "" {
		c.Name = name
	}
	return c, nil
}
