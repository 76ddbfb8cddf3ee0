// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport is the authenticated request pipeline for the backend.
//
// Every request flows through one Pipeline. It attaches the current bearer
// credential, applies credential rotation advertised by the server, and
// treats a 401 as a global session teardown: the credential store is cleared
// and every OnUnauthorized hook runs before the caller sees the error.
//
// # Key Types
//
//   - Pipeline: builds requests, runs the interceptor chain, classifies errors
//   - Response: a fully read body decoded on demand
//   - RejectedError: the server answered with a non-2xx status
//   - TransportError: the request never produced a usable response
//
// # Usage
//
//	p := transport.New(cfg.API.BaseURL, store,
//	    transport.WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst))
//	p.OnUnauthorized(func() { program.Send(app.SignedOutMsg{}) })
//
//	resp, err := p.Send(ctx, "/auth/me", transport.Options{RequireAuth: true})
//	if err != nil {
//	    return err
//	}
//	var me User
//	err = resp.Decode(&me)
//
// # Security
//
// Credentials, header values and bodies are never logged. Response bodies
// are capped at MaxResponseSize.
package transport
