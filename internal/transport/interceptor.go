// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/clientdesk/internal/credential"
)

// Handler performs one HTTP exchange.
type Handler func(req *http.Request) (*http.Response, error)

// Interceptor wraps a Handler.
type Interceptor func(next Handler) Handler

// Chain wraps h with interceptors. The first interceptor is the outermost:
// it sees the request first and the response last.
func Chain(h Handler, interceptors ...Interceptor) Handler {
	for i := len(interceptors) - 1; i >= 0; i-- {
		h = interceptors[i](h)
	}
	return h
}

// =============================================================================
// BUILT-IN INTERCEPTORS
// =============================================================================

// logRequests records method, path, status and duration. Headers and bodies
// are never logged.
func logRequests() Interceptor {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next(req)
			duration := time.Since(start)

			if err != nil {
				logger.Warn("request_failed",
					"method", req.Method,
					"path", req.URL.Path,
					"duration", duration,
					"error", err)
				return nil, err
			}
			logger.Debug("request_completed",
				"method", req.Method,
				"path", req.URL.Path,
				"status", resp.StatusCode,
				"duration", duration)
			return resp, nil
		}
	}
}

// limitRate blocks until limiter admits the request. A nil limiter passes
// everything through.
func limitRate(limiter *rate.Limiter) Interceptor {
	return func(next Handler) Handler {
		if limiter == nil {
			return next
		}
		return func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, &TransportError{Op: "rate_limit", Cause: err}
			}
			return next(req)
		}
	}
}

type explicitTokenKey struct{}

func explicitToken(req *http.Request) (string, bool) {
	token, ok := req.Context().Value(explicitTokenKey{}).(string)
	return token, ok && token != ""
}

// superseded reports whether req carries an explicit token that is no longer
// the current credential.
func superseded(req *http.Request, store CredentialStore) bool {
	token, ok := explicitToken(req)
	if !ok {
		return false
	}
	current, present := store.Get()
	return !present || current != token
}

// attachBearer reads the credential at send time so a rotation applied by
// an earlier response is visible to every later request. An explicit
// per-request token wins over the store.
func attachBearer(store CredentialStore) Interceptor {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			token, ok := explicitToken(req)
			if !ok {
				token, ok = store.Get()
			}
			if ok {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			resp, err := next(req)
			req.Header.Del("Authorization")
			return resp, err
		}
	}
}

// applyRotation stores a credential advertised in header before the response
// travels further up the chain. A 401 never rotates.
func applyRotation(store CredentialStore, header string) Interceptor {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			resp, err := next(req)
			if err != nil || resp.StatusCode == http.StatusUnauthorized {
				return resp, err
			}
			if superseded(req, store) {
				return resp, nil
			}

			rotated := strings.TrimSpace(resp.Header.Get(header))
			if rotated == "" {
				return resp, nil
			}
			if current, ok := store.Get(); ok && current == rotated {
				return resp, nil
			}
			if err := store.Set(rotated); err != nil {
				logger.Warn("credential_rotation_persist_failed", "error", err)
			}
			logger.Info("credential_rotated", "fingerprint", credential.Fingerprint(rotated))
			return resp, nil
		}
	}
}

// tearDownOnUnauthorized runs teardown for every 401 response, whether or
// not the request carried a credential. A 401 for an explicit token that has
// since been replaced leaves the current session alone.
func tearDownOnUnauthorized(store CredentialStore, teardown func()) Interceptor {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			resp, err := next(req)
			if err == nil && resp.StatusCode == http.StatusUnauthorized {
				if superseded(req, store) {
					logger.Info("superseded_token_unauthorized", "path", req.URL.Path)
					return resp, err
				}
				logger.Info("session_unauthorized", "path", req.URL.Path)
				teardown()
			}
			return resp, err
		}
	}
}
