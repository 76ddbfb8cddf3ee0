// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/clientdesk/internal/credential"
)

// Configuration constants for the pipeline.
const (
	// DefaultTimeout is the default timeout for one request.
	DefaultTimeout = 30 * time.Second

	// DefaultRotationHeader carries a replacement credential on any response.
	DefaultRotationHeader = "X-Refreshed-Token"

	// DefaultUserAgent identifies the client to the backend.
	DefaultUserAgent = "clientdesk/1.0"
)

var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// sharedHTTPClient pools connections for every Pipeline that does not bring
// its own client.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// CredentialStore is the credential state the pipeline reads and mutates.
// *credential.Store satisfies it.
type CredentialStore interface {
	Get() (string, bool)
	Set(token string) error
	Clear() error
}

// Options describes one request.
type Options struct {
	// Method defaults to GET.
	Method string

	// Body is JSON-encoded when non-nil.
	Body any

	// RequireAuth fails the call with ErrUnauthenticated, without touching
	// the network, when no usable credential exists.
	RequireAuth bool

	// Header values are added to the request. The pipeline's own headers
	// take precedence.
	Header http.Header

	// Token, when set, is sent as the bearer credential instead of the
	// stored one. While Token is not the current credential, the response
	// neither rotates the store nor tears it down on a 401.
	Token string

	// Query is appended to the endpoint URL.
	Query url.Values
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline is the single path every backend request takes. It is safe for
// concurrent use.
type Pipeline struct {
	baseURL        string
	store          CredentialStore
	client         *http.Client
	timeout        time.Duration
	rotationHeader string
	userAgent      string
	limiter        *rate.Limiter
	extra          []Interceptor

	handler Handler

	hooksMu sync.Mutex
	hooks   map[int]func()
	nextID  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient replaces the shared pooled client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.client = c
		}
	}
}

// WithTimeout bounds each request. Zero disables the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.timeout = d
		}
	}
}

// WithRotationHeader sets the response header that carries a rotated
// credential.
func WithRotationHeader(name string) Option {
	return func(p *Pipeline) {
		if name != "" {
			p.rotationHeader = http.CanonicalHeaderKey(name)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(p *Pipeline) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Pipeline) {
		if rps <= 0 {
			p.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Use appends interceptors that run after the built-in chain, closest to
// the network.
func Use(interceptors ...Interceptor) Option {
	return func(p *Pipeline) {
		p.extra = append(p.extra, interceptors...)
	}
}

// New creates a Pipeline sending to baseURL with credentials from store.
func New(baseURL string, store CredentialStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		baseURL:        strings.TrimRight(baseURL, "/"),
		store:          store,
		client:         sharedHTTPClient,
		timeout:        DefaultTimeout,
		rotationHeader: DefaultRotationHeader,
		userAgent:      DefaultUserAgent,
		hooks:          make(map[int]func()),
	}
	for _, opt := range opts {
		opt(p)
	}

	chain := []Interceptor{
		logRequests(),
		limitRate(p.limiter),
		attachBearer(p.store),
		applyRotation(p.store, p.rotationHeader),
		tearDownOnUnauthorized(p.store, p.teardown),
	}
	chain = append(chain, p.extra...)
	p.handler = Chain(p.do, chain...)
	return p
}

// BaseURL returns the backend base URL.
func (p *Pipeline) BaseURL() string {
	return p.baseURL
}

// OnUnauthorized registers fn to run whenever the session is torn down: a
// 401 response or an expired credential. Hooks run after the store has been
// cleared, on the goroutine that issued the request.
func (p *Pipeline) OnUnauthorized(fn func()) (remove func()) {
	p.hooksMu.Lock()
	id := p.nextID
	p.nextID++
	p.hooks[id] = fn
	p.hooksMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.hooksMu.Lock()
			delete(p.hooks, id)
			p.hooksMu.Unlock()
		})
	}
}

// Send issues one request to endpoint, relative to the base URL.
//
// A 2xx answer returns a Response. Otherwise the error is ErrUnauthenticated,
// a *RejectedError, or a *TransportError.
func (p *Pipeline) Send(ctx context.Context, endpoint string, opts Options) (*Response, error) {
	if opts.RequireAuth {
		token, ok := p.store.Get()
		if !ok {
			return nil, ErrUnauthenticated
		}
		if credential.Expired(token, time.Now()) {
			logger.Info("credential_expired", "fingerprint", credential.Fingerprint(token))
			p.teardown()
			return nil, ErrUnauthenticated
		}
	}

	if opts.Token != "" {
		ctx = context.WithValue(ctx, explicitTokenKey{}, opts.Token)
	}

	req, err := p.newRequest(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}

	if p.timeout > 0 {
		reqCtx, cancel := context.WithTimeout(req.Context(), p.timeout)
		defer cancel()
		req = req.WithContext(reqCtx)
	}

	resp, err := p.handler(req)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TransportError{Op: "send", Cause: err}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, &TransportError{Op: "read", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, rejection(resp.StatusCode, body)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, body: body}, nil
}

func (p *Pipeline) newRequest(ctx context.Context, endpoint string, opts Options) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := p.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, &TransportError{Op: "encode", Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &TransportError{Op: "request", Cause: err}
	}

	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)
	return req, nil
}

// do is the innermost handler.
func (p *Pipeline) do(req *http.Request) (*http.Response, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "send", Cause: err}
	}
	return resp, nil
}

// teardown clears the credential and runs every OnUnauthorized hook.
func (p *Pipeline) teardown() {
	if err := p.store.Clear(); err != nil {
		logger.Warn("credential_clear_failed", "error", err)
	}

	p.hooksMu.Lock()
	hooks := make([]func(), 0, len(p.hooks))
	for _, fn := range p.hooks {
		hooks = append(hooks, fn)
	}
	p.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
