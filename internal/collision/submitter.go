// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package collision

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/clientdesk/internal/transport"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 100 * time.Millisecond
	DefaultCode        = "unique_violation"
	DefaultField       = "code"
)

var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Sender submits a request. *transport.Pipeline satisfies it.
type Sender interface {
	Send(ctx context.Context, endpoint string, opts transport.Options) (*transport.Response, error)
}

// Attempt describes one submission of a Create call.
type Attempt struct {
	// Number counts from 1.
	Number int
	ID     string
}

// Submitter creates records under a freshly generated identifier, retrying
// with a new identifier when the backend reports a collision.
type Submitter struct {
	sender       Sender
	generate     Generator
	maxAttempts  int
	delay        time.Duration
	code         string
	field        string
	legacyMarker string
	observer     func(Attempt)
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithMaxAttempts sets the total number of submissions, including the first.
func WithMaxAttempts(n int) Option {
	return func(s *Submitter) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithDelay sets the pause between attempts.
func WithDelay(d time.Duration) Option {
	return func(s *Submitter) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithCollisionCode sets the error code that marks a uniqueness violation.
func WithCollisionCode(code string) Option {
	return func(s *Submitter) {
		if code != "" {
			s.code = code
		}
	}
}

// WithField names the identifier field. A violation naming a different
// field is not a collision on the generated identifier.
func WithField(field string) Option {
	return func(s *Submitter) {
		s.field = field
	}
}

// WithLegacyMarker additionally treats any rejection whose message or body
// contains marker as a collision. Off by default.
func WithLegacyMarker(marker string) Option {
	return func(s *Submitter) {
		s.legacyMarker = marker
	}
}

// WithObserver is called before every submission.
func WithObserver(fn func(Attempt)) Option {
	return func(s *Submitter) {
		s.observer = fn
	}
}

// New creates a Submitter sending through sender with identifiers from
// generate. A nil generate means UUIDGenerator.
func New(sender Sender, generate Generator, opts ...Option) *Submitter {
	if generate == nil {
		generate = UUIDGenerator()
	}
	s := &Submitter{
		sender:      sender,
		generate:    generate,
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultDelay,
		code:        DefaultCode,
		field:       DefaultField,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create POSTs build(id) to endpoint as an authenticated request. On a
// collision it regenerates the identifier and resubmits, up to the attempt
// limit, and then returns the last rejection unchanged. Every other failure
// is returned after the attempt that produced it.
//
// The returned string is the identifier of the final attempt.
func (s *Submitter) Create(ctx context.Context, endpoint string, build func(id string) any) (*transport.Response, string, error) {
	var (
		id   string
		last error
	)

	for n := 1; n <= s.maxAttempts; n++ {
		id = s.generate()
		if s.observer != nil {
			s.observer(Attempt{Number: n, ID: id})
		}

		resp, err := s.sender.Send(ctx, endpoint, transport.Options{
			Method:      http.MethodPost,
			Body:        build(id),
			RequireAuth: true,
		})
		if err == nil {
			if n > 1 {
				logger.Info("collision_resolved", "endpoint", endpoint, "attempts", n)
			}
			return resp, id, nil
		}
		if !s.IsCollision(err) {
			return nil, id, err
		}

		last = err
		logger.Info("collision_detected", "endpoint", endpoint, "attempt", n, "max_attempts", s.maxAttempts)

		if n < s.maxAttempts {
			if err := sleep(ctx, s.delay); err != nil {
				return nil, id, err
			}
		}
	}

	logger.Warn("collision_exhausted", "endpoint", endpoint, "attempts", s.maxAttempts)
	return nil, id, last
}

// IsCollision reports whether err is a uniqueness violation on the
// generated identifier.
func (s *Submitter) IsCollision(err error) bool {
	var re *transport.RejectedError
	if !errors.As(err, &re) {
		return false
	}

	if re.Code == s.code && (re.Field == "" || s.field == "" || re.Field == s.field) {
		return true
	}

	if s.legacyMarker != "" {
		return strings.Contains(re.Message, s.legacyMarker) ||
			strings.Contains(string(re.Body), s.legacyMarker)
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
