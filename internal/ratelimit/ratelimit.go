// Package ratelimit keeps outbound Jira requests under a per-minute quota
// using a sliding window of request timestamps.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultRequestsPerMinute is the quota used when none is configured.
	DefaultRequestsPerMinute = 50
	// DefaultBufferPercent is the share of the quota held back as a safety margin.
	DefaultBufferPercent = 10

	window       = time.Minute
	lowHeadPause = 2 * time.Second
)

// Usage is a point-in-time view of the window.
type Usage struct {
	Current   int `json:"current_requests"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
	Buffer    int `json:"buffer"`
}

// Limiter blocks callers until another request fits in the rolling window.
type Limiter struct {
	mu       sync.Mutex
	limit    int
	buffer   int
	requests []time.Time
	warnings []domain.Diagnostic

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	log   zerolog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleeper replaces the context-aware sleep used while waiting.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// WithLogger sets the logger used for wait notices.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// New creates a limiter allowing requestsPerMinute calls per rolling minute,
// minus bufferPercent of that quota.
func New(requestsPerMinute, bufferPercent int, opts ...Option) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	if bufferPercent < 0 {
		bufferPercent = 0
	}
	l := &Limiter{
		limit:  requestsPerMinute,
		buffer: requestsPerMinute * bufferPercent / 100,
		now:    time.Now,
		sleep:  sleepContext,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until issuing one more request keeps the window under
// limit-buffer, then records the request.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.now()
		l.evict(now)
		if len(l.requests) < l.threshold() {
			break
		}

		wait := l.requests[0].Add(window).Sub(now)
		l.log.Info().
			Dur("wait", wait).
			Int("current", len(l.requests)).
			Int("limit", l.limit).
			Msg("rate limit approaching, waiting")

		l.mu.Unlock()
		err := l.sleep(ctx, wait)
		l.mu.Lock()
		if err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	l.requests = append(l.requests, l.now())
	return nil
}

// Observe reacts to the server-reported remaining quota. When it drops under
// the buffer a warning diagnostic is recorded and the caller pauses briefly.
func (l *Limiter) Observe(ctx context.Context, remaining int) error {
	if remaining >= l.buffer {
		return nil
	}

	l.mu.Lock()
	l.warnings = append(l.warnings, domain.Diagnostic{
		Kind:    domain.DiagRateLimit,
		Message: fmt.Sprintf("only %d requests remaining", remaining),
		At:      l.now(),
	})
	l.mu.Unlock()

	l.log.Warn().Int("remaining", remaining).Msg("very low on remaining requests")
	return l.sleep(ctx, lowHeadPause)
}

// Usage reports the current window without modifying it.
func (l *Limiter) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-window)
	current := 0
	for _, t := range l.requests {
		if t.After(cutoff) {
			current++
		}
	}
	return Usage{
		Current:   current,
		Limit:     l.limit,
		Remaining: l.limit - current,
		Buffer:    l.buffer,
	}
}

// DrainWarnings returns and clears the recorded rate-limit diagnostics.
func (l *Limiter) DrainWarnings() []domain.Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.warnings
	l.warnings = nil
	return out
}

func (l *Limiter) threshold() int {
	t := l.limit - l.buffer
	if t < 1 {
		return 1
	}
	return t
}

// evict drops timestamps that are a full window old. Must be called with mu held.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.requests) && !l.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.requests = append(l.requests[:0], l.requests[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
