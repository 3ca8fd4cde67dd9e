// Package poller drives an asynchronous generation job to a terminal state:
// submit once, then poll at a fixed interval until the service reports
// success or failure, or the wall-clock ceiling expires.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/deckhand/pkg/generate"
)

// Terminal outcomes. Exactly one is reported per run; callers match with
// errors.Is to pick the user-facing message.
var (
	// ErrSubmission means the service rejected the job request. Never retried.
	ErrSubmission = errors.New("generation service rejected the request")
	// ErrGenerationFailed means the service accepted the job and then failed it.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrTimeout means no terminal status arrived before the ceiling. The
	// in-flight job is abandoned, not cancelled.
	ErrTimeout = errors.New("generation timed out")
)

const (
	DefaultInterval = 4 * time.Second
	DefaultCeiling  = 2 * time.Minute
)

// Poller runs generation jobs against a service. Each Run owns its own
// polling loop; a single Poller may serve any number of concurrent runs.
type Poller struct {
	service  generate.Service
	interval time.Duration
	ceiling  time.Duration
	clock    Clock
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between polls.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithCeiling sets the overall wall-clock limit for one run.
func WithCeiling(d time.Duration) Option {
	return func(p *Poller) { p.ceiling = d }
}

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// New creates a Poller for the given service.
func New(service generate.Service, opts ...Option) *Poller {
	p := &Poller{
		service:  service,
		interval: DefaultInterval,
		ceiling:  DefaultCeiling,
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run submits content and polls until a terminal outcome. On success it
// returns the result locator. Transient poll errors are swallowed and the
// loop keeps going; only the ceiling bounds them.
func (p *Poller) Run(ctx context.Context, content string) (string, error) {
	id, err := p.service.Submit(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	slog.Info("generation job submitted", "job_id", string(id))
	deadline := p.clock.Now().Add(p.ceiling)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-p.clock.After(p.interval):
		}

		if !p.clock.Now().Before(deadline) {
			slog.Warn("generation job abandoned", "job_id", string(id), "ceiling", p.ceiling)
			return "", ErrTimeout
		}

		state, err := p.service.Poll(ctx, id)
		if err != nil {
			// Transient transport failure; the ceiling bounds the retries.
			slog.Warn("poll failed, retrying", "job_id", string(id), "error", err)
			continue
		}

		switch state.Status {
		case generate.StatusSucceeded:
			slog.Info("generation job succeeded", "job_id", string(id), "result", state.Result)
			return state.Result, nil
		case generate.StatusFailed:
			return "", ErrGenerationFailed
		}
	}
}
