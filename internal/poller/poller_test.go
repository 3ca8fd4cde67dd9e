package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/user/deckhand/pkg/generate"
)

// fakeClock advances instantly on After, simulating elapsed time without
// real delays.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// scriptedService reports running for a fixed number of polls, then a
// terminal state.
type scriptedService struct {
	mu         sync.Mutex
	submitErr  error
	pollErrs   int
	runningFor int
	terminal   generate.JobState
	submits    int
	polls      int
}

func (s *scriptedService) Submit(_ context.Context, content string) (generate.JobID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return "job-1", nil
}

func (s *scriptedService) Poll(_ context.Context, id generate.JobID) (generate.JobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.pollErrs > 0 {
		s.pollErrs--
		return generate.JobState{}, fmt.Errorf("connection reset")
	}
	if s.polls <= s.runningFor {
		return generate.JobState{Status: generate.StatusRunning}, nil
	}
	return s.terminal, nil
}

func newPoller(service generate.Service, clock Clock) *Poller {
	return New(service,
		WithInterval(4*time.Second),
		WithCeiling(2*time.Minute),
		WithClock(clock),
	)
}

func TestRunSucceedsAfterNPolls(t *testing.T) {
	clock := newFakeClock()
	service := &scriptedService{
		runningFor: 3,
		terminal:   generate.JobState{Status: generate.StatusSucceeded, Result: "https://x/y"},
	}
	start := clock.Now()

	locator, err := newPoller(service, clock).Run(context.Background(), "content")
	if err != nil {
		t.Fatal(err)
	}
	if locator != "https://x/y" {
		t.Errorf("locator = %q", locator)
	}
	if service.polls != 4 {
		t.Errorf("polls = %d, want 4", service.polls)
	}
	// Success cannot arrive earlier than N+1 poll intervals.
	if elapsed := clock.Now().Sub(start); elapsed < 4*4*time.Second {
		t.Errorf("succeeded after %v, want >= %v", elapsed, 4*4*time.Second)
	}
}

func TestRunReportsGenerationFailure(t *testing.T) {
	clock := newFakeClock()
	service := &scriptedService{terminal: generate.JobState{Status: generate.StatusFailed}}

	_, err := newPoller(service, clock).Run(context.Background(), "content")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("err = %v, want ErrGenerationFailed", err)
	}
}

func TestRunSubmissionErrorNotRetried(t *testing.T) {
	clock := newFakeClock()
	service := &scriptedService{submitErr: fmt.Errorf("quota exhausted")}

	_, err := newPoller(service, clock).Run(context.Background(), "content")
	if !errors.Is(err, ErrSubmission) {
		t.Errorf("err = %v, want ErrSubmission", err)
	}
	if service.submits != 1 {
		t.Errorf("submits = %d, want 1", service.submits)
	}
	if service.polls != 0 {
		t.Errorf("polls = %d, want 0", service.polls)
	}
}

func TestRunTimesOutAtCeiling(t *testing.T) {
	clock := newFakeClock()
	service := &scriptedService{runningFor: 1 << 30} // never terminal
	start := clock.Now()

	_, err := newPoller(service, clock).Run(context.Background(), "content")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}

	// The ceiling is 2m with 4s polls: 29 polls fit strictly inside, the
	// 30th wake lands on the ceiling and times out without polling.
	if service.polls != 29 {
		t.Errorf("polls = %d, want 29", service.polls)
	}
	if elapsed := clock.Now().Sub(start); elapsed < 2*time.Minute {
		t.Errorf("timed out after %v, before the ceiling", elapsed)
	}
}

func TestRunSwallowsTransientPollErrors(t *testing.T) {
	clock := newFakeClock()
	service := &scriptedService{
		pollErrs: 5,
		terminal: generate.JobState{Status: generate.StatusSucceeded, Result: "https://x/y"},
	}

	locator, err := newPoller(service, clock).Run(context.Background(), "content")
	if err != nil {
		t.Fatal(err)
	}
	if locator != "https://x/y" {
		t.Errorf("locator = %q", locator)
	}
	if service.polls != 6 {
		t.Errorf("polls = %d, want 6", service.polls)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	service := &scriptedService{runningFor: 1 << 30}
	_, err := newPoller(service, newFakeClock()).Run(ctx, "content")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
