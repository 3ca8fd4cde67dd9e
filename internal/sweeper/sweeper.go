// Package sweeper reaps sessions that were opened and then abandoned, so a
// conversation the user walked away from does not hold its accumulated input
// forever.
package sweeper

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/deckhand/internal/session"
)

// Sweeper periodically clears sessions idle longer than maxAge.
type Sweeper struct {
	sessions *session.Store
	maxAge   time.Duration
	every    string
	cron     *cron.Cron
}

// New creates a Sweeper over the given store. every is a cron spec (a
// descriptor like "@every 10m" works); maxAge is the idle threshold.
func New(sessions *session.Store, every string, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		maxAge:   maxAge,
		every:    every,
		cron:     cron.New(),
	}
}

// Start registers the sweep and starts the cron ticker.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.every, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron ticker.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep clears every stale session. Exported so tests and operators can run
// a sweep outside the schedule.
func (s *Sweeper) Sweep() {
	stale := s.sessions.Stale(s.maxAge, time.Now())
	for _, sess := range stale {
		slog.Info("reaping abandoned session",
			"session_key", string(sess.Key),
			"idle", time.Since(sess.UpdatedAt).Round(time.Second),
		)
		s.sessions.Clear(sess.Key)
	}
}
