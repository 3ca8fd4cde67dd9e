package sweeper

import (
	"testing"
	"time"

	"github.com/user/deckhand/internal/session"
)

func TestSweepClearsOnlyStaleSessions(t *testing.T) {
	sessions := session.NewStore()
	sessions.AppendText("slack:dm:U1", "abandoned input")

	s := New(sessions, "@every 1h", time.Hour)
	s.Sweep()
	if sessions.Len() != 1 {
		t.Error("fresh session reaped")
	}

	s = New(sessions, "@every 1h", -time.Second)
	s.Sweep()
	if sessions.Len() != 0 {
		t.Error("stale session survived sweep")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(session.NewStore(), "not a schedule", time.Hour)
	if err := s.Start(); err == nil {
		s.Stop()
		t.Error("expected error for invalid cron spec")
	}
}
