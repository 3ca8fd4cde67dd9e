// Package session accumulates per-conversation input until the user triggers
// generation.
package session

import (
	"sync"
	"time"

	"github.com/user/deckhand/internal/types"
)

// Store holds at most one live session per key. Mutations are serialized per
// key, never globally, so unrelated conversations do not block each other.
// Sessions are owned by the store: callers only ever see copies.
type Store struct {
	mu       sync.Mutex
	sessions map[types.SessionKey]*types.Session
	locks    map[types.SessionKey]*sync.Mutex
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[types.SessionKey]*types.Session),
		locks:    make(map[types.SessionKey]*sync.Mutex),
	}
}

// keyLock returns the per-key mutex, creating one on first use.
func (s *Store) keyLock(key types.SessionKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[key] = lock
	return lock
}

// get returns the live session for key, creating an empty one if absent.
// Caller must hold the key lock.
func (s *Store) get(key types.SessionKey, reply types.Reply) *types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess
	}
	now := time.Now()
	sess := &types.Session{
		Key:       key,
		ReplyTo:   reply,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[key] = sess
	return sess
}

// GetOrCreate returns a copy of the session for key, creating an empty one
// if absent. The reply address is recorded on creation and refreshed on every
// call so late responses go to where the user last spoke.
func (s *Store) GetOrCreate(key types.SessionKey, reply types.Reply) types.Session {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	sess := s.get(key, reply)
	sess.ReplyTo = reply
	return *sess
}

// AppendText appends free text to the session's request, newline-delimited,
// preserving arrival order.
func (s *Store) AppendText(key types.SessionKey, text string) {
	s.append(key, text, false)
}

// AppendBody appends extracted document text to the session's body,
// newline-delimited, preserving arrival order.
func (s *Store) AppendBody(key types.SessionKey, text string) {
	s.append(key, text, true)
}

func (s *Store) append(key types.SessionKey, text string, body bool) {
	if text == "" {
		return
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	sess := s.get(key, types.Reply{Key: key})
	field := &sess.Request
	if body {
		field = &sess.Body
	}
	if *field == "" {
		*field = text
	} else {
		*field += "\n" + text
	}
	sess.UpdatedAt = time.Now()
}

// MarkPrompted records that the add-more-or-trigger prompt was sent for key.
func (s *Store) MarkPrompted(key types.SessionKey) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	sess := s.get(key, types.Reply{Key: key})
	sess.Prompted = true
	sess.UpdatedAt = time.Now()
}

// WasPrompted reports whether the prompt was already sent for key.
func (s *Store) WasPrompted(key types.SessionKey) bool {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	return ok && sess.Prompted
}

// Snapshot returns a copy of the session for key, if one is live.
func (s *Store) Snapshot(key types.SessionKey) (types.Session, bool) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return types.Session{}, false
	}
	return *sess, true
}

// Clear removes the session and its prompted flag. Clearing a missing key is
// a no-op.
func (s *Store) Clear(key types.SessionKey) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Stale returns copies of sessions whose last mutation is older than maxAge.
// Keys are collected under the store lock, then each session is snapshotted
// under its key lock so a concurrent append never races the copy.
func (s *Store) Stale(maxAge time.Duration, now time.Time) []types.Session {
	s.mu.Lock()
	keys := make([]types.SessionKey, 0, len(s.sessions))
	for key := range s.sessions {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	var stale []types.Session
	for _, key := range keys {
		sess, ok := s.Snapshot(key)
		if ok && now.Sub(sess.UpdatedAt) > maxAge {
			stale = append(stale, sess)
		}
	}
	return stale
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
