package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SessionKey string
type EventID string

func NewEventID() EventID {
	return EventID(uuid.New().String())
}

func NewSessionKey(parts ...string) SessionKey {
	return SessionKey(strings.Join(parts, ":"))
}

// DirectKey identifies a one-to-one conversation: the author is the session.
func DirectKey(platform, authorID string) SessionKey {
	return NewSessionKey(platform, "dm", authorID)
}

// ThreadKey identifies an existing thread in a group conversation.
func ThreadKey(platform, threadID string) SessionKey {
	return NewSessionKey(platform, "thread", threadID)
}

// ChannelKey identifies an unthreaded channel message. The event's own
// timestamp becomes the key, which opens a new thread rooted at that message.
func ChannelKey(platform string, ts time.Time) SessionKey {
	return NewSessionKey(platform, "thread", fmt.Sprintf("%d.%06d", ts.Unix(), ts.Nanosecond()/1000))
}

// Platform returns the prefix before the first ":", or the whole key if
// there is no separator. Outbound delivery routes on this prefix.
func (k SessionKey) Platform() string {
	s := string(k)
	if i := strings.Index(s, ":"); i >= 0 {
		return s[:i]
	}
	return s
}
