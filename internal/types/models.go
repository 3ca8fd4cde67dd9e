package types

import "time"

// FileRef points at a file attached to an inbound event. The URL is the
// platform's authenticated download location; content is fetched lazily by
// the extractor, never stored on the event.
type FileRef struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

// InboundEvent is one webhook delivery, already parsed out of the platform's
// wire shape. Immutable once constructed.
type InboundEvent struct {
	ID           EventID   `json:"id"`
	Platform     string    `json:"platform"`
	Conversation string    `json:"conversation"`
	Thread       string    `json:"thread,omitempty"`
	Author       string    `json:"author"`
	Direct       bool      `json:"direct,omitempty"`
	Text         string    `json:"text"`
	Files        []FileRef `json:"files,omitempty"`
	At           time.Time `json:"at"`
	SelfAuthored bool      `json:"self_authored,omitempty"`
}

// Key derives the session key for the event: direct conversations key on the
// author, threaded messages on the thread, and unthreaded channel messages on
// the event's own timestamp.
func (e *InboundEvent) Key() SessionKey {
	if e.Direct {
		return DirectKey(e.Platform, e.Author)
	}
	if e.Thread != "" {
		return ThreadKey(e.Platform, e.Thread)
	}
	return ChannelKey(e.Platform, e.At)
}

// Reply addresses an outbound message back to the conversation an event
// came from.
type Reply struct {
	Key          SessionKey `json:"key"`
	Conversation string     `json:"conversation"`
	Thread       string     `json:"thread,omitempty"`
}

// ReplyTo builds the reply address for an event.
func ReplyTo(e *InboundEvent) Reply {
	return Reply{Key: e.Key(), Conversation: e.Conversation, Thread: e.Thread}
}

// Session is the accumulated, not-yet-submitted input for one conversation
// key. Owned exclusively by the session store; callers mutate it only through
// store operations.
type Session struct {
	Key       SessionKey `json:"key"`
	Request   string     `json:"request"`
	Body      string     `json:"body"`
	Prompted  bool       `json:"prompted"`
	ReplyTo   Reply      `json:"reply_to"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Content joins the free-text request and extracted document body into the
// payload submitted to the generation service.
func (s *Session) Content() string {
	switch {
	case s.Request == "":
		return s.Body
	case s.Body == "":
		return s.Request
	default:
		return s.Request + "\n\n" + s.Body
	}
}
