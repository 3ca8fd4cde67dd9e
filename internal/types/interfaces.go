package types

import "context"

// Extractor turns an attached file into plain text. Implementations report
// ErrUnsupportedFormat for formats they cannot parse; callers degrade to
// empty content either way.
type Extractor interface {
	Extract(ctx context.Context, ref FileRef) (string, error)
}

// Responder sends a message back to a conversation. Send failures are logged
// by callers and never retried; a failed acknowledgement must not abort the
// handling of the event that produced it.
type Responder interface {
	Send(ctx context.Context, to Reply, text string) error
}
