// Package router composes intake: deduplicate the delivery, accumulate it
// into the session, detect the trigger, and on trigger drive a generation
// job and report back to the conversation.
package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/user/deckhand/internal/dedupe"
	"github.com/user/deckhand/internal/poller"
	"github.com/user/deckhand/internal/session"
	"github.com/user/deckhand/internal/state"
	"github.com/user/deckhand/internal/trigger"
	"github.com/user/deckhand/internal/types"
)

// Action is what the router did with one delivery.
type Action string

const (
	ActionIgnored    Action = "ignored"
	ActionPrompted   Action = "prompted"
	ActionDispatched Action = "dispatched"
)

// User-facing messages. The trigger vocabulary is closed, so the prompt can
// name it literally.
const (
	promptText  = `Got it. Send more text or files, and say "generate" or "done" when you are ready.`
	workingText = "Working on your presentation, this can take a couple of minutes..."
	emptyText   = "I have nothing to build from yet. Send some text or a file first."
	successText = "Here is your presentation: "

	rejectedText = "The generation service rejected the request. Please try again later."
	failedText   = "The presentation could not be generated."
	timeoutText  = "Generation took too long and was abandoned. Please try again."
)

// JobRunner drives one generation job to a terminal outcome.
type JobRunner interface {
	Run(ctx context.Context, content string) (string, error)
}

// Builder assembles the submission payload from a session.
type Builder interface {
	Build(sess *types.Session) string
}

// Router handles inbound events. Per-key ordering is the Queue's job; the
// router itself only assumes it is never called concurrently for one key.
type Router struct {
	dedupe     *dedupe.Window
	sessions   *session.Store
	extractor  types.Extractor
	responder  types.Responder
	builder    Builder
	jobs       JobRunner
	transcript *state.Log
}

// New creates a Router. The builder and transcript may be nil: without a
// builder the raw session content is submitted, without a transcript nothing
// is recorded.
func New(
	window *dedupe.Window,
	sessions *session.Store,
	extractor types.Extractor,
	responder types.Responder,
	builder Builder,
	jobs JobRunner,
	transcript *state.Log,
) *Router {
	return &Router{
		dedupe:     window,
		sessions:   sessions,
		extractor:  extractor,
		responder:  responder,
		builder:    builder,
		jobs:       jobs,
		transcript: transcript,
	}
}

// Handle processes one delivery to completion, including the full generation
// cycle on a trigger. Callers wanting asynchrony enqueue through the Queue.
func (r *Router) Handle(ctx context.Context, event *types.InboundEvent) Action {
	action := r.handle(ctx, event)
	r.record(event, action)
	return action
}

func (r *Router) handle(ctx context.Context, event *types.InboundEvent) Action {
	if event.SelfAuthored {
		return ActionIgnored
	}
	if r.dedupe.SeenOrRecord(event.ID, time.Now()) {
		slog.Debug("duplicate delivery dropped", "event_id", string(event.ID))
		return ActionIgnored
	}

	key := event.Key()
	reply := types.ReplyTo(event)
	r.sessions.GetOrCreate(key, reply)

	for _, ref := range event.Files {
		text, err := r.extractor.Extract(ctx, ref)
		if err != nil {
			// No content extracted; the conversation goes on without it.
			slog.Warn("extraction failed", "session_key", string(key), "file", ref.Name, "error", err)
			continue
		}
		r.sessions.AppendBody(key, text)
	}

	if trigger.Classify(event.Text) == trigger.Continue {
		r.sessions.AppendText(key, event.Text)
		if !r.sessions.WasPrompted(key) {
			r.send(ctx, reply, promptText)
			r.sessions.MarkPrompted(key)
		}
		return ActionPrompted
	}

	return r.dispatch(ctx, key, reply)
}

// dispatch runs the generation cycle. The session is cleared after the
// terminal responder call on every path, so no conversation can stay wedged
// by a failed attempt.
func (r *Router) dispatch(ctx context.Context, key types.SessionKey, reply types.Reply) Action {
	sess, ok := r.sessions.Snapshot(key)
	if !ok {
		sess = types.Session{Key: key}
	}

	content := sess.Content()
	if r.builder != nil {
		content = r.builder.Build(&sess)
	}
	if strings.TrimSpace(content) == "" {
		r.send(ctx, reply, emptyText)
		r.sessions.Clear(key)
		return ActionPrompted
	}

	r.send(ctx, reply, workingText)

	locator, err := r.jobs.Run(ctx, content)
	if err != nil {
		slog.Error("generation attempt failed", "session_key", string(key), "error", err)
		r.send(ctx, reply, failureText(err))
	} else {
		r.send(ctx, reply, successText+locator)
	}

	r.sessions.Clear(key)
	return ActionDispatched
}

func failureText(err error) string {
	switch {
	case errors.Is(err, poller.ErrSubmission):
		return rejectedText
	case errors.Is(err, poller.ErrTimeout):
		return timeoutText
	default:
		return failedText
	}
}

// send delivers a message, logging failures. A dead responder never blocks
// or aborts event handling.
func (r *Router) send(ctx context.Context, to types.Reply, text string) {
	if err := r.responder.Send(ctx, to, text); err != nil {
		slog.Error("send failed", "session_key", string(to.Key), "error", err)
	}
}

func (r *Router) record(event *types.InboundEvent, action Action) {
	if r.transcript == nil {
		return
	}
	err := r.transcript.Append(&state.Record{
		At:      time.Now(),
		EventID: event.ID,
		Key:     event.Key(),
		Action:  string(action),
		Text:    event.Text,
	})
	if err != nil {
		slog.Warn("transcript append failed", "event_id", string(event.ID), "error", err)
	}
}
