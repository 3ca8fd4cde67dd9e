package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/deckhand/internal/dedupe"
	"github.com/user/deckhand/internal/poller"
	"github.com/user/deckhand/internal/session"
	"github.com/user/deckhand/internal/state"
	"github.com/user/deckhand/internal/types"
)

type fakeResponder struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeResponder) Send(_ context.Context, to types.Reply, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeResponder) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeExtractor struct {
	texts map[string]string
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, ref types.FileRef) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[ref.Name], nil
}

type fakeRunner struct {
	mu        sync.Mutex
	submitted []string
	locator   string
	err       error
}

func (f *fakeRunner) Run(_ context.Context, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, content)
	return f.locator, f.err
}

type fixture struct {
	router    *Router
	sessions  *session.Store
	responder *fakeResponder
	runner    *fakeRunner
}

func setup(t *testing.T) *fixture {
	t.Helper()
	sessions := session.NewStore()
	responder := &fakeResponder{}
	runner := &fakeRunner{locator: "https://x/y"}
	r := New(
		dedupe.New(5*time.Minute),
		sessions,
		&fakeExtractor{texts: map[string]string{"notes.txt": "extracted notes"}},
		responder,
		nil,
		runner,
		nil,
	)
	return &fixture{router: r, sessions: sessions, responder: responder, runner: runner}
}

func dmEvent(id, text string) *types.InboundEvent {
	return &types.InboundEvent{
		ID:           types.EventID(id),
		Platform:     "slack",
		Conversation: "D1",
		Author:       "U1",
		Direct:       true,
		Text:         text,
		At:           time.Now(),
	}
}

func TestHandleIgnoresSelfAuthored(t *testing.T) {
	f := setup(t)

	ev := dmEvent("e1", "hello")
	ev.SelfAuthored = true
	if got := f.router.Handle(context.Background(), ev); got != ActionIgnored {
		t.Errorf("action = %v, want ignored", got)
	}
	if f.sessions.Len() != 0 {
		t.Error("self-authored event mutated session state")
	}
}

func TestHandleIgnoresDuplicateDelivery(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if got := f.router.Handle(ctx, dmEvent("e1", "quarterly report")); got != ActionPrompted {
		t.Fatalf("first delivery: action = %v", got)
	}
	if got := f.router.Handle(ctx, dmEvent("e1", "quarterly report")); got != ActionIgnored {
		t.Errorf("redelivery: action = %v, want ignored", got)
	}

	sess, _ := f.sessions.Snapshot(dmEvent("e1", "").Key())
	if sess.Request != "quarterly report" {
		t.Errorf("redelivery mutated session: request = %q", sess.Request)
	}
}

func TestHandlePromptsExactlyOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i, text := range []string{"first", "second", "third"} {
		got := f.router.Handle(ctx, dmEvent(fmt.Sprintf("e%d", i), text))
		if got != ActionPrompted {
			t.Fatalf("event %d: action = %v", i, got)
		}
	}

	if msgs := f.responder.messages(); len(msgs) != 1 || msgs[0] != promptText {
		t.Errorf("expected one prompt, got %v", msgs)
	}

	sess, _ := f.sessions.Snapshot(dmEvent("", "").Key())
	if sess.Request != "first\nsecond\nthird" {
		t.Errorf("request = %q", sess.Request)
	}
}

func TestHandleExtractsFilesBeforeTrigger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev := dmEvent("e1", "generate")
	ev.Files = []types.FileRef{{Name: "notes.txt"}}

	if got := f.router.Handle(ctx, ev); got != ActionDispatched {
		t.Fatalf("action = %v", got)
	}
	if len(f.runner.submitted) != 1 || f.runner.submitted[0] != "extracted notes" {
		t.Errorf("submitted = %v", f.runner.submitted)
	}
}

func TestHandleExtractionFailureDegrades(t *testing.T) {
	f := setup(t)
	f.router.extractor = &fakeExtractor{err: fmt.Errorf("corrupt file")}
	ctx := context.Background()

	ev := dmEvent("e1", "some text")
	ev.Files = []types.FileRef{{Name: "broken.pdf"}}

	if got := f.router.Handle(ctx, ev); got != ActionPrompted {
		t.Fatalf("action = %v", got)
	}
	sess, _ := f.sessions.Snapshot(ev.Key())
	if sess.Body != "" {
		t.Errorf("body = %q, want empty", sess.Body)
	}
	if sess.Request != "some text" {
		t.Errorf("request = %q", sess.Request)
	}
}

func TestHandleGenerateScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if got := f.router.Handle(ctx, dmEvent("e1", "quarterly report")); got != ActionPrompted {
		t.Fatalf("e1: action = %v", got)
	}
	if got := f.router.Handle(ctx, dmEvent("e2", "generate")); got != ActionDispatched {
		t.Fatalf("e2: action = %v", got)
	}

	// The trigger word itself is not part of the submitted content.
	if len(f.runner.submitted) != 1 || f.runner.submitted[0] != "quarterly report" {
		t.Errorf("submitted = %v", f.runner.submitted)
	}

	var results []string
	for _, msg := range f.responder.messages() {
		if strings.Contains(msg, "https://x/y") {
			results = append(results, msg)
		}
	}
	if len(results) != 1 {
		t.Errorf("expected exactly one result message, got %v", results)
	}

	if _, ok := f.sessions.Snapshot(dmEvent("", "").Key()); ok {
		t.Error("session survived dispatch")
	}
}

func TestHandleClearsSessionOnEveryOutcome(t *testing.T) {
	outcomes := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, successText},
		{"submission rejected", fmt.Errorf("%w: quota", poller.ErrSubmission), rejectedText},
		{"generation failed", poller.ErrGenerationFailed, failedText},
		{"timeout", poller.ErrTimeout, timeoutText},
	}

	for _, tc := range outcomes {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			f.runner.err = tc.err
			ctx := context.Background()

			f.router.Handle(ctx, dmEvent("e1", "content here"))
			f.router.Handle(ctx, dmEvent("e2", "done"))

			if _, ok := f.sessions.Snapshot(dmEvent("", "").Key()); ok {
				t.Error("session survived the generation attempt")
			}

			last := f.responder.messages()[len(f.responder.messages())-1]
			if !strings.HasPrefix(last, tc.want) {
				t.Errorf("terminal message = %q, want prefix %q", last, tc.want)
			}
		})
	}
}

func TestHandleTriggerOnEmptySession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if got := f.router.Handle(ctx, dmEvent("e1", "generate")); got != ActionPrompted {
		t.Errorf("action = %v, want prompted", got)
	}
	if len(f.runner.submitted) != 0 {
		t.Errorf("empty session must not submit, got %v", f.runner.submitted)
	}
	if msgs := f.responder.messages(); len(msgs) != 1 || msgs[0] != emptyText {
		t.Errorf("messages = %v", msgs)
	}
}

func TestHandleThreadedAndChannelKeys(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	threaded := &types.InboundEvent{
		ID:           "e1",
		Platform:     "slack",
		Conversation: "C9",
		Thread:       "171.002",
		Author:       "U1",
		Text:         "part one",
		At:           time.Now(),
	}
	f.router.Handle(ctx, threaded)

	if _, ok := f.sessions.Snapshot(types.ThreadKey("slack", "171.002")); !ok {
		t.Error("threaded event did not key on the thread id")
	}

	unthreaded := &types.InboundEvent{
		ID:           "e2",
		Platform:     "slack",
		Conversation: "C9",
		Author:       "U1",
		Text:         "part two",
		At:           time.Unix(1700000000, 123000),
	}
	f.router.Handle(ctx, unthreaded)

	if _, ok := f.sessions.Snapshot(types.ChannelKey("slack", unthreaded.At)); !ok {
		t.Error("unthreaded event did not key on its own timestamp")
	}
}

func TestHandleRecordsTranscript(t *testing.T) {
	f := setup(t)
	transcript := state.NewLog(t.TempDir())
	f.router.transcript = transcript
	ctx := context.Background()

	f.router.Handle(ctx, dmEvent("e1", "quarterly report"))
	f.router.Handle(ctx, dmEvent("e2", "generate"))

	records, err := transcript.Tail(dmEvent("", "").Key(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Action != string(ActionPrompted) || records[1].Action != string(ActionDispatched) {
		t.Errorf("actions = %v, %v", records[0].Action, records[1].Action)
	}
}
