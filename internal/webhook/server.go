// Package webhook is the HTTP surface: the Slack events endpoint, liveness
// probes, and a small read-only debug API over the conversation transcripts.
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/user/deckhand/internal/state"
	"github.com/user/deckhand/internal/types"
)

// welcomeText is published to the app home when a user opens it.
const welcomeText = "Welcome! Send me text, audio, or a file and I will build a presentation for you. Say \"generate\" when you are done."

// Enqueuer accepts a parsed inbound event for asynchronous handling.
type Enqueuer interface {
	Enqueue(event *types.InboundEvent) error
}

// HomePublisher renders the app-home tab for a user.
type HomePublisher interface {
	PublishHome(ctx context.Context, userID, text string) error
}

// Server is the HTTP handler. The transcript may be nil, which disables the
// debug API; the home publisher may be nil, which disables the app-home view.
type Server struct {
	queue      Enqueuer
	home       HomePublisher
	transcript *state.Log
	mux        *http.ServeMux
}

// NewServer creates the webhook Server.
func NewServer(queue Enqueuer, home HomePublisher, transcript *state.Log) *Server {
	s := &Server{
		queue:      queue,
		home:       home,
		transcript: transcript,
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /slack/events", s.handleSlackEvents)
	s.mux.HandleFunc("GET /api/conversations", s.handleAPIConversations)
	s.mux.HandleFunc("GET /api/conversations/", s.handleAPIConversationEvents)
	s.mux.HandleFunc("/", s.handleRoot)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleRoot answers deployment liveness probes, which may use GET or HEAD.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet {
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// slackFile is the wire shape of an attached file.
type slackFile struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Mimetype           string `json:"mimetype"`
	URLPrivateDownload string `json:"url_private_download"`
}

// slackEvent is the inner event of an event_callback envelope.
type slackEvent struct {
	Type        string      `json:"type"`
	User        string      `json:"user"`
	BotID       string      `json:"bot_id"`
	Channel     string      `json:"channel"`
	ChannelType string      `json:"channel_type"`
	Text        string      `json:"text"`
	TS          string      `json:"ts"`
	ThreadTS    string      `json:"thread_ts"`
	Files       []slackFile `json:"files"`
}

// eventEnvelope is the outer Slack events API payload.
type eventEnvelope struct {
	Type      string     `json:"type"`
	Challenge string     `json:"challenge"`
	EventID   string     `json:"event_id"`
	Event     slackEvent `json:"event"`
}

func (s *Server) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	var envelope eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	// Slack verifies the endpoint by echoing a challenge.
	if envelope.Type == "url_verification" {
		json.NewEncoder(w).Encode(map[string]string{"challenge": envelope.Challenge})
		return
	}

	switch envelope.Event.Type {
	case "app_home_opened":
		if s.home != nil && envelope.Event.User != "" {
			if err := s.home.PublishHome(r.Context(), envelope.Event.User, welcomeText); err != nil {
				slog.Warn("publish home failed", "user", envelope.Event.User, "error", err)
			}
		}
	case "message":
		event := toInboundEvent(&envelope)
		if err := s.queue.Enqueue(event); err != nil {
			slog.Error("enqueue failed", "event_id", envelope.EventID, "error", err)
			http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
	}

	// Ack fast; the platform redelivers on slow responses.
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// toInboundEvent maps the Slack wire shape onto the platform-neutral event.
func toInboundEvent(envelope *eventEnvelope) *types.InboundEvent {
	ev := &types.InboundEvent{
		ID:           types.EventID(envelope.EventID),
		Platform:     "slack",
		Conversation: envelope.Event.Channel,
		Thread:       envelope.Event.ThreadTS,
		Author:       envelope.Event.User,
		Direct:       envelope.Event.ChannelType == "im",
		Text:         envelope.Event.Text,
		At:           parseSlackTS(envelope.Event.TS),
		SelfAuthored: envelope.Event.BotID != "",
	}
	for _, f := range envelope.Event.Files {
		ev.Files = append(ev.Files, types.FileRef{
			ID:       f.ID,
			Platform: "slack",
			Name:     f.Name,
			URL:      f.URLPrivateDownload,
			MimeType: f.Mimetype,
		})
	}
	return ev
}

// parseSlackTS converts Slack's "seconds.micros" timestamps. A malformed
// timestamp falls back to now, which only costs an unthreaded message its
// deterministic key.
func parseSlackTS(ts string) time.Time {
	sec, micro, ok := strings.Cut(ts, ".")
	if !ok {
		micro = "0"
	}
	secs, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Now()
	}
	micros, err := strconv.ParseInt(micro, 10, 64)
	if err != nil {
		micros = 0
	}
	return time.Unix(secs, micros*1000)
}

type conversationResponse struct {
	Key        string `json:"key"`
	LastAction string `json:"last_action"`
	LastAt     string `json:"last_at"`
}

func (s *Server) handleAPIConversations(w http.ResponseWriter, r *http.Request) {
	if s.transcript == nil {
		http.Error(w, `{"error":"debug API not configured"}`, http.StatusServiceUnavailable)
		return
	}

	keys, err := s.transcript.Keys()
	if err != nil {
		slog.Error("list conversations failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]conversationResponse, 0, len(keys))
	for _, key := range keys {
		records, err := s.transcript.Tail(key, 1)
		if err != nil || len(records) == 0 {
			continue
		}
		last := records[len(records)-1]
		result = append(result, conversationResponse{
			Key:        string(key),
			LastAction: last.Action,
			LastAt:     last.At.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleAPIConversationEvents(w http.ResponseWriter, r *http.Request) {
	if s.transcript == nil {
		http.Error(w, `{"error":"debug API not configured"}`, http.StatusServiceUnavailable)
		return
	}

	// Path: /api/conversations/{key}/events
	path := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	key, rest, ok := strings.Cut(path, "/")
	if !ok || rest != "events" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.transcript.Tail(types.SessionKey(key), limit)
	if err != nil {
		slog.Error("tail transcript failed", "key", key, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*state.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
