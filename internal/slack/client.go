// Package slack is the Slack Web API client: outbound messages, authenticated
// file downloads, and the app-home view.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/deckhand/internal/types"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

// Client implements types.Responder and extract.Downloader against Slack.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Slack client authenticated with the given bot token.
func New(token string) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithBaseURL creates a client against a non-default API root, for tests.
func NewWithBaseURL(token, baseURL string) *Client {
	c := New(token)
	c.baseURL = baseURL
	return c
}

// apiResponse is the envelope every Web API method returns.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// postMessageRequest is the chat.postMessage body.
type postMessageRequest struct {
	Channel  string `json:"channel"`
	ThreadTS string `json:"thread_ts,omitempty"`
	Text     string `json:"text"`
}

// Send posts text to the conversation, threading the reply when the original
// message lived in a thread.
func (c *Client) Send(ctx context.Context, to types.Reply, text string) error {
	return c.call(ctx, "chat.postMessage", postMessageRequest{
		Channel:  to.Conversation,
		ThreadTS: to.Thread,
		Text:     text,
	})
}

// homeView is the minimal views.publish payload: a single markdown section.
type homeView struct {
	UserID string `json:"user_id"`
	View   struct {
		Type   string `json:"type"`
		Blocks []struct {
			Type string `json:"type"`
			Text struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"text"`
		} `json:"blocks"`
	} `json:"view"`
}

// PublishHome renders a one-section home tab for the user.
func (c *Client) PublishHome(ctx context.Context, userID, text string) error {
	var payload homeView
	payload.UserID = userID
	payload.View.Type = "home"
	payload.View.Blocks = make([]struct {
		Type string `json:"type"`
		Text struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"text"`
	}, 1)
	payload.View.Blocks[0].Type = "section"
	payload.View.Blocks[0].Text.Type = "mrkdwn"
	payload.View.Blocks[0].Text.Text = text

	return c.call(ctx, "views.publish", payload)
}

// call posts a JSON body to a Web API method and decodes the ok envelope.
func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, string(respBody))
	}

	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("%s: %s", method, api.Error)
	}
	return nil
}

// Download fetches a file's bytes from its private download URL using the
// bot token.
func (c *Client) Download(ctx context.Context, ref types.FileRef) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", ref.Name, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
