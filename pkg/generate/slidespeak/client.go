// Package slidespeak implements the generate.Service interface against the
// SlideSpeak HTTP API.
package slidespeak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/deckhand/pkg/generate"
)

// DefaultBaseURL is the public SlideSpeak API endpoint.
const DefaultBaseURL = "https://api.slidespeak.co/api/v1"

// Config holds the client configuration. Zero-valued presentation options
// fall back to the service defaults.
type Config struct {
	BaseURL     string
	APIKey      string
	Slides      int
	Template    string
	Tone        string
	Verbosity   string
	FetchImages bool
}

// Client is a SlideSpeak API client implementing generate.Service.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// New creates a SlideSpeak client with the given configuration.
func New(config *Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Slides <= 0 {
		config.Slides = 5
	}
	if config.Template == "" {
		config.Template = "default"
	}
	if config.Tone == "" {
		config.Tone = "default"
	}
	if config.Verbosity == "" {
		config.Verbosity = "standard"
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// generateRequest is the presentation/generate request body.
type generateRequest struct {
	PlainText   string `json:"plain_text"`
	Length      int    `json:"length"`
	Template    string `json:"template"`
	Language    string `json:"language"`
	FetchImages bool   `json:"fetch_images"`
	Tone        string `json:"tone"`
	Verbosity   string `json:"verbosity"`
}

// generateResponse carries the id of the accepted job.
type generateResponse struct {
	TaskID string `json:"task_id"`
}

// statusResponse is the task_status response body.
type statusResponse struct {
	TaskStatus string `json:"task_status"`
	TaskResult struct {
		URL string `json:"url"`
	} `json:"task_result"`
}

// Submit sends content to the generation endpoint and returns the task id.
func (c *Client) Submit(ctx context.Context, content string) (generate.JobID, error) {
	reqBody := generateRequest{
		PlainText:   content,
		Length:      c.config.Slides,
		Template:    c.config.Template,
		Language:    "ORIGINAL",
		FetchImages: c.config.FetchImages,
		Tone:        c.config.Tone,
		Verbosity:   c.config.Verbosity,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.config.BaseURL + "/presentation/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if genResp.TaskID == "" {
		return "", fmt.Errorf("no task_id in response")
	}
	return generate.JobID(genResp.TaskID), nil
}

// Poll fetches the job's current status, mapping SlideSpeak's SUCCESS/FAILURE
// vocabulary onto the generic statuses. Anything non-terminal is running.
func (c *Client) Poll(ctx context.Context, id generate.JobID) (generate.JobState, error) {
	url := c.config.BaseURL + "/task_status/" + string(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return generate.JobState{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return generate.JobState{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return generate.JobState{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return generate.JobState{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var statusResp statusResponse
	if err := json.Unmarshal(respBody, &statusResp); err != nil {
		return generate.JobState{}, fmt.Errorf("parsing response: %w", err)
	}

	switch statusResp.TaskStatus {
	case "SUCCESS":
		return generate.JobState{Status: generate.StatusSucceeded, Result: statusResp.TaskResult.URL}, nil
	case "FAILED", "FAILURE":
		return generate.JobState{Status: generate.StatusFailed}, nil
	default:
		return generate.JobState{Status: generate.StatusRunning}, nil
	}
}
