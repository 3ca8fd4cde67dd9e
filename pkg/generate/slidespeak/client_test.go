package slidespeak

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/deckhand/pkg/generate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(&Config{BaseURL: srv.URL, APIKey: "test-key"})
}

func TestSubmit(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"task_id": "task-42"})
	})

	id, err := client.Submit(context.Background(), "quarterly report")
	if err != nil {
		t.Fatal(err)
	}
	if id != "task-42" {
		t.Errorf("id = %q", id)
	}
	if gotPath != "/presentation/generate" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key = %q", gotKey)
	}
	if gotBody["plain_text"] != "quarterly report" {
		t.Errorf("plain_text = %v", gotBody["plain_text"])
	}
	if gotBody["language"] != "ORIGINAL" {
		t.Errorf("language = %v", gotBody["language"])
	}
}

func TestSubmitRejectsMissingTaskID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})

	if _, err := client.Submit(context.Background(), "content"); err == nil {
		t.Error("expected error for missing task_id")
	}
}

func TestSubmitSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exhausted"}`, http.StatusPaymentRequired)
	})

	if _, err := client.Submit(context.Background(), "content"); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestPollStatuses(t *testing.T) {
	cases := []struct {
		remote string
		want   generate.Status
	}{
		{"SUCCESS", generate.StatusSucceeded},
		{"FAILED", generate.StatusFailed},
		{"FAILURE", generate.StatusFailed},
		{"PENDING", generate.StatusRunning},
		{"PROCESSING", generate.StatusRunning},
	}

	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"task_status": tc.remote,
				"task_result": map[string]string{"url": "https://x/y"},
			})
		})

		state, err := client.Poll(context.Background(), "task-42")
		if err != nil {
			t.Fatal(err)
		}
		if state.Status != tc.want {
			t.Errorf("%s: status = %v, want %v", tc.remote, state.Status, tc.want)
		}
		if tc.want == generate.StatusSucceeded && state.Result != "https://x/y" {
			t.Errorf("%s: result = %q", tc.remote, state.Result)
		}
	}
}

func TestPollRequestsTaskPath(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"task_status": "PENDING"})
	})

	if _, err := client.Poll(context.Background(), "task-42"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/task_status/task-42" {
		t.Errorf("path = %q", gotPath)
	}
}
