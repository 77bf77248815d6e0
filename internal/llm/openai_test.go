package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	flaperrors "flap/internal/errors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenAIClient(Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	return server, client
}

func TestCompleteParsesTextResponse(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model-v2",
			"choices": []map[string]any{{
				"message":       map[string]any{"content": "HELLO BOARD"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13},
		})
	})

	resp, err := client.Complete(context.Background(), NewRequest("sys", "user"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "HELLO BOARD" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Model != "test-model-v2" {
		t.Errorf("model = %q", resp.Model)
	}
	if resp.Usage.TotalTokens != 13 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
}

func TestCompleteParsesToolCallsWithRepair(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"content": "",
					"tool_calls": []map[string]any{{
						"id": "call_1",
						"function": map[string]any{
							"name": "submit_content",
							// Trailing comma: models do this; jsonrepair fixes it.
							"arguments": `{"text": "HELLO",}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
	})

	resp, err := client.Complete(context.Background(), NewRequest("", "go"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Name != "submit_content" || call.ID != "call_1" {
		t.Errorf("tool call = %+v", call)
	}
	if got := call.Arguments["text"]; got != "HELLO" {
		t.Errorf("arguments text = %v", got)
	}
}

func TestCompleteStatusCodeClassification(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
		name   string
	}{
		{http.StatusTooManyRequests, flaperrors.IsRateLimit, "rate limit"},
		{http.StatusUnauthorized, flaperrors.IsAuth, "auth"},
		{http.StatusServiceUnavailable, flaperrors.IsOverload, "overload"},
	}
	for _, tc := range cases {
		status := tc.status
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		})
		_, err := client.Complete(context.Background(), NewRequest("", "go"))
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.check(err) {
			t.Errorf("%s: error %v not classified as %s", tc.name, err, tc.name)
		}
	}
}

func TestCompleteBadRequestIsPermanent(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	})
	_, err := client.Complete(context.Background(), NewRequest("", "go"))
	if err == nil {
		t.Fatal("expected error")
	}
	if flaperrors.IsFailoverRetryable(err) {
		t.Errorf("400 must not be failover-retryable, got %v", err)
	}
}

func TestToolResultsBecomeToolTurns(t *testing.T) {
	var captured map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"content": "OK"},
				"finish_reason": "stop",
			}},
		})
	})

	req := CompletionRequest{Messages: []Message{
		{Role: "user", Content: "go"},
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "call_1", Name: "submit_content"}}},
		{Role: "tool", ToolResults: []ToolResult{{ToolCallID: "call_1", Content: "rejected: too long", IsError: true}}},
	}}
	if _, err := client.Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 3 {
		t.Fatalf("wire messages = %v", captured["messages"])
	}
	last, _ := messages[2].(map[string]any)
	if last["role"] != "tool" || last["tool_call_id"] != "call_1" {
		t.Errorf("tool turn = %v", last)
	}
}
