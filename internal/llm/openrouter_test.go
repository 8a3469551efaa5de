package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *OpenRouterClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenRouterClient(srv.URL, "sk-test", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestChat_ParsesToolCalls(t *testing.T) {
	var gotReq ChatRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{
			"id": "gen-1",
			"model": "test-model",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "auth_vendor", "arguments": "{\"phone_no\":\"+91\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))

	tools := []Tool{{Type: "function", Function: Function{Name: "auth_vendor"}}}
	resp, err := c.Chat(context.Background(), "test-model", []Message{{Role: "user", Content: "hi"}}, tools)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if gotReq.ToolChoice != "auto" {
		t.Errorf("tool_choice: %v", gotReq.ToolChoice)
	}
	msg := resp.Assistant()
	if msg == nil || len(msg.ToolCalls) != 1 {
		t.Fatalf("assistant message: %+v", msg)
	}
	tc := msg.ToolCalls[0]
	if tc.Function.Name != "auth_vendor" || tc.Function.Arguments != `{"phone_no":"+91"}` {
		t.Errorf("tool call: %+v", tc)
	}
}

func TestChat_NoToolChoiceWithoutTools(t *testing.T) {
	var gotReq map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`)
	}))

	if _, err := c.Chat(context.Background(), "m", []Message{{Role: "user", Content: "hi"}}, nil); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, present := gotReq["tool_choice"]; present {
		t.Error("tool_choice should be omitted without tools")
	}
}

func TestChat_APIErrorMatchesUnavailable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	}))

	_, err := c.Chat(context.Background(), "m", []Message{{Role: "user", Content: "hi"}}, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.Type != "rate_limit" {
		t.Errorf("api error: %+v", apiErr)
	}
}

func TestChat_EmptyChoicesIsError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))

	_, err := c.Chat(context.Background(), "m", []Message{{Role: "user", Content: "hi"}}, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
