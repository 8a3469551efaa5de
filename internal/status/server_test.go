package status

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vendora-ai/vendora/internal/store"
)

type fakeStore struct{}

func (fakeStore) Append(ctx context.Context, msg store.Message) (store.Message, error) {
	return msg, nil
}
func (fakeStore) ListOrdered(ctx context.Context, conversationID string) ([]store.Message, error) {
	return nil, nil
}
func (fakeStore) Stats(ctx context.Context) map[string]any {
	return map[string]any{"backend": "fake", "messages": int64(12)}
}
func (fakeStore) Close() error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", fakeStore{}, "test-model", slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(s.server.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/", "/healthz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status: %d", path, resp.StatusCode)
		}
		if string(body) != "OK" {
			t.Errorf("GET %s body: %q", path, body)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: %q", ct)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["model"] != "test-model" {
		t.Errorf("model: %v", payload["model"])
	}
	if _, ok := payload["build"]; !ok {
		t.Error("build info missing")
	}
	if _, ok := payload["uptime_seconds"]; !ok {
		t.Error("uptime missing")
	}
	storeStats, ok := payload["store"].(map[string]any)
	if !ok {
		t.Fatalf("store stats: %v", payload["store"])
	}
	if storeStats["backend"] != "fake" {
		t.Errorf("store backend: %v", storeStats["backend"])
	}
}

func TestStatusRejectsPost(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}
