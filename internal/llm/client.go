package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable marks gateway failures: transport errors, non-2xx
// provider responses, and malformed response bodies. The orchestration
// loop aborts the current turn on any error matching it.
var ErrUnavailable = errors.New("model unavailable")

// APIError is a structured provider error. It matches ErrUnavailable
// via errors.Is.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("provider error (%s): %s", e.Type, e.Message)
	}
	return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return ErrUnavailable }

// Client is the chat-completion interface the orchestration loop
// depends on. The call is stateless: the full message history is sent
// every time.
type Client interface {
	Chat(ctx context.Context, model string, messages []Message, tools []Tool) (*ChatResponse, error)
}
