// Package store provides append-only conversation persistence.
//
// A conversation is an ordered sequence of messages keyed by a stable
// identifier. Messages are created exactly once and never mutated or
// deleted; the Sequence field is the authoritative order, assigned at
// append time. Two backends are provided: SQLite (default) and Redis,
// selected by the storage DSN.
package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Message roles. The set is closed; the store rejects anything else.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in a conversation.
//
// An assistant message that carries both ToolName and ToolCallID is a
// tool request whose Content holds the raw arguments JSON. A tool
// message carries the ToolCallID of the request it answers. An
// assistant final answer carries neither.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sequence       int64     `json:"sequence"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ToolName       string    `json:"tool_name,omitempty"`
	ToolCallID     string    `json:"tool_call_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the conversation persistence interface.
type Store interface {
	// Append persists msg with the next sequence for its conversation
	// and returns the stored message with ID, Sequence, and CreatedAt
	// filled in. Appends to the same conversation are serialized by the
	// store so concurrent turns cannot interleave.
	Append(ctx context.Context, msg Message) (Message, error)

	// ListOrdered returns all messages for the conversation in
	// ascending sequence order.
	ListOrdered(ctx context.Context, conversationID string) ([]Message, error)

	// Stats returns backend statistics for the status endpoint.
	Stats(ctx context.Context) map[string]any

	Close() error
}

// Open creates a store for the given DSN. A DSN beginning with
// "redis://" or "rediss://" selects the Redis backend; anything else
// is treated as a SQLite database path.
func Open(dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://") {
		return NewRedisStore(dsn)
	}
	return NewSQLiteStore(dsn)
}

// validRole reports whether role is in the closed role set.
func validRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// convLocks serializes appends per conversation id. Both backends
// embed one; the lock guarantees the sequence-assignment and write
// happen atomically with respect to other appends in this process.
type convLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newConvLocks() *convLocks {
	return &convLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the per-conversation mutex, creating it on first use.
// The returned function releases it.
func (c *convLocks) lock(conversationID string) func() {
	c.mu.Lock()
	l, ok := c.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[conversationID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
