package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("open redis store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStore_ListEmpty(t *testing.T) {
	s := newRedisTestStore(t)

	msgs, err := s.ListOrdered(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty conversation, got %d messages", len(msgs))
	}
}

func TestRedisStore_AppendAndListOrdered(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		if _, err := s.Append(ctx, Message{
			ConversationID: "conv-1",
			Role:           RoleUser,
			Content:        c,
		}); err != nil {
			t.Fatalf("append %q: %v", c, err)
		}
	}

	msgs, err := s.ListOrdered(ctx, "conv-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(contents))
	}
	for i, m := range msgs {
		if m.Content != contents[i] {
			t.Errorf("message %d content: %q, want %q", i, m.Content, contents[i])
		}
		if m.ID == "" {
			t.Errorf("message %d has no id", i)
		}
		if m.CreatedAt.IsZero() {
			t.Errorf("message %d has no timestamp", i)
		}
		if i > 0 && msgs[i].Sequence <= msgs[i-1].Sequence {
			t.Errorf("sequence not increasing: %d then %d", msgs[i-1].Sequence, msgs[i].Sequence)
		}
	}
}

func TestRedisStore_ToolFieldsRoundTrip(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()

	stored, err := s.Append(ctx, Message{
		ConversationID: "conv-1",
		Role:           RoleAssistant,
		Content:        `{"phone_no":"+1555"}`,
		ToolName:       "auth_vendor",
		ToolCallID:     "call-1",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if stored.Sequence == 0 {
		t.Error("sequence not assigned")
	}

	msgs, err := s.ListOrdered(ctx, "conv-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	got := msgs[0]
	if got.ToolName != "auth_vendor" || got.ToolCallID != "call-1" {
		t.Errorf("tool fields lost: %+v", got)
	}
	if got.Content != `{"phone_no":"+1555"}` {
		t.Errorf("content: %q", got.Content)
	}
}

func TestRedisStore_ConversationIsolation(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()

	for _, conv := range []string{"conv-a", "conv-b"} {
		if _, err := s.Append(ctx, Message{
			ConversationID: conv,
			Role:           RoleUser,
			Content:        "for " + conv,
		}); err != nil {
			t.Fatalf("append to %s: %v", conv, err)
		}
	}

	msgs, err := s.ListOrdered(ctx, "conv-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "for conv-a" {
		t.Errorf("conv-a messages: %+v", msgs)
	}
}

func TestRedisStore_RejectsInvalidRole(t *testing.T) {
	s := newRedisTestStore(t)

	if _, err := s.Append(context.Background(), Message{
		ConversationID: "conv-1",
		Role:           "narrator",
		Content:        "nope",
	}); err == nil {
		t.Error("expected error for invalid role")
	}
	if _, err := s.Append(context.Background(), Message{
		Role:    RoleUser,
		Content: "no conversation",
	}); err == nil {
		t.Error("expected error for empty conversation id")
	}
}

func TestRedisStore_Stats(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Append(ctx, Message{
			ConversationID: "conv-1",
			Role:           RoleUser,
			Content:        "msg",
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := s.Append(ctx, Message{
		ConversationID: "conv-2",
		Role:           RoleUser,
		Content:        "msg",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	stats := s.Stats(ctx)
	if stats["storage"] != "redis" {
		t.Errorf("storage: %v", stats["storage"])
	}
	if stats["conversations"] != int64(2) {
		t.Errorf("conversations: %v", stats["conversations"])
	}
	if stats["messages"] != int64(4) {
		t.Errorf("messages: %v", stats["messages"])
	}
}

func TestOpen_DispatchesRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := Open("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, ok := s.(*RedisStore); !ok {
		t.Errorf("expected *RedisStore, got %T", s)
	}
}
