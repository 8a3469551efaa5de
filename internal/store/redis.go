package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore is the Redis-backed conversation store. Messages are kept
// as a JSON-encoded list per conversation; sequences come from a
// per-conversation counter key.
type RedisStore struct {
	client *redis.Client
	locks  *convLocks
}

// NewRedisStore connects to the Redis instance described by the URL
// (redis://[user:pass@]host:port/db).
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		locks:  newConvLocks(),
	}, nil
}

func messagesKey(conversationID string) string {
	return "vendora:conv:" + conversationID + ":messages"
}

func seqKey(conversationID string) string {
	return "vendora:conv:" + conversationID + ":seq"
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, msg Message) (Message, error) {
	if msg.ConversationID == "" {
		return Message{}, fmt.Errorf("append: empty conversation id")
	}
	if !validRole(msg.Role) {
		return Message{}, fmt.Errorf("append: invalid role %q", msg.Role)
	}

	unlock := s.locks.lock(msg.ConversationID)
	defer unlock()

	seq, err := s.client.Incr(ctx, seqKey(msg.ConversationID)).Result()
	if err != nil {
		return Message{}, fmt.Errorf("append: next sequence: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Message{}, fmt.Errorf("append: new message id: %w", err)
	}

	msg.ID = id.String()
	msg.Sequence = seq
	msg.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("append: marshal message: %w", err)
	}

	if err := s.client.RPush(ctx, messagesKey(msg.ConversationID), data).Err(); err != nil {
		return Message{}, fmt.Errorf("append: push message: %w", err)
	}

	return msg, nil
}

// ListOrdered implements Store.
func (s *RedisStore) ListOrdered(ctx context.Context, conversationID string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, messagesKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, nil
}

// Stats implements Store.
func (s *RedisStore) Stats(ctx context.Context) map[string]any {
	var convCount, msgCount int64

	iter := s.client.Scan(ctx, 0, "vendora:conv:*:messages", 100).Iterator()
	for iter.Next(ctx) {
		convCount++
		if n, err := s.client.LLen(ctx, iter.Val()).Result(); err == nil {
			msgCount += n
		}
	}

	return map[string]any{
		"conversations": convCount,
		"messages":      msgCount,
		"storage":       "redis",
	}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
