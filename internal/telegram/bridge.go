package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// AgentRunner abstracts the agent loop for testability. The real
// implementation is *agent.Loop.
type AgentRunner interface {
	Run(ctx context.Context, conversationID, userContent string) (string, error)
}

// handleTimeout bounds how long a single inbound message may be
// processed (agent loop + response send).
const handleTimeout = 5 * time.Minute

// rateWindow is the sliding window for per-chat rate limiting.
const rateWindow = time.Minute

// cleanupInterval controls how often stale rate-limit entries are
// evicted.
const cleanupInterval = 10 * time.Minute

// failureReply is sent when the agent loop fails outright, so the user
// is never left without a response.
const failureReply = "⚠️ Something went wrong while processing your message. Please try again."

// conversationPrefix namespaces Telegram chats in the message store.
const conversationPrefix = "telegram-"

// BridgeConfig holds the dependencies for a Bridge.
type BridgeConfig struct {
	Client    *Client
	Runner    AgentRunner
	Logger    *slog.Logger
	RateLimit int // per chat per minute; 0 = unlimited
}

// Bridge consumes Bot API updates, routes them through the agent loop,
// and sends the replies back to the chat. Out-of-band deliveries go
// through Notifier instead.
type Bridge struct {
	client    *Client
	runner    AgentRunner
	logger    *slog.Logger
	rateLimit int

	wg sync.WaitGroup

	mu          sync.Mutex
	chatTimes   map[int64][]time.Time
	lastCleanup time.Time
}

// NewBridge creates a Telegram message bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		client:    cfg.Client,
		runner:    cfg.Runner,
		logger:    logger,
		rateLimit: cfg.RateLimit,
		chatTimes: make(map[int64][]time.Time),
	}
}

// ConversationID derives the store conversation id for a chat.
func ConversationID(chatID int64) string {
	return conversationPrefix + strconv.FormatInt(chatID, 10)
}

// chatIDFromConversation reverses ConversationID.
func chatIDFromConversation(conversationID string) (int64, error) {
	raw, ok := strings.CutPrefix(conversationID, conversationPrefix)
	if !ok {
		return 0, fmt.Errorf("not a telegram conversation id: %q", conversationID)
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad chat id in conversation %q: %w", conversationID, err)
	}
	return chatID, nil
}

// Start consumes updates from the client and routes them through the
// agent loop until ctx is cancelled or the update channel closes.
// Each message is handled on its own goroutine so one slow
// conversation never delays another chat; ordering within a
// conversation is enforced by the store's per-conversation append
// lock. In-flight handlers are drained before Start returns.
func (b *Bridge) Start(ctx context.Context) {
	b.logger.Info("telegram bridge started")
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram bridge shutting down")
			return
		case upd, ok := <-b.client.Updates():
			if !ok {
				b.logger.Info("telegram update channel closed, bridge stopping")
				return
			}

			msg := upd.Message
			if msg == nil {
				b.logger.Debug("telegram ignoring non-message update",
					"update_id", upd.UpdateID,
				)
				continue
			}

			if !b.allowChat(msg.Chat.ID) {
				b.logger.Warn("telegram message rate-limited",
					"chat_id", msg.Chat.ID,
				)
				continue
			}

			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleMessage(ctx, msg)
			}()
		}
	}
}

// handleMessage normalizes a single inbound message, runs it through
// the agent loop, and sends the reply back to the chat.
func (b *Bridge) handleMessage(ctx context.Context, msg *Message) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	chatID := msg.Chat.ID
	convID := ConversationID(chatID)

	content, err := b.normalize(ctx, msg)
	if err != nil {
		b.logger.Error("telegram photo resolution failed",
			"chat_id", chatID,
			"error", err,
		)
		b.reply(ctx, chatID, "⚠️ I couldn't read that image. Please try sending it again.")
		return
	}
	if content == "" {
		b.logger.Debug("telegram ignoring message without usable content",
			"chat_id", chatID,
		)
		return
	}

	b.logger.Info("telegram message received",
		"chat_id", chatID,
		"conversation_id", convID,
		"content_len", len(content),
	)

	reply, err := b.runner.Run(ctx, convID, content)
	if err != nil {
		b.logger.Error("telegram agent run failed",
			"chat_id", chatID,
			"conversation_id", convID,
			"error", err,
		)
		b.reply(ctx, chatID, failureReply)
		return
	}

	if reply == "" {
		return
	}

	b.logger.Info("telegram sending reply",
		"chat_id", chatID,
		"conversation_id", convID,
		"reply_len", len(reply),
	)
	b.reply(ctx, chatID, reply)
}

// normalize turns an inbound message into the user content handed to
// the agent loop. Photos resolve to a download URL wrapped in a fixed
// sentence the model is prompted to recognize. Bot commands are
// dropped.
func (b *Bridge) normalize(ctx context.Context, msg *Message) (string, error) {
	if photo := msg.BestPhoto(); photo != nil {
		fileURL, err := b.client.FileURL(ctx, photo.FileID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("User uploaded the following image: %s", fileURL), nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return "", nil
	}
	return text, nil
}

func (b *Bridge) reply(ctx context.Context, chatID int64, text string) {
	if err := b.client.SendText(ctx, chatID, text); err != nil {
		b.logger.Error("telegram reply send failed",
			"chat_id", chatID,
			"error", err,
		)
	}
}

// allowChat checks whether the chat is within the per-minute rate
// limit. Returns true if the message should be processed.
func (b *Bridge) allowChat(chatID int64) bool {
	if b.rateLimit <= 0 {
		return true
	}

	now := time.Now()
	cutoff := now.Add(-rateWindow)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeCleanupLocked(now)

	timestamps := b.chatTimes[chatID]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= b.rateLimit {
		b.chatTimes[chatID] = valid
		return false
	}

	b.chatTimes[chatID] = append(valid, now)
	return true
}

// maybeCleanupLocked evicts stale chat entries. Must be called with
// b.mu held.
func (b *Bridge) maybeCleanupLocked(now time.Time) {
	if now.Sub(b.lastCleanup) < cleanupInterval {
		return
	}
	b.lastCleanup = now

	cutoff := now.Add(-2 * rateWindow)
	for chatID, timestamps := range b.chatTimes {
		if len(timestamps) == 0 {
			delete(b.chatTimes, chatID)
			continue
		}
		if timestamps[len(timestamps)-1].Before(cutoff) {
			delete(b.chatTimes, chatID)
		}
	}
}
