// Package agent runs the conversation loop: load history, call the
// model, execute requested tools, and repeat until the model produces
// a final text reply.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vendora-ai/vendora/internal/llm"
	"github.com/vendora-ai/vendora/internal/store"
	"github.com/vendora-ai/vendora/internal/tools"
)

// DefaultMaxToolRounds bounds how many model/tool exchanges a single
// user turn may take before the loop gives up.
const DefaultMaxToolRounds = 10

// fallbackReply substitutes for an empty final completion so the user
// always receives something.
const fallbackReply = "Done."

// MaxRoundsError reports a turn that hit the tool-round bound without
// the model producing a final reply.
type MaxRoundsError struct {
	Rounds int
}

func (e *MaxRoundsError) Error() string {
	return fmt.Sprintf("no final reply after %d tool rounds", e.Rounds)
}

// LoopConfig holds the dependencies for a Loop.
type LoopConfig struct {
	Store        store.Store
	Client       llm.Client
	Registry     *tools.Registry
	Logger       *slog.Logger
	Model        string
	SystemPrompt string
	MaxRounds    int
	Filter       *ReplyFilter
	// Notifier, when set, is made available to tool handlers for
	// out-of-band deliveries.
	Notifier tools.Notifier
}

// Loop is the turn processor. One Run call handles one inbound user
// message end to end.
type Loop struct {
	store        store.Store
	client       llm.Client
	registry     *tools.Registry
	logger       *slog.Logger
	model        string
	systemPrompt string
	maxRounds    int
	filter       *ReplyFilter
	notifier     tools.Notifier
}

// NewLoop creates a Loop.
func NewLoop(cfg LoopConfig) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}
	return &Loop{
		store:        cfg.Store,
		client:       cfg.Client,
		registry:     cfg.Registry,
		logger:       logger,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		maxRounds:    maxRounds,
		filter:       cfg.Filter,
		notifier:     cfg.Notifier,
	}
}

// Run processes one user message for a conversation and returns the
// final reply text. Persistence failures abort the turn; tool failures
// are fed back to the model as error payloads and do not.
func (l *Loop) Run(ctx context.Context, conversationID, userContent string) (string, error) {
	ctx = tools.WithConversationID(ctx, conversationID)
	if l.notifier != nil {
		ctx = tools.WithNotifier(ctx, l.notifier)
	}

	history, err := l.store.ListOrdered(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: store.RoleSystem, Content: l.systemPrompt})
	messages = append(messages, rebuild(history)...)
	messages = append(messages, llm.Message{Role: store.RoleUser, Content: userContent})

	if _, err := l.store.Append(ctx, store.Message{
		ConversationID: conversationID,
		Role:           store.RoleUser,
		Content:        userContent,
	}); err != nil {
		return "", fmt.Errorf("persist user message: %w", err)
	}

	for round := 0; round < l.maxRounds; round++ {
		resp, err := l.client.Chat(ctx, l.model, messages, l.registry.Catalog())
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}

		assistant := resp.Assistant()
		if assistant == nil {
			return "", fmt.Errorf("chat completion returned no message")
		}

		if len(assistant.ToolCalls) == 0 {
			final := strings.TrimSpace(assistant.Content)
			if l.filter != nil {
				final = l.filter.Clean(final)
			}
			if final == "" {
				final = fallbackReply
			}
			if _, err := l.store.Append(ctx, store.Message{
				ConversationID: conversationID,
				Role:           store.RoleAssistant,
				Content:        final,
			}); err != nil {
				return "", fmt.Errorf("persist assistant reply: %w", err)
			}
			l.logger.Info("turn completed",
				"conversation_id", conversationID,
				"rounds", round,
				"reply_len", len(final),
			)
			return final, nil
		}

		messages = append(messages, llm.Message{
			Role:      store.RoleAssistant,
			Content:   assistant.Content,
			ToolCalls: assistant.ToolCalls,
		})

		for _, call := range assistant.ToolCalls {
			if _, err := l.store.Append(ctx, store.Message{
				ConversationID: conversationID,
				Role:           store.RoleAssistant,
				Content:        call.Function.Arguments,
				ToolName:       call.Function.Name,
				ToolCallID:     call.ID,
			}); err != nil {
				return "", fmt.Errorf("persist tool request: %w", err)
			}

			result := l.executeTool(ctx, conversationID, call)

			messages = append(messages, llm.Message{
				Role:       store.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
			if _, err := l.store.Append(ctx, store.Message{
				ConversationID: conversationID,
				Role:           store.RoleTool,
				Content:        result,
				ToolName:       call.Function.Name,
				ToolCallID:     call.ID,
			}); err != nil {
				return "", fmt.Errorf("persist tool result: %w", err)
			}
		}
	}

	return "", &MaxRoundsError{Rounds: l.maxRounds}
}

// executeTool runs one tool call, converting any failure into an error
// payload the model can act on.
func (l *Loop) executeTool(ctx context.Context, conversationID string, call llm.ToolCall) string {
	name := call.Function.Name
	l.logger.Info("executing tool",
		"conversation_id", conversationID,
		"tool", name,
		"tool_call_id", call.ID,
	)

	result, err := l.registry.Execute(ctx, name, call.Function.Arguments)
	if err != nil {
		l.logger.Warn("tool execution failed",
			"conversation_id", conversationID,
			"tool", name,
			"error", err,
		)
		payload, marshalErr := json.Marshal(map[string]string{
			"error": fmt.Sprintf("Something went wrong while executing %s: %v", name, err),
		})
		if marshalErr != nil {
			return fmt.Sprintf(`{"error": "tool %s failed"}`, name)
		}
		return string(payload)
	}
	return result
}

// rebuild reconstructs the model message array from persisted rows.
// System rows are dropped (the live prompt is prepended instead), and
// assistant rows that recorded a tool request are re-expanded into
// tool_calls entries.
func rebuild(history []store.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		switch {
		case msg.Role == store.RoleSystem:
			continue
		case msg.Role == store.RoleAssistant && msg.ToolName != "" && msg.ToolCallID != "":
			messages = append(messages, llm.Message{
				Role: store.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:   msg.ToolCallID,
					Type: "function",
					Function: llm.FunctionCall{
						Name:      msg.ToolName,
						Arguments: msg.Content,
					},
				}},
			})
		case msg.Role == store.RoleTool:
			messages = append(messages, llm.Message{
				Role:       store.RoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		default:
			messages = append(messages, llm.Message{
				Role:    msg.Role,
				Content: msg.Content,
			})
		}
	}
	return messages
}
