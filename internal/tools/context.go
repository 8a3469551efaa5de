package tools

import "context"

// Notifier delivers out-of-band messages to the conversation's user.
// Tools that produce media or finish asynchronously use it to send
// results directly instead of routing them through the model.
type Notifier interface {
	SendText(ctx context.Context, conversationID, text string) error
	SendPhotoURL(ctx context.Context, conversationID, url, caption string) error
	SendPhotoData(ctx context.Context, conversationID, filename string, data []byte, caption string) error
}

type contextKey int

const (
	conversationIDKey contextKey = iota
	notifierKey
)

// WithConversationID stores the active conversation id on the context
// so handlers can address follow-up notifications.
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationIDKey, conversationID)
}

// ConversationIDFromContext returns the conversation id set by
// WithConversationID, or "".
func ConversationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(conversationIDKey).(string)
	return id
}

// WithNotifier stores the channel notifier on the context.
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, notifierKey, n)
}

// NotifierFromContext returns the notifier set by WithNotifier, or nil.
func NotifierFromContext(ctx context.Context) Notifier {
	n, _ := ctx.Value(notifierKey).(Notifier)
	return n
}
