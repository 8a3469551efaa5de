package telegram

import "context"

// Notifier addresses outbound messages by conversation id rather than
// chat id. Tool handlers and the image poll manager use it to deliver
// results outside the normal request/reply flow.
type Notifier struct {
	client *Client
}

// NewNotifier creates a Notifier backed by the given client.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// SendText delivers a text message to a conversation.
func (n *Notifier) SendText(ctx context.Context, conversationID, text string) error {
	chatID, err := chatIDFromConversation(conversationID)
	if err != nil {
		return err
	}
	return n.client.SendText(ctx, chatID, text)
}

// SendPhotoURL delivers a photo by URL to a conversation.
func (n *Notifier) SendPhotoURL(ctx context.Context, conversationID, photoURL, caption string) error {
	chatID, err := chatIDFromConversation(conversationID)
	if err != nil {
		return err
	}
	return n.client.SendPhotoURL(ctx, chatID, photoURL, caption)
}

// SendPhotoData delivers raw image bytes to a conversation.
func (n *Notifier) SendPhotoData(ctx context.Context, conversationID, filename string, data []byte, caption string) error {
	chatID, err := chatIDFromConversation(conversationID)
	if err != nil {
		return err
	}
	return n.client.SendPhotoData(ctx, chatID, filename, data, caption)
}
