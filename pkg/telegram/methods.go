package telegram

import (
	"context"
	"time"
)

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", struct{}{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates long-polls for up to timeout. The request deadline is the poll
// timeout plus a small grace period.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	secs := int(timeout / time.Second)
	if secs < 0 {
		secs = 0
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	body := map[string]any{
		"offset":          offset,
		"timeout":         secs,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var ups []Update
	if err := c.callNoTimeout(ctx, "getUpdates", body, &ups); err != nil {
		return nil, err
	}
	return ups, nil
}

// SetWebhook registers url for update delivery. secret is echoed back by
// Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	body := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		body["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", body, nil)
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", struct{}{}, nil)
}

func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) (*Message, error) {
	if err := c.wait(ctx, p.ChatID); err != nil {
		return nil, err
	}
	var m Message
	if err := c.call(ctx, "sendMessage", p, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) EditMessageText(ctx context.Context, p EditMessageTextParams) error {
	if err := c.wait(ctx, p.ChatID); err != nil {
		return err
	}
	return c.call(ctx, "editMessageText", p, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]int64{"chat_id": chatID, "message_id": messageID}, nil)
}

// AnswerCallbackQuery acknowledges a button press; text shows as a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, id, text string, alert bool) error {
	body := map[string]any{"callback_query_id": id}
	if text != "" {
		body["text"] = text
	}
	if alert {
		body["show_alert"] = true
	}
	return c.call(ctx, "answerCallbackQuery", body, nil)
}

func (c *Client) GetChatAdministrators(ctx context.Context, chatID int64) ([]ChatMember, error) {
	var ms []ChatMember
	if err := c.call(ctx, "getChatAdministrators", map[string]int64{"chat_id": chatID}, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}
