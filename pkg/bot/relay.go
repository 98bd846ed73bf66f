package bot

import (
	"context"
	"strings"

	"transrelay/pkg/chatcfg"
	"transrelay/pkg/collect"
	"transrelay/pkg/logger"
	"transrelay/pkg/metrics"
	"transrelay/pkg/models"
	"transrelay/pkg/notice"
	"transrelay/pkg/render"
	"transrelay/pkg/telegram"
)

func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	if m.From != nil && m.From.IsBot {
		return
	}
	chatID := m.Chat.ID
	threadID := m.ThreadID()

	ev := collect.Event{ChatID: chatID, ThreadID: threadID, Text: m.Text}
	if p := m.LargestPhoto(); p != nil {
		ev.ImageRef = p.FileID
		ev.Text = m.Caption
	}
	if b.Collector != nil && b.Collector.Handle(ctx, ev) {
		return
	}

	if name, arg, ok := parseCommand(m.Text); ok {
		b.handleCommand(ctx, m, name, arg)
		return
	}

	cfg := b.Settings.GetConfig(ctx, chatID)
	if m.IsTopicMessage && !cfg.TopicAllowed(m.MessageThreadID) {
		logger.Debug("topic_not_enabled", "chat", chatID, "thread", m.MessageThreadID)
		return
	}

	text := b.extractText(ctx, m)
	if text == "" {
		return
	}
	b.relay(ctx, m, cfg, text)
}

func (b *Bot) handleCommand(ctx context.Context, m *telegram.Message, name, arg string) {
	if !chatcfg.IsCommand(name) {
		logger.Debug("command_ignored", "chat", m.Chat.ID, "command", name)
		return
	}
	cmd := chatcfg.Command{ChatID: m.Chat.ID, Name: name, Arg: arg}
	if m.From != nil {
		cmd.UserID = m.From.ID
	}
	if m.ReplyTo != nil {
		cmd.IsReply = true
		cmd.ReplyThreadID = m.ReplyTo.ThreadID()
	}
	reply, handled := b.Settings.Handle(ctx, cmd)
	if !handled || reply == "" {
		return
	}
	if _, err := b.API.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:           m.Chat.ID,
		MessageThreadID:  m.ThreadID(),
		Text:             reply,
		ReplyToMessageID: m.MessageID,
	}); err != nil {
		logger.Warn("command_reply_failed", "chat", m.Chat.ID, "command", name, "error", err)
	}
}

// extractText returns the text to translate: the message text, or for a
// photo its caption, falling back to OCR when the caption is empty.
func (b *Bot) extractText(ctx context.Context, m *telegram.Message) string {
	p := m.LargestPhoto()
	if p == nil {
		return strings.TrimSpace(m.Text)
	}
	if c := strings.TrimSpace(m.Caption); c != "" {
		return c
	}
	if b.OCR == nil {
		return ""
	}
	f, err := b.API.GetFile(ctx, p.FileID)
	if err != nil {
		logger.Warn("ocr_get_file_failed", "chat", m.Chat.ID, "error", err)
		return ""
	}
	text, err := b.OCR.ReadURL(ctx, b.API.FileURL(f.FilePath))
	if err != nil {
		logger.Warn("ocr_failed", "chat", m.Chat.ID, "error", err)
		return ""
	}
	return text
}

func (b *Bot) relay(ctx context.Context, m *telegram.Message, cfg models.ChatConfig, text string) {
	primary := b.Codec.PrimaryLang()
	translated, source := b.Translator.Translate(ctx, text, primary)

	sender := SenderDisplay(m.From)
	var label string
	if m.From != nil {
		label = chatcfg.LabelFor(cfg, m.From.Username)
	}
	header := render.Header(sender, label)
	rendered := b.Codec.Render(render.Block{
		Header:   header,
		Original: render.Escape(text),
		Primary:  render.Line{Lang: primary, Text: render.Escape(translated)},
	})

	params := telegram.SendMessageParams{
		ChatID:          m.Chat.ID,
		MessageThreadID: m.ThreadID(),
		Text:            rendered,
		ParseMode:       telegram.ParseModeHTML,
		ReplyMarkup:     Keyboard(cfg.CustomLangs),
	}
	if !cfg.CompactMode {
		params.ReplyToMessageID = m.MessageID
	}
	sent, err := b.API.SendMessage(ctx, params)
	if err != nil {
		logger.Error("relay_send_failed", "chat", m.Chat.ID, "error", err)
		return
	}
	metrics.Updates.WithLabelValues("relayed").Inc()

	entry := models.OriginalEntry{
		SenderDisplay:      sender,
		OriginalText:       text,
		DetectedSourceLang: source,
		Header:             header,
	}
	if err := b.Records.Put(ctx, m.Chat.ID, sent.MessageID, entry); err != nil {
		logger.Error("record_put_failed", "chat", m.Chat.ID, "msg", sent.MessageID, "error", err)
	}

	if cfg.CompactMode {
		b.dropOriginal(ctx, m)
	}
}

// dropOriginal deletes the source message in compact mode. When the bot
// lacks the right, the chat gets one hint per process lifetime.
func (b *Bot) dropOriginal(ctx context.Context, m *telegram.Message) {
	err := b.API.DeleteMessage(ctx, m.Chat.ID, m.MessageID)
	if err == nil {
		return
	}
	if !telegram.IsCantDelete(err) {
		logger.Warn("delete_original_failed", "chat", m.Chat.ID, "msg", m.MessageID, "error", err)
		return
	}
	if _, seen := b.hinted.LoadOrStore(m.Chat.ID, struct{}{}); seen {
		return
	}
	_, _ = b.API.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:          m.Chat.ID,
		MessageThreadID: m.ThreadID(),
		Text:            notice.T("⚠️ The bot cannot delete messages. Please grant it the \"Delete messages\" permission."),
	})
}

// SenderDisplay names the author: @username, else full name, else first
// name, else a generic label.
func SenderDisplay(u *telegram.User) string {
	if u == nil {
		return "User"
	}
	if u.Username != "" {
		return "👤@" + u.Username
	}
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return "User"
}

func parseCommand(text string) (name, arg string, ok bool) {
	name, arg = collect.ParseCommand(text)
	return name, arg, name != ""
}
