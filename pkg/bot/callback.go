package bot

import (
	"context"
	"errors"
	"strings"

	"transrelay/pkg/expand"
	"transrelay/pkg/logger"
	"transrelay/pkg/notice"
	"transrelay/pkg/telegram"
)

func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	if q.Message == nil {
		b.answer(ctx, q.ID, "")
		return
	}
	msg := q.Message
	req := expand.Request{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Lang:      strings.TrimPrefix(strings.TrimSpace(q.Data), "lang_"),
		Current:   msg.HTMLText(),
		Edit: func(ctx context.Context, text string) error {
			err := b.API.EditMessageText(ctx, telegram.EditMessageTextParams{
				ChatID:      msg.Chat.ID,
				MessageID:   msg.MessageID,
				Text:        text,
				ParseMode:   telegram.ParseModeHTML,
				ReplyMarkup: msg.ReplyMarkup,
			})
			if telegram.IsNotModified(err) {
				return nil
			}
			return err
		},
	}

	res, err := b.Expander.Expand(ctx, req)
	switch {
	case err == nil:
		b.answer(ctx, q.ID, res.Notice)
	case errors.Is(err, expand.ErrNotFound):
		b.answer(ctx, q.ID, notice.T("❌ Original text not found (the message was edited or the bot restarted)."))
	case errors.Is(err, expand.ErrInvalidLang):
		b.answer(ctx, q.ID, notice.T("❌ Unknown language."))
	default:
		logger.Warn("expand_failed", "chat", req.ChatID, "msg", req.MessageID, "lang", req.Lang, "error", err)
		b.answer(ctx, q.ID, notice.T("⚠️ Translation failed, please try again."))
	}
}

func (b *Bot) answer(ctx context.Context, id, text string) {
	if err := b.API.AnswerCallbackQuery(ctx, id, text, false); err != nil {
		logger.Warn("answer_callback_failed", "error", err)
	}
}
