// Package bot routes Telegram updates to the collection machine, the chat
// settings commands, the relay and the expansion controller.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"transrelay/pkg/chatcfg"
	"transrelay/pkg/collect"
	"transrelay/pkg/expand"
	"transrelay/pkg/logger"
	"transrelay/pkg/metrics"
	"transrelay/pkg/models"
	"transrelay/pkg/notice"
	"transrelay/pkg/ocr"
	"transrelay/pkg/render"
	"transrelay/pkg/telegram"
	"transrelay/pkg/translate"
)

// API is the subset of the Bot API the dispatcher calls.
type API interface {
	SendMessage(ctx context.Context, p telegram.SendMessageParams) (*telegram.Message, error)
	EditMessageText(ctx context.Context, p telegram.EditMessageTextParams) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	AnswerCallbackQuery(ctx context.Context, id, text string, alert bool) error
	SendDocument(ctx context.Context, u telegram.Upload) (*telegram.Message, error)
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	FetchFile(ctx context.Context, fileID string) ([]byte, error)
	FileURL(filePath string) string
}

// RecordWriter persists the original behind a rendered message.
type RecordWriter interface {
	Put(ctx context.Context, chatID, msgID int64, e models.OriginalEntry) error
}

// Settings is the chat configuration collaborator.
type Settings interface {
	GetConfig(ctx context.Context, chatID int64) models.ChatConfig
	Handle(ctx context.Context, cmd chatcfg.Command) (string, bool)
}

// Collector consumes messages of chats that are collecting a report.
type Collector interface {
	Handle(ctx context.Context, ev collect.Event) bool
}

// Expander adds a language to a rendered message.
type Expander interface {
	Expand(ctx context.Context, req expand.Request) (expand.Result, error)
}

// Deps wires a Bot. OCR may be nil.
type Deps struct {
	API        API
	Records    RecordWriter
	Settings   Settings
	Collector  Collector
	Expander   Expander
	Translator translate.Translator
	Codec      *render.Codec
	OCR        ocr.Reader
}

type Bot struct {
	Deps
	// hinted remembers chats already told to grant the delete permission.
	hinted sync.Map
}

func New(d Deps) *Bot {
	return &Bot{Deps: d}
}

// HandleUpdate processes one update. It never panics: an unexpected failure
// is logged and answered with a short apology in the originating chat.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	log := logger.With("update", u.UpdateID, "trace", uuid.NewString())
	defer func() {
		if r := recover(); r != nil {
			log.Error("update_panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			b.apologize(ctx, u)
		}
	}()

	switch {
	case u.Message != nil:
		metrics.Updates.WithLabelValues("message").Inc()
		b.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		metrics.Updates.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, u.CallbackQuery)
	default:
		metrics.Updates.WithLabelValues("other").Inc()
		log.Debug("update_ignored")
	}
}

func (b *Bot) apologize(ctx context.Context, u telegram.Update) {
	text := notice.T("⚠️ Something went wrong while handling this message.")
	switch {
	case u.CallbackQuery != nil:
		_ = b.API.AnswerCallbackQuery(ctx, u.CallbackQuery.ID, text, false)
	case u.Message != nil:
		_, _ = b.API.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:          u.Message.Chat.ID,
			MessageThreadID: u.Message.ThreadID(),
			Text:            text,
		})
	}
}

// ChatOf returns the chat an update belongs to, 0 when it has none. The
// ingest dispatcher uses it to keep a chat's updates in order.
func ChatOf(u telegram.Update) int64 {
	switch {
	case u.Message != nil:
		return u.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat.ID
	}
	return 0
}
