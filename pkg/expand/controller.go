// Package expand adds on-demand translation lines to messages the bot has
// already rendered.
package expand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"transrelay/pkg/keylock"
	"transrelay/pkg/langs"
	"transrelay/pkg/logger"
	"transrelay/pkg/metrics"
	"transrelay/pkg/models"
	"transrelay/pkg/notice"
	"transrelay/pkg/render"
	"transrelay/pkg/translate"
)

var (
	// ErrNotFound means no original entry exists for the message, usually
	// because it predates the store or was never tracked.
	ErrNotFound = errors.New("original entry not found")
	// ErrInvalidLang rejects interaction payloads that are not language codes.
	ErrInvalidLang = errors.New("invalid language code")
)

// Records is the part of the message record store the controller needs.
// Rendered and SaveRendered track the text a message shows after each
// expansion, so a later request patches it instead of the snapshot the
// client attached.
type Records interface {
	Get(ctx context.Context, chatID, msgID int64) (models.OriginalEntry, bool, error)
	Rendered(ctx context.Context, chatID, msgID int64) (string, bool, error)
	SaveRendered(ctx context.Context, chatID, msgID int64, text string) error
}

// EditFunc replaces the rendered message text.
type EditFunc func(ctx context.Context, text string) error

// Request asks for one more language on a rendered message.
type Request struct {
	ChatID    int64
	MessageID int64
	Lang      string
	// Current is the message text as the UI shows it now.
	Current string
	// Edit applies the new text. It runs while the message key is held, so
	// edits to one message reach the UI in the order they were computed.
	Edit EditFunc
}

// Result is the outcome of a successful expansion.
type Result struct {
	Text   string
	Notice string
	// Changed is false when the text already held the same line.
	Changed bool
	Healed  bool
	// Failed is set when the line holds a translation error placeholder.
	Failed bool
}

type msgKey struct {
	chat, msg int64
}

// Controller orchestrates lookup, translation and patching.
type Controller struct {
	records    Records
	translator translate.Translator
	codec      *render.Codec
	locks      keylock.Map[msgKey, string]
}

// New returns a Controller.
func New(records Records, translator translate.Translator, codec *render.Codec) *Controller {
	return &Controller{records: records, translator: translator, codec: codec}
}

// Expand translates the stored original into req.Lang and patches it into
// the rendered text. Requests for the same message are serialized and each
// patches the text the previous one produced, falling back to req.Current
// only for a message never expanded before.
func (c *Controller) Expand(ctx context.Context, req Request) (Result, error) {
	lang := langs.Normalize(req.Lang)
	if !langs.Valid(lang) {
		metrics.Expansions.WithLabelValues("invalid").Inc()
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidLang, req.Lang)
	}

	g := c.locks.Lock(msgKey{req.ChatID, req.MessageID})
	defer g.Unlock()

	entry, found, err := c.records.Get(ctx, req.ChatID, req.MessageID)
	if err != nil {
		metrics.Expansions.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("load record: %w", err)
	}
	if !found {
		metrics.Expansions.WithLabelValues("not_found").Inc()
		logger.Info("expand_not_found", "chat", req.ChatID, "msg", req.MessageID, "lang", lang)
		return Result{}, ErrNotFound
	}

	translated, _ := c.translator.Translate(ctx, entry.OriginalText, lang)
	line := render.Line{Lang: lang, Text: render.Escape(translated)}

	base, err := c.latest(ctx, g, req)
	if err != nil {
		metrics.Expansions.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("load rendered text: %w", err)
	}
	text, healed := c.codec.Patch(base, line, func() render.Block {
		return c.rederive(ctx, entry, line)
	})
	if healed {
		logger.Warn("expand_rebuilt_block", "chat", req.ChatID, "msg", req.MessageID)
	}

	res := Result{
		Text:    text,
		Notice:  notice.T("Translated to %s!", strings.ToUpper(lang)),
		Changed: text != base,
		Healed:  healed,
		Failed:  translate.IsSentinel(translated),
	}
	if res.Failed {
		res.Notice = notice.T("⚠️ Translation failed, please try again.")
	}
	if res.Changed && req.Edit != nil {
		if err := req.Edit(ctx, text); err != nil {
			metrics.Expansions.WithLabelValues("error").Inc()
			return Result{}, fmt.Errorf("edit message: %w", err)
		}
	}
	g.SetValue(text)
	if res.Changed {
		if err := c.records.SaveRendered(ctx, req.ChatID, req.MessageID, text); err != nil {
			logger.Warn("expand_save_rendered_failed", "chat", req.ChatID, "msg", req.MessageID, "error", err)
		}
	}
	if res.Failed {
		metrics.Expansions.WithLabelValues("translate_failed").Inc()
	} else {
		metrics.Expansions.WithLabelValues("ok").Inc()
	}
	return res, nil
}

// latest returns the text to patch: the value left by a holder still in
// the contention window, else the last stored rendering, else req.Current.
func (c *Controller) latest(ctx context.Context, g *keylock.Guard[msgKey, string], req Request) (string, error) {
	if v, ok := g.Value(); ok {
		return v, nil
	}
	stored, found, err := c.records.Rendered(ctx, req.ChatID, req.MessageID)
	if err != nil {
		return "", err
	}
	if found {
		return stored, nil
	}
	return req.Current, nil
}

// rederive rebuilds the fixed part of a block from the stored entry.
func (c *Controller) rederive(ctx context.Context, entry models.OriginalEntry, requested render.Line) render.Block {
	primary := requested
	if requested.Lang != c.codec.PrimaryLang() {
		translated, _ := c.translator.Translate(ctx, entry.OriginalText, c.codec.PrimaryLang())
		primary = render.Line{Lang: c.codec.PrimaryLang(), Text: render.Escape(translated)}
	}
	header := entry.Header
	if header == "" {
		header = render.Header(entry.SenderDisplay, "")
	}
	return render.Block{
		Header:   header,
		Original: render.Escape(entry.OriginalText),
		Primary:  primary,
	}
}
