package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"

	"transrelay/internal/sweeper"
	"transrelay/pkg/artifact"
	"transrelay/pkg/auth"
	"transrelay/pkg/bot"
	"transrelay/pkg/chatcfg"
	"transrelay/pkg/collect"
	"transrelay/pkg/config"
	"transrelay/pkg/expand"
	"transrelay/pkg/ingest"
	"transrelay/pkg/logger"
	"transrelay/pkg/notice"
	"transrelay/pkg/ocr"
	"transrelay/pkg/progressor"
	"transrelay/pkg/render"
	"transrelay/pkg/state"
	"transrelay/pkg/store"
	"transrelay/pkg/telegram"
	"transrelay/pkg/translate"
)

// shutdownGrace bounds how long Run waits for in-flight work on exit.
const shutdownGrace = 15 * time.Second

// App encapsulates the relay components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	layout     state.Layout
	tg         *telegram.Client
	bot        *bot.Bot
	collector  *collect.Machine
	queue      *ingest.Queue
	dispatcher *ingest.Dispatcher
	gate       *auth.Gate

	srv   *http.Server
	fsrv  *fasthttp.Server
	ready atomic.Bool
	// botName is the @username reported by getMe, empty until Run.
	botName atomic.Value
}

// New validates the effective config, opens the store and wires every
// component. It does not touch the network; call Run for that.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	cfg := eff.Config
	if cfg == nil {
		return nil, fmt.Errorf("missing effective config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	layout, err := state.EnsureStateDirs(eff.DBPath)
	if err != nil {
		return nil, fmt.Errorf("prepare data dir %s: %w", eff.DBPath, err)
	}
	if err := store.Open(layout.Store); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", layout.Store, err)
	}
	if _, err := progressor.Run(context.Background(), version); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	notice.Init(cfg.Logging.Locale)

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate, layout: layout}
	a.wire(&http.Client{})
	return a, nil
}

// wire builds the component graph on top of an opened store.
func (a *App) wire(hc *http.Client) {
	cfg := a.eff.Config

	a.tg = telegram.New(hc, cfg.Telegram.BaseURL, cfg.Telegram.Token, telegram.Options{
		RequestTimeout: cfg.Telegram.RequestTimeout.Duration(),
		MaxFileSize:    cfg.Telegram.MaxFileSize.Int64(),
		Throttle:       auth.NewLimiters(cfg.Telegram.RateLimit.RPS, cfg.Telegram.RateLimit.Burst),
	})

	gw := translate.NewGateway(hc, cfg.Translate.Endpoint, cfg.Translate.Timeout.Duration())
	codec := render.NewCodec(cfg.Translate.PrimaryLang)
	settings := chatcfg.New(store.ChatConfigs{}, a.tg, cfg.Translate.PrimaryLang)

	if font := artifact.FindFont(cfg.Artifact.FontPath); font != cfg.Artifact.FontPath {
		if cfg.Artifact.FontPath != "" {
			logger.Warn("report_font_unreadable", "path", cfg.Artifact.FontPath, "using", font)
		}
		cfg.Artifact.FontPath = font
	}
	if cfg.Artifact.FontPath == "" && artifact.NeedsUnicodeFont(cfg.Logging.Locale, cfg.Translate.PrimaryLang) {
		logger.Warn("report_font_missing", "locale", cfg.Logging.Locale, "primary", cfg.Translate.PrimaryLang,
			"hint", "set artifact.font_path to a UTF-8 .ttf such as DejaVuSans.ttf")
	}

	a.collector = collect.New(collect.Config{
		StartCommand:    cfg.Collect.StartCommand,
		FinalizeCommand: cfg.Collect.FinalizeCommand,
		CancelCommand:   cfg.Collect.CancelCommand,
		DefaultName:     cfg.Collect.DefaultName,
		MaxItems:        cfg.Collect.MaxItems,
		FetchTimeout:    cfg.Telegram.RequestTimeout.Duration(),
		RenderTimeout:   cfg.Artifact.RenderTimeout.Duration(),
		Extension:       ".pdf",
	},
		bot.Fetcher{API: a.tg},
		&artifact.PDF{PageSize: cfg.Artifact.PageSize, Title: cfg.Artifact.Title, FontPath: cfg.Artifact.FontPath},
		bot.Outbox{API: a.tg},
	)

	var reader ocr.Reader
	if cfg.OCR.Enabled {
		reader = ocr.New(hc, cfg.OCR.Endpoint, cfg.OCR.APIKey, cfg.OCR.Timeout.Duration())
	}

	a.bot = bot.New(bot.Deps{
		API:        a.tg,
		Records:    store.Records{},
		Settings:   settings,
		Collector:  a.collector,
		Expander:   expand.New(store.Records{}, gw, codec),
		Translator: gw,
		Codec:      codec,
		OCR:        reader,
	})

	a.queue = ingest.NewQueue(cfg.Server.QueueCapacity)
	a.dispatcher = ingest.NewDispatcher(a.queue, a.bot.HandleUpdate, ingest.DispatcherConfig{
		Workers: cfg.Server.Workers,
		ChatOf:  bot.ChatOf,
	})
	a.gate = auth.NewGate(auth.SecConfig{
		RPS:           cfg.Security.RateLimit.RPS,
		Burst:         cfg.Security.RateLimit.Burst,
		IPWhitelist:   append([]string{}, cfg.Security.IPWhitelist...),
		WebhookSecret: cfg.Telegram.WebhookSecret,
	})
}

// Run starts the dispatcher, the sweeper, the HTTP server and the update
// source, and blocks until ctx is canceled or the server fails. On return
// queued updates have been handled and the store is closed.
func (a *App) Run(ctx context.Context) error {
	cfg := a.eff.Config
	a.printBanner()
	if err := a.identify(ctx); err != nil {
		_ = store.Close()
		return err
	}

	workCtx, stopWork := context.WithCancel(context.Background())
	defer stopWork()
	dispatched := make(chan struct{})
	go func() {
		a.dispatcher.Run(workCtx)
		close(dispatched)
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	stopSweeper, err := sweeper.Start(runCtx, sweeper.Config{
		Enabled: cfg.Sweeper.Enabled,
		Cron:    cfg.Sweeper.Cron,
		TTL:     cfg.Collect.SessionTTL.Duration(),
	}, a.collector)
	if err != nil {
		a.shutdown(cancelRun, nil, dispatched, stopWork)
		return err
	}
	defer stopSweeper()

	errCh := a.startHTTP(runCtx)

	var pollDone <-chan struct{}
	switch cfg.Telegram.Mode {
	case "poll":
		if err := a.tg.DeleteWebhook(runCtx); err != nil {
			logger.Warn("delete_webhook_failed", "error", err)
		}
		pollDone = a.startPolling(runCtx)
	default:
		if cfg.Telegram.WebhookURL != "" {
			if err := a.tg.SetWebhook(runCtx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
				a.shutdown(cancelRun, nil, dispatched, stopWork)
				return fmt.Errorf("register webhook: %w", err)
			}
			logger.Info("webhook_registered", "url", cfg.Telegram.WebhookURL)
		}
	}
	a.ready.Store(true)
	logger.Info("relay_ready", "mode", cfg.Telegram.Mode, "engine", cfg.Server.Engine, "addr", a.eff.Addr)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("http_server_failed", "error", runErr)
	}
	a.shutdown(cancelRun, pollDone, dispatched, stopWork)
	return runErr
}

// identify asks the Bot API who the token belongs to. A rejected token
// stops startup; a transport failure is only logged since the update
// source retries on its own.
func (a *App) identify(ctx context.Context) error {
	me, err := a.tg.GetMe(ctx)
	if err != nil {
		var rerr *telegram.RequestError
		if errors.As(err, &rerr) && (rerr.StatusCode == http.StatusUnauthorized || rerr.StatusCode == http.StatusNotFound) {
			return fmt.Errorf("bot token rejected: %w", err)
		}
		logger.Warn("get_me_failed", "error", err)
		return nil
	}
	a.botName.Store(me.Username)
	logger.Info("bot_identified", "id", me.ID, "username", me.Username)
	return nil
}

// shutdown stops intake first, then lets the dispatcher finish the backlog
// and pending report deliveries before closing the store.
func (a *App) shutdown(cancelRun context.CancelFunc, pollDone <-chan struct{}, dispatched <-chan struct{}, stopWork context.CancelFunc) {
	a.ready.Store(false)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	a.stopHTTP(sctx)
	cancelRun()
	if pollDone != nil {
		<-pollDone
	}
	a.queue.Close()

	select {
	case <-dispatched:
	case <-sctx.Done():
		logger.Warn("dispatcher_drain_timeout", "queued", a.queue.Len())
		stopWork()
		<-dispatched
	}
	if err := a.collector.Wait(sctx); err != nil {
		logger.Warn("report_deliveries_abandoned", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("relay_stopped")
}
