package app

import (
	"context"
	_ "embed"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"transrelay/pkg/banner"
	"transrelay/pkg/httpx"
	"transrelay/pkg/logger"
	"transrelay/pkg/store"
	"transrelay/pkg/utils"
)

// WebhookPath receives Bot API update deliveries.
const WebhookPath = "/telegram/webhook"

//go:embed openapi.yaml
var openapiSpec []byte

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

func (a *App) webhookEnabled() bool {
	return a.eff.Config.Telegram.Mode != "poll"
}

// router serves every route on net/http. The fasthttp engine reuses it for
// everything except the webhook.
func (a *App) router() *mux.Router {
	r := mux.NewRouter()
	if a.webhookEnabled() {
		r.Handle(WebhookPath, httpx.NetHTTPAdapter(a.webhookHandler())).Methods(http.MethodPost)
	}
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", openapiHandler).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	return r
}

// readyzHandler reports 200 once the store is open and the update source
// is running.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !store.Ready() {
		utils.JSONWrite(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": "store"})
		return
	}
	if !a.ready.Load() {
		utils.JSONWrite(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": "starting"})
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	body := map[string]string{"status": "ok", "version": ver}
	if name, _ := a.botName.Load().(string); name != "" {
		body["bot"] = "@" + name
	}
	utils.JSONWrite(w, http.StatusOK, body)
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapiSpec)
}

// startHTTP starts the configured engine in a goroutine and returns a
// channel that receives its terminal error.
func (a *App) startHTTP(ctx context.Context) <-chan error {
	cfg := a.eff.Config
	errCh := make(chan error, 1)

	if cfg.Server.Engine == "fasthttp" {
		a.fsrv = &fasthttp.Server{
			Handler:            a.fastHandler(ctx),
			Name:               "transrelay",
			ReadTimeout:        cfg.Server.ReadTimeout.Duration(),
			WriteTimeout:       cfg.Server.WriteTimeout.Duration(),
			MaxRequestBodySize: int(cfg.Server.MaxBodySize.Int64()),
		}
		go func() {
			logger.Info("http_listening", "engine", "fasthttp", "addr", a.eff.Addr)
			errCh <- a.fsrv.ListenAndServe(a.eff.Addr)
		}()
		return errCh
	}

	a.srv = &http.Server{
		Addr:              a.eff.Addr,
		Handler:           a.router(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout.Duration(),
		ReadTimeout:       cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:      cfg.Server.WriteTimeout.Duration(),
	}
	go func() {
		logger.Info("http_listening", "engine", "nethttp", "addr", a.eff.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// fastHandler serves the webhook natively and adapts the router for the
// remaining routes.
func (a *App) fastHandler(ctx context.Context) fasthttp.RequestHandler {
	webhook := httpx.FastHTTPAdapter(ctx, a.webhookHandler())
	fallback := fasthttpadaptor.NewFastHTTPHandler(a.router())
	enabled := a.webhookEnabled()
	return func(c *fasthttp.RequestCtx) {
		if enabled && c.IsPost() && string(c.Path()) == WebhookPath {
			webhook(c)
			return
		}
		fallback(c)
	}
}

// stopHTTP shuts the running engine down, waiting at most until ctx ends.
func (a *App) stopHTTP(ctx context.Context) {
	switch {
	case a.srv != nil:
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
			_ = a.srv.Close()
		}
	case a.fsrv != nil:
		done := make(chan error, 1)
		go func() { done <- a.fsrv.Shutdown() }()
		select {
		case err := <-done:
			if err != nil {
				logger.Warn("http_shutdown_failed", "error", err)
			}
		case <-ctx.Done():
			logger.Warn("http_shutdown_timeout", "engine", "fasthttp")
		}
	}
}
