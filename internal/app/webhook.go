package app

import (
	"bytes"
	"errors"
	"net/http"

	"transrelay/pkg/httpx"
	"transrelay/pkg/ingest"
	"transrelay/pkg/logger"
	"transrelay/pkg/metrics"
	"transrelay/pkg/utils"
)

// webhookHandler accepts one update per request and queues it. Decoding
// happens in the dispatcher so the request returns as soon as the body is
// copied. A non-2xx answer makes Telegram redeliver later.
func (a *App) webhookHandler() httpx.HandlerFunc {
	limit := a.eff.Config.Server.MaxBodySize.Int64()
	return a.gate.Guard(func(w httpx.ResponseWriter, r *httpx.Request) {
		body, tooLarge, err := httpx.ReadBody(r, limit)
		switch {
		case err != nil:
			utils.JSONError(w, http.StatusBadRequest, "unreadable body")
			return
		case tooLarge:
			logger.Warn("webhook_body_too_large", "limit", limit, "remote", r.RemoteAddr)
			utils.JSONError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		case len(bytes.TrimSpace(body)) == 0:
			utils.JSONError(w, http.StatusBadRequest, "empty body")
			return
		}

		switch err := a.queue.TryEnqueueBytes(ingest.SourceWebhook, body); {
		case errors.Is(err, ingest.ErrQueueFull):
			metrics.QueueDropped.Inc()
			logger.Warn("webhook_queue_full", "capacity", a.queue.Cap())
			utils.JSONError(w, http.StatusServiceUnavailable, "busy")
			return
		case err != nil:
			utils.JSONError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		utils.JSONWrite(w, http.StatusOK, map[string]bool{"ok": true})
	})
}
