package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/valyala/fasthttp"
)

// FastHTTPAdapter serves h from a fasthttp server. Request contexts derive
// from base so an engine shutdown cancels handlers still running.
func FastHTTPAdapter(base context.Context, h HandlerFunc) fasthttp.RequestHandler {
	if base == nil {
		base = context.Background()
	}
	return func(rc *fasthttp.RequestCtx) {
		ctx, cancel := context.WithCancel(base)
		defer cancel()

		hdr := make(http.Header)
		rc.Request.Header.VisitAll(func(k, v []byte) {
			hdr.Add(string(k), string(v))
		})
		w := &fastWriter{rc: rc, header: make(http.Header)}
		h(w, &Request{
			Ctx:        ctx,
			Method:     string(rc.Method()),
			Path:       string(rc.Path()),
			Header:     hdr,
			Body:       io.NopCloser(bytes.NewReader(rc.PostBody())),
			RemoteAddr: rc.RemoteAddr().String(),
			Raw:        rc,
		})
		w.flush(http.StatusOK)
	}
}

// fastWriter buffers headers until the status is known, then copies them
// onto the fasthttp response once.
type fastWriter struct {
	rc      *fasthttp.RequestCtx
	header  http.Header
	flushed bool
}

func (w *fastWriter) Header() http.Header { return w.header }

func (w *fastWriter) WriteHeader(status int) { w.flush(status) }

func (w *fastWriter) Write(b []byte) (int, error) {
	w.flush(http.StatusOK)
	return w.rc.Write(b)
}

func (w *fastWriter) flush(status int) {
	if w.flushed {
		return
	}
	w.flushed = true
	for k, vals := range w.header {
		for _, v := range vals {
			w.rc.Response.Header.Add(k, v)
		}
	}
	w.rc.SetStatusCode(status)
}
