// Package httpx lets one handler serve both the net/http and the fasthttp
// engines.
package httpx

import (
	"context"
	"io"
	"net/http"
)

// Request is the engine-neutral view of an inbound request. Handlers should
// use Ctx for cancellation.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
	// Raw is the engine's own request (*http.Request or *fasthttp.RequestCtx).
	Raw interface{}
}

// ResponseWriter is the subset of http.ResponseWriter both adapters provide,
// so any http.ResponseWriter helper accepts it.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

type HandlerFunc func(w ResponseWriter, r *Request)

// ReadBody reads at most limit bytes. tooLarge reports a body that did not
// fit; the returned data is then nil.
func ReadBody(r *Request, limit int64) (data []byte, tooLarge bool, err error) {
	if r.Body == nil {
		return nil, false, nil
	}
	data, err = io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return nil, true, nil
	}
	return data, false, nil
}
