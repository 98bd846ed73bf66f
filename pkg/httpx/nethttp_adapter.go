package httpx

import (
	"net/http"
)

// NetHTTPAdapter serves h from a net/http server. http.ResponseWriter
// already satisfies ResponseWriter, so it is passed through as is.
func NetHTTPAdapter(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, &Request{
			Ctx:        r.Context(),
			Method:     r.Method,
			Path:       r.URL.Path,
			Header:     r.Header,
			Body:       r.Body,
			RemoteAddr: r.RemoteAddr,
			Raw:        r,
		})
	})
}
