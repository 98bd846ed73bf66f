package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestTranslateParsesSegments(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		if r.URL.Query().Get("tl") != "vi" || r.URL.Query().Get("client") != "gtx" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[[["Xin chào. ","Hello. ",null,null],["Bạn khỏe không?","How are you?",null,null]],null,"en"]`))
	}))
	defer srv.Close()

	g := NewGateway(srv.Client(), srv.URL, time.Second)
	got, src := g.Translate(context.Background(), "Hello. How are you? & 100%", "vi")
	if got != "Xin chào. Bạn khỏe không?" || src != "en" {
		t.Fatalf("Translate = %q, %q", got, src)
	}
	if gotQuery != "Hello. How are you? & 100%" {
		t.Fatalf("query text not round-tripped: %q", gotQuery)
	}
}

func TestTranslateBlankSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	g := NewGateway(srv.Client(), srv.URL, time.Second)
	got, src := g.Translate(context.Background(), "  \n ", "ru")
	if got != "" || src != Undetermined {
		t.Fatalf("Translate blank = %q, %q", got, src)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestTranslateFailuresYieldSentinel(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		},
		"timeout": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			g := NewGateway(srv.Client(), srv.URL, 50*time.Millisecond)
			got, src := g.Translate(context.Background(), "hello", "ru")
			if !IsSentinel(got) || src != Undetermined {
				t.Fatalf("Translate = %q, %q", got, src)
			}
		})
	}
}

func TestNormalizeMissingSource(t *testing.T) {
	got, src, err := Normalize([]byte(`[[["Привет","Hello"]]]`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got != "Привет" || src != Undetermined {
		t.Fatalf("Normalize = %q, %q", got, src)
	}
}

func TestSentinelOmitsRequestURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	g := NewGateway(&http.Client{}, endpoint, time.Second)
	secret := "a long private message that must not be echoed back"
	got, src := g.Translate(context.Background(), secret, "ru")
	if !IsSentinel(got) || src != Undetermined {
		t.Fatalf("Translate = %q, %q", got, src)
	}
	if strings.Contains(got, "private") || strings.Contains(got, endpoint) {
		t.Fatalf("sentinel leaks the request URL: %q", got)
	}
}
