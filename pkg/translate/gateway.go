// Package translate wraps the public translation endpoint.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"transrelay/pkg/logger"
	"transrelay/pkg/metrics"
)

// Undetermined is the detected language reported when detection failed.
const Undetermined = "und"

const sentinelPrefix = "[translation error: "

const maxResponseBytes = 4 << 20

// Translator turns text into target language text plus the detected source
// language. Implementations never fail: errors are folded into the result.
type Translator interface {
	Translate(ctx context.Context, text, target string) (translated, detected string)
}

// Gateway calls the translate_a/single endpoint once per request with a
// bounded timeout.
type Gateway struct {
	http     *http.Client
	endpoint string
	timeout  time.Duration
}

// NewGateway returns a Gateway. A nil client uses http.DefaultClient.
func NewGateway(client *http.Client, endpoint string, timeout time.Duration) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Gateway{http: client, endpoint: strings.TrimRight(endpoint, "?"), timeout: timeout}
}

// Translate returns the translation of text into target. Blank text returns
// ("", Undetermined) without a network call. Any failure yields a sentinel
// string embedding the error and Undetermined.
func (g *Gateway) Translate(ctx context.Context, text, target string) (string, string) {
	if strings.TrimSpace(text) == "" {
		return "", Undetermined
	}
	start := time.Now()
	translated, detected, err := g.call(ctx, text, target)
	metrics.TranslateSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Translations.WithLabelValues("error").Inc()
		logger.Warn("translate_failed", "target", target, "error", err)
		return Sentinel(err), Undetermined
	}
	metrics.Translations.WithLabelValues("ok").Inc()
	return translated, detected
}

func (g *Gateway) call(ctx context.Context, text, target string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", "", err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("status %d", resp.StatusCode)
	}
	return Normalize(raw)
}

// Normalize extracts the translation and detected language from a
// translate_a/single response. Sentence segments are concatenated in order.
func Normalize(raw []byte) (string, string, error) {
	var data []json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	if len(data) == 0 {
		return "", "", fmt.Errorf("empty response")
	}
	var segments [][]any
	if err := json.Unmarshal(data[0], &segments); err != nil {
		return "", "", fmt.Errorf("decode segments: %w", err)
	}
	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", "", fmt.Errorf("no translated segments")
	}

	detected := Undetermined
	if len(data) > 2 {
		var src string
		if err := json.Unmarshal(data[2], &src); err == nil && src != "" {
			detected = src
		}
	}
	return strings.TrimSpace(b.String()), detected, nil
}

// Sentinel formats err as the placeholder text shown instead of a translation.
// A transport error is reduced to its cause, since its URL repeats the
// whole source text.
func Sentinel(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		err = uerr.Err
	}
	return sentinelPrefix + err.Error() + "]"
}

// IsSentinel reports whether s is a placeholder produced by a failed call.
func IsSentinel(s string) bool {
	return strings.HasPrefix(s, sentinelPrefix)
}
