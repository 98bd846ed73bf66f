// Package telegram is a small Bot API client covering the methods the relay
// calls. Outbound writes to a chat are throttled per chat id.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"transrelay/pkg/logger"
)

// DefaultBaseURL is the public Bot API host.
const DefaultBaseURL = "https://api.telegram.org"

const maxResponseBytes = 4 << 20

// Throttle gates outbound calls per key. *auth.Limiters satisfies it.
type Throttle interface {
	Wait(ctx context.Context, key string) error
}

// Options tune a Client. Zero values pick sane defaults.
type Options struct {
	RequestTimeout time.Duration
	MaxFileSize    int64
	Throttle       Throttle
}

type Client struct {
	http     *http.Client
	baseURL  string
	token    string
	timeout  time.Duration
	maxFile  int64
	throttle Throttle
}

// New builds a client. httpClient may be nil. The client carries no
// overall timeout so long polls are bounded by their own context.
func New(httpClient *http.Client, baseURL, token string, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 20 << 20
	}
	return &Client{
		http:     httpClient,
		baseURL:  baseURL,
		token:    strings.TrimSpace(token),
		timeout:  opts.RequestTimeout,
		maxFile:  opts.MaxFileSize,
		throttle: opts.Throttle,
	}
}

// RequestError is a non-2xx or ok=false answer from the Bot API.
type RequestError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
	RetryAfter  int
	Body        string
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		desc = strings.TrimSpace(e.Body)
	}
	if e.ErrorCode > 0 {
		return fmt.Sprintf("telegram %s: http %d (error_code=%d): %s", e.Method, e.StatusCode, e.ErrorCode, desc)
	}
	return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, desc)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) wait(ctx context.Context, chatID int64) error {
	if c.throttle == nil || chatID == 0 {
		return nil
	}
	return c.throttle.Wait(ctx, strconv.FormatInt(chatID, 10))
}

// call posts a JSON body and decodes result into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.callNoTimeout(ctx, method, body, out)
}

func (c *Client) callNoTimeout(ctx context.Context, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("telegram %s: marshal: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("telegram %s: read: %w", method, err)
	}
	var r apiResponse
	decodeErr := json.Unmarshal(raw, &r)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || decodeErr != nil || !r.OK {
		rerr := &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   r.ErrorCode,
			Description: r.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
		if r.Parameters != nil {
			rerr.RetryAfter = r.Parameters.RetryAfter
		}
		logger.Warn("telegram_call_failed", "method", method, "status", resp.StatusCode, "error_code", r.ErrorCode, "description", r.Description)
		return rerr
	}
	if out == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

func describes(err error, fragment string) bool {
	var rerr *RequestError
	if !errors.As(err, &rerr) || rerr == nil {
		return false
	}
	return strings.Contains(strings.ToLower(rerr.Description), fragment)
}

// IsNotModified reports the harmless "message is not modified" edit error.
func IsNotModified(err error) bool {
	return describes(err, "message is not modified")
}

// IsCantDelete reports a delete refused for lack of rights or message age.
func IsCantDelete(err error) bool {
	return describes(err, "message can't be deleted") || describes(err, "not enough rights")
}
