// Package ocr extracts text from an image URL through an ocr.space style
// endpoint. Failures are reported as errors; callers treat OCR as optional.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"transrelay/pkg/logger"
)

// Reader turns an image location into text.
type Reader interface {
	ReadURL(ctx context.Context, imageURL string) (string, error)
}

type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
	timeout  time.Duration
}

func New(httpClient *http.Client, endpoint, apiKey string, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{http: httpClient, endpoint: endpoint, apiKey: apiKey, timeout: timeout}
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ErrorMessage          any  `json:"ErrorMessage"`
}

// ReadURL returns the trimmed text of the first parsed result, "" when the
// service found nothing.
func (c *Client) ReadURL(ctx context.Context, imageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("url", imageURL)
	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+sep+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr: http %d", resp.StatusCode)
	}
	var pr parseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&pr); err != nil {
		return "", fmt.Errorf("ocr decode: %w", err)
	}
	if pr.IsErroredOnProcessing {
		return "", fmt.Errorf("ocr: %v", pr.ErrorMessage)
	}
	logger.Debug("ocr_done", "results", len(pr.ParsedResults), "elapsed", time.Since(started))
	if len(pr.ParsedResults) == 0 {
		return "", nil
	}
	return strings.TrimSpace(pr.ParsedResults[0].ParsedText), nil
}
