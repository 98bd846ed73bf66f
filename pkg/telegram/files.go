package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
)

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var f File
	if err := c.call(ctx, "getFile", map[string]string{"file_id": fileID}, &f); err != nil {
		return nil, err
	}
	if strings.TrimSpace(f.FilePath) == "" {
		return nil, fmt.Errorf("telegram getFile: missing file_path for %s", fileID)
	}
	return &f, nil
}

// FileURL is the download location of a path returned by GetFile.
func (c *Client) FileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, strings.TrimLeft(filePath, "/"))
}

// Download fetches a file body, refusing anything above the configured limit.
func (c *Client) Download(ctx context.Context, filePath string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(filePath), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{Method: "download", StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxFile+1))
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	if int64(len(data)) > c.maxFile {
		return nil, fmt.Errorf("telegram download: file exceeds %d bytes", c.maxFile)
	}
	return data, nil
}

// FetchFile resolves and downloads a file id in one go.
func (c *Client) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	f, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.FileSize > c.maxFile {
		return nil, fmt.Errorf("telegram download: file exceeds %d bytes", c.maxFile)
	}
	return c.Download(ctx, f.FilePath)
}

// Upload describes a multipart file upload.
type Upload struct {
	ChatID          int64
	MessageThreadID int64
	Filename        string
	Data            []byte
	Caption         string
	ParseMode       string
}

func (c *Client) SendDocument(ctx context.Context, u Upload) (*Message, error) {
	return c.upload(ctx, "sendDocument", "document", u)
}

func (c *Client) upload(ctx context.Context, method, field string, u Upload) (*Message, error) {
	if len(u.Data) == 0 {
		return nil, fmt.Errorf("telegram %s: empty upload", method)
	}
	if err := c.wait(ctx, u.ChatID); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{"chat_id": strconv.FormatInt(u.ChatID, 10)}
	if u.MessageThreadID != 0 {
		fields["message_thread_id"] = strconv.FormatInt(u.MessageThreadID, 10)
	}
	if u.Caption != "" {
		fields["caption"] = u.Caption
		if u.ParseMode != "" {
			fields["parse_mode"] = u.ParseMode
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	name := u.Filename
	if name == "" {
		name = field
	}
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(u.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var m Message
	if err := c.do(req, method, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
