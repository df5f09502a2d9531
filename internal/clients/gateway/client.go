package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

// Client talks to the markbook persistence gateway.
type Client interface {
	Save(ctx context.Context, data json.RawMessage, filename string) (*SaveResponse, error)
	List(ctx context.Context) (*ListResponse, error)
	Load(ctx context.Context, locator string) (json.RawMessage, error)
	Delete(ctx context.Context, locator string) error
	ExportWorkbook(ctx context.Context, data json.RawMessage) ([]byte, error)
}

type Config struct {
	// BaseURL is the gateway root, e.g. http://localhost:8080/api/markbook.
	BaseURL string
	Timeout time.Duration
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing markbook gateway base URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &client{
		log:  log.With("client", "MarkbookClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// APIError is a non-2xx gateway answer.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e == nil {
		return "markbook gateway error"
	}
	if e.Details != "" {
		return fmt.Sprintf("markbook gateway http %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("markbook gateway http %d: %s", e.Status, e.Message)
}

type SaveResponse struct {
	Success     bool   `json:"success"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	Pathname    string `json:"pathname"`
}

type File struct {
	Pathname    string    `json:"pathname"`
	URL         string    `json:"url"`
	DownloadURL string    `json:"downloadUrl"`
	UploadedAt  time.Time `json:"uploadedAt"`
	Size        int64     `json:"size"`
	Filename    string    `json:"filename"`
}

type ListResponse struct {
	Success bool   `json:"success"`
	Files   []File `json:"files"`
	HasMore bool   `json:"hasMore"`
	Cursor  string `json:"cursor,omitempty"`
}

type loadResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *client) Save(ctx context.Context, data json.RawMessage, filename string) (*SaveResponse, error) {
	body := struct {
		Data     json.RawMessage `json:"data"`
		Filename string          `json:"filename"`
	}{Data: data, Filename: filename}
	return doJSON[SaveResponse](c, ctx, http.MethodPost, c.cfg.BaseURL+"/save", body)
}

func (c *client) List(ctx context.Context) (*ListResponse, error) {
	return doJSON[ListResponse](c, ctx, http.MethodGet, c.cfg.BaseURL+"/load", nil)
}

func (c *client) Load(ctx context.Context, locator string) (json.RawMessage, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, fmt.Errorf("locator required")
	}
	out, err := doJSON[loadResponse](c, ctx, http.MethodGet, c.cfg.BaseURL+"/load?url="+url.QueryEscape(locator), nil)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *client) Delete(ctx context.Context, locator string) error {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return fmt.Errorf("locator required")
	}
	_, err := doJSON[deleteResponse](c, ctx, http.MethodDelete, c.cfg.BaseURL+"/delete", map[string]string{"url": locator})
	return err
}

func (c *client) ExportWorkbook(ctx context.Context, data json.RawMessage) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/export/xlsx", data)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("markbook export read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

// -------------------- helpers --------------------

func (c *client) do(ctx context.Context, method, u string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		var buf bytes.Buffer
		if raw, ok := body.(json.RawMessage); ok {
			buf.Write(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
		rdr = &buf
	}
	req, err := http.NewRequestWithContext(defaultCtx(ctx), method, u, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("markbook gateway request failed", "method", method, "url", u, "error", err)
		return nil, err
	}
	c.log.Debug("markbook gateway request", "method", method, "url", u, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func doJSON[T any](c *client, ctx context.Context, method, u string, body any) (*T, error) {
	resp, err := c.do(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, raw)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("markbook gateway decode: %w", err)
	}
	return &out, nil
}

func decodeAPIError(status int, raw []byte) error {
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return &APIError{Status: status, Message: strings.TrimSpace(string(raw))}
	}
	return &APIError{Status: status, Message: body.Error, Details: body.Details}
}

func defaultCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
