// Package fetch defines the URL fetch collaborator. Network failures are
// returned to the caller as-is; nothing here retries.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 20 << 20
	userAgent       = "kash/1 (+https://github.com/colonyops/kash)"
)

// Result is the raw content behind a URL.
type Result struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// MediaType returns the content type without parameters.
func (r Result) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return r.ContentType
	}
	return mt
}

// Fetcher retrieves the content at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

// Func adapts a function to Fetcher.
type Func func(ctx context.Context, url string) (Result, error)

func (f Func) Fetch(ctx context.Context, url string) (Result, error) { return f(ctx, url) }

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

// HTTP fetches over net/http with a size cap.
type HTTP struct {
	Client    *http.Client
	MaxBytes  int64
	UserAgent string
}

// NewHTTP returns an HTTP fetcher with default timeout and size cap.
func NewHTTP() *HTTP {
	return &HTTP{
		Client:    &http.Client{Timeout: defaultTimeout},
		MaxBytes:  defaultMaxBytes,
		UserAgent: userAgent,
	}
}

func (h *HTTP) Fetch(ctx context.Context, url string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	ua := h.UserAgent
	if ua == "" {
		ua = userAgent
	}
	req.Header.Set("User-Agent", ua)

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &StatusError{URL: url, Status: resp.StatusCode}
	}

	limit := h.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", url, err)
	}

	return Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}
