// Package fetch resolves document references to their bytes over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/logging"
)

// DefaultTimeout bounds a single fetch attempt.
const DefaultTimeout = 5 * time.Second

// HTTPFetcher implements core.DocumentFetcher. A reference is either an
// absolute http(s) URL or a path resolved against BaseURL.
type HTTPFetcher struct {
	client  *http.Client
	baseURL *url.URL
	maxSize int64
}

// NewHTTPFetcher builds a fetcher. baseURL may be empty when only absolute
// references are used. maxSize <= 0 disables the size check.
func NewHTTPFetcher(baseURL string, timeout time.Duration, maxSize int64) (*HTTPFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		maxSize: maxSize,
	}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid fetch base URL %q", baseURL)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		f.baseURL = u
	}
	return f, nil
}

// Fetch downloads ref. The caller closes the returned body.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	target, err := f.resolve(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, fmt.Errorf("document %s: %w", ref, core.ErrNotFound)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: upstream status %d", ref, resp.StatusCode)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: fetch %s: status %d", core.ErrInvalidInput, ref, resp.StatusCode)
	}

	if f.maxSize > 0 && resp.ContentLength > f.maxSize {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: document is %d bytes, limit is %d", core.ErrInvalidInput, resp.ContentLength, f.maxSize)
	}

	logging.FromContext(ctx).Debug("document fetched",
		"ref", ref,
		"status", resp.StatusCode,
		"content_length", resp.ContentLength,
	)

	if f.maxSize <= 0 {
		return resp.Body, nil
	}
	return &limitedBody{r: resp.Body, remaining: f.maxSize, limit: f.maxSize}, nil
}

func (f *HTTPFetcher) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty document reference", core.ErrInvalidInput)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: document reference %q: %v", core.ErrInvalidInput, ref, err)
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("%w: unsupported scheme %q", core.ErrInvalidInput, u.Scheme)
		}
		return u.String(), nil
	}
	if f.baseURL == nil {
		return "", fmt.Errorf("%w: relative document reference %q without a base URL", core.ErrInvalidInput, ref)
	}
	return f.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(u.Path, "/"), RawQuery: u.RawQuery}).String(), nil
}

// limitedBody fails once more than limit bytes have been read, so a body
// without Content-Length still cannot exceed the import size.
type limitedBody struct {
	r         io.ReadCloser
	remaining int64
	limit     int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining < 0 {
		return 0, fmt.Errorf("%w: document exceeds %d bytes", core.ErrInvalidInput, b.limit)
	}
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return n, fmt.Errorf("%w: document exceeds %d bytes", core.ErrInvalidInput, b.limit)
	}
	return n, err
}

func (b *limitedBody) Close() error { return b.r.Close() }
