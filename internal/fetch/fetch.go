// Package fetch retrieves the updates page, either with a plain HTTP client
// or through a headless browser when the page needs scripts to render.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/civicsprep/internal/cache"
)

// Source returns the HTML of a page.
type Source interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ErrNotHTML is returned when the server answers with a non-HTML body.
var ErrNotHTML = errors.New("response is not html")

// statusError carries a non-2xx HTTP status.
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status: %d", e.code) }

// Client is an HTTP Source with per-request timeouts, bounded retries on
// transient failures and conditional revalidation against a page cache.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each attempt.
	PerRequestTimeout time.Duration
	// Cache, when set, stores bodies with their validators.
	Cache *cache.PageCache
	// BypassCache skips conditional headers but still saves the response.
	BypassCache bool
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int

	backoff func(attempt int) time.Duration
}

// Fetch implements Source.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, _, err := c.Get(ctx, url)
	return body, err
}

// Get issues a GET and returns the body and its content type.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.Meta(ctx, rawURL); err == nil && !meta.Rendered {
			etag, lastMod = meta.ETag, meta.LastModified
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		res, err := c.tryOnce(ctx, rawURL, etag, lastMod)
		if err == nil {
			return c.settle(ctx, rawURL, res)
		}
		lastErr = err
		if !isTransient(err) || i == attempts-1 {
			break
		}
		log.Debug().Err(err).Int("attempt", i+1).Str("url", rawURL).Msg("fetch retry")
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(c.delay(i)):
		}
	}
	return nil, "", fmt.Errorf("fetch %s: %w", rawURL, lastErr)
}

func (c *Client) delay(attempt int) time.Duration {
	if c.backoff != nil {
		return c.backoff(attempt)
	}
	return time.Duration(attempt+1) * 200 * time.Millisecond
}

type response struct {
	status       int
	body         []byte
	contentType  string
	etag         string
	lastModified string
}

// settle turns a successful response into the returned body, saving 200s and
// serving 304s from the cache.
func (c *Client) settle(ctx context.Context, rawURL string, res response) ([]byte, string, error) {
	if res.status == http.StatusNotModified {
		if c.Cache == nil {
			return nil, "", fmt.Errorf("fetch %s: not modified without cache", rawURL)
		}
		body, err := c.Cache.Body(ctx, rawURL)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s: cached body: %w", rawURL, err)
		}
		ct := res.contentType
		if meta, err := c.Cache.Meta(ctx, rawURL); err == nil && ct == "" {
			ct = meta.ContentType
		}
		log.Debug().Str("url", rawURL).Msg("page not modified; using cache")
		return body, ct, nil
	}
	if c.Cache != nil {
		entry := cache.PageEntry{URL: rawURL, ContentType: res.contentType, ETag: res.etag, LastModified: res.lastModified}
		if err := c.Cache.Save(ctx, entry, res.body); err != nil {
			log.Warn().Err(err).Str("url", rawURL).Msg("page cache save failed")
		}
	}
	return res.body, res.contentType, nil
}

func (c *Client) tryOnce(ctx context.Context, rawURL, etag, lastMod string) (response, error) {
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return response{}, fmt.Errorf("unsupported URL scheme: %q", req.URL.Scheme)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	res := response{
		status:       resp.StatusCode,
		contentType:  resp.Header.Get("Content-Type"),
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}
	switch {
	case resp.StatusCode == http.StatusNotModified:
		return res, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return response{}, &statusError{code: resp.StatusCode}
	case !isHTML(res.contentType):
		return response{}, fmt.Errorf("%w: %s", ErrNotHTML, res.contentType)
	}
	res.body, err = io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}
	return res, nil
}

func (c *Client) httpClient() *http.Client {
	base := http.Client{}
	if c.HTTPClient != nil {
		base = *c.HTTPClient
	}
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	base.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
	return &base
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return false
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

func isHTML(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
