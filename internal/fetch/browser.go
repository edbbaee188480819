package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/civicsprep/internal/cache"
)

// ErrBrowserClosed is returned by Fetch after Close.
var ErrBrowserClosed = errors.New("browser closed")

// BrowserOptions configures a headless Chrome instance.
type BrowserOptions struct {
	// ChromePath overrides the executable lookup.
	ChromePath string
	// AutoDownload fetches a compatible Chromium when ChromePath is empty
	// and no browser is installed.
	AutoDownload bool
	// UserAgent overrides the browser's User-Agent header when set.
	UserAgent string
	// NoSandbox is required when running as root, e.g. in containers.
	NoSandbox bool
	// Timeout bounds one page load. Zero means 30s.
	Timeout time.Duration
	// WaitSelector is awaited before the document is captured. Empty means
	// "body".
	WaitSelector string
	// Cache, when set, stores rendered pages. Entries younger than CacheTTL
	// are served without starting a navigation.
	Cache    *cache.PageCache
	CacheTTL time.Duration
}

// Browser renders pages in headless Chrome and returns the resulting DOM as
// HTML. The browser process is started lazily and reused until Close. It is
// safe for concurrent use; navigations run one tab at a time.
type Browser struct {
	opts BrowserOptions

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closed        bool
}

// NewBrowser returns a Browser. No process is started until the first Fetch.
func NewBrowser(opts BrowserOptions) *Browser {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.WaitSelector == "" {
		opts.WaitSelector = "body"
	}
	return &Browser{opts: opts}
}

// Fetch navigates to url and returns the outer HTML of the rendered document.
func (b *Browser) Fetch(ctx context.Context, url string) ([]byte, error) {
	if b.opts.Cache != nil {
		if body, ok := b.opts.Cache.Fresh(ctx, url, b.opts.CacheTTL); ok {
			log.Debug().Str("url", url).Msg("rendered page served from cache")
			return body, nil
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrowserClosed
	}
	if err := b.start(); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancelTimeout()
	// Propagate caller cancellation into the tab.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var doc string
	actions := chromedp.Tasks{}
	if b.opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(b.opts.UserAgent))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady(b.opts.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
	)
	err := chromedp.Run(tabCtx, actions)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("render %s: %w", url, err)
	}
	body := []byte(doc)
	if b.opts.Cache != nil {
		if err := b.opts.Cache.Save(ctx, cache.PageEntry{URL: url, ContentType: "text/html", Rendered: true}, body); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("page cache save failed")
		}
	}
	return body, nil
}

// start launches the browser process on first use. Callers hold b.mu.
func (b *Browser) start() error {
	if b.browserCtx != nil {
		return nil
	}
	path := b.opts.ChromePath
	if path == "" && b.opts.AutoDownload {
		if found, ok := launcher.LookPath(); ok {
			path = found
		} else {
			p, err := launcher.NewBrowser().Get()
			if err != nil {
				return fmt.Errorf("download browser: %w", err)
			}
			path = p
		}
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
	)
	if path != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(path))
	}
	if b.opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}
	log.Debug().Str("exec", path).Msg("headless browser started")
	b.allocCancel, b.browserCtx, b.browserCancel = allocCancel, browserCtx, browserCancel
	return nil
}

// Close stops the browser process. It is idempotent.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.browserCancel != nil {
		b.browserCancel()
		b.allocCancel()
	}
	return nil
}
