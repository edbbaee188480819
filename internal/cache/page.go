package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PageEntry is the metadata stored next to a cached page body.
type PageEntry struct {
	URL          string `json:"url"`
	ContentType  string `json:"content_type"`
	ETag         string `json:"etag"`
	LastModified string `json:"last_modified"`
	// Rendered marks bodies captured from a headless browser rather than a
	// plain HTTP response. Rendered pages carry no validators.
	Rendered bool      `json:"rendered"`
	SavedAt  time.Time `json:"saved_at"`
}

// PageCache stores fetched pages as <key>.meta.json and <key>.body, where key
// is sha256 of the URL. There is no eviction; see PurgePagesByAge.
type PageCache struct {
	Dir string
	// StrictPerms restricts the directory to 0700 and files to 0600.
	StrictPerms bool
}

func (c *PageCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	return mkdir(c.Dir, c.StrictPerms)
}

func pageKey(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

func (c *PageCache) metaPath(key string) string { return filepath.Join(c.Dir, key+metaSuffix) }
func (c *PageCache) bodyPath(key string) string { return filepath.Join(c.Dir, key+bodySuffix) }

// Meta returns the entry metadata for url.
func (c *PageCache) Meta(_ context.Context, url string) (*PageEntry, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(c.metaPath(pageKey(url)))
	if err != nil {
		return nil, err
	}
	var e PageEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &e, nil
}

// Body returns the cached page body for url.
func (c *PageCache) Body(_ context.Context, url string) ([]byte, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	return os.ReadFile(c.bodyPath(pageKey(url)))
}

// Fresh returns the cached body when it was saved less than maxAge ago.
func (c *PageCache) Fresh(ctx context.Context, url string, maxAge time.Duration) ([]byte, bool) {
	if maxAge <= 0 {
		return nil, false
	}
	meta, err := c.Meta(ctx, url)
	if err != nil || time.Since(meta.SavedAt) > maxAge {
		return nil, false
	}
	body, err := c.Body(ctx, url)
	if err != nil {
		return nil, false
	}
	return body, true
}

// Save writes the body first and then atomically replaces the metadata, so a
// reader never sees metadata pointing at a missing body.
func (c *PageCache) Save(_ context.Context, e PageEntry, body []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	key := pageKey(e.URL)
	if err := os.WriteFile(c.bodyPath(key), body, fileMode(c.StrictPerms)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now().UTC()
	}
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	tmp := c.metaPath(key) + ".tmp"
	if err := os.WriteFile(tmp, b, fileMode(c.StrictPerms)); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return os.Rename(tmp, c.metaPath(key))
}
