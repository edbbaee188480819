package cache

import (
	"bytes"
	"context"
	"go/format"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPageCache_SaveLoad(t *testing.T) {
	c := &PageCache{Dir: t.TempDir()}
	ctx := context.Background()
	url := "https://www.uscis.gov/citizenship/find-study-materials-and-resources/check-for-test-updates"
	if err := c.Save(ctx, PageEntry{URL: url, ContentType: "text/html", ETag: `"v1"`}, []byte("<html></html>")); err != nil {
		t.Fatalf("save: %v", err)
	}
	meta, err := c.Meta(ctx, url)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.ETag != `"v1"` || meta.SavedAt.IsZero() {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	body, err := c.Body(ctx, url)
	if err != nil || string(body) != "<html></html>" {
		t.Fatalf("body: %q %v", body, err)
	}
}

func TestPageCache_Fresh(t *testing.T) {
	c := &PageCache{Dir: t.TempDir()}
	ctx := context.Background()
	if err := c.Save(ctx, PageEntry{URL: "https://a/x", Rendered: true}, []byte("new")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := c.Save(ctx, PageEntry{URL: "https://a/old", SavedAt: time.Now().Add(-2 * time.Hour)}, []byte("old")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if b, ok := c.Fresh(ctx, "https://a/x", time.Hour); !ok || string(b) != "new" {
		t.Fatalf("expected fresh hit, got %q %v", b, ok)
	}
	if _, ok := c.Fresh(ctx, "https://a/old", time.Hour); ok {
		t.Fatalf("expected stale entry to miss")
	}
	if _, ok := c.Fresh(ctx, "https://a/x", 0); ok {
		t.Fatalf("zero max age disables freshness hits")
	}
}

func TestPageCache_Unconfigured(t *testing.T) {
	var c *PageCache
	if _, err := c.Body(context.Background(), "https://a"); err == nil {
		t.Fatalf("expected error for nil cache")
	}
}

func TestReplyCache_SaveGet(t *testing.T) {
	c := &ReplyCache{Dir: filepath.Join(t.TempDir(), "llm")}
	ctx := context.Background()
	key := ReplyKey("gpt-4o", "prompt")
	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Save(ctx, key, []byte(`{"hints":[]}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || string(got) != `{"hints":[]}` {
		t.Fatalf("get: %q ok=%v err=%v", got, ok, err)
	}
	if ReplyKey("gpt-4o", "prompt") == ReplyKey("other", "prompt") {
		t.Fatalf("model must be part of the key")
	}
}

func TestReplyCache_StrictPerms(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "llm")
	c := &ReplyCache{Dir: dir, StrictPerms: true}
	key := ReplyKey("m", "p")
	if err := c.Save(context.Background(), key, []byte("{}")); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	finfo, err := os.Stat(filepath.Join(dir, key+replySuffix))
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if got := finfo.Mode() & 0o777; got != 0o600 {
		t.Fatalf("file mode = %o, want 0600", got)
	}
}

func TestPurge(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	pages := &PageCache{Dir: dir}
	replies := &ReplyCache{Dir: dir}
	if err := pages.Save(ctx, PageEntry{URL: "https://old", SavedAt: time.Now().Add(-48 * time.Hour)}, []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := pages.Save(ctx, PageEntry{URL: "https://new"}, []byte("y")); err != nil {
		t.Fatalf("save: %v", err)
	}
	oldKey := ReplyKey("m", "old")
	if err := replies.Save(ctx, oldKey, []byte("{}")); err != nil {
		t.Fatalf("save: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, oldKey+replySuffix), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	n, err := PurgePagesByAge(dir, 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("purge pages: n=%d err=%v", n, err)
	}
	if _, err := pages.Body(ctx, "https://old"); err == nil {
		t.Fatalf("expected old body removed")
	}
	if _, err := pages.Body(ctx, "https://new"); err != nil {
		t.Fatalf("expected new body kept: %v", err)
	}
	n, err = PurgeRepliesByAge(dir, 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("purge replies: n=%d err=%v", n, err)
	}
	if n, err := PurgePagesByAge(filepath.Join(dir, "missing"), time.Hour); err != nil || n != 0 {
		t.Fatalf("missing dir should be a no-op: n=%d err=%v", n, err)
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x"), []byte("1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(entries))
	}
	if err := ClearDir("  "); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestPageSourceIsGofmtClean(t *testing.T) {
	src, err := os.ReadFile("page.go")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := format.Source(src)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Fatalf("page.go is not gofmt formatted")
	}
}
