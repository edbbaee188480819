package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestParse_Groups(t *testing.T) {
	rules := Parse("# comment\nUser-agent: *\nDisallow: /private # inline\nCrawl-delay: 2\n\nUser-agent: civicsprep\nAllow: /\n")
	if len(rules.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %+v", rules.Groups)
	}
	if rules.Groups[0].Disallow[0] != "/private" {
		t.Fatalf("unexpected disallow: %q", rules.Groups[0].Disallow[0])
	}
	if d := rules.CrawlDelayFor("other"); d == nil || d.Seconds() != 2 {
		t.Fatalf("expected 2s crawl delay, got %v", d)
	}
}

func TestIsAllowed_Precedence(t *testing.T) {
	rules := Parse(`User-agent: *
Disallow: /citizenship/
Allow: /citizenship/find-study-materials-and-resources/
Disallow: /*.pdf$

User-agent: civicsprep
Disallow: /blocked
`)
	cases := []struct {
		ua, path string
		want     bool
	}{
		{"somebot/1.0", "/citizenship/apply", false},
		{"somebot/1.0", "/citizenship/find-study-materials-and-resources/check-for-test-updates", true},
		{"somebot/1.0", "/files/booklet.pdf", false},
		{"somebot/1.0", "/files/booklet.pdf?x=1", true},
		{"somebot/1.0", "/", true},
		{"civicsprep/1.0", "/citizenship/apply", true},
		{"civicsprep/1.0", "/blocked/page", false},
	}
	for _, tc := range cases {
		if got := rules.IsAllowed(tc.ua, tc.path); got != tc.want {
			t.Fatalf("IsAllowed(%q, %q)=%v, want %v", tc.ua, tc.path, got, tc.want)
		}
	}
}

func TestChecker_FetchesOncePerOrigin(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	c := &Checker{HTTPClient: srv.Client(), UserAgent: "civicsprep-test/1.0"}
	ctx := context.Background()
	ok, err := c.Allowed(ctx, srv.URL+"/updates")
	if err != nil || !ok {
		t.Fatalf("expected allowed, got %v %v", ok, err)
	}
	ok, err = c.Allowed(ctx, srv.URL+"/private/page")
	if err != nil || ok {
		t.Fatalf("expected disallowed, got %v %v", ok, err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected one robots fetch, got %d", n)
	}
}

func TestChecker_MissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := &Checker{HTTPClient: srv.Client()}
	ok, err := c.Allowed(context.Background(), srv.URL+"/anything")
	if err != nil || !ok {
		t.Fatalf("expected allowed without robots.txt, got %v %v", ok, err)
	}
}

func TestChecker_ServerErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := &Checker{HTTPClient: srv.Client()}
	if _, err := c.Allowed(context.Background(), srv.URL+"/x"); err == nil {
		t.Fatalf("expected error on 503")
	}
}

func TestChecker_RejectsNonHTTP(t *testing.T) {
	c := &Checker{}
	if _, err := c.Allowed(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatalf("expected scheme error")
	}
}
