// Package app wires the question pipeline: booklet text, updates page,
// reconciliation, optional enrichment and the printable study guide.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/civicsprep/internal/cache"
	"github.com/hyperifyio/civicsprep/internal/enrich"
	"github.com/hyperifyio/civicsprep/internal/fetch"
	"github.com/hyperifyio/civicsprep/internal/htmlparse"
	"github.com/hyperifyio/civicsprep/internal/llm"
	"github.com/hyperifyio/civicsprep/internal/pdfparse"
	"github.com/hyperifyio/civicsprep/internal/pdftext"
	"github.com/hyperifyio/civicsprep/internal/question"
	"github.com/hyperifyio/civicsprep/internal/reconcile"
	"github.com/hyperifyio/civicsprep/internal/robots"
	"github.com/hyperifyio/civicsprep/internal/studyguide"
	"github.com/hyperifyio/civicsprep/internal/textclean"
)

// ErrNoQuestions is returned when the booklet yields no questions. The CLI
// maps it to exit code 2.
var ErrNoQuestions = errors.New("no questions parsed from booklet")

type App struct {
	cfg     Config
	source  fetch.Source
	browser *fetch.Browser
	robots  *robots.Checker
	ai      llm.Client
	replies *cache.ReplyCache
	now     func() time.Time
}

// New prepares caches and clients for cfg. Nothing is fetched until Run.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, now: time.Now}

	var pages *cache.PageCache
	if dir := strings.TrimSpace(cfg.CacheDir); dir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(dir); err != nil {
				log.Warn().Err(err).Str("dir", dir).Msg("cache clear failed")
			}
		}
		pageDir, replyDir := filepath.Join(dir, "pages"), filepath.Join(dir, "replies")
		if cfg.CacheMaxAge > 0 {
			np, err := cache.PurgePagesByAge(pageDir, cfg.CacheMaxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", pageDir).Msg("page cache purge failed")
			}
			nr, err := cache.PurgeRepliesByAge(replyDir, cfg.CacheMaxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", replyDir).Msg("reply cache purge failed")
			}
			log.Debug().Int("pages", np).Int("replies", nr).Msg("cache purged by age")
		}
		pages = &cache.PageCache{Dir: pageDir, StrictPerms: cfg.CacheStrictPerms}
		a.replies = &cache.ReplyCache{Dir: replyDir, StrictPerms: cfg.CacheStrictPerms}
	}

	if !cfg.Offline && strings.TrimSpace(cfg.HTMLFile) == "" {
		ua := cfg.UserAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		if !cfg.IgnoreRobots {
			a.robots = &robots.Checker{HTTPClient: newHTTPClient(), UserAgent: ua}
		}
		if cfg.UseBrowser {
			a.browser = fetch.NewBrowser(fetch.BrowserOptions{
				ChromePath:   cfg.ChromePath,
				AutoDownload: cfg.BrowserDownload,
				UserAgent:    ua,
				NoSandbox:    cfg.BrowserNoSandbox,
				Timeout:      cfg.FetchTimeout,
				WaitSelector: "#" + containerID(cfg),
				Cache:        pages,
				CacheTTL:     cfg.CacheMaxAge,
			})
			a.source = a.browser
		} else {
			timeout := cfg.FetchTimeout
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			a.source = &fetch.Client{
				HTTPClient:        newHTTPClient(),
				UserAgent:         ua,
				MaxAttempts:       cfg.FetchRetries + 1,
				PerRequestTimeout: timeout,
				Cache:             pages,
			}
		}
	}

	if cfg.enriching() && !cfg.LLMCacheOnly {
		client := llm.New(llm.Options{BaseURL: cfg.LLMBaseURL, APIKey: cfg.LLMAPIKey})
		a.ai = client
		// Preflight is best-effort; a failing server surfaces on the first batch.
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if models, err := client.ListModels(pctx); err != nil {
			log.Warn().Err(err).Msg("LLM model list failed; continuing")
		} else {
			log.Debug().Int("count", len(models.Models)).Msg("LLM models available")
		}
	}
	return a, nil
}

// Close releases the headless browser when one was started.
func (a *App) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			log.Debug().Err(err).Msg("browser close")
		}
	}
}

// Run executes the pipeline and writes every artifact to the output dir.
func (a *App) Run(ctx context.Context) error {
	out := a.cfg.OutputDir
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	written := make([]string, 0, 6)

	raw, source, err := a.bookletText()
	if err != nil {
		return err
	}
	cleaned := textclean.Clean(raw)
	if err := writeText(filepath.Join(out, cleanedTextFile), cleaned); err != nil {
		return err
	}
	written = append(written, cleanedTextFile)

	parsed := pdfparse.Parse(cleaned)
	if err := question.SaveRecords(filepath.Join(out, parsedFile), parsed.Questions); err != nil {
		return fmt.Errorf("write parsed questions: %w", err)
	}
	written = append(written, parsedFile)
	log.Info().Int("count", len(parsed.Questions)).Ints("duplicates", parsed.Duplicates).Msg("booklet parsed")
	if len(parsed.Questions) == 0 {
		return ErrNoQuestions
	}

	current, updatesFrom, found := a.currentQuestions(ctx)
	if err := question.SaveRecords(filepath.Join(out, currentFile), current); err != nil {
		return fmt.Errorf("write current questions: %w", err)
	}
	written = append(written, currentFile)

	merged, rep := reconcile.MergeReport(parsed.Questions, current)
	if err := question.SaveRecords(filepath.Join(out, mergedFile), merged); err != nil {
		return fmt.Errorf("write merged questions: %w", err)
	}
	written = append(written, mergedFile)
	log.Info().Int("count", len(merged)).Ints("overridden", rep.Overridden).Ints("dropped", rep.Dropped).Msg("questions merged")

	final := enrich.Wrap(merged)
	if a.cfg.enriching() {
		if err := a.enrich(ctx, final); err != nil {
			return err
		}
		if err := question.Save(filepath.Join(out, enrichedFile), final); err != nil {
			return fmt.Errorf("write enriched questions: %w", err)
		}
		written = append(written, enrichedFile)
	}

	if a.cfg.StudyGuide {
		if err := a.writeStudyGuide(filepath.Join(out, studyGuideFile), final); err != nil {
			return err
		}
		written = append(written, studyGuideFile)
	}

	meta := manifestMeta{
		Source:      source,
		UpdatesFrom: updatesFrom,
		Container:   found,
		Baseline:    len(parsed.Questions),
		Current:     len(current),
		Duplicates:  nonNil(parsed.Duplicates),
		Overridden:  rep.Overridden,
		Dropped:     rep.Dropped,
		GeneratedAt: a.now().UTC(),
	}
	if a.cfg.enriching() {
		meta.Model = a.cfg.LLMModel
	}
	if err := writeManifest(out, meta, written); err != nil {
		log.Warn().Err(err).Msg("run manifest write failed")
	}
	log.Info().Str("dir", out).Strs("artifacts", written).Msg("done")
	return nil
}

// bookletText returns the raw booklet text and a label for where it came
// from.
func (a *App) bookletText() (string, string, error) {
	if p := strings.TrimSpace(a.cfg.TextPath); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return "", "", fmt.Errorf("read text: %w", err)
		}
		return string(b), p, nil
	}
	text, err := pdftext.ExtractFile(a.cfg.PDFPath)
	if err != nil {
		return "", "", fmt.Errorf("extract %s: %w", a.cfg.PDFPath, err)
	}
	return text, a.cfg.PDFPath, nil
}

// currentQuestions loads the updates page and parses it. Any failure to
// obtain the page leaves the current list empty so the merge keeps the
// booklet as is.
func (a *App) currentQuestions(ctx context.Context) ([]question.Record, string, bool) {
	var (
		doc  []byte
		from string
		err  error
	)
	switch {
	case strings.TrimSpace(a.cfg.HTMLFile) != "":
		from = a.cfg.HTMLFile
		doc, err = os.ReadFile(from)
	case a.cfg.Offline || a.source == nil:
		log.Info().Msg("offline; skipping updates page")
		return []question.Record{}, "", false
	default:
		from = a.cfg.UpdatesURL
		if !a.allowedByRobots(ctx, from) {
			return []question.Record{}, from, false
		}
		doc, err = a.source.Fetch(ctx, from)
	}
	if err != nil {
		log.Warn().Err(err).Str("from", from).Msg("updates page unavailable; keeping booklet answers")
		return []question.Record{}, from, false
	}
	res := htmlparse.Parser{ContainerID: containerID(a.cfg)}.Parse(doc)
	if !res.Found {
		log.Warn().Str("from", from).Str("container", containerID(a.cfg)).Msg("updates container not found")
	}
	log.Info().Int("count", len(res.Questions)).Ints("duplicates", res.Duplicates).Str("from", from).Msg("updates page parsed")
	return res.Questions, from, res.Found
}

// allowedByRobots consults robots.txt. An unreadable robots.txt does not
// block the fetch.
func (a *App) allowedByRobots(ctx context.Context, pageURL string) bool {
	if a.robots == nil {
		return true
	}
	ok, err := a.robots.Allowed(ctx, pageURL)
	if err != nil {
		log.Warn().Err(err).Str("url", pageURL).Msg("robots.txt unavailable; fetching anyway")
		return true
	}
	if !ok {
		log.Warn().Str("url", pageURL).Msg("updates page disallowed by robots.txt; keeping booklet answers")
	}
	return ok
}

func (a *App) enrich(ctx context.Context, list []question.Enriched) error {
	e := &enrich.Enricher{
		Client:    a.ai,
		Model:     a.cfg.LLMModel,
		Cache:     a.replies,
		CacheOnly: a.cfg.LLMCacheOnly,
		BatchSize: a.cfg.BatchSize,
	}
	if a.cfg.Distractors {
		if err := e.AddDistractors(ctx, list); err != nil {
			return fmt.Errorf("incorrect answers: %w", err)
		}
	}
	if a.cfg.Hints {
		if err := e.AddHints(ctx, list); err != nil {
			return fmt.Errorf("hints: %w", err)
		}
	}
	return nil
}

func (a *App) writeStudyGuide(path string, list []question.Enriched) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create study guide: %w", err)
	}
	opts := studyguide.Options{
		Title:           a.cfg.StudyGuideTitle,
		ShowHints:       a.cfg.Hints,
		ShowDistractors: a.cfg.Distractors,
	}
	if err := studyguide.Render(f, list, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func containerID(cfg Config) string {
	if id := strings.TrimSpace(cfg.ContainerID); id != "" {
		return id
	}
	return htmlparse.DefaultContainerID
}

func writeText(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
