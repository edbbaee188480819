package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/civicsprep/internal/app"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// .env is read before flags so its values become flag defaults.
	if err := app.LoadEnvFiles(".env"); err != nil {
		log.Warn().Err(err).Msg("load .env")
	}

	var (
		configPath string
		cfg        app.Config
	)
	flag.StringVar(&configPath, "config", os.Getenv("CIVICSPREP_CONFIG"), "Path to a YAML or JSON config file")
	flag.StringVar(&cfg.PDFPath, "pdf", os.Getenv("QUESTIONS_PDF"), "Path to the civics questions booklet PDF")
	flag.StringVar(&cfg.TextPath, "text", "", "Use an already extracted text file instead of the PDF")
	flag.StringVar(&cfg.OutputDir, "out", envOr("OUTPUT_DIR", app.DefaultOutputDir), "Directory for the output artifacts")
	flag.StringVar(&cfg.UpdatesURL, "updates.url", envOr("UPDATES_URL", app.DefaultUpdatesURL), "URL of the test updates page")
	flag.StringVar(&cfg.HTMLFile, "updates.file", os.Getenv("UPDATES_FILE"), "Read the updates page from a saved HTML file")
	flag.BoolVar(&cfg.Offline, "offline", false, "Skip the updates page and keep the booklet answers")
	flag.StringVar(&cfg.ContainerID, "updates.container", "", "Element id holding the updated questions (default acc--content1)")
	flag.DurationVar(&cfg.FetchTimeout, "updates.timeout", 30*time.Second, "Timeout for loading the updates page")
	flag.IntVar(&cfg.FetchRetries, "updates.retries", 2, "Retries on transient HTTP failures")
	flag.StringVar(&cfg.UserAgent, "updates.ua", app.DefaultUserAgent, "User-Agent for the updates page")
	flag.BoolVar(&cfg.IgnoreRobots, "updates.ignoreRobots", false, "Do not consult robots.txt before fetching")
	flag.BoolVar(&cfg.UseBrowser, "browser", false, "Render the updates page in headless Chrome")
	flag.StringVar(&cfg.ChromePath, "browser.path", os.Getenv("CHROME_PATH"), "Chrome or Chromium executable")
	flag.BoolVar(&cfg.BrowserDownload, "browser.download", false, "Download Chromium when no browser is installed")
	flag.BoolVar(&cfg.BrowserNoSandbox, "browser.noSandbox", false, "Disable the Chrome sandbox (needed as root in containers)")
	flag.StringVar(&cfg.CacheDir, "cache.dir", envOr("CACHE_DIR", app.DefaultCacheDir), "Cache directory path")
	flag.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	flag.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear cache directory before run")
	flag.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	flag.StringVar(&cfg.LLMBaseURL, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	flag.StringVar(&cfg.LLMModel, "llm.model", envOr("LLM_MODEL", app.DefaultModel), "Model name")
	flag.StringVar(&cfg.LLMAPIKey, "llm.key", os.Getenv("LLM_API_KEY"), "API key for OpenAI-compatible server")
	flag.BoolVar(&cfg.LLMCacheOnly, "llm.cacheOnly", false, "Serve model replies from the cache only")
	flag.IntVar(&cfg.BatchSize, "llm.batch", app.DefaultBatchSize, "Questions per model request")
	flag.BoolVar(&cfg.Distractors, "distractors", false, "Generate incorrect answers for every question")
	flag.BoolVar(&cfg.Hints, "hints", false, "Generate a hint for every question")
	flag.BoolVar(&cfg.StudyGuide, "guide", false, "Render study_guide.pdf")
	flag.StringVar(&cfg.StudyGuideTitle, "guide.title", app.DefaultTitle, "Study guide title")
	flag.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	flag.Parse()

	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("config file")
			os.Exit(1)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvToConfig(&cfg)

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(exitCode(err))
	}
}

// exitCode maps an empty booklet to 2 and every other failure to 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrNoQuestions):
		return 2
	default:
		return 1
	}
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return a.Run(ctx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
