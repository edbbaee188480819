package app

import (
	"errors"
	"strings"
	"time"
)

// Defaults shared by the CLI flags and the config-file overlay.
const (
	DefaultOutputDir  = "data"
	DefaultUpdatesURL = "https://www.uscis.gov/citizenship/find-study-materials-and-resources/check-for-test-updates"
	DefaultCacheDir   = ".civicsprep-cache"
	DefaultUserAgent  = "civicsprep/1.0 (+https://github.com/hyperifyio/civicsprep)"
	DefaultModel      = "gpt-4o"
	DefaultBatchSize  = 10
	DefaultTitle      = "Civics Test Study Guide"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Inputs. TextPath, when set, replaces PDF extraction with an already
	// extracted text file.
	PDFPath  string
	TextPath string

	OutputDir string

	// Updates page
	UpdatesURL   string
	HTMLFile     string
	Offline      bool
	ContainerID  string
	FetchTimeout time.Duration
	FetchRetries int
	UserAgent    string
	IgnoreRobots bool

	// Headless browser
	UseBrowser       bool
	ChromePath       string
	BrowserDownload  bool
	BrowserNoSandbox bool

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	// LLM
	LLMBaseURL   string
	LLMModel     string
	LLMAPIKey    string
	LLMCacheOnly bool
	BatchSize    int

	// Outputs beyond the merged list
	Distractors     bool
	Hints           bool
	StudyGuide      bool
	StudyGuideTitle string

	Verbose bool
}

// enriching reports whether any model step is requested.
func (c Config) enriching() bool { return c.Distractors || c.Hints }

// ValidateConfig performs minimal schema validation for required settings.
// LLM settings are only required when an enrichment step is enabled.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.PDFPath) == "" && strings.TrimSpace(cfg.TextPath) == "" {
		return errors.New("config: pdf path is required (or set text file)")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return errors.New("config: output dir is required")
	}
	if !cfg.Offline && strings.TrimSpace(cfg.HTMLFile) == "" && strings.TrimSpace(cfg.UpdatesURL) == "" {
		return errors.New("config: updates url is required unless offline or html file is set")
	}
	if cfg.enriching() {
		if strings.TrimSpace(cfg.LLMModel) == "" {
			return errors.New("config: llm.model is required for enrichment (or set LLM_MODEL)")
		}
		if cfg.LLMCacheOnly && strings.TrimSpace(cfg.CacheDir) == "" {
			return errors.New("config: llm cache-only mode needs a cache dir")
		}
	}
	if cfg.FetchRetries < 0 || cfg.BatchSize < 0 || cfg.FetchTimeout < 0 || cfg.CacheMaxAge < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
