package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema. Sections map
// onto the dotted flag names.
type FileConfig struct {
	PDF       string `yaml:"pdf" json:"pdf"`
	Text      string `yaml:"text" json:"text"`
	OutputDir string `yaml:"outputDir" json:"outputDir"`

	Updates struct {
		URL       string        `yaml:"url" json:"url"`
		File      string        `yaml:"file" json:"file"`
		Offline   bool          `yaml:"offline" json:"offline"`
		Container string        `yaml:"container" json:"container"`
		Timeout   time.Duration `yaml:"timeout" json:"timeout"`
		Retries   int           `yaml:"retries" json:"retries"`
		UA        string        `yaml:"ua" json:"ua"`
		NoRobots  bool          `yaml:"ignoreRobots" json:"ignoreRobots"`
	} `yaml:"updates" json:"updates"`

	Browser struct {
		Enable    bool   `yaml:"enable" json:"enable"`
		Path      string `yaml:"path" json:"path"`
		Download  bool   `yaml:"download" json:"download"`
		NoSandbox bool   `yaml:"noSandbox" json:"noSandbox"`
	} `yaml:"browser" json:"browser"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	LLM struct {
		BaseURL   string `yaml:"base" json:"base"`
		Model     string `yaml:"model" json:"model"`
		APIKey    string `yaml:"key" json:"key"`
		CacheOnly bool   `yaml:"cacheOnly" json:"cacheOnly"`
		BatchSize int    `yaml:"batchSize" json:"batchSize"`
	} `yaml:"llm" json:"llm"`

	Enrich struct {
		Distractors bool `yaml:"distractors" json:"distractors"`
		Hints       bool `yaml:"hints" json:"hints"`
	} `yaml:"enrich" json:"enrich"`

	StudyGuide struct {
		Enable bool   `yaml:"enable" json:"enable"`
		Title  string `yaml:"title" json:"title"`
	} `yaml:"studyGuide" json:"studyGuide"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc onto cfg for fields that are unset
// or still at their flag default, so explicit flags keep precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	setStr := func(dst *string, def, v string) {
		if (*dst == "" || *dst == def) && v != "" {
			*dst = v
		}
	}
	setBool := func(dst *bool, v bool) {
		if !*dst && v {
			*dst = true
		}
	}

	setStr(&cfg.PDFPath, "", fc.PDF)
	setStr(&cfg.TextPath, "", fc.Text)
	setStr(&cfg.OutputDir, DefaultOutputDir, fc.OutputDir)

	setStr(&cfg.UpdatesURL, DefaultUpdatesURL, fc.Updates.URL)
	setStr(&cfg.HTMLFile, "", fc.Updates.File)
	setBool(&cfg.Offline, fc.Updates.Offline)
	setStr(&cfg.ContainerID, "", fc.Updates.Container)
	if cfg.FetchTimeout == 0 && fc.Updates.Timeout > 0 {
		cfg.FetchTimeout = fc.Updates.Timeout
	}
	if cfg.FetchRetries == 0 && fc.Updates.Retries > 0 {
		cfg.FetchRetries = fc.Updates.Retries
	}
	setStr(&cfg.UserAgent, DefaultUserAgent, fc.Updates.UA)
	setBool(&cfg.IgnoreRobots, fc.Updates.NoRobots)

	setBool(&cfg.UseBrowser, fc.Browser.Enable)
	setStr(&cfg.ChromePath, "", fc.Browser.Path)
	setBool(&cfg.BrowserDownload, fc.Browser.Download)
	setBool(&cfg.BrowserNoSandbox, fc.Browser.NoSandbox)

	setStr(&cfg.CacheDir, DefaultCacheDir, fc.Cache.Dir)
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	setBool(&cfg.CacheClear, fc.Cache.Clear)
	setBool(&cfg.CacheStrictPerms, fc.Cache.StrictPerms)

	setStr(&cfg.LLMBaseURL, "", fc.LLM.BaseURL)
	setStr(&cfg.LLMModel, DefaultModel, fc.LLM.Model)
	setStr(&cfg.LLMAPIKey, "", fc.LLM.APIKey)
	setBool(&cfg.LLMCacheOnly, fc.LLM.CacheOnly)
	if (cfg.BatchSize == 0 || cfg.BatchSize == DefaultBatchSize) && fc.LLM.BatchSize > 0 {
		cfg.BatchSize = fc.LLM.BatchSize
	}

	setBool(&cfg.Distractors, fc.Enrich.Distractors)
	setBool(&cfg.Hints, fc.Enrich.Hints)
	setBool(&cfg.StudyGuide, fc.StudyGuide.Enable)
	setStr(&cfg.StudyGuideTitle, DefaultTitle, fc.StudyGuide.Title)

	setBool(&cfg.Verbose, fc.Verbose)
}
