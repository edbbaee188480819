package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setStr := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	setStr(&cfg.PDFPath, "QUESTIONS_PDF")
	setStr(&cfg.OutputDir, "OUTPUT_DIR")
	setStr(&cfg.UpdatesURL, "UPDATES_URL")
	setStr(&cfg.HTMLFile, "UPDATES_FILE")
	setStr(&cfg.ChromePath, "CHROME_PATH")
	setStr(&cfg.CacheDir, "CACHE_DIR")
	setStr(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setStr(&cfg.LLMModel, "LLM_MODEL")
	setStr(&cfg.LLMAPIKey, "LLM_API_KEY")
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.CacheMaxAge == 0 {
		if d, ok := envDuration("CACHE_MAX_AGE"); ok {
			cfg.CacheMaxAge = d
		}
	}
	if cfg.BatchSize == 0 {
		if n, ok := envInt("LLM_BATCH_SIZE"); ok {
			cfg.BatchSize = n
		}
	}

	setBool := func(dst *bool, key string) {
		if *dst {
			return
		}
		if v, ok := envBool(key); ok && v {
			*dst = true
		}
	}
	setBool(&cfg.Offline, "OFFLINE")
	setBool(&cfg.UseBrowser, "USE_BROWSER")
	setBool(&cfg.IgnoreRobots, "IGNORE_ROBOTS")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.LLMCacheOnly, "LLM_CACHE_ONLY")
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func envInt(key string) (int, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}
