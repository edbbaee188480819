package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFile_YAML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "civicsprep.yaml")
	content := `pdf: booklet.pdf
outputDir: build
updates:
  container: acc--content2
  timeout: 15s
browser:
  enable: true
cache:
  maxAge: 24h
llm:
  model: local-model
  batchSize: 4
enrich:
  hints: true
studyGuide:
  enable: true
  title: Practice
`
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.PDF != "booklet.pdf" || fc.Updates.Timeout != 15*time.Second || fc.Cache.MaxAge != 24*time.Hour {
		t.Fatalf("unexpected file config: %+v", fc)
	}

	cfg := Config{
		OutputDir:       DefaultOutputDir,
		UpdatesURL:      DefaultUpdatesURL,
		LLMModel:        "flag-model",
		BatchSize:       DefaultBatchSize,
		StudyGuideTitle: DefaultTitle,
	}
	ApplyFileConfig(&cfg, fc)
	if cfg.PDFPath != "booklet.pdf" || cfg.OutputDir != "build" {
		t.Fatalf("paths not applied: %+v", cfg)
	}
	if cfg.LLMModel != "flag-model" {
		t.Fatalf("explicit flag must win, got %q", cfg.LLMModel)
	}
	if cfg.ContainerID != "acc--content2" || !cfg.UseBrowser || cfg.BatchSize != 4 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if !cfg.Hints || cfg.Distractors || !cfg.StudyGuide || cfg.StudyGuideTitle != "Practice" {
		t.Fatalf("output toggles not applied: %+v", cfg)
	}
	if cfg.UpdatesURL != DefaultUpdatesURL {
		t.Fatalf("UpdatesURL changed without a file value: %q", cfg.UpdatesURL)
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "civicsprep.json")
	if err := os.WriteFile(p, []byte(`{"text":"booklet.txt","updates":{"offline":true}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.Text != "booklet.txt" || !fc.Updates.Offline {
		t.Fatalf("unexpected: %+v", fc)
	}
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(p, []byte("updates: [unclosed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfigFile(p); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateConfig(t *testing.T) {
	ok := Config{PDFPath: "q.pdf", OutputDir: "data", UpdatesURL: DefaultUpdatesURL}
	if err := ValidateConfig(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := map[string]Config{
		"no input":          {OutputDir: "data", Offline: true},
		"no output":         {PDFPath: "q.pdf", Offline: true},
		"no updates source": {PDFPath: "q.pdf", OutputDir: "data"},
		"enrich no model":   {PDFPath: "q.pdf", OutputDir: "data", Offline: true, Hints: true},
		"cache-only no dir": {PDFPath: "q.pdf", OutputDir: "data", Offline: true, Hints: true, LLMModel: "m", LLMCacheOnly: true},
		"negative retries":  {PDFPath: "q.pdf", OutputDir: "data", Offline: true, FetchRetries: -1},
	}
	for name, cfg := range cases {
		if err := ValidateConfig(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
