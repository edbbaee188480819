package question

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes v as indented JSON to path, creating parent directories. The
// file is written to a temporary sibling first and renamed into place.
func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	b = append(b, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

// SaveRecords writes a question list, normalizing nil answer slices first.
func SaveRecords(path string, list []Record) error {
	return Save(path, Clone(list))
}

// Load reads a question list written by SaveRecords.
func Load(path string) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []Record
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return Clone(list), nil
}

// LoadEnriched reads an enriched question list.
func LoadEnriched(path string) ([]Enriched, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []Enriched
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return list, nil
}
