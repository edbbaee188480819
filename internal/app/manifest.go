package app

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperifyio/civicsprep/internal/question"
)

// Artifact file names written under the output directory.
const (
	cleanedTextFile = "cleaned_text.txt"
	parsedFile      = "parsed_questions.json"
	currentFile     = "current_questions.json"
	mergedFile      = "merged_questions.json"
	enrichedFile    = "questions_enriched.json"
	studyGuideFile  = "study_guide.pdf"
	runManifestFile = "run_manifest.json"
)

// manifestEntry records one artifact produced by a run.
type manifestEntry struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// manifestMeta captures the inputs and counts of a run.
type manifestMeta struct {
	Source      string    `json:"source"`
	UpdatesFrom string    `json:"updates_from"`
	Container   bool      `json:"container_found"`
	Baseline    int       `json:"baseline"`
	Current     int       `json:"current"`
	Duplicates  []int     `json:"duplicates"`
	Overridden  []int     `json:"overridden"`
	Dropped     []int     `json:"dropped"`
	Model       string    `json:"model,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

type runManifest struct {
	Meta      manifestMeta    `json:"meta"`
	Artifacts []manifestEntry `json:"artifacts"`
}

func computeSHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// buildManifestEntries digests the named files in dir. Files that do not
// exist are left out.
func buildManifestEntries(dir string, names []string) []manifestEntry {
	out := make([]manifestEntry, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		out = append(out, manifestEntry{Name: name, SHA256: computeSHA256Hex(b), Bytes: int64(len(b))})
	}
	return out
}

func writeManifest(dir string, meta manifestMeta, names []string) error {
	return question.Save(filepath.Join(dir, runManifestFile), runManifest{
		Meta:      meta,
		Artifacts: buildManifestEntries(dir, names),
	})
}
