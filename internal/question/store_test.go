package question

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveRecords_EmptyAnswersSerializeAsArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "q.json")
	list := []Record{{Number: 3, Text: "Name one branch.", Answers: nil}}
	if err := SaveRecords(path, list); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), `"answers": []`) {
		t.Fatalf("expected empty answers array, got:\n%s", b)
	}
	if strings.Contains(string(b), "null") {
		t.Fatalf("did not expect null in output:\n%s", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.json")
	in := []Record{
		New(1, " What is the supreme law of the land? ", []string{"the Constitution"}),
		New(2, "What does the Constitution do?", nil),
	}
	if err := SaveRecords(path, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0].Text != "What is the supreme law of the land?" || out[0].Answers[0] != "the Constitution" {
		t.Fatalf("unexpected first record: %+v", out[0])
	}
	if out[1].Answers == nil || len(out[1].Answers) != 0 {
		t.Fatalf("expected non-nil empty answers, got %#v", out[1].Answers)
	}
}

func TestLoad_MissingAnswersKeyBecomesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.json")
	if err := os.WriteFile(path, []byte(`[{"question_number":5,"question_text":"x","answers":null}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out[0].Answers == nil {
		t.Fatalf("expected normalized answers slice")
	}
}

func TestClone_DoesNotAlias(t *testing.T) {
	in := []Record{{Number: 1, Text: "a", Answers: []string{"x"}}}
	out := Clone(in)
	out[0].Answers[0] = "changed"
	if in[0].Answers[0] != "x" {
		t.Fatalf("clone aliased the answers slice")
	}
}

func TestIndex_LastWins(t *testing.T) {
	idx := Index([]Record{{Number: 4}, {Number: 7}, {Number: 4}})
	if idx[4] != 2 || idx[7] != 1 {
		t.Fatalf("unexpected index: %v", idx)
	}
}
