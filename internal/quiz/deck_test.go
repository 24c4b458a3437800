package quiz

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const jsonDeck = `[
  {"type": "message", "text": "warm-up <b>round</b>"},
  {"question": "2+2?", "options": ["3", "4"], "correct_option": 1, "explanation": "basic arithmetic"},
  {"type": "poll", "question": "capital of France?", "options": ["Paris", "Rome", "Madrid"], "correct_option": 0}
]`

const yamlDeck = `
- type: message
  text: warm-up <b>round</b>
- question: 2+2?
  options: ["3", "4"]
  correct_option: 1
  explanation: basic arithmetic
- type: poll
  question: capital of France?
  options: [Paris, Rome, Madrid]
  correct_option: 0
`

func TestLoadJSONAndYAMLAgree(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "deck.json", jsonDeck)
	yamlPath := writeFile(t, dir, "deck.yaml", yamlDeck)

	fromJSON, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	fromYAML, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if len(fromJSON) != 3 || len(fromYAML) != 3 {
		t.Fatalf("entry counts = %d / %d", len(fromJSON), len(fromYAML))
	}
	for i := range fromJSON {
		a, b := fromJSON[i], fromYAML[i]
		if a.Type != b.Type || a.Text != b.Text || a.Question != b.Question ||
			a.CorrectOption != b.CorrectOption || a.Explanation != b.Explanation ||
			len(a.Options) != len(b.Options) {
			t.Fatalf("entry %d differs: %+v vs %+v", i, a, b)
		}
	}
	if !fromJSON[0].IsMessage() || fromJSON[1].IsMessage() {
		t.Fatalf("entry typing wrong: %+v", fromJSON[:2])
	}
}

func TestFindDeckPrefersJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", yamlDeck)
	jsonPath := writeFile(t, dir, "a.json", jsonDeck)

	got, err := FindDeck(dir)
	if err != nil {
		t.Fatalf("FindDeck: %v", err)
	}
	if got != jsonPath {
		t.Fatalf("FindDeck = %q, want %q", got, jsonPath)
	}
}

func TestFindDeckMissing(t *testing.T) {
	t.Parallel()
	_, err := FindDeck(t.TempDir())
	if !errors.Is(err, ErrNoDeck) {
		t.Fatalf("expected ErrNoDeck, got %v", err)
	}
}

func TestLoadRejectsBadEntries(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty deck", content: `[]`},
		{name: "no options", content: `[{"question": "q?", "options": ["only"], "correct_option": 0}]`},
		{name: "correct out of range", content: `[{"question": "q?", "options": ["a", "b"], "correct_option": 2}]`},
		{name: "empty message", content: `[{"type": "message", "text": "  "}]`},
		{name: "unknown type", content: `[{"type": "sticker", "question": "q?", "options": ["a","b"], "correct_option": 0}]`},
	}
	for i, tt := range tests {
		path := writeFile(t, dir, filepath.Base(tt.name)+string(rune('a'+i))+".json", tt.content)
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}
