// Package quiz loads a deck file of quiz polls and literal messages and
// publishes it to a chat, one entry at a time.
package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Entry is one deck item. Type "quiz" (or the legacy "poll") sends a quiz
// poll; "message" sends literal text. Missing type means quiz.
type Entry struct {
	Type string `json:"type"`

	// message entries
	Text string `json:"text"`

	// quiz entries
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Explanation   string   `json:"explanation"`
}

// IsMessage reports whether the entry is a literal text send.
func (e Entry) IsMessage() bool { return strings.EqualFold(e.Type, "message") }

var ErrNoDeck = errors.New("no deck file found")

// FindDeck returns the first deck file in dir: *.json first, then
// *.yaml / *.yml, each in lexical order.
func FindDeck(dir string) (string, error) {
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", err
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", ErrNoDeck
}

// Load reads and validates a deck file. YAML decks are converted to JSON
// first so both formats share one strict decoding path.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deck %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("deck %s: yaml unmarshal: %w", path, err)
		}
		data, err = json.Marshal(normalizeYAML(v))
		if err != nil {
			return nil, fmt.Errorf("deck %s: yaml->json marshal: %w", path, err)
		}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("deck %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("deck %s is empty", path)
	}
	for i, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("deck %s entry %d: %w", path, i+1, err)
		}
	}
	return entries, nil
}

func validateEntry(e Entry) error {
	if e.IsMessage() {
		if strings.TrimSpace(e.Text) == "" {
			return errors.New("message entry with empty text")
		}
		return nil
	}
	switch strings.ToLower(e.Type) {
	case "", "quiz", "poll":
	default:
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
	if strings.TrimSpace(e.Question) == "" {
		return errors.New("quiz entry with empty question")
	}
	if len(e.Options) < 2 {
		return fmt.Errorf("quiz entry needs at least 2 options, got %d", len(e.Options))
	}
	if e.CorrectOption < 0 || e.CorrectOption >= len(e.Options) {
		return fmt.Errorf("correct_option %d out of range (0..%d)", e.CorrectOption, len(e.Options)-1)
	}
	return nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
