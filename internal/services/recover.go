package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"quizforge/internal/models"
)

// RecoverError is the sentinel returned when no recovery heuristic could
// parse the completion text. It carries the raw text so callers can log and
// inspect the failure without crashing and without fabricating data.
type RecoverError struct {
	Raw string
	Tag string
	Err error
}

func (e *RecoverError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tag, e.Err)
}

func (e *RecoverError) Unwrap() error { return e.Err }

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// RecoverQuizDocument applies a cascade of increasingly permissive parsing
// heuristics to text expected to be a JSON object: direct parse, fenced code
// block extraction, then the substring between the first '{' and last '}'.
// Completions are non-deterministic about wrapping JSON in prose or markdown
// fences; the cascade maximizes recovery without ever guessing content.
func RecoverQuizDocument(raw string) (*models.QuizDocument, error) {
	var lastErr error

	for _, candidate := range recoveryCandidates(raw) {
		if candidate == "" {
			continue
		}
		var doc models.QuizDocument
		if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
			lastErr = err
			continue
		}
		return &doc, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no JSON object found in %d bytes of text", len(raw))
	}
	return nil, &RecoverError{Raw: raw, Tag: "json_decode_failed", Err: lastErr}
}

func recoveryCandidates(raw string) []string {
	candidates := []string{strings.TrimSpace(raw)}

	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}

	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first != -1 && last > first {
		candidates = append(candidates, raw[first:last+1])
	}

	return candidates
}
