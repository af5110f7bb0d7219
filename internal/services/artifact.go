package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"quizforge/internal/models"
)

// ArtifactName is the fixed filename of the canonical quiz artifact inside a
// run's working directory. Overwritten, never appended.
const ArtifactName = "mcqs.json"

// WriteQuizArtifact writes the canonical artifact, replacing any previous
// run's file at the same path. Returns the artifact path.
func WriteQuizArtifact(dir string, doc *models.QuizDocument) (string, error) {
	path := filepath.Join(dir, ArtifactName)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal quiz document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

func ReadQuizArtifact(path string) (*models.QuizDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var doc models.QuizDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	return &doc, nil
}

// WriteRawCapture preserves an unparseable completion for inspection, in
// place of the artifact.
func WriteRawCapture(dir string, rerr *RecoverError) (string, error) {
	path := filepath.Join(dir, ArtifactName)
	capture := map[string]string{
		"_raw_text":  rerr.Raw,
		"_error":     rerr.Tag,
		"_exception": rerr.Err.Error(),
	}
	data, err := json.MarshalIndent(capture, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal raw capture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write raw capture: %w", err)
	}
	return path, nil
}

// PointerStore persists the active-form pointer record. Writes go through a
// temp file and rename so readers never observe a partial file; concurrent
// writers race last-write-wins, which is acceptable for a rare,
// human-triggered administrative action.
type PointerStore struct {
	path string
}

func NewPointerStore(path string) *PointerStore {
	return &PointerStore{path: path}
}

func (s *PointerStore) Write(p models.ActiveForm) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pointer: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".active-form-*")
	if err != nil {
		return fmt.Errorf("create temp pointer: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp pointer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp pointer: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace pointer: %w", err)
	}
	return nil
}

func (s *PointerStore) Read() (models.ActiveForm, error) {
	var p models.ActiveForm
	data, err := os.ReadFile(s.path)
	if err != nil {
		return p, fmt.Errorf("read pointer: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse pointer: %w", err)
	}
	return p, nil
}
