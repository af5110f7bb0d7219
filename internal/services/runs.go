package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quizforge/internal/models"
)

// RunStore persists one row per pipeline invocation plus the questions it
// generated, backing the history endpoint. This is the only state that
// outlives a run besides the active-form pointer.
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) RecordRun(ctx context.Context, run models.Run, questions []models.Question, graded map[string]bool) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (pdf_name, model, language, num_requested, num_generated, skipped_grading,
			form_id, form_url, status, error, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, run.PDFName, run.Model, run.Language, run.NumRequested, run.NumGenerated, run.SkippedGrading,
		run.FormID, run.FormURL, run.Status, run.Error, run.Warnings, now)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, _ := res.LastInsertId()

	for i, q := range questions {
		wasGraded := 1
		if graded != nil && !graded[q.ID] {
			wasGraded = 0
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO run_questions (run_id, position, question_id, topic, difficulty, stem, answer_label, answer_text, graded)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
		`, runID, i, q.ID, q.Topic, q.Difficulty, q.Stem, q.Answer.Label, q.Answer.Text, wasGraded); err != nil {
			return runID, fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}

	return runID, nil
}

func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pdf_name, model, language, num_requested, num_generated, skipped_grading,
			form_id, form_url, status, error, warnings, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var run models.Run
		if err := rows.Scan(&run.ID, &run.PDFName, &run.Model, &run.Language,
			&run.NumRequested, &run.NumGenerated, &run.SkippedGrading,
			&run.FormID, &run.FormURL, &run.Status, &run.Error, &run.Warnings, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *RunStore) GetRunQuestions(ctx context.Context, runID int64) ([]models.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, topic, difficulty, stem, answer_label, answer_text
		FROM run_questions WHERE run_id = ? ORDER BY position;
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.Topic, &q.Difficulty, &q.Stem, &q.Answer.Label, &q.Answer.Text); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
