package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizforge/internal/models"
)

func question(id, stem, answer string, options ...string) models.Question {
	q := models.Question{ID: id, Stem: stem}
	labels := []string{"A", "B", "C", "D"}
	for i, opt := range options {
		q.Options = append(q.Options, models.Option{Label: labels[i], Text: opt})
		if opt == answer {
			q.Answer = models.Answer{Label: labels[i], Text: opt}
		}
	}
	if q.Answer.Text == "" {
		q.Answer = models.Answer{Label: "A", Text: answer}
	}
	return q
}

func TestBuildFormRequestsGraded(t *testing.T) {
	doc := &models.QuizDocument{Questions: []models.Question{
		question("Q1", "First stem", "right", "right", "wrong", "also wrong", "nope"),
		question("Q2", "Second stem", "b", "a", "b", "c", "d"),
	}}

	requests, summary, err := BuildFormRequests(doc)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.SkippedGrading)
	assert.Empty(t, summary.SkippedIDs)
	require.Len(t, requests, 4)

	create := requests[0].CreateItem
	require.NotNil(t, create)
	assert.Equal(t, "First stem", create.Item.Title)
	cq := create.Item.QuestionItem.Question.ChoiceQuestion
	assert.Equal(t, "RADIO", cq.Type)
	assert.False(t, cq.Shuffle)
	require.Len(t, cq.Options, 4)
	assert.Equal(t, "right", cq.Options[0].Value)
	assert.True(t, create.Item.QuestionItem.Question.Required)

	update := requests[1].UpdateItem
	require.NotNil(t, update)
	assert.Equal(t, "questionItem.question.grading", update.UpdateMask)
	grading := update.Item.QuestionItem.Question.Grading
	assert.Equal(t, int64(1), grading.PointValue)
	require.Len(t, grading.CorrectAnswers.Answers, 1)
	assert.Equal(t, "right", grading.CorrectAnswers.Answers[0].Value)
}

func TestBuildFormRequestsSkipsGradingOnMismatch(t *testing.T) {
	bad := question("Q1", "stem", "not an option", "a", "b", "c", "d")
	doc := &models.QuizDocument{Questions: []models.Question{bad}}

	requests, summary, err := BuildFormRequests(doc)
	require.NoError(t, err)

	require.Len(t, requests, 1)
	assert.NotNil(t, requests[0].CreateItem)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.SkippedGrading)
	assert.Equal(t, []string{"Q1"}, summary.SkippedIDs)
}

func TestBuildFormRequestsEmptyAnswerSkipsGrading(t *testing.T) {
	q := models.Question{ID: "Q1", Stem: "stem", Options: []models.Option{{Label: "A", Text: ""}}}
	doc := &models.QuizDocument{Questions: []models.Question{q}}

	requests, summary, err := BuildFormRequests(doc)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
	assert.Equal(t, 1, summary.SkippedGrading)
}

func TestBuildFormRequestsNoQuestions(t *testing.T) {
	_, _, err := BuildFormRequests(&models.QuizDocument{})
	assert.ErrorIs(t, err, ErrNoQuestions)

	_, _, err = BuildFormRequests(nil)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestBuildFormRequestsLocationIndexForced(t *testing.T) {
	doc := &models.QuizDocument{Questions: []models.Question{
		question("Q1", "stem", "a", "a", "b"),
	}}
	requests, _, err := BuildFormRequests(doc)
	require.NoError(t, err)

	loc := requests[0].CreateItem.Location
	require.NotNil(t, loc)
	assert.Equal(t, int64(0), loc.Index)
	assert.Contains(t, loc.ForceSendFields, "Index")
}

func TestTruncateQuestions(t *testing.T) {
	doc := &models.QuizDocument{Questions: []models.Question{
		{ID: "Q1"}, {ID: "Q2"}, {ID: "Q3"},
	}}

	assert.True(t, TruncateQuestions(doc, 2))
	require.Len(t, doc.Questions, 2)
	assert.Equal(t, "Q1", doc.Questions[0].ID)
	assert.Equal(t, "Q2", doc.Questions[1].ID)

	// Already at the limit: no change.
	assert.False(t, TruncateQuestions(doc, 2))
	assert.Len(t, doc.Questions, 2)
}

func TestTruncateQuestionsNoopWhenUnder(t *testing.T) {
	doc := &models.QuizDocument{Questions: []models.Question{{ID: "Q1"}}}
	assert.False(t, TruncateQuestions(doc, 5))
	assert.Len(t, doc.Questions, 1)
}
