package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	forms "google.golang.org/api/forms/v1"

	"quizforge/internal/models"
)

type fakeExtractor struct {
	text  string
	pages int
	err   error
}

func (f *fakeExtractor) ExtractText(path string) (string, int, error) {
	return f.text, f.pages, f.err
}

type fakeLLM struct {
	response string
	err      error
	prompt   string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

type fakePublisher struct {
	formID     string
	createErr  error
	applyErr   error
	shareErr   error
	created    int
	applied    []*forms.Request
	sharedWith string
}

func (f *fakePublisher) CreateQuizForm(ctx context.Context) (string, error) {
	f.created++
	return f.formID, f.createErr
}

func (f *fakePublisher) ApplyRequests(ctx context.Context, formID string, requests []*forms.Request) error {
	f.applied = requests
	return f.applyErr
}

func (f *fakePublisher) Share(ctx context.Context, fileID, email string) error {
	f.sharedWith = email
	return f.shareErr
}

func quizJSON(t *testing.T, n int) string {
	t.Helper()
	doc := models.QuizDocument{SourceSummary: "summary"}
	for i := 1; i <= n; i++ {
		doc.Questions = append(doc.Questions,
			question(fmt.Sprintf("Q%d", i), fmt.Sprintf("stem %d", i), "a", "a", "b", "c", "d"))
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(data)
}

func newTestPipeline(t *testing.T, llm *fakeLLM, pub *fakePublisher) *PipelineService {
	t.Helper()
	return NewPipelineService(
		&fakeExtractor{text: "page text", pages: 2},
		llm,
		pub,
		nil,
		t.TempDir(),
		"gpt-4.1",
		1,
	)
}

func TestPipelineRunSuccess(t *testing.T) {
	llm := &fakeLLM{response: quizJSON(t, 6)}
	pub := &fakePublisher{formID: "form123"}
	p := newTestPipeline(t, llm, pub)

	result, err := p.Run(context.Background(), PipelineInput{
		PDFPath:      "/tmp/in.pdf",
		PDFName:      "in.pdf",
		NumQuestions: 6,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "form123", result.FormID)
	assert.Equal(t, "https://docs.google.com/forms/d/form123/edit", result.FormEditURL)
	assert.Equal(t, 6, result.NumGenerated)
	assert.Equal(t, 6, result.GradedCount)
	assert.Zero(t, result.SkippedGrading)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, "gpt-4.1", result.Model)

	// Two requests per graded question.
	assert.Len(t, pub.applied, 12)

	doc, err := ReadQuizArtifact(result.ArtifactPath)
	require.NoError(t, err)
	assert.Len(t, doc.Questions, 6)
}

func TestPipelineRunZeroQuestionsFatalBeforeFormCreation(t *testing.T) {
	llm := &fakeLLM{response: `{"source_summary":"s","questions":[]}`}
	pub := &fakePublisher{formID: "form123"}
	p := newTestPipeline(t, llm, pub)

	_, err := p.Run(context.Background(), PipelineInput{PDFPath: "/tmp/in.pdf", PDFName: "in.pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoQuestions)
	assert.Zero(t, pub.created, "no form may be created for an empty quiz")
}

func TestPipelineRunTruncatesOverproduction(t *testing.T) {
	llm := &fakeLLM{response: quizJSON(t, 9)}
	pub := &fakePublisher{formID: "form123"}
	p := newTestPipeline(t, llm, pub)

	result, err := p.Run(context.Background(), PipelineInput{
		PDFPath:      "/tmp/in.pdf",
		PDFName:      "in.pdf",
		NumQuestions: 6,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, result.NumGenerated)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "truncated to 6")

	// Truncation is persisted, not just in memory.
	doc, err := ReadQuizArtifact(result.ArtifactPath)
	require.NoError(t, err)
	assert.Len(t, doc.Questions, 6)
	assert.Equal(t, "Q1", doc.Questions[0].ID)
	assert.Equal(t, "Q6", doc.Questions[5].ID)
}

func TestPipelineRunShortfallWarns(t *testing.T) {
	llm := &fakeLLM{response: quizJSON(t, 3)}
	pub := &fakePublisher{formID: "form123"}
	p := newTestPipeline(t, llm, pub)

	result, err := p.Run(context.Background(), PipelineInput{
		PDFPath:      "/tmp/in.pdf",
		PDFName:      "in.pdf",
		NumQuestions: 6,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.NumGenerated)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "3 of 6")
}

func TestPipelineRunShareFailureNotFatal(t *testing.T) {
	llm := &fakeLLM{response: quizJSON(t, 6)}
	pub := &fakePublisher{formID: "form123", shareErr: errors.New("permission denied")}
	p := newTestPipeline(t, llm, pub)

	result, err := p.Run(context.Background(), PipelineInput{
		PDFPath:      "/tmp/in.pdf",
		PDFName:      "in.pdf",
		NumQuestions: 6,
		ShareWith:    "medic@example.com",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "medic@example.com", result.SharedWith)
	assert.Contains(t, result.ShareError, "permission denied")
	assert.Equal(t, "medic@example.com", pub.sharedWith)
}

func TestPipelineRunUnparseableCompletion(t *testing.T) {
	llm := &fakeLLM{response: "I am sorry, I cannot help with that."}
	pub := &fakePublisher{formID: "form123"}
	p := newTestPipeline(t, llm, pub)

	_, err := p.Run(context.Background(), PipelineInput{PDFPath: "/tmp/in.pdf", PDFName: "in.pdf"})
	require.Error(t, err)

	var rerr *RecoverError
	assert.ErrorAs(t, err, &rerr)
	assert.Zero(t, pub.created)
}

func TestPipelineRunDefaults(t *testing.T) {
	llm := &fakeLLM{response: quizJSON(t, 6)}
	pub := &fakePublisher{formID: "form123"}
	p := newTestPipeline(t, llm, pub)

	result, err := p.Run(context.Background(), PipelineInput{
		PDFPath:  "/tmp/in.pdf",
		PDFName:  "in.pdf",
		Language: "hebrew",
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultNumQuestions, result.NumRequested)
	assert.Equal(t, "he", result.Language)
	assert.Contains(t, llm.prompt, fmt.Sprintf("**exactly %d**", DefaultNumQuestions))
}

func TestPipelineRunExtractFailure(t *testing.T) {
	p := NewPipelineService(
		&fakeExtractor{err: errors.New("pdf not found")},
		&fakeLLM{},
		&fakePublisher{},
		nil,
		t.TempDir(),
		"gpt-4.1",
		1,
	)

	_, err := p.Run(context.Background(), PipelineInput{PDFPath: "/missing.pdf", PDFName: "missing.pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract pdf text")
}

func TestPipelineRunCreateFormFailure(t *testing.T) {
	llm := &fakeLLM{response: quizJSON(t, 6)}
	pub := &fakePublisher{createErr: errors.New("quota exceeded")}
	p := newTestPipeline(t, llm, pub)

	_, err := p.Run(context.Background(), PipelineInput{PDFPath: "/tmp/in.pdf", PDFName: "in.pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create form")
}
