package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"quizforge/internal/models"
)

// PipelineInput is one caller request, before normalization.
type PipelineInput struct {
	PDFPath      string
	PDFName      string
	NumQuestions int
	Language     string
	Model        string
	ShareWith    string
}

// PipelineService sequences extract, prompt, complete, recover, build,
// publish, and share for one run. Every stage failure is converted to an
// error wrapped with stage context; nothing crosses this boundary raw.
type PipelineService struct {
	extractor TextExtractor
	llm       CompletionProvider
	publisher FormsPublisher
	runs      *RunStore

	workDir      string
	defaultModel string
	minQuestions int
}

func NewPipelineService(
	extractor TextExtractor,
	llm CompletionProvider,
	publisher FormsPublisher,
	runs *RunStore,
	workDir string,
	defaultModel string,
	minQuestions int,
) *PipelineService {
	if defaultModel == "" {
		defaultModel = "gpt-4.1"
	}
	if minQuestions < 1 {
		minQuestions = 1
	}
	return &PipelineService{
		extractor:    extractor,
		llm:          llm,
		publisher:    publisher,
		runs:         runs,
		workDir:      workDir,
		defaultModel: defaultModel,
		minQuestions: minQuestions,
	}
}

// Run executes the full pipeline synchronously. On success the artifact is
// kept in the run's working directory; on a fatal failure the directory is
// cleaned up best-effort.
func (s *PipelineService) Run(ctx context.Context, in PipelineInput) (*models.PipelineResult, error) {
	req := s.normalize(in)

	result := &models.PipelineResult{
		PDFName:      in.PDFName,
		NumRequested: req.NumQuestions,
		Language:     string(req.Language),
		Model:        req.Model,
	}

	runDir, err := os.MkdirTemp(s.workDir, "quizforge-")
	if err != nil {
		return nil, s.fail(ctx, in, result, fmt.Errorf("create working directory: %w", err))
	}

	log.Printf("pipeline start: pdf=%s questions=%d language=%s model=%s",
		in.PDFName, req.NumQuestions, req.Language, req.Model)

	text, pages, err := s.extractor.ExtractText(in.PDFPath)
	if err != nil {
		os.RemoveAll(runDir)
		return nil, s.fail(ctx, in, result, fmt.Errorf("extract pdf text: %w", err))
	}
	log.Printf("extracted %d characters from %d pages", len(text), pages)

	prompt := BuildPrompt(text, req.NumQuestions, req.Language)

	raw, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		os.RemoveAll(runDir)
		return nil, s.fail(ctx, in, result, fmt.Errorf("generate mcqs: %w", err))
	}

	doc, err := RecoverQuizDocument(raw)
	if err != nil {
		var rerr *RecoverError
		if errors.As(err, &rerr) {
			if path, werr := WriteRawCapture(runDir, rerr); werr == nil {
				log.Printf("unparseable completion saved for inspection: %s", path)
			}
		}
		return nil, s.fail(ctx, in, result, fmt.Errorf("recover model output: %w", err))
	}

	artifactPath, err := WriteQuizArtifact(runDir, doc)
	if err != nil {
		os.RemoveAll(runDir)
		return nil, s.fail(ctx, in, result, err)
	}
	result.ArtifactPath = artifactPath

	generated := len(doc.Questions)
	if generated < s.minQuestions {
		return nil, s.fail(ctx, in, result,
			fmt.Errorf("%w: got %d, need at least %d", ErrNoQuestions, generated, s.minQuestions))
	}

	if TruncateQuestions(doc, req.NumQuestions) {
		log.Printf("generated %d questions, truncating to %d", generated, req.NumQuestions)
		if _, err := WriteQuizArtifact(runDir, doc); err != nil {
			return nil, s.fail(ctx, in, result, fmt.Errorf("persist truncated artifact: %w", err))
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("model produced %d questions; truncated to %d", generated, req.NumQuestions))
	}
	if len(doc.Questions) < req.NumQuestions {
		log.Printf("model returned %d of %d requested questions", len(doc.Questions), req.NumQuestions)
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("model returned %d of %d requested questions", len(doc.Questions), req.NumQuestions))
	}
	result.NumGenerated = len(doc.Questions)

	requests, summary, err := BuildFormRequests(doc)
	if err != nil {
		return nil, s.fail(ctx, in, result, err)
	}
	result.GradedCount = summary.Processed - summary.SkippedGrading
	result.SkippedGrading = summary.SkippedGrading
	if summary.SkippedGrading > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d question(s) published ungraded: answer text did not match any option", summary.SkippedGrading))
	}

	formID, err := s.publisher.CreateQuizForm(ctx)
	if err != nil {
		return nil, s.fail(ctx, in, result, fmt.Errorf("create form: %w", err))
	}
	result.FormID = formID
	result.FormEditURL = FormEditURL(formID)

	if err := s.publisher.ApplyRequests(ctx, formID, requests); err != nil {
		return nil, s.fail(ctx, in, result, fmt.Errorf("populate form: %w", err))
	}

	if shareWith := strings.TrimSpace(in.ShareWith); shareWith != "" {
		result.SharedWith = shareWith
		if err := s.publisher.Share(ctx, formID, shareWith); err != nil {
			// Sharing failure does not invalidate the created form.
			log.Printf("share form %s with %s failed: %v", formID, shareWith, err)
			result.ShareError = err.Error()
			result.Warnings = append(result.Warnings, "form created but sharing failed: "+err.Error())
		}
	}

	result.Success = true
	s.record(ctx, in, result, doc, summary, "")

	log.Printf("pipeline complete: form=%s questions=%d skipped_grading=%d",
		formID, result.NumGenerated, result.SkippedGrading)
	return result, nil
}

func (s *PipelineService) normalize(in PipelineInput) models.GenerationRequest {
	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = s.defaultModel
	}
	return models.GenerationRequest{
		NumQuestions: clampInt(orDefault(in.NumQuestions), minNumQuestions, maxNumQuestions),
		Language:     NormalizeLanguage(in.Language),
		Model:        model,
	}
}

func orDefault(n int) int {
	if n == 0 {
		return DefaultNumQuestions
	}
	return n
}

// fail records the failed run and returns the stage error unchanged.
func (s *PipelineService) fail(ctx context.Context, in PipelineInput, result *models.PipelineResult, err error) error {
	s.record(ctx, in, result, nil, BuildSummary{}, err.Error())
	return err
}

func (s *PipelineService) record(ctx context.Context, in PipelineInput, result *models.PipelineResult, doc *models.QuizDocument, summary BuildSummary, errMsg string) {
	if s.runs == nil {
		return
	}

	status := models.RunStatusSuccess
	if errMsg != "" {
		status = models.RunStatusFailed
	}

	run := models.Run{
		PDFName:        in.PDFName,
		Model:          result.Model,
		Language:       result.Language,
		NumRequested:   result.NumRequested,
		NumGenerated:   result.NumGenerated,
		SkippedGrading: result.SkippedGrading,
		FormID:         result.FormID,
		FormURL:        result.FormEditURL,
		Status:         status,
		Error:          errMsg,
		Warnings:       strings.Join(result.Warnings, "; "),
	}

	var questions []models.Question
	graded := map[string]bool{}
	if doc != nil {
		questions = doc.Questions
		for _, q := range questions {
			graded[q.ID] = true
		}
		for _, id := range summary.SkippedIDs {
			graded[id] = false
		}
	}

	if _, err := s.runs.RecordRun(ctx, run, questions, graded); err != nil {
		log.Printf("record run failed: %v", err)
	}
}
