package models

import "time"

// Language is the normalized quiz language. Anything the normalizer does not
// recognize as a Hebrew alias maps to English.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHebrew  Language = "he"
)

// Option is one of the four answer choices of a question, labelled A-D.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Answer names the correct option. Text must exactly match the text of one
// entry in the question's options; otherwise the item is published ungraded.
type Answer struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type Question struct {
	ID              string   `json:"id"`
	Topic           string   `json:"topic"`
	Difficulty      string   `json:"difficulty"`
	Stem            string   `json:"stem"`
	Options         []Option `json:"options"`
	Answer          Answer   `json:"answer"`
	Rationale       string   `json:"rationale"`
	OperationalNote string   `json:"operational_note"`
	SafetyFlags     []string `json:"safety_flags"`
}

// QuizDocument is the canonical parsed artifact produced from one completion
// call. It is written verbatim to mcqs.json in the run's working directory.
type QuizDocument struct {
	SourceSummary string     `json:"source_summary"`
	Questions     []Question `json:"questions"`
}

// GenerationRequest carries the normalized inputs of one pipeline run.
type GenerationRequest struct {
	DocumentText string
	NumQuestions int
	Language     Language
	Model        string
}

// PipelineResult is the structured outcome of a run. Warnings hold partial
// degradations (shortfall, grading skips, share failure) that did not fail
// the run.
type PipelineResult struct {
	Success        bool     `json:"success"`
	PDFName        string   `json:"pdf_filename"`
	ArtifactPath   string   `json:"mcqs_json_path"`
	FormID         string   `json:"form_id,omitempty"`
	FormEditURL    string   `json:"form_edit_url,omitempty"`
	NumRequested   int      `json:"num_questions"`
	NumGenerated   int      `json:"num_generated"`
	GradedCount    int      `json:"graded_count"`
	SkippedGrading int      `json:"skipped_grading"`
	Language       string   `json:"language"`
	Model          string   `json:"model"`
	SharedWith     string   `json:"shared_with,omitempty"`
	ShareError     string   `json:"share_error,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Run is one persisted pipeline invocation in the history store.
type Run struct {
	ID             int64     `json:"id"`
	PDFName        string    `json:"pdf_filename"`
	Model          string    `json:"model"`
	Language       string    `json:"language"`
	NumRequested   int       `json:"num_requested"`
	NumGenerated   int       `json:"num_generated"`
	SkippedGrading int       `json:"skipped_grading"`
	FormID         string    `json:"form_id"`
	FormURL        string    `json:"form_url"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	Warnings       string    `json:"warnings,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// ActiveForm is the small persisted pointer to the currently live quiz,
// used only by the redirect endpoints.
type ActiveForm struct {
	ActiveFormURL      string `json:"active_form_url"`
	ActiveResponsesURL string `json:"active_responses_url"`
}
