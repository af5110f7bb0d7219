package services

import (
	"errors"
	"log"

	forms "google.golang.org/api/forms/v1"

	"quizforge/internal/models"
)

// ErrNoQuestions is returned when a parsed document contains no questions.
var ErrNoQuestions = errors.New("no questions generated")

// BuildSummary counts how the payload builder handled the question list.
type BuildSummary struct {
	Processed      int
	SkippedGrading int
	SkippedIDs     []string
}

// TruncateQuestions trims the document to at most limit questions in their
// original order. Returns true if the document changed; running it again on
// an already-truncated document is a no-op.
func TruncateQuestions(doc *models.QuizDocument, limit int) bool {
	if limit < 0 || len(doc.Questions) <= limit {
		return false
	}
	doc.Questions = doc.Questions[:limit]
	return true
}

// BuildFormRequests converts each question into a create-item request and,
// when the answer invariant holds, a grading-update request. A question
// whose answer text does not match any option is still published as a
// display item, just ungraded: partial data beats a hard failure.
func BuildFormRequests(doc *models.QuizDocument) ([]*forms.Request, BuildSummary, error) {
	var summary BuildSummary

	if doc == nil || len(doc.Questions) == 0 {
		return nil, summary, ErrNoQuestions
	}

	requests := make([]*forms.Request, 0, 2*len(doc.Questions))
	for i, q := range doc.Questions {
		options := make([]*forms.Option, 0, len(q.Options))
		for _, opt := range q.Options {
			options = append(options, &forms.Option{Value: opt.Text})
		}

		requests = append(requests, &forms.Request{
			CreateItem: &forms.CreateItemRequest{
				Item: &forms.Item{
					Title: q.Stem,
					QuestionItem: &forms.QuestionItem{
						Question: &forms.Question{
							Required: true,
							ChoiceQuestion: &forms.ChoiceQuestion{
								Type:    "RADIO",
								Options: options,
								Shuffle: false,
							},
						},
					},
				},
				Location: itemLocation(),
			},
		})
		summary.Processed++

		if !answerMatchesOption(q) {
			log.Printf("question %d (%s): correct answer not found among options; skipping grading", i+1, q.ID)
			summary.SkippedGrading++
			summary.SkippedIDs = append(summary.SkippedIDs, q.ID)
			continue
		}

		requests = append(requests, &forms.Request{
			UpdateItem: &forms.UpdateItemRequest{
				Item: &forms.Item{
					Title: q.Stem,
					QuestionItem: &forms.QuestionItem{
						Question: &forms.Question{
							Grading: &forms.Grading{
								PointValue: 1,
								CorrectAnswers: &forms.CorrectAnswers{
									Answers: []*forms.CorrectAnswer{{Value: q.Answer.Text}},
								},
							},
						},
					},
				},
				Location:   itemLocation(),
				UpdateMask: "questionItem.question.grading",
			},
		})
	}

	return requests, summary, nil
}

func answerMatchesOption(q models.Question) bool {
	if q.Answer.Text == "" {
		return false
	}
	for _, opt := range q.Options {
		if opt.Text == q.Answer.Text {
			return true
		}
	}
	return false
}

// itemLocation pins requests to index 0; the zero index must be sent
// explicitly or the API rejects the request for a missing location.
func itemLocation() *forms.Location {
	return &forms.Location{Index: 0, ForceSendFields: []string{"Index"}}
}
