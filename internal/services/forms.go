package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	drive "google.golang.org/api/drive/v3"
	forms "google.golang.org/api/forms/v1"
	"google.golang.org/api/option"
)

const (
	formTitle     = "Mission Quiz"
	documentTitle = "MCQ Quiz"
)

// FormsPublisher is the boundary to the forms service: create a quiz form,
// apply question requests, grant a sharing permission.
type FormsPublisher interface {
	CreateQuizForm(ctx context.Context) (formID string, err error)
	ApplyRequests(ctx context.Context, formID string, requests []*forms.Request) error
	Share(ctx context.Context, fileID, email string) error
}

// GoogleFormsService publishes quizzes through the Google Forms and Drive
// APIs. Service clients are built per call because credentials may not be
// available (or valid) at construction time.
type GoogleFormsService struct {
	auth *GoogleAuth
}

func NewGoogleFormsService(auth *GoogleAuth) *GoogleFormsService {
	return &GoogleFormsService{auth: auth}
}

// ErrFormsUnavailable is returned when no Google credentials are configured.
var ErrFormsUnavailable = errors.New("google forms integration is not configured")

func (s *GoogleFormsService) formsService(ctx context.Context) (*forms.Service, error) {
	if s.auth == nil {
		return nil, ErrFormsUnavailable
	}
	client, err := s.auth.Client(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := forms.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("init forms service: %w", err)
	}
	return svc, nil
}

// CreateQuizForm creates an empty form and enables quiz mode. The quiz
// toggle is best-effort: grading can still be attached if it fails, so a
// toggle failure is logged and the form is kept.
func (s *GoogleFormsService) CreateQuizForm(ctx context.Context) (string, error) {
	svc, err := s.formsService(ctx)
	if err != nil {
		return "", err
	}

	form, err := svc.Forms.Create(&forms.Form{
		Info: &forms.Info{Title: formTitle, DocumentTitle: documentTitle},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create form: %w", err)
	}

	toggle := &forms.BatchUpdateFormRequest{
		Requests: []*forms.Request{{
			UpdateSettings: &forms.UpdateSettingsRequest{
				Settings: &forms.FormSettings{
					QuizSettings: &forms.QuizSettings{IsQuiz: true},
				},
				UpdateMask: "quizSettings.isQuiz",
			},
		}},
	}
	if _, err := svc.Forms.BatchUpdate(form.FormId, toggle).Context(ctx).Do(); err != nil {
		log.Printf("enable quiz mode for %s failed (continuing): %v", form.FormId, err)
	}

	return form.FormId, nil
}

func (s *GoogleFormsService) ApplyRequests(ctx context.Context, formID string, requests []*forms.Request) error {
	if len(requests) == 0 {
		return nil
	}
	svc, err := s.formsService(ctx)
	if err != nil {
		return err
	}
	body := &forms.BatchUpdateFormRequest{Requests: requests}
	if _, err := svc.Forms.BatchUpdate(formID, body).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch update form %s: %w", formID, err)
	}
	return nil
}

// Share grants the recipient writer access without a notification email.
func (s *GoogleFormsService) Share(ctx context.Context, fileID, email string) error {
	if s.auth == nil {
		return ErrFormsUnavailable
	}
	client, err := s.auth.Client(ctx)
	if err != nil {
		return err
	}
	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return fmt.Errorf("init drive service: %w", err)
	}

	perm := &drive.Permission{
		Type:         "user",
		Role:         "writer",
		EmailAddress: email,
	}
	if _, err := svc.Permissions.Create(fileID, perm).SendNotificationEmail(false).Context(ctx).Do(); err != nil {
		return fmt.Errorf("grant permission on %s: %w", fileID, err)
	}
	return nil
}

// FormEditURL returns the editor URL for a created form.
func FormEditURL(formID string) string {
	return "https://docs.google.com/forms/d/" + formID + "/edit"
}

// FormResponsesURL returns the responses view for a created form.
func FormResponsesURL(formID string) string {
	return "https://docs.google.com/forms/d/" + formID + "/edit#responses"
}
