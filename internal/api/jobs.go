package api

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizforge/internal/models"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// PipelineJob tracks one asynchronous pipeline run that the frontend polls.
type PipelineJob struct {
	ID        string                 `json:"jobId"`
	Status    string                 `json:"status"`
	PDFName   string                 `json:"pdfName"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
	Step      string                 `json:"step,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Result    *models.PipelineResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*PipelineJob
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*PipelineJob),
	}
}

func (m *JobManager) CreateJob(pdfName string) (string, *PipelineJob) {
	job := &PipelineJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		PDFName:   pdfName,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.ID, job.clone()
}

func (m *JobManager) GetJob(id string) (*PipelineJob, bool) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkProcessing(id, step, message string) {
	m.withJob(id, func(job *PipelineJob) {
		job.Status = JobStatusProcessing
		job.Step = step
		job.Message = message
	})
}

func (m *JobManager) MarkCompleted(id string, result *models.PipelineResult) {
	m.withJob(id, func(job *PipelineJob) {
		job.Status = JobStatusComplete
		job.Step = "complete"
		job.Message = "Pipeline complete"
		job.Result = cloneResult(result)
		job.Error = ""
	})
}

func (m *JobManager) MarkFailed(id, msg string) {
	m.withJob(id, func(job *PipelineJob) {
		job.Status = JobStatusFailed
		job.Step = "error"
		job.Error = strings.TrimSpace(msg)
	})
}

func (m *JobManager) withJob(id string, fn func(job *PipelineJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
}

func (job *PipelineJob) clone() *PipelineJob {
	if job == nil {
		return nil
	}
	copyJob := *job
	copyJob.Result = cloneResult(job.Result)
	return &copyJob
}

func cloneResult(result *models.PipelineResult) *models.PipelineResult {
	if result == nil {
		return nil
	}
	res := *result
	if len(result.Warnings) > 0 {
		res.Warnings = append([]string(nil), result.Warnings...)
	}
	return &res
}
