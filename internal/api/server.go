package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/sessions"

	"quizforge/internal/models"
	"quizforge/internal/services"
)

const (
	maxMultipartMemory = 8 << 20 // 8 MB
	sessionName        = "quizforge-session"
)

type Server struct {
	mux      *http.ServeMux
	pipeline *services.PipelineService
	runs     *services.RunStore
	pointer  *services.PointerStore
	fetcher  *services.MediaFetcher
	notifier services.Notifier
	jobs     *JobManager
	store    *sessions.CookieStore
	password string
	workDir  string
}

func NewServer(
	pipeline *services.PipelineService,
	runs *services.RunStore,
	pointer *services.PointerStore,
	fetcher *services.MediaFetcher,
	notifier services.Notifier,
	sessionSecret string,
	password string,
	workDir string,
) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		pipeline: pipeline,
		runs:     runs,
		pointer:  pointer,
		fetcher:  fetcher,
		notifier: notifier,
		jobs:     NewJobManager(),
		store:    sessions.NewCookieStore([]byte(sessionSecret)),
		password: password,
		workDir:  workDir,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/login", s.handleLogin)
	s.mux.HandleFunc("/logout", s.handleLogout)
	s.mux.HandleFunc("/form", s.requirePage(s.handleUploadPage))
	s.mux.HandleFunc("/quiz", s.handleQuizRedirect)
	s.mux.HandleFunc("/quiz/results", s.handleResultsRedirect)
	s.mux.HandleFunc("/webhook/message", s.handleInboundMessage)
	s.mux.HandleFunc("/api/pipeline", s.requireAPI(s.handleRunPipeline))
	s.mux.HandleFunc("/api/jobs", s.requireAPI(s.handleCreateJob))
	s.mux.HandleFunc("/api/jobs/", s.requireAPI(s.handleJobStatus))
	s.mux.HandleFunc("/api/runs", s.requireAPI(s.handleListRuns))
	s.mux.HandleFunc("/api/runs/", s.requireAPI(s.handleRunQuestions))
	s.mux.HandleFunc("/api/active-form", s.requireAPI(s.handleActiveForm))
	s.mux.HandleFunc("/", s.handleIndex)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/form", http.StatusFound)
}

// --- authentication ---

func (s *Server) authenticated(r *http.Request) bool {
	session, _ := s.store.Get(r, sessionName)
	ok, _ := session.Values["authenticated"].(bool)
	return ok
}

func (s *Server) requireAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticated(r) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

func (s *Server) requirePage(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticated(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, loginPage)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		if r.FormValue("password") != s.password {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, loginPage)
			return
		}
		session, _ := s.store.Get(r, sessionName)
		session.Values["authenticated"] = true
		if err := session.Save(r, w); err != nil {
			log.Printf("session save error: %v", err)
		}
		http.Redirect(w, r, "/form", http.StatusSeeOther)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.store.Get(r, sessionName)
	session.Values["authenticated"] = false
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Printf("session save error: %v", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, uploadPage)
}

// --- pipeline endpoints ---

// parsePipelineForm pulls the PDF upload and knobs out of a multipart form
// and stages the file in the working directory. Callers own the returned
// path and must remove it when done.
func (s *Server) parsePipelineForm(r *http.Request) (services.PipelineInput, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.PipelineInput{}, fmt.Errorf("invalid multipart form")
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		return services.PipelineInput{}, fmt.Errorf("missing pdf upload")
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return services.PipelineInput{}, fmt.Errorf("only pdf uploads are accepted")
	}

	path, err := s.stageUpload(file)
	if err != nil {
		return services.PipelineInput{}, err
	}

	return services.PipelineInput{
		PDFPath:      path,
		PDFName:      header.Filename,
		NumQuestions: services.ClampQuestionCount(r.FormValue("num_questions"), services.DefaultNumQuestions),
		Language:     r.FormValue("language"),
		Model:        r.FormValue("model"),
		ShareWith:    r.FormValue("share_with"),
	}, nil
}

func (s *Server) stageUpload(src multipart.File) (string, error) {
	tmp, err := os.CreateTemp(s.workDir, "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return tmp.Name(), nil
}

func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	in, err := s.parsePipelineForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(in.PDFPath)

	result, err := s.pipeline.Run(r.Context(), in)
	if err != nil {
		status := http.StatusInternalServerError
		if isNoQuestions(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	s.updateActiveForm(result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	in, err := s.parsePipelineForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, snapshot := s.jobs.CreateJob(in.PDFName)
	go s.runPipelineJob(context.Background(), jobID, in)

	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) runPipelineJob(ctx context.Context, jobID string, in services.PipelineInput) {
	defer os.Remove(in.PDFPath)

	s.jobs.MarkProcessing(jobID, "pipeline", "Generating quiz from "+in.PDFName)
	result, err := s.pipeline.Run(ctx, in)
	if err != nil {
		s.jobs.MarkFailed(jobID, err.Error())
		return
	}
	s.updateActiveForm(result)
	s.jobs.MarkCompleted(jobID, result)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	jobID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	if jobID == "" {
		http.NotFound(w, r)
		return
	}

	job, ok := s.jobs.GetJob(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// --- history ---

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleRunQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "questions" {
		http.NotFound(w, r)
		return
	}

	runID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	questions, err := s.runs.GetRunQuestions(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

// --- active-form pointer and redirects ---

func (s *Server) updateActiveForm(result *models.PipelineResult) {
	if result.FormID == "" {
		return
	}
	pointer := models.ActiveForm{
		ActiveFormURL:      services.FormEditURL(result.FormID),
		ActiveResponsesURL: services.FormResponsesURL(result.FormID),
	}
	if err := s.pointer.Write(pointer); err != nil {
		log.Printf("update active form pointer: %v", err)
	}
}

func (s *Server) handleActiveForm(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		pointer, err := s.pointer.Read()
		if err != nil {
			writeError(w, http.StatusNotFound, "no active form")
			return
		}
		writeJSON(w, http.StatusOK, pointer)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		formID := strings.TrimSpace(r.FormValue("form_id"))
		if formID == "" {
			writeError(w, http.StatusBadRequest, "form_id is required")
			return
		}
		pointer := models.ActiveForm{
			ActiveFormURL:      services.FormEditURL(formID),
			ActiveResponsesURL: services.FormResponsesURL(formID),
		}
		if err := s.pointer.Write(pointer); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, pointer)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleQuizRedirect(w http.ResponseWriter, r *http.Request) {
	s.redirectToPointer(w, r, func(p models.ActiveForm) string { return p.ActiveFormURL })
}

func (s *Server) handleResultsRedirect(w http.ResponseWriter, r *http.Request) {
	s.redirectToPointer(w, r, func(p models.ActiveForm) string { return p.ActiveResponsesURL })
}

func (s *Server) redirectToPointer(w http.ResponseWriter, r *http.Request, pick func(models.ActiveForm) string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	pointer, err := s.pointer.Read()
	if err != nil || pick(pointer) == "" {
		http.Error(w, "no active quiz right now", http.StatusNotFound)
		return
	}
	http.Redirect(w, r, pick(pointer), http.StatusFound)
}

// --- inbound messaging webhook ---

// handleInboundMessage accepts a provider webhook with a PDF attachment and
// runs the pipeline in the background, replying on the same channel when
// done. The webhook acknowledges immediately; providers retry on slow
// responses.
func (s *Server) handleInboundMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	numMedia, _ := strconv.Atoi(r.FormValue("NumMedia"))
	mediaURL := r.FormValue("MediaUrl0")

	if numMedia == 0 || mediaURL == "" {
		s.reply(from, "Attach a PDF to generate a quiz.")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	go s.runMessagePipeline(context.Background(), from, body, mediaURL)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) runMessagePipeline(ctx context.Context, from, body, mediaURL string) {
	path, err := s.fetcher.DownloadPDF(ctx, mediaURL, s.workDir)
	if err != nil {
		log.Printf("webhook media download failed: %v", err)
		s.reply(from, "Could not download the attachment: "+err.Error())
		return
	}
	defer os.Remove(path)

	result, err := s.pipeline.Run(ctx, services.PipelineInput{
		PDFPath:  path,
		PDFName:  filepath.Base(path),
		Language: body,
	})
	if err != nil {
		log.Printf("webhook pipeline failed: %v", err)
		s.reply(from, "Quiz generation failed: "+err.Error())
		return
	}

	s.updateActiveForm(result)
	s.reply(from, fmt.Sprintf("Quiz ready with %d questions: %s", result.NumGenerated, result.FormEditURL))
}

func (s *Server) reply(to, body string) {
	if s.notifier == nil || to == "" {
		return
	}
	if err := s.notifier.Send(to, body); err != nil {
		log.Printf("send reply to %s failed: %v", to, err)
	}
}

func isNoQuestions(err error) bool {
	return errors.Is(err, services.ErrNoQuestions)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

const loginPage = `<!DOCTYPE html>
<html>
<head><title>QuizForge Login</title></head>
<body>
<h1>QuizForge</h1>
<form method="post" action="/login">
  <label>Password <input type="password" name="password" autofocus></label>
  <button type="submit">Log in</button>
</form>
</body>
</html>
`

const uploadPage = `<!DOCTYPE html>
<html>
<head><title>QuizForge</title></head>
<body>
<h1>Generate a quiz</h1>
<form method="post" action="/api/pipeline" enctype="multipart/form-data">
  <p><label>PDF <input type="file" name="pdf" accept="application/pdf" required></label></p>
  <p><label>Questions <input type="number" name="num_questions" min="1" max="20" value="6"></label></p>
  <p><label>Language
    <select name="language">
      <option value="en">English</option>
      <option value="he">Hebrew</option>
    </select>
  </label></p>
  <p><label>Share with (email) <input type="email" name="share_with"></label></p>
  <p><button type="submit">Generate</button></p>
</form>
<p><a href="/logout">Log out</a></p>
</body>
</html>
`
