package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/felixgeelhaar/academy/internal/academy"
	"github.com/felixgeelhaar/academy/internal/config"
	"github.com/felixgeelhaar/academy/internal/domain"
	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/ratelimit"
)

// Version is the daemon version reported by /v1/status
const Version = "0.1.0"

// practiceKey is the rate limit bucket shared by run and test requests
const practiceKey = "practice"

// Server represents the academy daemon HTTP server
type Server struct {
	cfg     *config.LocalConfig
	server  *http.Server
	router  *http.ServeMux
	handler http.Handler

	runtime     *academy.Runtime
	ownsRuntime bool
	app         *academy.App
	limiter     ratelimit.RateLimiter
	runs        bulkhead.Bulkhead[academy.RunResult]
	tests       bulkhead.Bulkhead[academy.TestResult]
	page        *template.Template
	startedAt   time.Time
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config  *config.LocalConfig
	DataDir string // holds file and sqlite storage
	// Runtime is opened from Config when nil
	Runtime *academy.Runtime
	Logger  *slog.Logger
}

// NewServer creates a new daemon server
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	s := &Server{
		cfg:       cfg.Config,
		router:    http.NewServeMux(),
		runtime:   cfg.Runtime,
		startedAt: time.Now(),
	}

	if s.runtime == nil {
		rt, err := academy.Open(ctx, cfg.Config, cfg.DataDir, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("open academy: %w", err)
		}
		s.runtime = rt
		s.ownsRuntime = true
	}
	s.app = s.runtime.App

	if rate := cfg.Config.Daemon.PracticeRate; rate > 0 {
		s.limiter = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 2,
			Interval: time.Second,
		})
	}

	if n := cfg.Config.Daemon.PracticeConcurrency; n > 0 {
		bh := bulkhead.Config{
			MaxConcurrent: n,
			MaxQueue:      n * 2,
			QueueTimeout:  10 * time.Second,
		}
		s.runs = bulkhead.New[academy.RunResult](bh)
		s.tests = bulkhead.New[academy.TestResult](bh)
	}

	page, err := parsePage()
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	s.page = page

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.handler = correlationIDMiddleware(recoveryMiddleware(loggingMiddleware(s.router)))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /{$}", s.handlePage)

	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)
	s.router.HandleFunc("GET /v1/config", s.handleGetConfig)

	// Read models
	s.router.HandleFunc("GET /v1/curriculum", s.handleCurriculum)
	s.router.HandleFunc("GET /v1/achievements", s.handleAchievements)
	s.router.HandleFunc("GET /v1/dashboard", s.handleDashboard)
	s.router.HandleFunc("GET /v1/progress", s.handleProgress)
	s.router.HandleFunc("GET /v1/device", s.handleDevice)
	s.router.HandleFunc("GET /v1/state", s.handleState)
	s.router.HandleFunc("GET /v1/activity", s.handleActivity)

	// Lessons
	s.router.HandleFunc("GET /v1/lessons/{id}", s.handleGetLesson)
	s.router.HandleFunc("POST /v1/lessons/{id}/start", s.handleStartLesson)

	// Practice
	s.router.HandleFunc("PUT /v1/editor", s.handleSetCode)
	s.router.HandleFunc("POST /v1/run", s.handleRun)
	s.router.HandleFunc("POST /v1/tests", s.handleTests)
	s.router.HandleFunc("POST /v1/reset", s.handleReset)
	s.router.HandleFunc("POST /v1/hint", s.handleHint)
	s.router.HandleFunc("POST /v1/next", s.handleNext)
	s.router.HandleFunc("POST /v1/modal/close", s.handleCloseModal)
	s.router.HandleFunc("POST /v1/view", s.handleSwitchView)
	s.router.HandleFunc("POST /v1/tab", s.handleSwitchTab)
}

// Handler returns the HTTP handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting academy daemon",
		"addr", s.server.Addr,
		"backend", s.runtime.Backend.Name,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	err := s.server.Shutdown(ctx)

	if s.limiter != nil {
		if cerr := s.limiter.Close(); cerr != nil {
			slog.Warn("failed to close rate limiter", "error", cerr)
		}
	}
	if s.ownsRuntime {
		if cerr := s.runtime.Close(); cerr != nil {
			slog.Warn("failed to close storage", "error", cerr)
		}
	}

	return err
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":        "running",
		"version":       Version,
		"backend":       s.runtime.Store.Backend(),
		"degraded":      s.runtime.Store.Degraded(),
		"repeat_policy": s.runtime.Engine.Policy(),
		"lessons":       s.runtime.Registry.LessonCount(),
		"activity_log":  s.runtime.Activity != nil,
		"uptime":        time.Since(s.startedAt).Round(time.Second).String(),
	}
	if db := s.runtime.Backend.SQLite; db != nil {
		version, err := db.SchemaVersion(r.Context())
		if err != nil {
			s.jsonError(w, http.StatusInternalServerError, "failed to read schema version", err)
			return
		}
		status["database"] = db.Path()
		status["schema_version"] = version
	}
	s.jsonResponse(w, http.StatusOK, status)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	// Connection strings may carry credentials and are left out
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"daemon":   s.cfg.Daemon,
		"storage":  map[string]string{"backend": s.cfg.Storage.Backend},
		"content":  s.cfg.Content,
		"progress": s.cfg.Progress,
		"academy": map[string]string{
			"run_delay":  s.cfg.Academy.RunDelay.String(),
			"test_delay": s.cfg.Academy.TestDelay.String(),
		},
		"events": map[string]interface{}{
			"enabled": s.cfg.Events.AMQPURL != "",
			"queue":   s.cfg.Events.Queue,
		},
	})
}

func (s *Server) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"modules": s.app.Curriculum(),
	})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"achievements": s.app.Achievements(),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.app.Dashboard())
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.app.Progress())
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.app.Device())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.runtime.Activity == nil {
		s.jsonError(w, http.StatusNotFound, "activity log requires the sqlite backend", nil)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.jsonError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = min(n, 200)
	}

	records, err := s.runtime.Activity.Recent(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to load activity", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"events": records,
	})
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	detail, err := s.app.Lesson(r.PathValue("id"))
	if err != nil {
		s.appError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, detail)
}

func (s *Server) handleStartLesson(w http.ResponseWriter, r *http.Request) {
	if _, err := s.app.StartLesson(r.Context(), r.PathValue("id")); err != nil {
		s.appError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.app.Snapshot())
}

// codeRequest carries an optional editor buffer replacement
type codeRequest struct {
	Code *string `json:"code,omitempty"`
}

func (s *Server) decodeCode(w http.ResponseWriter, r *http.Request) bool {
	if r.ContentLength == 0 {
		return true
	}
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if req.Code != nil {
		s.app.SetCode(*req.Code)
	}
	return true
}

func (s *Server) handleSetCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Code == nil {
		s.jsonError(w, http.StatusBadRequest, "code is required", nil)
		return
	}
	s.app.SetCode(*req.Code)
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"code": s.app.Code(),
	})
}

func (s *Server) allowPractice(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter == nil || s.limiter.Allow(r.Context(), practiceKey) {
		return true
	}
	s.jsonError(w, http.StatusTooManyRequests, "too many practice requests", nil)
	return false
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.allowPractice(w, r) || !s.decodeCode(w, r) {
		return
	}
	result, err := limit(r.Context(), s.runs, s.app.RunCode)
	if err != nil {
		s.appError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleTests(w http.ResponseWriter, r *http.Request) {
	if !s.allowPractice(w, r) || !s.decodeCode(w, r) {
		return
	}
	result, err := limit(r.Context(), s.tests, s.app.RunTests)
	if err != nil {
		s.appError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// errPracticeBusy is returned when the bulkhead rejects a practice request
var errPracticeBusy = errors.New("too many practice requests in flight")

// limit runs op inside bh when one is configured. Errors from op pass
// through unchanged; rejections by the bulkhead become errPracticeBusy.
func limit[T any](ctx context.Context, bh bulkhead.Bulkhead[T], op func(context.Context) (T, error)) (T, error) {
	if bh == nil {
		return op(ctx)
	}
	var opErr error
	result, err := bh.Execute(ctx, func(ctx context.Context) (T, error) {
		res, err := op(ctx)
		opErr = err
		return res, err
	})
	if opErr != nil {
		return result, opErr
	}
	if err != nil {
		return result, fmt.Errorf("%w: %v", errPracticeBusy, err)
	}
	return result, nil
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.app.ResetCode(); err != nil {
		s.appError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	hint, err := s.app.ShowHint()
	if err != nil {
		s.appError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"hint":    hint,
		"message": academy.HintPrefix + hint,
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	lesson, err := s.app.GoToNextLesson(r.Context())
	if err != nil {
		s.appError(w, err)
		return
	}
	resp := map[string]interface{}{
		"curriculum_complete": lesson == nil,
		"state":               s.app.Snapshot(),
	}
	if lesson != nil {
		resp["lesson_id"] = lesson.ID
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleCloseModal(w http.ResponseWriter, r *http.Request) {
	s.app.CloseModal()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSwitchView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		View academy.View `json:"view"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := s.app.SwitchView(req.View); err != nil {
		s.appError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleSwitchTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab academy.Tab `json:"tab"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := s.app.SwitchTab(req.Tab); err != nil {
		s.appError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.app.Snapshot())
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// appError maps application errors to HTTP statuses
func (s *Server) appError(w http.ResponseWriter, err error) {
	switch {
	case academy.IsNotFound(err):
		s.jsonError(w, http.StatusNotFound, "lesson not found", err)
	case errors.Is(err, domain.ErrLessonLocked):
		s.jsonError(w, http.StatusConflict, "lesson is locked", err)
	case errors.Is(err, domain.ErrNoActiveLesson):
		s.jsonError(w, http.StatusConflict, "no active lesson", err)
	case errors.Is(err, domain.ErrSuperseded):
		s.jsonError(w, http.StatusConflict, "superseded by a newer request", err)
	case errors.Is(err, domain.ErrInvalidInput):
		s.jsonError(w, http.StatusBadRequest, "invalid input", err)
	case errors.Is(err, errPracticeBusy):
		s.jsonError(w, http.StatusServiceUnavailable, "practice queue full", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.jsonError(w, http.StatusServiceUnavailable, "request cancelled", err)
	default:
		s.jsonError(w, http.StatusInternalServerError, "internal error", err)
	}
}
