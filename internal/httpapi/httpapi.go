package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hoony8355/searcap/internal/database"
	"github.com/hoony8355/searcap/internal/models"
	"github.com/hoony8355/searcap/internal/queue"
)

// Store is the slice of database used by the API. Satisfied by *database.DB.
type Store interface {
	CreateJob(ctx context.Context, keyword string, surface models.Surface) (*database.Job, error)
	GetJob(ctx context.Context, id string) (*database.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*database.Job, error)
	ListCapturesByJob(ctx context.Context, jobID string) ([]*models.CaptureRecord, error)
	ListCapturesByKeyword(ctx context.Context, keyword string, limit int) ([]*models.CaptureRecord, error)
	GetStats(ctx context.Context) (*database.Stats, error)
}

type Handlers struct {
	store  Store
	queue  queue.Queue
	logger *slog.Logger
}

func NewHandlers(store Store, q queue.Queue, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		queue:  q,
		logger: logger,
	}
}

// Router wires middleware and routes for the capture API.
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/captures", h.CreateCapture)
		r.Get("/captures", h.ListCaptures)
		r.Get("/captures/{jobID}", h.GetCapture)
		r.Get("/stats", h.GetStats)
	})

	return r
}

// CreateCaptureRequest asks for a keyword to be captured.
type CreateCaptureRequest struct {
	Keyword string `json:"keyword"`
	Surface string `json:"surface"`
}

// CreateCaptureResponse returns the queued job.
type CreateCaptureResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateCapture enqueues a capture job for a keyword.
func (h *Handlers) CreateCapture(w http.ResponseWriter, r *http.Request) {
	var req CreateCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Keyword == "" {
		h.respondError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	surface := models.SurfaceSearch
	if req.Surface != "" {
		var ok bool
		surface, ok = models.ParseSurface(req.Surface)
		if !ok {
			h.respondError(w, http.StatusBadRequest, "surface must be search or shopping")
			return
		}
	}

	job, err := h.store.CreateJob(r.Context(), req.Keyword, surface)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	task := queue.NewTask(job.Keyword, job.Surface)
	task.JobID = job.ID
	if err := h.queue.Push(task); err != nil {
		h.logger.Error("failed to enqueue task", "job", job.ID, "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "capture queue unavailable")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateCaptureResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Message: "capture job queued",
	})
}

// JobDetail is a job together with the records its run produced.
type JobDetail struct {
	Job      *database.Job           `json:"job"`
	Captures []*models.CaptureRecord `json:"captures"`
}

// GetCapture returns a job and its capture records.
func (h *Handlers) GetCapture(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.logger.Error("failed to get job", "job", jobID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}
	if job == nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	captures, err := h.store.ListCapturesByJob(r.Context(), jobID)
	if err != nil {
		h.logger.Error("failed to list job captures", "job", jobID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list captures")
		return
	}

	h.respondJSON(w, http.StatusOK, JobDetail{Job: job, Captures: captures})
}

// ListCaptures returns recent captures for a keyword, or recent jobs when no
// keyword is given.
func (h *Handlers) ListCaptures(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if keyword == "" {
		jobs, err := h.store.ListJobs(r.Context(), limit)
		if err != nil {
			h.logger.Error("failed to list jobs", "error", err)
			h.respondError(w, http.StatusInternalServerError, "failed to list jobs")
			return
		}
		if jobs == nil {
			jobs = []*database.Job{}
		}
		h.respondJSON(w, http.StatusOK, jobs)
		return
	}

	captures, err := h.store.ListCapturesByKeyword(r.Context(), keyword, limit)
	if err != nil {
		h.logger.Error("failed to list captures", "keyword", keyword, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list captures")
		return
	}
	if captures == nil {
		captures = []*models.CaptureRecord{}
	}

	h.respondJSON(w, http.StatusOK, captures)
}

// GetStats returns job and capture counters.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// Health reports queue depth along with liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"queue_size": h.queue.Size(),
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		})
	}
}
