package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-progress-tracker/internal/store"
	"github.com/JakeFAU/job-progress-tracker/internal/tracker"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	historyTimeout      = 3 * time.Second
	maxBodyBytes        = 1 << 20
)

// ProgressService is the tracker surface the handlers need.
type ProgressService interface {
	Get(ctx context.Context, jobID string) (tracker.Snapshot, error)
	Report(ctx context.Context, in tracker.ReportInput) (tracker.Snapshot, error)
	UpdateCompleted(ctx context.Context, jobID string, completed *int) (tracker.Snapshot, error)
}

// ProgressHandler exposes the polling protocol endpoints.
type ProgressHandler struct {
	svc     ProgressService
	history store.HistoryRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewProgressHandler wires the tracker, optional history repository and logger.
func NewProgressHandler(svc ProgressService, history store.HistoryRepository, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{
		svc:     svc,
		history: history,
		timeout: historyTimeout,
		logger:  logger,
	}
}

// Get handles GET /api/progress?jobId= and GET /api/progress/{job_id}. It
// returns the progress view, 400 when the job ID is missing, or 404 when no
// live record exists.
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		jobID = r.URL.Query().Get("jobId")
	}
	snap, err := h.svc.Get(r.Context(), jobID)
	if err != nil {
		h.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressDTO(snap))
}

// Report handles POST /api/progress with {jobId, total?, status?, error?}. It
// creates the record if needed and returns {"success": true, "progress": ...}.
func (h *ProgressHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	in := tracker.ReportInput{
		JobID: req.JobID,
		Total: req.Total,
		Error: req.Error,
	}
	if req.Status != nil {
		status := tracker.Status(*req.Status)
		in.Status = &status
	}
	snap, err := h.svc.Report(r.Context(), in)
	if err != nil {
		h.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true, Progress: toProgressDTO(snap)})
}

// UpdateCompleted handles PUT /api/progress with {jobId, completed}. An absent
// completed field is a 400; a completed value of 0 is accepted.
func (h *ProgressHandler) UpdateCompleted(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	snap, err := h.svc.UpdateCompleted(r.Context(), req.JobID, req.Completed)
	if err != nil {
		h.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true, Progress: toProgressDTO(snap)})
}

// History handles GET /api/progress/{job_id}/history?limit=&offset=. It returns
// {"events": [...]} oldest first, 400 for invalid paging, 404 for jobs with no
// history, 503 when no repository is configured, or 500 on repository errors.
func (h *ProgressHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "progress history unavailable")
		return
	}
	jobID := strings.TrimSpace(chi.URLParam(r, "job_id"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	entries, err := h.history.ListHistory(ctx, jobID, limit, offset)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job history not found")
			return
		}
		h.logger.Error("list history failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": toHistoryDTOs(entries)})
}

func (h *ProgressHandler) writeTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("progress request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err //nolint:wrapcheck // mapped to a 400 by the caller
	}
	return nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

type reportRequest struct {
	JobID  string  `json:"jobId"`
	Total  *int    `json:"total"`
	Status *string `json:"status"`
	Error  *string `json:"error"`
}

type updateRequest struct {
	JobID     string `json:"jobId"`
	Completed *int   `json:"completed"`
}

type ackResponse struct {
	Success  bool        `json:"success"`
	Progress progressDTO `json:"progress"`
}

type progressDTO struct {
	JobID       string `json:"jobId"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Status      string `json:"status"`
	Percentage  int    `json:"percentage"`
	ElapsedTime int64  `json:"elapsedTime"`
	Error       string `json:"error,omitempty"`
}

func toProgressDTO(snap tracker.Snapshot) progressDTO {
	return progressDTO{
		JobID:       snap.JobID,
		Total:       snap.Total,
		Completed:   snap.Completed,
		Status:      string(snap.Status),
		Percentage:  snap.Percentage,
		ElapsedTime: snap.ElapsedTime.Milliseconds(),
		Error:       snap.Error,
	}
}

type historyDTO struct {
	Stage       string    `json:"stage"`
	Status      string    `json:"status"`
	Total       int       `json:"total"`
	Completed   int       `json:"completed"`
	ElapsedTime int64     `json:"elapsedTime"`
	Error       *string   `json:"error,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
}

func toHistoryDTOs(in []store.HistoryEntry) []historyDTO {
	out := make([]historyDTO, 0, len(in))
	for _, e := range in {
		out = append(out, historyDTO{
			Stage:       e.Stage,
			Status:      e.Status,
			Total:       e.Total,
			Completed:   e.Completed,
			ElapsedTime: e.Elapsed.Milliseconds(),
			Error:       e.Note,
			RecordedAt:  e.RecordedAt,
		})
	}
	return out
}
