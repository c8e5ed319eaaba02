package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/jobs"
)

// JobHandler handles HTTP requests for collection jobs
type JobHandler struct {
	config  *common.Config
	service *jobs.Service
	store   *jobs.Store
	logger  arbor.ILogger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(config *common.Config, service *jobs.Service, store *jobs.Store, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		config:  config,
		service: service,
		store:   store,
		logger:  logger,
	}
}

// jobPayload is the wire form of a job submission. Count is a pointer so
// an absent count falls back to the configured default while an explicit
// zero requests unlimited collection.
type jobPayload struct {
	Keyword    string `json:"keyword"`
	Count      *int   `json:"count"`
	Expand     bool   `json:"expand"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	WorkerMode int    `json:"worker_mode"`
}

func (p *jobPayload) toRequest(defaultCount int) *models.JobRequest {
	count := defaultCount
	if p.Count != nil {
		count = *p.Count
	}
	return &models.JobRequest{
		Keyword:    p.Keyword,
		Count:      count,
		Expand:     p.Expand,
		StartDate:  p.StartDate,
		EndDate:    p.EndDate,
		WorkerMode: p.WorkerMode,
	}
}

// CreateJobHandler handles POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var payload jobPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	job, err := h.service.Submit(payload.toRequest(h.config.Scraper.DefaultCount))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}

// CreateBatchHandler handles POST /api/jobs/batch
func (h *JobHandler) CreateBatchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var payload struct {
		Jobs []jobPayload `json:"jobs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	requests := make([]*models.JobRequest, 0, len(payload.Jobs))
	for i := range payload.Jobs {
		requests = append(requests, payload.Jobs[i].toRequest(h.config.Scraper.DefaultCount))
	}

	batchID, submitted, err := h.service.SubmitBatch(requests)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"batch_id": batchID,
		"jobs":     submitted,
	})
}

// ListJobsHandler handles GET /api/jobs
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	list := h.store.GetAll()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJobHandler handles GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := h.store.Get(jobID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Job not found: "+jobID)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// CancelJobHandler handles POST /api/jobs/{id}/cancel. Cancellation is
// advisory; the job task observes the flag at its next boundary.
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.service.Cancel(jobID); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteSuccess(w, "Cancellation requested for "+jobID)
}

// RemoveJobHandler handles DELETE /api/jobs/{id}
func (h *JobHandler) RemoveJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := h.store.Get(jobID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Job not found: "+jobID)
		return
	}
	if !job.Status.IsTerminal() {
		WriteError(w, http.StatusConflict, "Cannot remove a job that is still "+string(job.Status))
		return
	}

	h.store.Remove(jobID)
	WriteSuccess(w, "Job removed: "+jobID)
}

// CheckpointHandler handles HTTP requests for persisted checkpoints
type CheckpointHandler struct {
	checkpoints interfaces.CheckpointStorage
	service     *jobs.Service
	logger      arbor.ILogger
}

// NewCheckpointHandler creates a new CheckpointHandler
func NewCheckpointHandler(checkpoints interfaces.CheckpointStorage, service *jobs.Service, logger arbor.ILogger) *CheckpointHandler {
	return &CheckpointHandler{
		checkpoints: checkpoints,
		service:     service,
		logger:      logger,
	}
}

// ListCheckpointsHandler handles GET /api/checkpoints
func (h *CheckpointHandler) ListCheckpointsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	summaries, err := h.checkpoints.ListPending(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list checkpoints")
		WriteError(w, http.StatusInternalServerError, "Failed to list checkpoints")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"checkpoints": summaries,
		"count":       len(summaries),
	})
}

// ResumeJobHandler handles POST /api/resume/{id}
func (h *CheckpointHandler) ResumeJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	job, err := h.service.Resume(jobID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}
