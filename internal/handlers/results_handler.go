package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/services/jobs"
	"github.com/ternarybob/colligo/internal/services/output"
)

const previewRows = 10

// ResultsHandler serves result artifacts for finished jobs
type ResultsHandler struct {
	store        *jobs.Store
	materializer *output.CSVMaterializer
	logger       arbor.ILogger
}

// NewResultsHandler creates a new ResultsHandler
func NewResultsHandler(store *jobs.Store, materializer *output.CSVMaterializer, logger arbor.ILogger) *ResultsHandler {
	return &ResultsHandler{
		store:        store,
		materializer: materializer,
		logger:       logger,
	}
}

// PreviewHandler handles GET /api/preview/{id}, returning the first rows
// of a completed job's artifact.
func (h *ResultsHandler) PreviewHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	job, ok := h.store.Get(jobID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Job not found: "+jobID)
		return
	}
	if job.ResultFile == "" {
		WriteError(w, http.StatusConflict, "Job has no result artifact yet")
		return
	}

	records, err := h.materializer.ReadRecords(job.ResultFile)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read result artifact")
		WriteError(w, http.StatusInternalServerError, "Failed to read result artifact")
		return
	}

	total := len(records)
	if len(records) > previewRows {
		records = records[:previewRows]
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  jobID,
		"file":    job.ResultFile,
		"total":   total,
		"preview": records,
	})
}

// DownloadHandler handles GET /download/{filename}
func (h *ResultsHandler) DownloadHandler(w http.ResponseWriter, r *http.Request, filename string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	path, err := h.materializer.Path(filename)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	http.ServeFile(w, r, path)
}
