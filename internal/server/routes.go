package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Jobs
	mux.HandleFunc("/api/jobs/batch", s.app.JobHandler.CreateBatchHandler)
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // Handles /api/jobs/{id} and subpaths

	// API routes - Checkpoints
	mux.HandleFunc("/api/checkpoints", s.app.CheckpointHandler.ListCheckpointsHandler)
	mux.HandleFunc("/api/resume/", s.handleResumeRoute)

	// API routes - Results
	mux.HandleFunc("/api/preview/", s.handlePreviewRoute)
	mux.HandleFunc("/download/", s.handleDownloadRoute)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.StatusHandler.NotFoundHandler)

	return mux
}

// handleJobsRoute routes /api/jobs requests (list and create)
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.JobHandler.ListJobsHandler(w, r)
	case "POST":
		s.app.JobHandler.CreateJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes routes /api/jobs/{id} requests and subpaths
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	suffix := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if suffix == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// POST /api/jobs/{id}/cancel
	if jobID, ok := strings.CutSuffix(suffix, "/cancel"); ok {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.JobHandler.CancelJobHandler(w, r, jobID)
		return
	}

	switch r.Method {
	case "GET":
		s.app.JobHandler.GetJobHandler(w, r, suffix)
	case "DELETE":
		s.app.JobHandler.RemoveJobHandler(w, r, suffix)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleResumeRoute routes POST /api/resume/{id}
func (s *Server) handleResumeRoute(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/resume/")
	if jobID == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	s.app.CheckpointHandler.ResumeJobHandler(w, r, jobID)
}

// handlePreviewRoute routes GET /api/preview/{id}
func (s *Server) handlePreviewRoute(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/preview/")
	if jobID == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	s.app.ResultsHandler.PreviewHandler(w, r, jobID)
}

// handleDownloadRoute routes GET /download/{filename}
func (s *Server) handleDownloadRoute(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimPrefix(r.URL.Path, "/download/")
	if filename == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	s.app.ResultsHandler.DownloadHandler(w, r, filename)
}
