package models

import (
	"time"
)

// ProgressEvent is broadcast to websocket clients as a job advances
type ProgressEvent struct {
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Progress    string    `json:"progress"`
	UniqueCount int       `json:"unique_count"`
	Timestamp   time.Time `json:"timestamp"`
}
