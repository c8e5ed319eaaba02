package interfaces

import (
	"github.com/ternarybob/colligo/internal/models"
)

// EventPublisher delivers job progress events to connected clients.
// Publishing is best-effort; slow or absent consumers never block a job.
type EventPublisher interface {
	Publish(event models.ProgressEvent)
}

// NopPublisher discards events, used when no websocket hub is wired
type NopPublisher struct{}

func (NopPublisher) Publish(models.ProgressEvent) {}
