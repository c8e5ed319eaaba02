package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

func dialHandler(t *testing.T, h *WebSocketHandler) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "websocket dial failed")
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, models.ProgressEvent) {
	t.Helper()

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))

	raw, err := json.Marshal(msg.Payload)
	require.NoError(t, err)

	var event models.ProgressEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	return msg.Type, event
}

func TestWebSocketHelloAndProgress(t *testing.T) {
	h := NewWebSocketHandler(&common.WSConfig{}, arbor.NewLogger())
	conn := dialHandler(t, h)

	var hello WSMessage
	require.NoError(t, conn.ReadJSON(&hello), "failed to read hello")
	require.Equal(t, "hello", hello.Type)

	h.Publish(models.ProgressEvent{
		JobID:     "job_test",
		Status:    models.JobStatusCompleted,
		Progress:  "done",
		Timestamp: time.Now(),
	})

	msgType, event := readEvent(t, conn)
	require.Equal(t, "job_progress", msgType)
	require.Equal(t, "job_test", event.JobID)
	require.Equal(t, models.JobStatusCompleted, event.Status)
}

func TestProgressThrottleDropsBursts(t *testing.T) {
	h := NewWebSocketHandler(&common.WSConfig{ProgressInterval: "1h"}, arbor.NewLogger())
	conn := dialHandler(t, h)

	var hello WSMessage
	require.NoError(t, conn.ReadJSON(&hello), "failed to read hello")

	// First running tick passes, the burst behind it is throttled,
	// the terminal event always goes out
	for i := 0; i < 5; i++ {
		h.Publish(models.ProgressEvent{
			JobID:     "job_burst",
			Status:    models.JobStatusRunning,
			Progress:  "tick",
			Timestamp: time.Now(),
		})
	}
	h.Publish(models.ProgressEvent{
		JobID:     "job_burst",
		Status:    models.JobStatusCompleted,
		Progress:  "done",
		Timestamp: time.Now(),
	})

	_, first := readEvent(t, conn)
	require.Equal(t, models.JobStatusRunning, first.Status)

	_, second := readEvent(t, conn)
	require.Equal(t, models.JobStatusCompleted, second.Status)
}
