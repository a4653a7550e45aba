package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/agentstation/shelf/internal/server/response"
)

// HandleHealth handles GET /health and GET {prefix}/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "healthy",
		"service": "shelf-api",
		"version": "v1",
	})
}

// HandleReady handles GET {prefix}/ready. The service is ready once the
// override store can be read.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	entries := h.client.Overrides().List(r.Context())

	response.OK(w, map[string]any{
		"status":            "ready",
		"overrides":         len(entries),
		"websocket_clients": h.wsHub.ClientCount(),
		"sse_clients":       h.sseBroadcaster.ClientCount(),
	})
}

// HandleStats handles GET {prefix}/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response.OK(w, map[string]any{
		"runtime": map[string]any{
			"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
			"goroutines":     runtime.NumGoroutine(),
			"memory_mb":      mem.Alloc / 1024 / 1024,
		},
		"events": map[string]any{
			"published_total": h.broker.EventsPublished(),
			"dropped_total":   h.broker.EventsDropped(),
			"queue_depth":     h.broker.QueueDepth(),
		},
		"realtime": map[string]any{
			"websocket_clients": h.wsHub.ClientCount(),
			"sse_clients":       h.sseBroadcaster.ClientCount(),
		},
	})
}
