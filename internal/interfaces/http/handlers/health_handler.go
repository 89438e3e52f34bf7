package handlers

import (
	"net/http"
	"time"

	"brain2-canvas/pkg/api"
)

const StatusHealthy = "healthy"

// SessionCounter reports how many diagrams are open.
type SessionCounter interface {
	Len() int
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	sessions SessionCounter
	version  string
	started  time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(sessions SessionCounter, version string) *HealthHandler {
	return &HealthHandler{sessions: sessions, version: version, started: time.Now()}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime"`
	Sessions  int       `json:"sessions"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}
	api.JSON(w, http.StatusOK, resp)
}
