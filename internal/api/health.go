package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse reports component health and connection counts.
type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Redis       string         `json:"redis"`
	Connections map[string]int `json:"connections"`
}

// healthCheck answers 503 when either backing store is unreachable.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Database:  "healthy",
		Redis:     "healthy",
	}

	if err := s.deps.Database.HealthCheck(ctx); err != nil {
		response.Status = "unhealthy"
		response.Database = "error: " + err.Error()
	}
	if err := s.deps.Store.HealthCheck(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "error: " + err.Error()
	}
	if s.deps.Stats != nil {
		response.Connections = s.deps.Stats.GetStats()
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
