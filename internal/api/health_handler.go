package api

import (
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK

	resp := struct {
		Status  string            `json:"status"`
		Checks  map[string]string `json:"checks"`
		Watcher *watcherStatus    `json:"watcher,omitempty"`
	}{
		Status: "ok",
		Checks: map[string]string{},
	}

	if err := s.db.PingContext(ctx); err != nil {
		resp.Checks["database"] = err.Error()
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["database"] = "ok"
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			resp.Checks["redis"] = err.Error()
			resp.Status = "degraded"
		} else {
			resp.Checks["redis"] = "ok"
		}
	}

	if s.watcher != nil {
		ws := &watcherStatus{
			Healthy: s.watcher.IsHealthy(),
			Running: s.watcher.IsRunning(),
		}
		if t := s.watcher.LastRunAt(); !t.IsZero() {
			ws.LastRunAt = t.Format(time.RFC3339)
		}
		resp.Watcher = ws
	}

	writeJSON(w, status, resp)
}

type watcherStatus struct {
	Healthy   bool   `json:"healthy"`
	Running   bool   `json:"running"`
	LastRunAt string `json:"last_run_at,omitempty"`
}
