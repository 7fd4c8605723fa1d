package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/ignite/adx-intelligence/internal/analytics"
)

// handleOptimizationReport serves the full funnel/waste report for a
// trailing window. Responses are cached in Redis; ?refresh=1 bypasses the
// cache.
func (s *Server) handleOptimizationReport(w http.ResponseWriter, r *http.Request) {
	days := analytics.ClampWindow(queryInt(r, "days", 7))
	refresh := r.URL.Query().Get("refresh") == "1"
	key := fmt.Sprintf("report:optimization:%d", days)

	if !refresh {
		if data, ok := s.cache.Get(r.Context(), key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			w.Write(data)
			return
		}
	}

	report, err := s.engine.GetOptimizationReport(r.Context(), days)
	if err != nil {
		log.Printf("[api] optimization report: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to build optimization report")
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		log.Printf("[api] marshal optimization report: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to encode report")
		return
	}
	s.cache.Set(r.Context(), key, data)

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleUploadTracking(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	summaries, err := s.tracker.GetUploadTracking(r.Context(), days)
	if err != nil {
		log.Printf("[api] upload tracking: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load upload tracking")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":      days,
		"summaries": summaries,
	})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
