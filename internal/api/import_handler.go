package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/ignite/adx-intelligence/internal/domain"
	"github.com/ignite/adx-intelligence/internal/ingest"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleImport accepts one CSV file, either as a multipart "file" field or
// as the raw request body. An optional ?kind= query param skips header
// classification.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kind := domain.ParseReportKind(r.URL.Query().Get("kind"))

	var src io.Reader
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload.csv"
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
			return
		}
		defer file.Close()
		src = file
		if header.Filename != "" {
			name = header.Filename
		}
	} else {
		src = r.Body
	}

	batch, err := s.importer.Import(r.Context(), src, kind, name)
	if err != nil {
		var missing *ingest.MissingColumnsError
		if errors.As(err, &missing) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":           missing.Error(),
				"closest_kind":    missing.ClosestKind,
				"missing_columns": missing.Missing,
			})
			return
		}
		if batch != nil {
			// Storage died mid-stream: committed chunks stand, the batch
			// records how far it got, and re-running the file is safe.
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error": err.Error(),
				"batch": batch,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	batches, err := s.store.Batches.ListRecent(r.Context(), limit)
	if err != nil {
		log.Printf("[api] list imports: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list imports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imports": batches,
		"count":   len(batches),
	})
}

func (s *Server) handleIngestTrigger(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		writeError(w, http.StatusServiceUnavailable, "bucket ingest not configured")
		return
	}
	s.watcher.ManualTrigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}
