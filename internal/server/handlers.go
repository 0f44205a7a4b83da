package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/ingest"
	"github.com/codescope/codescope/pkg/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "codescope",
		"version": version.Short(),
	})
}

type ingestRequest struct {
	RepoPath string `json:"repo_path"`
}

// ingestSummary is the final JSON line of an ingest response.
type ingestSummary struct {
	RunID    string `json:"run_id"`
	Files    int    `json:"files"`
	Skipped  int    `json:"skipped"`
	Chunks   int    `json:"chunks"`
	Warnings int    `json:"warnings"`
	Duration string `json:"duration"`
}

// handleIngest runs one ingestion cycle, streaming progress as plain
// text lines and closing with a JSON summary line. Failures before the
// stream starts map to status codes; failures mid-run arrive in-band.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RepoPath) == "" {
		writeError(w, http.StatusBadRequest, "repo_path is required")
		return
	}

	events, err := s.ingestor.Run(r.Context(), req.RepoPath)
	if err != nil {
		switch {
		case errors.CodeIs(err, errors.ErrCodePathNotFound):
			writeError(w, http.StatusNotFound, "Path not found")
		case errors.CodeIs(err, errors.ErrCodeIngestLocked):
			writeError(w, http.StatusConflict, "an ingestion run is already in progress")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	var last ingest.Progress
	for p := range events {
		last = p
		fmt.Fprintln(w, p.Message)
		if flusher != nil {
			flusher.Flush()
		}
	}

	if last.Err != nil || last.Summary == nil {
		return
	}

	// The corpus changed; cached search state is stale.
	s.search.Invalidate()

	line, err := json.Marshal(ingestSummary{
		RunID:    last.Summary.RunID,
		Files:    last.Summary.Files,
		Skipped:  last.Summary.Skipped,
		Chunks:   last.Summary.Chunks,
		Warnings: last.Summary.Warnings,
		Duration: last.Summary.Duration.String(),
	})
	if err != nil {
		slog.Warn("ingest_summary_encode_failed", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintln(w, string(line))
	if flusher != nil {
		flusher.Flush()
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

// handleChat streams the answer, citations preamble first. The status
// is committed on the first delta, so errors before any output still
// map to a JSON error response.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, _ := w.(http.Flusher)
	wrote := false

	err := s.asker.Ask(r.Context(), req.Message, func(delta string) error {
		if !wrote {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			wrote = true
		}
		if _, err := io.WriteString(w, delta); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		if !wrote {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		slog.Warn("chat_stream_aborted", slog.String("error", err.Error()))
	}
}
