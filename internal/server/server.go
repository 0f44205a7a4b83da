// Package server exposes the ingestion, search, and chat services over
// HTTP. Ingestion and chat responses stream: progress lines and answer
// tokens are flushed to the client as they are produced.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codescope/codescope/internal/ingest"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8000"

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Ingestor starts ingestion runs. *ingest.Runner satisfies it.
type Ingestor interface {
	Run(ctx context.Context, repoPath string) (<-chan ingest.Progress, error)
}

// Asker streams chat answers. *chat.Service satisfies it.
type Asker interface {
	Ask(ctx context.Context, question string, onDelta func(string) error) error
}

// Invalidator drops cached search state after the corpus changes.
// *search.Engine satisfies it.
type Invalidator interface {
	Invalidate()
}

// Server is the HTTP API server.
type Server struct {
	addr     string
	ingestor Ingestor
	asker    Asker
	search   Invalidator
	handler  http.Handler
}

// New creates a Server wiring the API routes to the given services.
func New(addr string, ingestor Ingestor, asker Asker, search Invalidator) (*Server, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if asker == nil {
		return nil, fmt.Errorf("asker is required")
	}
	if search == nil {
		return nil, fmt.Errorf("search is required")
	}
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{
		addr:     addr,
		ingestor: ingestor,
		asker:    asker,
		search:   search,
	}
	s.handler = requestLogger(cors(s.routes()))
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/files/list", s.handleFilesList)
	mux.HandleFunc("POST /api/files/content", s.handleFilesContent)
	return mux
}

// Handler returns the server's HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe starts the server and blocks until the context is
// cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		// No write timeout: ingest and chat responses stream for as long
		// as the underlying run or generation takes.
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("http_server_listening", slog.String("addr", s.addr))

	err := httpSrv.ListenAndServe()
	if stderrors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http_response_encode_failed", slog.String("error", err.Error()))
	}
}

// writeError writes a JSON error body in the {"detail": ...} shape.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// decodeJSON decodes the request body into v, rejecting unparseable
// payloads.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
