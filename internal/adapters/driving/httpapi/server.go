// Package httpapi exposes the ingestion and tutoring operations over a JSON
// HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driving"
	"github.com/brightpath-labs/tutorcore/internal/logger"
)

// Default server timeouts.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Server serves the tutoring API.
type Server struct {
	ingestor driving.Ingestor
	tutor    driving.Tutor
	addr     string
}

// NewServer creates a new HTTP server bound to addr.
func NewServer(ingestor driving.Ingestor, tutor driving.Tutor, addr string) *Server {
	return &Server{
		ingestor: ingestor,
		tutor:    tutor,
		addr:     addr,
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/api/ask", s.handleAsk)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/health", s.handleHealth)

	server := &http.Server{
		Addr:         s.addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	logger.Info("HTTP server listening on %s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleIngest accepts an extracted document and runs ingestion.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var doc domain.ExtractedDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid document payload")
		return
	}

	version, err := s.ingestor.Ingest(r.Context(), doc)
	if err != nil {
		writeError(w, ingestStatusCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": version.DocumentID,
		"version":     version.Number,
		"units":       len(version.Units),
	})
}

// askRequest is the /api/ask request payload.
type askRequest struct {
	StudentID string `json:"student_id"`
	ChapterID string `json:"chapter_id"`
	Board     string `json:"board,omitempty"`
	Grade     string `json:"grade,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Question  string `json:"question"`
	Language  string `json:"language,omitempty"`
}

// handleAsk answers a student question.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	answer, err := s.tutor.AskQuestion(r.Context(), driving.AskRequest{
		StudentID: req.StudentID,
		ChapterID: req.ChapterID,
		Scope: domain.ScopeFilter{
			Board:   req.Board,
			Grade:   req.Grade,
			Subject: req.Subject,
		},
		Question: req.Question,
		Language: req.Language,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// resetRequest is the /api/reset request payload.
type resetRequest struct {
	StudentID string `json:"student_id"`
	ChapterID string `json:"chapter_id"`
}

// handleReset clears a conversation session.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.StudentID == "" || req.ChapterID == "" {
		writeError(w, http.StatusBadRequest, "student_id and chapter_id are required")
		return
	}

	if err := s.tutor.ResetConversation(r.Context(), req.StudentID, req.ChapterID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleStatus reports the ingestion state of a document.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	documentID := r.URL.Query().Get("document")
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "document query parameter is required")
		return
	}

	status, err := s.ingestor.Status(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ingestStatusCode maps ingestion failures to HTTP status codes.
func ingestStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyDocument),
		errors.Is(err, domain.ErrNoUsableUnits):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIngestInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
