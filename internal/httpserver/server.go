// Package httpserver exposes the ingestion boundary and the review API.
package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/sparklabs/spark/internal/config"
	"github.com/sparklabs/spark/internal/domain"
)

const defaultListLimit = 100

// Server serves the candidate ingestion endpoint, the review dashboard API,
// and a websocket stream of record changes.
type Server struct {
	store      domain.RecordStore
	score      domain.ScoreConfig
	threshold  int
	logger     *slog.Logger
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer creates the HTTP server. The score config and threshold come
// from the same Config the orchestrator reads, keeping the synchronous gate
// here in lockstep with the asynchronous one.
func NewServer(cfg *config.Config, store domain.RecordStore, logger *slog.Logger) *Server {
	s := &Server{
		store:     store,
		score:     cfg.ScoreConfig(),
		threshold: cfg.Score.Threshold,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(withLogging(logger))
	r.Get("/health", s.handleHealth)
	r.Route("/api/replies", func(r chi.Router) {
		r.Post("/", s.handleIngest)
		r.Get("/", s.handleList)
		r.Get("/ws", s.handleWatch)
		r.Patch("/{id}", s.handleMarkPosted)
		r.Delete("/{id}", s.handleDelete)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // the websocket stream is long-lived
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ingestRequest is the candidate payload submitted by the scanner or the
// single-item extension path. Field names match the on-wire format the
// browser side has always sent.
type ingestRequest struct {
	OriginalTweetURL string `json:"originalTweetUrl"`
	OriginalText     string `json:"originalText"`
	AuthorName       string `json:"authorName"`
	QuotedText       string `json:"quotedText"`
	TweetCreatedAt   string `json:"tweetCreatedAt"`
	LikeCount        int    `json:"likeCount"`
	RepostCount      int    `json:"repostCount"`
	ReplyCount       int    `json:"replyCount"`
	ViewCount        int    `json:"viewCount"`
}

// handleIngest accepts one candidate, computes its score and gate
// eligibility synchronously so the dashboard gets instant feedback, resets
// any prior record with the same permalink, and inserts the new one. Records
// inserted pending are picked up by the generation watcher through the store
// subscription.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed JSON body")
		return
	}
	if req.OriginalTweetURL == "" || req.OriginalText == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "originalTweetUrl and originalText are required")
		return
	}

	sourceCreatedAt, err := time.Parse(time.RFC3339, req.TweetCreatedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "tweetCreatedAt must be RFC 3339")
		return
	}

	author := req.AuthorName
	if author == "" {
		author = "Unknown"
	}

	metrics := domain.EngagementMetrics{
		LikeCount:   req.LikeCount,
		RepostCount: req.RepostCount,
		ReplyCount:  req.ReplyCount,
		ViewCount:   req.ViewCount,
	}
	score := s.score.Score(metrics, sourceCreatedAt, time.Now())

	// Re-ingesting a permalink is an explicit reset: the old record is
	// removed so the pipeline starts over on fresh metrics.
	deleted, err := s.store.DeleteByPermalink(r.Context(), req.OriginalTweetURL)
	if err != nil {
		s.logger.Error("permalink reset failed", "permalink", req.OriginalTweetURL, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to reset prior record")
		return
	}
	if deleted > 0 {
		s.logger.Info("replaced prior record for permalink", "permalink", req.OriginalTweetURL)
	}

	rec := &domain.ReplyRecord{
		PermalinkURL:    req.OriginalTweetURL,
		AuthorName:      author,
		BodyText:        req.OriginalText,
		QuotedText:      req.QuotedText,
		Metrics:         metrics,
		Score:           score,
		Status:          domain.StatusPending,
		SourceCreatedAt: sourceCreatedAt,
	}
	if err := s.store.Create(r.Context(), rec); err != nil {
		s.logger.Error("record creation failed", "permalink", req.OriginalTweetURL, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to create record")
		return
	}

	s.logger.Info("candidate ingested",
		"id", rec.ID,
		"permalink", rec.PermalinkURL,
		"score", rec.Score,
		"gate_eligible", score >= s.threshold,
	)

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     rec.ID,
		"score":  rec.Score,
		"status": rec.Status,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context(), defaultListLimit)
	if err != nil {
		s.logger.Error("record listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list records")
		return
	}
	if records == nil {
		records = []domain.ReplyRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleMarkPosted transitions a generated record to posted once the user
// has dispatched a suggestion.
func (s *Server) handleMarkPosted(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.MarkPosted(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", "no such record")
	case errors.Is(err, domain.ErrNotPending):
		writeError(w, http.StatusConflict, "Conflict", "record is not in generated status")
	case err != nil:
		s.logger.Error("mark posted failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to update record")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.StatusPosted)})
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", "no such record")
	case err != nil:
		s.logger.Error("record deletion failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to delete record")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleWatch upgrades to a websocket and streams record change events to
// the dashboard, replacing the polling it would otherwise need.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.store.Subscribe(64)
	defer cancel()

	// Drain client frames so close is noticed promptly.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write failed, dropping client", "error", err)
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack passes through to the underlying writer so the websocket upgrade
// still works behind the logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}
