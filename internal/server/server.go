// Package server exposes the extractor over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/civicner/internal/logger"
	"github.com/ppiankov/civicner/internal/model"
)

// jsonOverhead is the allowance for the JSON envelope around the text
const jsonOverhead = 1024

// Extractor is the part of extract.Extractor the API serves
type Extractor interface {
	Extract(text string) model.EnrichmentResult
	ExtractLocationsOnly(text string) model.LocationSet
}

// Server serves extraction requests
type Server struct {
	ex  Extractor
	cfg model.ServerConfig
	log *slog.Logger
}

// New creates a server
func New(ex Extractor, cfg model.ServerConfig, log *slog.Logger) *Server {
	if cfg.MaxTextBytes <= 0 {
		cfg.MaxTextBytes = model.DefaultConfig().Server.MaxTextBytes
	}
	return &Server{ex: ex, cfg: cfg, log: logger.OrDiscard(log)}
}

type textRequest struct {
	Text *string `json:"text"`
}

type extractResponse struct {
	Locations []string              `json:"locations"`
	Persons   []model.PersonMention `json:"persons"`
}

type locationsResponse struct {
	Locations []string `json:"locations"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the routed API
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/locations", s.handleLocations)
	})
	return r
}

// Run serves on cfg.BindAddr until ctx ends, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.BindAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server starting", slog.String("addr", s.cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	text, ok := s.readText(w, r)
	if !ok {
		return
	}
	result := s.ex.Extract(text)
	writeJSON(w, http.StatusOK, extractResponse{
		Locations: result.Locations.Sorted(),
		Persons:   result.Mentions(),
	})
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	text, ok := s.readText(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, locationsResponse{
		Locations: s.ex.ExtractLocationsOnly(text).Sorted(),
	})
}

// readText decodes {"text": "..."} and writes the error response itself
func (s *Server) readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxTextBytes+jsonOverhead)

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return "", false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return "", false
	}
	if req.Text == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: `missing "text" field`})
		return "", false
	}
	if int64(len(*req.Text)) > s.cfg.MaxTextBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "text too large"})
		return "", false
	}
	return *req.Text, true
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
