// Package server exposes the archive and compression engines over HTTP
// for host integrations that poll rather than link.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"attic/internal/archive"
	"attic/internal/compress"
	"attic/internal/config"
	"attic/internal/history"
)

type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *archive.Engine
	manager *compress.Manager
	store   *history.Store // nil disables run recording

	// archiveMu serializes archive execution; the engine itself relies
	// on caller-side serialization.
	archiveMu sync.Mutex

	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
}

func New(cfg *config.Config, logger *slog.Logger, store *history.Store) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		engine:  archive.NewEngine(logger),
		manager: compress.NewManager(logger),
		store:   store,
		mux:     http.NewServeMux(),
	}

	if store != nil {
		s.manager.OnDone(s.recordCompression)
	}

	s.mux.HandleFunc("/archive/execute", s.handleArchiveExecute)
	s.mux.HandleFunc("/archive/status", s.handleArchiveStatus)
	s.mux.HandleFunc("/compress/execute", s.handleCompressExecute)
	s.mux.HandleFunc("/compress/progress", s.handleCompressProgress)
	s.mux.HandleFunc("/compress/cancel", s.handleCompressCancel)
	s.mux.HandleFunc("/compress/status", s.handleCompressStatus)

	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute, // archive execute is synchronous
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured bind address and serves until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.APIBind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down outside of context cancellation.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) recordCompression(job compress.Job) {
	rec := history.Record{
		ID:              job.ID,
		Kind:            history.KindCompression,
		StartedAt:       job.StartedAt,
		FinishedAt:      job.FinishedAt,
		Compressed:      job.Compressed,
		Errors:          job.Errors,
		OriginalBytes:   job.TotalOriginalBytes,
		CompressedBytes: job.TotalCompressedBytes,
		MetadataFull:    job.MetadataFull,
		MetadataPartial: job.MetadataPartial,
		MetadataNone:    job.MetadataNone,
		Cancelled:       job.Current < job.Total,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Record(ctx, rec); err != nil {
		s.logger.Warn("record compression run", slog.String("error", err.Error()))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": message})
}
