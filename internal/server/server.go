// Package server runs the development server: it serves the latest bundle,
// its manifest and an index page, and tells connected browsers to reload
// after every rebuild.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/cjsbundle/internal/build"
	"github.com/conneroisu/cjsbundle/internal/config"
	"github.com/conneroisu/cjsbundle/internal/logging"
	"github.com/conneroisu/cjsbundle/internal/version"
)

// Message types sent over the reload channel.
const (
	MessageReload = "reload"
	MessageError  = "error"
)

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DevServer serves the most recent bundle of one entry file.
type DevServer struct {
	config  *config.Config
	entry   string
	bundler *build.Bundler
	hub     *Hub
	logger  logging.Logger

	httpServer  *http.Server
	serverMutex sync.RWMutex

	resultMutex sync.RWMutex
	result      *build.Result
	lastErr     error
	lastBuild   time.Time
	builds      int

	shutdownOnce sync.Once
}

// New creates a development server for entry.
func New(cfg *config.Config, entry string, bundler *build.Bundler, logger logging.Logger) *DevServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	return &DevServer{
		config:  cfg,
		entry:   entry,
		bundler: bundler,
		hub:     NewHub(logger),
		logger:  logger,
	}
}

// Addr returns the configured listen address.
func (s *DevServer) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// Result returns the last successful build, or nil.
func (s *DevServer) Result() *build.Result {
	s.resultMutex.RLock()
	defer s.resultMutex.RUnlock()
	return s.result
}

// LastError returns the error of the most recent build, or nil if it
// succeeded.
func (s *DevServer) LastError() error {
	s.resultMutex.RLock()
	defer s.resultMutex.RUnlock()
	return s.lastErr
}

// Rebuild bundles the entry again. On success the new bundle replaces the
// served one and browsers are told to reload; on failure the previous
// bundle keeps being served and browsers receive the error.
func (s *DevServer) Rebuild(ctx context.Context) error {
	result, err := s.bundler.Bundle(ctx, s.entry)

	s.resultMutex.Lock()
	s.lastBuild = time.Now()
	s.builds++
	s.lastErr = err
	if err == nil {
		s.result = result
	}
	s.resultMutex.Unlock()

	if err != nil {
		s.hub.Broadcast(UpdateMessage{
			Type:      MessageError,
			Content:   err.Error(),
			Timestamp: time.Now(),
		})
		return err
	}

	s.hub.Broadcast(UpdateMessage{
		Type:      MessageReload,
		Target:    result.EntryID,
		Timestamp: time.Now(),
	})
	return nil
}

// Handler returns the HTTP routes of the server.
func (s *DevServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.ServeWS(s.allowedOrigins))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/bundle.js", s.handleBundle)
	mux.HandleFunc("/manifest.json", s.handleManifest)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Start runs the reload hub and serves HTTP until ctx is cancelled or
// Shutdown is called. The caller is expected to have run an initial
// Rebuild.
func (s *DevServer) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Server shutdown failed")
		}
	}()

	s.logger.Info(ctx, "Development server listening", "addr", "http://"+s.Addr())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving %s: %w", s.Addr(), err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *DevServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.serverMutex.RLock()
		srv := s.httpServer
		s.serverMutex.RUnlock()

		if srv != nil {
			shutdownErr = srv.Shutdown(ctx)
		}
	})

	return shutdownErr
}

// allowedOrigins lists the hosts allowed to open the reload channel.
func (s *DevServer) allowedOrigins() []string {
	port := s.config.Server.Port
	return []string{
		s.Addr(),
		fmt.Sprintf("localhost:%d", port),
		fmt.Sprintf("127.0.0.1:%d", port),
	}
}

func (s *DevServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := pageData{
		Title:   "cjsbundle: " + s.entry,
		Entry:   s.entry,
		Version: version.GetShortVersion(),
	}
	if result := s.Result(); result != nil {
		data.Modules = result.Registry.IDs()
		data.HasBundle = true
	}
	if err := s.LastError(); err != nil {
		data.Error = err.Error()
	}

	indexHandler(data).ServeHTTP(w, r)
}

func (s *DevServer) handleBundle(w http.ResponseWriter, r *http.Request) {
	result := s.Result()
	if result == nil {
		http.Error(w, "no bundle has been built", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(result.Output)); err != nil {
		s.logger.Debug(r.Context(), "Bundle response aborted", "error", err.Error())
	}
}

func (s *DevServer) handleManifest(w http.ResponseWriter, r *http.Request) {
	result := s.Result()
	if result == nil {
		http.Error(w, "no bundle has been built", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := build.NewManifest(result).Encode(w, build.ManifestJSON); err != nil {
		s.logger.Error(r.Context(), err, "Failed to encode manifest")
	}
}

func (s *DevServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.resultMutex.RLock()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"entry":     s.entry,
		"builds":    s.builds,
		"clients":   s.hub.ClientCount(),
	}
	if !s.lastBuild.IsZero() {
		health["last_build"] = s.lastBuild.UTC()
	}
	if s.result != nil {
		health["modules"] = s.result.Registry.Count()
	}
	if s.lastErr != nil {
		health["status"] = "degraded"
		health["error"] = s.lastErr.Error()
	}
	s.resultMutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Error(r.Context(), err, "Failed to encode health response")
	}
}
