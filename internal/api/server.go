// Copyright 2026 The Steward Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api serves the stewardd control API over a Unix socket. The
// steward CLI is its only intended consumer.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steward-sh/steward/internal/health"
	"github.com/steward-sh/steward/internal/journal"
	"github.com/steward-sh/steward/internal/log"
	"github.com/steward-sh/steward/internal/supervisor"
	"github.com/steward-sh/steward/internal/version"
)

// Service is the slice of the supervisor the API exposes.
type Service interface {
	Status() supervisor.Status
	SmokeTest(ctx context.Context) (health.SmokeResult, error)
	Reload(ctx context.Context) error
}

// EventSource serves the journal tail. A nil *journal.Journal satisfies
// it with an empty history.
type EventSource interface {
	Tail(ctx context.Context, limit int) ([]journal.Event, error)
}

// Server is the control API server.
type Server struct {
	socketPath string
	svc        Service
	events     EventSource
	srv        *http.Server
	ln         net.Listener
	logger     *slog.Logger
}

// New builds the server for the given socket path. Listen must be
// called before Serve.
func New(socketPath string, svc Service, events EventSource, logger *slog.Logger) *Server {
	s := &Server{
		socketPath: socketPath,
		svc:        svc,
		events:     events,
		logger:     log.WithComponent(logger, "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("POST /v1/hooks/smoke_test", s.handleSmokeTest)
	mux.HandleFunc("POST /v1/reload", s.handleReload)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.srv = &http.Server{
		Handler:      log.HTTPMiddleware(s.logger, mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Listen binds the Unix socket. A stale socket file from a previous
// run is replaced.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on Unix socket: %w", err)
	}

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.ln = ln
	s.logger.Info("control API listening", "socket", s.socketPath)
	return nil
}

// Serve accepts connections until Shutdown. It returns nil on a clean
// shutdown.
func (s *Server) Serve() error {
	if s.ln == nil {
		return errors.New("server is not listening, call Listen first")
	}
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if rmErr := os.Remove(s.socketPath); rmErr != nil && !os.IsNotExist(rmErr) {
		s.logger.Error("failed to remove socket file", log.Error(rmErr))
	}
	return err
}

func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, req *http.Request) {
	limit := journal.DefaultTailLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	events, err := s.events.Tail(req.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []journal.Event{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: events})
}

func (s *Server) handleSmokeTest(w http.ResponseWriter, req *http.Request) {
	result, err := s.svc.SmokeTest(req.Context())
	switch {
	case errors.Is(err, supervisor.ErrNoHook):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, supervisor.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SmokeTestResponse{Code: result.Code, Passed: result.Ok()})
}

func (s *Server) handleReload(w http.ResponseWriter, req *http.Request) {
	if err := s.svc.Reload(req.Context()); err != nil {
		if errors.Is(err, supervisor.ErrStopped) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{
		Status:      "reloaded",
		Incarnation: s.svc.Status().Incarnation,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	})
}

// handleHealthz reports daemon liveness, not service health; the
// service's own health lives in /v1/status.
func (s *Server) handleHealthz(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
