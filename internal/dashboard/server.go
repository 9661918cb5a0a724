// Package dashboard serves a localhost-only status API for the active run:
// state, buffered logs, a live websocket log stream, and prometheus metrics.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devlocal-io/devserve/internal/metrics"
	"github.com/devlocal-io/devserve/internal/orchestrator"
)

const (
	readHeaderTimeout = 5 * time.Second
	streamInterval    = 500 * time.Millisecond
)

// Status is the JSON shape of /api/status.
type Status struct {
	Project   string `json:"project"`
	Framework string `json:"framework"`
	State     string `json:"state"`
	Port      int    `json:"port,omitempty"`
	PID       int    `json:"pid,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Server is the dashboard HTTP server. One instance serves one orchestrator.
type Server struct {
	orch   *orchestrator.Orchestrator
	server *http.Server
}

// New creates a dashboard server bound to the orchestrator.
func New(orch *orchestrator.Orchestrator) *Server {
	s := &Server{orch: orch}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/logs/ws", s.handleLogStream)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Start begins serving on the given port, localhost only. Non-blocking.
func (s *Server) Start(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return fmt.Errorf("failed to bind dashboard port %d: %w", port, err)
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Warn("dashboard server stopped", slog.String("error", err.Error()))
		}
	}()

	slog.Info("dashboard listening", slog.String("url", fmt.Sprintf("http://localhost:%d", port)))
	return nil
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleStatus returns the active run's state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := Status{State: s.orch.State().String()}

	if handle := s.orch.Handle(); handle != nil {
		project := handle.Project()
		status.Project = project.Name
		status.Framework = project.Framework
		status.Port = handle.Port()
		status.PID = handle.PID()
		status.URL = fmt.Sprintf("http://localhost:%d", handle.Port())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleLogs returns the buffered output lines of the active run.
func (s *Server) handleLogs(w http.ResponseWriter, _ *http.Request) {
	handle := s.orch.Handle()
	if handle == nil {
		http.Error(w, "no active run", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(handle.Output().Entries()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleLogStream pushes new log entries over a websocket. Clients receive
// every buffered line on connect, then incremental batches.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	handle := s.orch.Handle()
	if handle == nil {
		http.Error(w, "no active run", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The server binds to localhost only; browser pages served from
		// other local ports still need an explicit allowance.
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		slog.Debug("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	buffer := handle.Output()
	cursor := 0

	for {
		entries, next := buffer.Since(cursor)
		if len(entries) > 0 {
			if err := wsjson.Write(ctx, conn, entries); err != nil {
				return
			}
		}
		cursor = next

		select {
		case <-ctx.Done():
			return
		case <-handle.Done():
			// Flush whatever arrived between the last read and exit.
			if entries, _ := buffer.Since(cursor); len(entries) > 0 {
				_ = wsjson.Write(ctx, conn, entries)
			}
			return
		case <-time.After(streamInterval):
		}
	}
}
