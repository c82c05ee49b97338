// Copyright (c) 2026 John Earle
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

// Package httpapi exposes the operational HTTP surface: an on-demand sync
// trigger and a health check. The UI and agent workflows live elsewhere;
// this server only drives and observes ingestion.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/traveldesk/mailroom/internal/syncer"
)

// Pinger reports backend liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves sync and health requests.
type Handler struct {
	syncer  *syncer.Syncer
	pingers map[string]Pinger
}

// NewHandler creates a handler. The pingers map names each backend the
// health check probes (e.g. "postgres", "redis").
func NewHandler(s *syncer.Syncer, pingers map[string]Pinger) *Handler {
	return &Handler{
		syncer:  s,
		pingers: pingers,
	}
}

// ServeSync handles POST /sync/{inboxID}: runs one sync pass for the
// inbox and returns the aggregate result. Batch-level precondition
// failures map to 4xx; anything else is a 502 from the provider side.
func (h *Handler) ServeSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	inboxID := strings.TrimPrefix(r.URL.Path, "/sync/")
	if inboxID == "" || strings.Contains(inboxID, "/") {
		http.Error(w, "missing inbox id", http.StatusBadRequest)
		return
	}

	result, err := h.syncer.SyncInbox(r.Context(), inboxID)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, syncer.ErrInboxNotFound):
			status = http.StatusNotFound
		case errors.Is(err, syncer.ErrInboxInactive), errors.Is(err, syncer.ErrInvalidConnection):
			status = http.StatusConflict
		}
		slog.Error("sync request failed", "inbox", inboxID, "error", err)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ServeHealth handles GET /health: probes every registered backend.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	for name, p := range h.pingers {
		if err := p.Ping(r.Context()); err != nil {
			http.Error(w, fmt.Sprintf("%s unhealthy", name), http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// Serve starts the HTTP server on the given port. It binds the port
// immediately and signals readiness via the returned channel before
// accepting connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/", handler.ServeSync)
	mux.HandleFunc("/health", handler.ServeHealth)

	server := &http.Server{
		Handler: mux,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("http server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("http server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	return ready, nil
}
