package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/impactgate/internal/store"
	"github.com/elonfeng/impactgate/pkg/impact"
	"github.com/elonfeng/impactgate/pkg/ingest"
)

// Server provides the HTTP API.
type Server struct {
	store    store.Store
	engine   *impact.Engine
	monitor  *impact.Monitor
	reporter *impact.Reporter
	sources  []ingest.Source
	topics   map[string][]string
	port     int
}

// New creates a new HTTP server.
func New(s store.Store, engine *impact.Engine, sources []ingest.Source, topics map[string][]string, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:    s,
		engine:   engine,
		monitor:  impact.NewMonitor(s),
		reporter: impact.NewReporter(s),
		sources:  sources,
		topics:   topics,
		port:     port,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/clusters", s.handleClusters)
	mux.HandleFunc("/api/v1/clusters/", s.handleCluster)
	mux.HandleFunc("/api/v1/rescore", s.handleRescore)
	mux.HandleFunc("/api/v1/guardrail", s.handleGuardrail)
	mux.HandleFunc("/api/v1/report", s.handleReport)
	mux.HandleFunc("/api/v1/ingest", s.handleIngest)

	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("impactgate server listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := store.ListOpts{ActiveOnly: true, Limit: 100}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			opts.Since = t
		}
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if r.URL.Query().Get("assessed") == "true" {
		opts.AssessedOnly = true
	}

	clusters, err := s.store.ListClusters(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  clusters,
		"count": len(clusters),
	})
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/clusters/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing cluster id"})
		return
	}

	c, err := s.store.GetCluster(r.Context(), id)
	if errors.Is(err, impact.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cluster not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleRescore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	outcomes, err := s.engine.Rescore(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	labeled := 0
	newly := 0
	for _, o := range outcomes {
		if o.Assessment.HighImpact {
			labeled++
		}
		if o.NewlyLabeled {
			newly++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scored":        len(outcomes),
		"labeled":       labeled,
		"newly_labeled": newly,
	})
}

func (s *Server) handleGuardrail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var windows []int
	if raw := r.URL.Query().Get("windows"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && n > 0 {
				windows = append(windows, n)
			}
		}
	}

	rates, err := s.monitor.RateWindows(r.Context(), windows)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": rates})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	eligibleOnly := r.URL.Query().Get("eligible_only") != "false"

	passes, nearMisses, err := s.reporter.DebugReport(r.Context(), limit, eligibleOnly)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"passes":      passes,
		"near_misses": nearMisses,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	items, clusters, err := ingest.Run(r.Context(), s.sources, s.store, s.topics)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":    items,
		"clusters": clusters,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
