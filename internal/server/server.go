// Package server provides the HTTP server for the hypnosonore gesture engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/hypnosonore/internal/app"
	"github.com/ayusman/hypnosonore/internal/log"
	"github.com/ayusman/hypnosonore/internal/server/api"
	"github.com/ayusman/hypnosonore/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	SamplesDir string
	App        *app.App
	Store      *store.Store
}

// Server is the HTTP front end of a running App.
type Server struct {
	config    Config
	mux       *http.ServeMux
	start     time.Time
	snapshots *SnapshotHandler

	mu     sync.Mutex
	http   *http.Server
	cancel context.CancelFunc
}

// New creates a Server with the given configuration. Routes whose
// collaborators are nil are not registered.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if a := s.config.App; a != nil {
		s.mux.HandleFunc("/api/state", s.handleState)
		s.mux.HandleFunc("/api/detection", s.handleDetection)

		patterns := api.NewPatternHandler(a)
		s.mux.Handle("/api/patterns", patterns)
		s.mux.Handle("/api/patterns/", patterns)

		players := api.NewPlayerHandler(a.Orchestra(), a.RTC(), a.SaveOrchestra)
		s.mux.Handle("/api/players", players)
		s.mux.Handle("/api/players/", players)
		s.mux.Handle("/api/rtc/offer", players)

		s.snapshots = NewSnapshotHandler(a)
		s.mux.Handle("/api/ws", s.snapshots)
		s.mux.Handle("/api/stream", NewStreamHandler(a))
		s.mux.Handle("/debug/metrics", NewMetricsChartHandler(a))
	}

	if st := s.config.Store; st != nil {
		var reload api.BindingReloader
		if s.config.App != nil {
			reload = s.config.App
		}
		bindings := api.NewBindingHandler(st, reload)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)

		settings := api.NewSettingsHandler(st)
		s.mux.Handle("/api/settings/", settings)
	}

	if s.config.SamplesDir != "" {
		samples := api.NewSamplesHandler(s.config.SamplesDir)
		s.mux.Handle("/api/samples", samples)
		s.mux.Handle("/api/samples/", samples)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if a := s.config.App; a != nil {
		resp["session"] = a.Session()
		resp["source"] = a.Source()
		resp["enabled"] = a.IsEnabled()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleState returns the latest snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.App.Latest())
}

type detectionRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleDetection reads or toggles the detection switch.
func (s *Server) handleDetection(w http.ResponseWriter, r *http.Request) {
	a := s.config.App
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req detectionRequest
		if err := decodeJSON(w, r, &req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
			return
		}
		a.SetEnabled(r.Context(), *req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": a.IsEnabled()})
}

// ListenAndServe serves on addr until Shutdown is called. It returns nil
// after a clean shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.cancel = cancel
	s.http = srv
	s.mu.Unlock()

	if s.snapshots != nil {
		go s.snapshots.Run(ctx)
	}
	log.Component("server").Info("listening", "addr", addr)

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for active requests
// until ctx ends. Websocket clients are disconnected.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, srv := s.cancel, s.http
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Component("server").Debug("encoding response", log.Err(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v)
}
