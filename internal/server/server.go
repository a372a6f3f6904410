// SPDX-License-Identifier: MIT

// Package server exposes the pipeline over HTTP: health, Prometheus metrics,
// the latest snapshot as JSON and a WebSocket stream of snapshots.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"spectrallog/internal/log"
	"spectrallog/internal/transport"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StateFunc reports the current cycle state for the health endpoint.
type StateFunc func() string

// Server is the HTTP front of the pipeline.
type Server struct {
	srv    *http.Server
	latest *transport.Latest
	state  StateFunc
}

// New builds the router. stream may be nil, in which case /ws is not served.
func New(addr string, latest *transport.Latest, stream http.Handler, state StateFunc) *Server {
	s := &Server{latest: latest, state: state}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.health)
	r.Get("/snapshot", s.snapshot)
	r.Handle("/metrics", promhttp.Handler())
	if stream != nil {
		r.Handle("/ws", stream)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves in the background. Listen errors other than a clean shutdown
// are logged.
func (s *Server) Start() {
	go func() {
		log.Infof("Server: listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Server: %v", err)
		}
	}()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	state := "unknown"
	if s.state != nil {
		state = s.state()
	}
	status := http.StatusOK
	if state == "failed" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": "ok", "state": state})
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest.Snapshot()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("Server: failed to write response: %v", err)
	}
}

// requestLogger logs every request at debug level with its request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Logger().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
