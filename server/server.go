// Package server exposes the analyzer over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/foxcpp/mailsec-grade/analyzer"
)

const requestIDHeader = "X-Request-Id"

// Analyzer runs one complete analysis.
type Analyzer interface {
	Analyze(ctx context.Context, domain, selector string) (*analyzer.AnalysisResult, error)
}

// Server implements the HTTP API.
type Server struct {
	analyzer        Analyzer
	defaultSelector string
}

func New(a Analyzer, defaultSelector string) *Server {
	if defaultSelector == "" {
		defaultSelector = analyzer.DefaultSelector
	}
	return &Server{analyzer: a, defaultSelector: defaultSelector}
}

type analyzeRequest struct {
	Domain       string `json:"domain"`
	DKIMSelector string `json:"dkimSelector"`
}

type response struct {
	Data  interface{} `json:"data"`
	Error *string     `json:"error"`
}

// Routes returns the router with all API endpoints mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.analyze)
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request body"))
		return
	}

	groups, err := analyzer.ParseGroups(r.URL.Query().Get("groups"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	domain, err := analyzer.NormalizeDomain(req.Domain)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.DKIMSelector) == "" {
		req.DKIMSelector = s.defaultSelector
	}
	selector, err := analyzer.NormalizeSelector(req.DKIMSelector)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), domain, selector)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, analyzer.ErrMissingInput) || errors.Is(err, analyzer.ErrInvalidDomain) {
			status = http.StatusBadRequest
		}
		log.WithFields(log.Fields{
			"request_id": RequestID(r.Context()),
			"domain":     domain,
		}).WithError(err).Warn("analysis failed")
		writeError(w, status, err)
		return
	}

	data, err := analyzer.Filter(res, groups, r.URL.Query().Get("version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Data: data})
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	writeJSON(w, status, response{Error: &msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("write response")
	}
}

type ctxKey struct{}

// RequestID returns the ID assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"request_id": RequestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
		}).Info("request")
	})
}

// ListenAndServe serves the API on addr until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.WithField("addr", addr).Info("listening")

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
