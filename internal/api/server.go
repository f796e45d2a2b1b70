// Package api exposes the tracker over HTTP: record views and mutations,
// document upload and download, maintenance triggers and a websocket stream
// of change events.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dharsanguruparan/InstallTracker/internal/blobstore"
	"github.com/dharsanguruparan/InstallTracker/internal/queue"
	"github.com/dharsanguruparan/InstallTracker/internal/tracker"
)

// Options configure a Server.
type Options struct {
	Address         string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
	// Bucket and Public serve documents under the public URL layout. Public
	// is set in local mode only; S3 serves its own URLs.
	Bucket string
	Public blobstore.Store
	// Queue, when set, lets maintenance requests run in the worker.
	Queue queue.Enqueuer
}

// Server exposes HTTP endpoints for the tracker.
type Server struct {
	opts    Options
	tracker *tracker.Tracker
	hub     *Hub
	logger  *slog.Logger
	router  chi.Router
	server  *http.Server
	once    sync.Once
}

// New constructs a Server.
func New(tr *tracker.Tracker, hub *Hub, opts Options, logger *slog.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		opts:    opts,
		tracker: tr,
		hub:     hub,
		logger:  logger.With("component", "api"),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() {
		r := chi.NewRouter()
		r.Use(requestID)
		r.Use(metricsMiddleware)
		r.Use(requestLogger(s.logger))
		r.Use(corsMiddleware)

		r.Get("/healthz", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
		r.Get("/events", s.hub.ServeHTTP)

		r.Route("/installs", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleCreate)
			r.Get("/stats", s.handleStats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Patch("/", s.handlePatch)
				r.Delete("/", s.handleDelete)
				r.Post("/status/toggle", s.handleToggleStatus)
				r.Post("/critical/toggle", s.handleToggleCritical)
				r.Post("/checked/today", s.handleCheckedToday)
				r.Delete("/checked", s.handleClearChecked)
				r.Put("/document", s.handleUploadDocument)
				r.Delete("/document", s.handleDeleteDocument)
			})
		})
		r.Get("/categories", s.handleCategories)
		r.Get("/documents/archive", s.handleArchive)
		r.Get("/preferences/default-checker", s.handleGetChecker)
		r.Put("/preferences/default-checker", s.handlePutChecker)
		r.Post("/maintenance/reconcile", s.handleReconcile)
		r.Post("/maintenance/reindex", s.handleReindex)

		if s.opts.Public != nil {
			r.Get(blobstore.PublicPrefix+"{bucket}/{name}", s.handlePublicDocument)
		}
		s.router = r
	})
	return s.router
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", "address", s.opts.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
