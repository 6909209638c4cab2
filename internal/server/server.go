// Package server exposes the remittance workflow over a local JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/paydesk/remitsheet/internal/batch"
	"github.com/paydesk/remitsheet/internal/history"
	"github.com/paydesk/remitsheet/internal/metrics"
	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/parser"
	"github.com/paydesk/remitsheet/internal/search"
	"github.com/paydesk/remitsheet/internal/sheets"
)

// Directory is what the API needs from the sheets client besides search.
type Directory interface {
	SearchBanks(ctx context.Context, term string) ([]model.BankInfo, error)
	AddVendor(ctx context.Context, v model.NewVendor) (sheets.Status, error)
}

// Recorder stores completed generations.
type Recorder interface {
	Record(e history.Entry) (history.Entry, error)
}

// Deps are the components the API serves.
type Deps struct {
	Engine       *batch.Engine
	Searcher     *search.Searcher
	Directory    Directory
	Parser       parser.Capability
	History      Recorder // optional
	DefaultSheet string
	SheetOptions []string
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Server handles the API routes.
type Server struct {
	deps Deps
	log  *zap.Logger
}

// New creates a Server.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{deps: deps, log: deps.Logger.Named("server")}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/vendors", s.handleSearchVendors)
		r.Post("/vendors", s.handleAddVendor)
		r.Post("/vendors/parse", s.handleParseVendor)
		r.Get("/banks", s.handleSearchBanks)
		r.Get("/sheets", s.handleSheets)

		r.Route("/batch", func(r chi.Router) {
			r.Get("/", s.handleGetBatch)
			r.Post("/items", s.handleAddItem)
			r.Delete("/items/{id}", s.handleRemoveItem)
			r.Patch("/items/{id}", s.handleUpdateItem)
			r.Post("/generate", s.handleGenerate)
			r.Get("/artifact", s.handleArtifact)
			r.Get("/export", s.handleExport)
		})
	})
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}
