// Package server exposes the analytics service as JSON over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/KaramelBytes/uidpulse/internal/logging"
	"github.com/KaramelBytes/uidpulse/internal/metrics"
	"github.com/KaramelBytes/uidpulse/internal/narrative"
	"github.com/KaramelBytes/uidpulse/internal/pipeline"
)

// Options configures a Server.
type Options struct {
	// DefaultRegion is used when a request has no region parameter.
	DefaultRegion string
	// RequestTimeout bounds each request. Narrative calls share it.
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// Server routes API requests to the pipeline service.
type Server struct {
	svc      *pipeline.Service
	narrator *narrative.Narrator
	opt      Options
	logger   *slog.Logger
	router   chi.Router
}

// New builds the router. A nil narrator answers narrative requests with placeholders.
func New(svc *pipeline.Service, narrator *narrative.Narrator, opt Options) *Server {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.RequestTimeout <= 0 {
		opt.RequestTimeout = 90 * time.Second
	}
	if narrator == nil {
		narrator = narrative.New(nil, narrative.Options{Logger: opt.Logger, Metrics: opt.Metrics})
	}
	s := &Server{
		svc:      svc,
		narrator: narrator,
		opt:      opt,
		logger:   opt.Logger.With(slog.String("component", "server")),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) { _ = render.Render(w, r, errNotFound) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { _ = render.Render(w, r, errMethodNotAllowed) })

	if s.opt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opt.Metrics.Handler())
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(middleware.Timeout(s.opt.RequestTimeout))

		r.Get("/health", s.health)
		r.Post("/reload", s.reload)
		r.Get("/kpis", s.kpis)
		r.Get("/summary/{kind}", s.summary)
		r.Get("/trend/{kind}", s.trend)
		r.Get("/ratios", s.ratios)
		r.Get("/correlation", s.correlation)
		r.Get("/outliers/{kind}", s.outliers)
		r.Get("/forecast/{kind}", s.forecast)
		r.Get("/recommendations", s.recommendations)
		r.Get("/coverage", s.coverage)
		r.Get("/bundle", s.bundle)
		r.Get("/narrative/{topic}", s.narrative)
	})
	return r
}

// requestLogger logs each completed request with its chi request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.logger.InfoContext(ctx, "request completed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)))
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", slog.String("addr", addr))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
