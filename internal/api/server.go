// Package api exposes the dashboard read endpoints and the crawl and
// prediction triggers over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"FakeNewsScanner/internal/config"
)

const shutdownTimeout = 30 * time.Second

// Routes registers every endpoint and wraps the mux with the API key guard
// and request logging.
func Routes(deps Deps) http.Handler {
	h := NewHandler(deps)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)

	mux.HandleFunc("GET /api/v1/credibility/top", h.TopCredible)
	mux.HandleFunc("GET /api/v1/credibility/warnings", h.Warnings)
	mux.HandleFunc("GET /api/v1/credibility/{domain}", h.SourceCredibility)

	mux.HandleFunc("GET /api/v1/trends", h.Trend)
	mux.HandleFunc("GET /api/v1/trends/topics", h.TrendingTopics)
	mux.HandleFunc("GET /api/v1/risk", h.Risk)
	mux.HandleFunc("GET /api/v1/report", h.Report)

	mux.HandleFunc("POST /api/v1/analyze/text", h.AnalyzeText)
	mux.HandleFunc("POST /api/v1/analyze/url", h.AnalyzeURL)

	mux.HandleFunc("POST /api/v1/crawler/run", h.TriggerCrawl)
	mux.HandleFunc("GET /api/v1/crawler/status", h.CrawlerStatus)
	mux.HandleFunc("GET /api/v1/crawler/watermarks", h.Watermarks)

	mux.HandleFunc("POST /api/v1/predictions/batch", h.StartBatch)
	mux.HandleFunc("GET /api/v1/predictions/batch", h.BatchStatus)

	mux.HandleFunc("GET /api/v1/items", h.ListItems)
	mux.HandleFunc("GET /api/v1/items/{id}", h.GetItem)
	mux.HandleFunc("POST /api/v1/items/{id}/predict", h.PredictItem)

	var handler http.Handler = mux
	handler = apiKeyGuard(deps.APIKey)(handler)
	return requestLogger(h.logger)(handler)
}

// Server owns the HTTP listener lifecycle.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer binds a handler to the configured address and timeouts.
func NewServer(cfg config.HTTPConfig, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
		if err := s.srv.Close(); err != nil {
			s.logger.Error("http server force close error", "error", err)
		}
		return err
	}
	s.logger.Info("http server stopped")
	return <-serverErr
}
