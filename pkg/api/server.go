// Package api serves the codec over HTTP.
//
// All routes under /api/v1 require an X-API-Key header. /metrics is open
// for scraping.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Routes builds the HTTP handler for the server.
func (s *Server) Routes() http.Handler {
	m := s.metrics
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{messageTypeHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(m.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))

		r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Get("/types", m.InstrumentHandler("GET", "/api/v1/types", s.handleTypes))

		r.Post("/encode/{type}", m.InstrumentHandler("POST", "/api/v1/encode/{type}", s.handleEncode))
		r.Post("/decode/{type}", m.InstrumentHandler("POST", "/api/v1/decode/{type}", s.handleDecode))

		r.Get("/messages", m.InstrumentHandler("GET", "/api/v1/messages", s.handleListMessages))
		// {ref} is a table name for POST and a message id for GET
		r.Post("/messages/{ref}", m.InstrumentHandler("POST", "/api/v1/messages/{type}", s.handlePutMessage))
		r.Get("/messages/{ref}", m.InstrumentHandler("GET", "/api/v1/messages/{id}", s.handleGetMessage))
	})

	return r
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, server *Server, config ServerConfig) error {
	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		server.logger.Info("starting flatjson server", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.logger.Info("shutting down flatjson server")
		return srv.Shutdown(shutdownCtx)
	}
}
