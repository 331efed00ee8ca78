// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/go-core-stack/iothrottle/blockio"
)

// LimiterConfig bounds the request rate accepted from a single client
type LimiterConfig struct {
	RPS     float64
	Burst   int
	Enabled bool
}

// Server exposes the device throttling controls over HTTP
type Server struct {
	logger  *slog.Logger
	devices *blockio.Manager
	limiter LimiterConfig

	mu      sync.Mutex
	clients map[string]*client
}

// New returns a server operating on the devices of mgr
func New(logger *slog.Logger, mgr *blockio.Manager, limiter LimiterConfig) *Server {
	return &Server{
		logger:  logger,
		devices: mgr,
		limiter: limiter,
		clients: make(map[string]*client),
	}
}

// Handler returns the routes of the server wrapped in its middleware
func (s *Server) Handler() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(s.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(s.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", s.healthcheckHandler)
	router.HandlerFunc(http.MethodGet, "/v1/devices", s.listDevicesHandler)
	router.HandlerFunc(http.MethodGet, "/v1/devices/:name", s.showDeviceHandler)
	router.HandlerFunc(http.MethodGet, "/v1/devices/:name/throttle", s.showThrottleHandler)
	router.HandlerFunc(http.MethodPut, "/v1/devices/:name/throttle", s.updateThrottleHandler)

	return s.recoverPanic(s.rateLimit(router))
}

// Serve listens on addr until ctx is cancelled, in flight requests get
// up to 30 seconds to complete
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	shutdownError := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", "addr", srv.Addr)

		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shutdownError <- srv.Shutdown(sctx)
	}()

	go s.expireClients(ctx)

	s.logger.Info("starting server", "addr", srv.Addr)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	s.logger.Info("stopped server", "addr", srv.Addr)
	return nil
}
