// Package server exposes the command interpreter over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightcmd/internal/eventbus"
	"github.com/dokzlo13/lightcmd/internal/interpreter"
	"github.com/dokzlo13/lightcmd/internal/ledger"
)

// ErrUnauthorized is returned when the request key is missing or wrong.
var ErrUnauthorized = errors.New("unauthorized")

// Options is the listener configuration. It is not modified after New.
type Options struct {
	Host            string
	Port            int
	Key             string
	ShutdownTimeout time.Duration
}

// Executor runs a single command.
type Executor interface {
	Execute(ctx context.Context, req interpreter.Request) error
}

// Readiness reports whether the hub session has been opened.
type Readiness interface {
	Ready() bool
}

// History returns the most recent ledger entries.
type History interface {
	GetRecent(limit int) ([]*ledger.Entry, error)
	GetByType(eventType eventbus.EventType, limit int) ([]*ledger.Entry, error)
}

// Server is the HTTP front end.
type Server struct {
	opts       Options
	exec       Executor
	ready      Readiness // optional
	history    History   // optional
	httpServer *http.Server
}

// New creates a new server. ready and history may be nil.
func New(opts Options, exec Executor, ready Readiness, history History) *Server {
	return &Server{
		opts:    opts,
		exec:    exec,
		ready:   ready,
		history: history,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
}

// Handler builds the router. Every path not claimed by a service endpoint
// accepts commands.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	r.PathPrefix("/").HandlerFunc(s.handleCommand).Methods(http.MethodGet, http.MethodPost)

	return r
}

// Run starts the server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.httpServer.Addr).Msg("Starting command server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Command server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
