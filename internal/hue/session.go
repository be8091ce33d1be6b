package hue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightcmd/internal/config"
	"github.com/dokzlo13/lightcmd/internal/dispatch"
)

// ErrConfiguration is returned when the hub settings cannot be loaded.
var ErrConfiguration = errors.New("hub configuration error")

// ErrConnect is returned when the hub cannot be reached during session start.
var ErrConnect = errors.New("hub connection failed")

// Loader returns the hub settings. It is called when the session starts.
type Loader func() (config.HubConfig, error)

// FileLoader reads the hub section of the configuration file at path.
func FileLoader(path string) Loader {
	return func() (config.HubConfig, error) {
		return config.LoadHub(path)
	}
}

// Connector opens a hub from its settings.
type Connector func(ctx context.Context, cfg config.HubConfig) (dispatch.Hub, error)

// Session lazily opens the hub on first use and keeps it for the life of the
// process. Concurrent first callers share a single initialisation; a failed
// initialisation is retried by the next caller.
type Session struct {
	load    Loader
	connect Connector

	mu  sync.Mutex
	hub atomic.Pointer[sessionHub]
}

type sessionHub struct {
	dispatch.Hub
}

// NewSession creates a session backed by a Hue bridge.
func NewSession(load Loader) *Session {
	return NewSessionWithConnector(load, func(ctx context.Context, cfg config.HubConfig) (dispatch.Hub, error) {
		return Connect(ctx, cfg)
	})
}

// NewSessionWithConnector creates a session with a custom hub constructor.
func NewSessionWithConnector(load Loader, connect Connector) *Session {
	return &Session{load: load, connect: connect}
}

// Hub returns the session hub, opening it on first call.
func (s *Session) Hub(ctx context.Context) (dispatch.Hub, error) {
	if h := s.hub.Load(); h != nil {
		return h.Hub, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h := s.hub.Load(); h != nil {
		return h.Hub, nil
	}

	cfg, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	hub, err := s.connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	s.hub.Store(&sessionHub{hub})
	log.Info().Msg("Hub session initialised")
	return hub, nil
}

// Ready reports whether the hub has been opened.
func (s *Session) Ready() bool {
	return s.hub.Load() != nil
}
