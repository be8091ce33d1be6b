package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightcmd/internal/command"
	"github.com/dokzlo13/lightcmd/internal/config"
	"github.com/dokzlo13/lightcmd/internal/db"
	"github.com/dokzlo13/lightcmd/internal/eventbus"
	"github.com/dokzlo13/lightcmd/internal/hue"
	"github.com/dokzlo13/lightcmd/internal/interpreter"
	"github.com/dokzlo13/lightcmd/internal/ledger"
	"github.com/dokzlo13/lightcmd/internal/mqtt"
	"github.com/dokzlo13/lightcmd/internal/server"
)

// Options carries the process arguments that are not part of the config file.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Key        string
}

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg  *config.Config
	opts Options

	// Core infrastructure
	DB     *db.DB         // nil when the ledger is disabled
	Ledger *ledger.Ledger // nil when the ledger is disabled
	Bus    *eventbus.Bus

	// Command path
	Lexicon     *command.Lexicon
	Session     *hue.Session
	Interpreter *interpreter.Interpreter

	// Front ends
	Server *server.Server
	MQTT   *mqtt.Bridge // nil when disabled

	wg sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config, opts Options) (*Services, error) {
	s := &Services{cfg: cfg, opts: opts}

	lexicon, err := buildLexicon(cfg)
	if err != nil {
		return nil, err
	}
	s.Lexicon = lexicon

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	if cfg.Ledger.IsEnabled() {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			s.Close(context.Background())
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
		s.Ledger.Subscribe(s.Bus)
	}

	// The hub section is read when the first command arrives, not now.
	s.Session = hue.NewSession(hue.FileLoader(opts.ConfigPath))
	s.Interpreter = interpreter.New(lexicon, s.Session, s.Bus)

	var history server.History
	if s.Ledger != nil {
		history = s.Ledger
	}
	s.Server = server.New(server.Options{
		Host:            opts.Host,
		Port:            opts.Port,
		Key:             opts.Key,
		ShutdownTimeout: cfg.ShutdownTimeout.Duration(),
	}, s.Interpreter, s.Session, history)

	if cfg.MQTT.Enabled {
		s.MQTT = mqtt.NewBridge(cfg.MQTT, opts.Key, s.Interpreter)
		s.MQTT.Subscribe(s.Bus)
	}

	return s, nil
}

// buildLexicon uses the configured tables, falling back to the built-in ones
// for any table left empty.
func buildLexicon(cfg *config.Config) (*command.Lexicon, error) {
	if len(cfg.Zones) == 0 && len(cfg.Colors) == 0 {
		return command.DefaultLexicon(), nil
	}

	zones := cfg.Zones
	if len(zones) == 0 {
		zones = command.DefaultZoneAliases
	}
	colors := cfg.Colors
	if len(colors) == 0 {
		colors = command.DefaultPalette
	}

	lexicon, err := command.NewLexicon(zones, colors)
	if err != nil {
		return nil, fmt.Errorf("invalid vocabulary: %w", err)
	}
	return lexicon, nil
}

// Start starts all background services.
// The onFatalError callback is called when a front end cannot keep running.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	log.Info().Strs("zones", zoneNames(s.Lexicon.Zones())).Msg("Vocabulary loaded")

	if s.Ledger != nil {
		s.goRun(func() {
			s.Ledger.RunCleanup(ctx, s.cfg.Ledger.CleanupInterval.Duration(), retention(s.cfg.Ledger.RetentionDays))
		})
	}

	s.goRun(func() {
		if err := s.Server.Run(ctx); err != nil {
			onFatalError(fmt.Errorf("command server: %w", err))
		}
	})

	if s.MQTT != nil {
		s.goRun(func() {
			if err := s.MQTT.Run(ctx); err != nil {
				onFatalError(fmt.Errorf("mqtt bridge: %w", err))
			}
		})
	} else {
		log.Debug().Msg("MQTT bridge disabled")
	}

	return nil
}

func (s *Services) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Stop waits for background services, drains the bus and releases resources.
// The context passed to Start must already be cancelled.
func (s *Services) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("Timed out waiting for services to stop")
	}

	s.Close(ctx)
	return nil
}

// Close releases all resources.
func (s *Services) Close(ctx context.Context) {
	if s.Bus != nil {
		s.Bus.Close(ctx)
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}

func zoneNames(zones []command.ZoneID) []string {
	names := make([]string, len(zones))
	for i, z := range zones {
		names[i] = string(z)
	}
	return names
}
