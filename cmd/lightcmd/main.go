package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dokzlo13/lightcmd/internal/app"
	"github.com/dokzlo13/lightcmd/internal/config"
)

func main() {
	fset := flag.NewFlagSet("lightcmd", flag.ExitOnError)
	configPath := fset.String("config", "lightcmd.yaml", "Path to configuration file")
	logLevel := fset.String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	fset.Usage = func() {
		fmt.Fprintf(fset.Output(), "Usage: %s [flags] <host> <port> <key>\n", fset.Name())
		fset.PrintDefaults()
	}

	if err := ff.Parse(fset, os.Args[1:], ff.WithEnvVarPrefix("LIGHTCMD")); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse arguments")
	}

	if fset.NArg() < 3 {
		fset.Usage()
		os.Exit(1)
	}
	port, err := strconv.Atoi(fset.Arg(1))
	if err != nil || port < 0 || port > 65535 {
		fmt.Fprintf(fset.Output(), "invalid port %q\n", fset.Arg(1))
		fset.Usage()
		os.Exit(1)
	}

	// Load configuration. The hub section is only read when the first
	// command arrives, so a missing file is not fatal here.
	cfg, err := config.Load(*configPath)
	missingConfig := errors.Is(err, fs.ErrNotExist)
	if missingConfig {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	// Setup logging
	setupLogging(cfg.Log)

	log.Info().Str("config", *configPath).Msg("Starting lightcmd")
	if missingConfig {
		log.Warn().Str("config", *configPath).Msg("Configuration file not found, using defaults")
	}

	application, err := app.New(cfg, app.Options{
		ConfigPath: *configPath,
		Host:       fset.Arg(0),
		Port:       port,
		Key:        fset.Arg(2),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Wait for shutdown
	application.Wait()

	// Graceful shutdown
	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func setupLogging(cfg config.LogConfig) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = os.Stderr
	if !cfg.UseJSON {
		console = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !cfg.Colors,
		}
	}

	out := console
	if cfg.File.Path != "" {
		// The file always gets JSON lines regardless of the console format.
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
		})
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	// Handlers without a request logger fall back to the global one.
	zerolog.DefaultContextLogger = &log.Logger

	switch cfg.GetLevel() {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
