// Copyright 2026 The Steward Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/steward-sh/steward/internal/api"
	"github.com/steward-sh/steward/internal/config"
	"github.com/steward-sh/steward/internal/journal"
	"github.com/steward-sh/steward/internal/log"
	"github.com/steward-sh/steward/internal/output"
	"github.com/steward-sh/steward/internal/pidfile"
	"github.com/steward-sh/steward/internal/supervisor"
	"github.com/steward-sh/steward/internal/version"
)

func main() {
	var (
		configPath  = flag.String("config", config.DefaultPath(), "Path to the stewardd config file")
		socketPath  = flag.String("socket", "", "Unix socket path for the control API")
		logFile     = flag.String("log-file", "", "Send supervisor logs to a rotating file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("stewardd %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stewardd: %v\n", err)
		os.Exit(1)
	}

	// Apply CLI flag overrides
	if *socketPath != "" {
		cfg.Control.SocketPath = *socketPath
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}

	// One instance id per daemon run so logs from successive runs over
	// the same service can be told apart.
	logger := log.New(logConfig(cfg)).With(slog.String("instance", uuid.NewString()))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon failed", log.Error(err))
		os.Exit(1)
	}
}

// logConfig builds the logging configuration from the loaded config.
// STEWARD_DEBUG forces debug level with source locations regardless.
func logConfig(cfg *config.Config) *log.Config {
	logCfg := &log.Config{
		Level:      cfg.Log.Level,
		Format:     log.Format(cfg.Log.Format),
		File:       cfg.Log.File,
		MaxSizeMB:  50,
		MaxBackups: 5,
	}
	if debug := os.Getenv("STEWARD_DEBUG"); debug == "true" || debug == "1" {
		logCfg.Level = "debug"
		logCfg.AddSource = true
	}
	return logCfg
}

// run brings the daemon up, supervises until a signal arrives, and
// tears everything down in order: service first, control API second.
func run(cfg *config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	pf := pidfile.New(cfg.Daemon.PIDFile)
	if err := pf.Acquire(os.Getpid()); err != nil {
		return err
	}
	defer pf.Release()

	var jnl *journal.Journal
	if cfg.JournalEnabled() {
		var err error
		jnl, err = journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer jnl.Close()
	}

	// Hook output shares the daemon's stdout so one stream carries the
	// service's whole story.
	sink := output.NewSink(cfg.ServiceGroup(), os.Stdout)

	sup, err := supervisor.New(cfg, sink, jnl, logger)
	if err != nil {
		return err
	}

	srv := api.New(cfg.Control.SocketPath, sup, jnl, logger)
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	supErr := make(chan error, 1)
	go func() { supErr <- sup.Run(ctx) }()

	apiErr := make(chan error, 1)
	go func() { apiErr <- srv.Serve() }()

	logger.Info("stewardd started",
		slog.String("service", cfg.ServiceGroup()),
		slog.String("socket", cfg.Control.SocketPath),
		slog.String("version", version.Version))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))

	case err := <-supErr:
		// The supervisor only returns on its own when boot fails.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Daemon.ShutdownTimeout)
		defer shutdownCancel()
		if sderr := srv.Shutdown(shutdownCtx); sderr != nil {
			logger.Error("failed to shut down control API", log.Error(sderr))
		}
		if err != nil {
			return fmt.Errorf("supervisor failed: %w", err)
		}
		return nil

	case err := <-apiErr:
		cancel()
		<-supErr
		return fmt.Errorf("control API failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Daemon.ShutdownTimeout)
	defer shutdownCancel()

	cancel()
	select {
	case err := <-supErr:
		if err != nil {
			logger.Error("supervisor exited with error", log.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Error("service did not stop within the shutdown timeout")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down control API", log.Error(err))
	}

	logger.Info("stewardd stopped")
	return nil
}
