// Package main is the entry point for tetherd, the component query server.
// It loads declarative component definitions, wires local entities onto the
// SQLite document store and remote entities onto their query endpoints, and
// serves the query protocol over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tetherlab/tether/config"
	"github.com/tetherlab/tether/core/client"
	"github.com/tetherlab/tether/core/compdef"
	"github.com/tetherlab/tether/core/document"
	"github.com/tetherlab/tether/core/executor"
	"github.com/tetherlab/tether/core/storage"
	"github.com/tetherlab/tether/web"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "tether.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	hotReload := flag.Bool("hot-reload", true, "Enable hot reload of configuration")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tetherd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if *validate {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration valid\n")
		fmt.Printf("  Listen: %s\n", cfg.Server.Addr())
		fmt.Printf("  Database: %s\n", cfg.Database.Path)
		fmt.Printf("  Definitions: %s\n", cfg.Definitions.Dir)
		fmt.Printf("  Remotes: %d\n", len(cfg.Remotes))
		os.Exit(0)
	}

	if err := run(*configPath, *hotReload); err != nil {
		fmt.Fprintf(os.Stderr, "tetherd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, hotReload bool) error {
	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	holder, err := config.NewHolder(configPath, bootLogger)
	if err != nil {
		return err
	}
	defer holder.Stop()
	cfg := holder.Get()

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	holder.OnChange(func(next *config.Config) {
		if level, err := zerolog.ParseLevel(next.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})
	if hotReload {
		if err := holder.WatchFile(); err != nil {
			return err
		}
		holder.WatchSignals()
	}

	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	locals, err := compdef.LoadDir(cfg.Definitions.Dir, compdef.Handlers{})
	if err != nil {
		return fmt.Errorf("load component definitions: %w", err)
	}
	logger.Info().Int("components", len(locals)).Msg("component definitions loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	remotes, err := connectRemotes(ctx, cfg.Remotes, logger)
	if err != nil {
		return err
	}

	space, err := document.NewSpace(logger, store, locals, remotes)
	if err != nil {
		return err
	}

	exec := executor.New(space.Components, executor.WithLogger(logger))

	var collector *web.Collector
	if cfg.Metrics.Enabled {
		collector = web.NewCollector(prometheus.DefaultRegisterer)
	}
	handler := web.NewHandler(exec, logger, collector)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("query endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// connectRemotes introspects each remote endpoint once and returns the
// per-entity client mapping. Remotes sharing a URL share one client.
func connectRemotes(ctx context.Context, remotes []config.RemoteConfig, logger zerolog.Logger) (map[string]*client.Client, error) {
	byURL := map[string]*client.Client{}
	out := map[string]*client.Client{}
	for _, r := range remotes {
		cl, ok := byURL[r.URL]
		if !ok {
			cl = client.New(client.NewHTTPTransport(r.URL), client.WithLogger(logger))
			if _, err := cl.GetComponents(ctx); err != nil {
				return nil, fmt.Errorf("introspect remote %s: %w", r.URL, err)
			}
			byURL[r.URL] = cl
		}
		out[r.Component] = cl
		logger.Info().Str("entity", r.Component).Str("url", r.URL).Msg("remote entity connected")
	}
	return out, nil
}

func buildLogger(cfg config.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return logger, nil
}
