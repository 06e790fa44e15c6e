package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mmcdole/covergen/internal/adapter"
	"github.com/mmcdole/covergen/internal/adapter/source"
	"github.com/mmcdole/covergen/internal/compose"
	"github.com/mmcdole/covergen/internal/fonts"
	"github.com/mmcdole/covergen/internal/history"
	"github.com/mmcdole/covergen/internal/service"
	"github.com/mmcdole/covergen/internal/store"
	"github.com/mmcdole/covergen/internal/titles"
)

// app is the wired application shared by the commands
type app struct {
	cfg     *adapter.Config
	logger  *slog.Logger
	store   *store.Store
	history *history.Cache
	fonts   *fonts.Resolver
	titles  *titles.Resolver
	covers  *service.CoverService
	servers []service.Server
}

// newApp loads the configuration and wires every component
func newApp(opts *rootOptions) (*app, error) {
	cfg, err := adapter.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var console io.Writer
	if opts.verbose {
		console = os.Stderr
	}
	logger, err := adapter.SetupLogger(&cfg.Logging, console)
	if err != nil {
		// Fall back to stderr-only logging if file logging fails
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		logger, _ = adapter.SetupLogger(&adapter.LoggingConfig{Level: cfg.Logging.Level}, console)
	}
	slog.SetDefault(logger)

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	resolver, err := fonts.NewResolver(cfg.FontConfig(), logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to configure fonts: %w", err)
	}

	titleText, err := cfg.TitleConfig()
	if err != nil {
		logger.Warn("title configuration unavailable", "error", err)
	}
	titleResolver := titles.NewResolver(titleText, logger)

	servers, err := source.NewClientsFromConfig(cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	hist := history.New(st, logger)
	engine := compose.New(compose.DefaultConfig(), logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		history: hist,
		fonts:   resolver,
		titles:  titleResolver,
		covers:  service.NewCoverService(resolver, hist, engine, titleResolver, logger),
		servers: servers,
	}, nil
}

// Close releases the store
func (a *app) Close() error {
	return a.store.Close()
}

// server returns the configured server with the given name
func (a *app) server(name string) (service.Server, error) {
	for _, s := range a.servers {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no server named %q in the configuration", name)
}

// requireServers fails when nothing is configured
func (a *app) requireServers() error {
	if len(a.servers) == 0 {
		return fmt.Errorf("no servers configured; run 'covergen init' first")
	}
	return nil
}
