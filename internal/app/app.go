// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires every jarvisd component into one daemon container,
// grounded on the teacher's internal/app.App (Options struct, New/Run/
// Shutdown lifecycle, signal-driven graceful shutdown).
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jarvis-mode/jarvisd/internal/api"
	"github.com/jarvis-mode/jarvisd/internal/correlate"
	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/gateway"
	"github.com/jarvis-mode/jarvisd/internal/jarvis"
	"github.com/jarvis-mode/jarvisd/internal/jconfig"
	"github.com/jarvis-mode/jarvisd/internal/logwatch"
	"github.com/jarvis-mode/jarvisd/internal/ptymux"
	"github.com/jarvis-mode/jarvisd/internal/scheduler"
	"github.com/jarvis-mode/jarvisd/internal/session"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

// App is the daemon's top-level component container. It owns every long-
// lived subsystem named in SPEC_FULL.md §4 and wires them together without
// any package-level global state, per the redesign flag against
// singleton-style managers in the original distillation.
type App struct {
	mu sync.RWMutex

	cfg *jconfig.Config

	eventBus    events.EventBus
	store       *store.Store
	registry    *session.Registry
	multiplexer *ptymux.Multiplexer
	logWatcher  *logwatch.Watcher
	correlator  *correlate.Correlator
	statusBcast *session.StatusBroadcaster
	scheduler   *scheduler.Scheduler
	jarvisCtrl  *jarvis.Controller
	gatewayHub  *gateway.Hub
	apiServer   *api.Server

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds the flags and overrides cmd/jarvisd's main accepts.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Version    string
}

// New constructs the App: loads configuration, then builds each component
// in dependency order (event bus -> store -> multiplexer -> registry ->
// watcher -> correlator -> status broadcaster -> scheduler -> jarvis
// controller -> gateway -> API server).
func New(opts Options) (*App, error) {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	a := &App{cfg: cfg, done: make(chan struct{})}

	a.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.HistoryMaxEvents,
	})

	st, err := store.New(cfg.Paths.StoreFile, cfg.Paths.ExecutionMappingFile)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st

	a.multiplexer = ptymux.New(cfg.Paths.Shell, a.eventBus)
	a.registry = session.New(a.store, a.eventBus, a.multiplexer)

	watcher, err := logwatch.New(cfg.Paths.LogRoot, a.eventBus)
	if err != nil {
		return nil, fmt.Errorf("open log watcher: %w", err)
	}
	a.logWatcher = watcher

	a.correlator = correlate.New(a.store, a.registry, a.eventBus)
	a.statusBcast = session.NewStatusBroadcaster(a.store, a.eventBus)
	a.scheduler = scheduler.New(a.multiplexer)
	a.jarvisCtrl = jarvis.New(a.store, a.registry, a.scheduler, a.eventBus)
	a.gatewayHub = gateway.New(a.eventBus, a.multiplexer, a.registry, a.scheduler, a.store)

	a.apiServer = api.NewServer(api.ServerConfig{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, api.Dependencies{
		Store:      a.store,
		Registry:   a.registry,
		EventBus:   a.eventBus,
		JarvisCtrl: a.jarvisCtrl,
		Gateway:    a.gatewayHub,
	})

	return a, nil
}

func loadConfig(path string) (*jconfig.Config, error) {
	loader := jconfig.NewLoader()
	if path == "" {
		found, err := loader.FindConfig()
		if err != nil {
			log.Printf("no config file found, using defaults: %v", err)
			return jconfig.Default(), nil
		}
		path = found
	}
	log.Printf("using config: %s", path)
	return loader.Load(path)
}

// Run starts every background subsystem, serves the API, and blocks until
// the context is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	if err := a.correlator.Start(); err != nil {
		return fmt.Errorf("start correlator: %w", err)
	}
	if err := a.statusBcast.Start(); err != nil {
		return fmt.Errorf("start status broadcaster: %w", err)
	}
	if err := a.jarvisCtrl.Start(); err != nil {
		return fmt.Errorf("start jarvis controller: %w", err)
	}
	if err := a.logWatcher.Start(ctx); err != nil {
		return fmt.Errorf("start log watcher: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-sigCh:
		log.Println("shutdown requested...")
	case <-ctx.Done():
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully tears down every component. Safe to call more than
// once; only the first call takes effect.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("api server shutdown: %v", err)
		}
		if err := a.logWatcher.Close(); err != nil {
			log.Printf("log watcher close: %v", err)
		}
		if err := a.scheduler.Close(shutdownCtx); err != nil {
			log.Printf("scheduler close: %v", err)
		}
		if err := a.eventBus.Close(); err != nil {
			log.Printf("event bus close: %v", err)
		}
		close(a.done)
		log.Println("shutdown complete")
	})
	return shutdownErr
}
