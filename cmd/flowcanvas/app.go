package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/rendis/flowcanvas/internal/aggregate"
	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/internal/diagram"
	"github.com/rendis/flowcanvas/internal/expressions"
	"github.com/rendis/flowcanvas/internal/icons"
	"github.com/rendis/flowcanvas/internal/intents"
	"github.com/rendis/flowcanvas/internal/livefeed"
	"github.com/rendis/flowcanvas/internal/logging"
	"github.com/rendis/flowcanvas/internal/panel"
	"github.com/rendis/flowcanvas/internal/scheduler"
	"github.com/rendis/flowcanvas/internal/streaming"
	"github.com/rendis/flowcanvas/internal/validation"
	"github.com/rendis/flowcanvas/pkg/mcp"
)

// app is the wired set of components shared by every subcommand.
type app struct {
	cfg       Config
	level     *slog.LevelVar
	logger    *slog.Logger
	hub       *streaming.MemoryHub
	workspace *canvas.Workspace
	renderer  *diagram.Renderer
	intents   *intents.HubDispatcher
	engines   []expressions.Engine
	counter   canvas.EventCounter
}

func newLogger(level string) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(logging.ParseLevel(level))
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lv})
	return slog.New(logging.NewCorrelationHandler(inner)), lv
}

// newApp wires the components for cfg. Workflows come from the HTTP API when
// APIBaseURL is set, from DocumentsDir otherwise.
func newApp(cfg Config) (*app, error) {
	logger, level := newLogger(cfg.LogLevel)
	reg := icons.DefaultRegistry()

	validator, err := validation.NewDocumentValidator(reg)
	if err != nil {
		return nil, err
	}
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}

	var provider aggregate.Provider
	var counter canvas.EventCounter
	if cfg.APIBaseURL != "" {
		api := aggregate.NewAPIProvider(cfg.APIBaseURL, aggregate.WithToken(cfg.APIToken))
		provider = api
		counter = api
	} else {
		provider = aggregate.NewFileProvider(cfg.DocumentsDir)
	}

	hub := streaming.NewMemoryHub()
	return &app{
		cfg:       cfg,
		level:     level,
		logger:    logger,
		hub:       hub,
		workspace: canvas.NewWorkspace(provider, hub, canvas.WithValidator(validator), canvas.WithLogger(logger)),
		renderer:  diagram.NewRenderer(reg, diagram.WithIntents(true), diagram.WithLogger(logger)),
		intents:   intents.NewHubDispatcher(hub, logger),
		engines:   []expressions.Engine{expressions.NewExprEngine(), cel},
		counter:   counter,
	}, nil
}

// openConfigured opens the workflows listed in the config. Failures are
// logged and skipped.
func (a *app) openConfigured(ctx context.Context) {
	for _, id := range a.cfg.Open {
		if _, err := a.workspace.Open(ctx, id); err != nil {
			a.logger.WarnContext(logging.WithWorkflowID(ctx, id), "open workflow failed", slog.String("error", err.Error()))
		}
	}
}

func (a *app) panelHandler() http.Handler {
	return panel.NewServer(panel.Deps{
		Workspace:     a.workspace,
		Renderer:      a.renderer,
		Intents:       a.intents,
		Engines:       a.engines,
		MermaidBinDir: a.cfg.MermaidBinDir,
		Logger:        a.logger,
	}).Handler()
}

func (a *app) mcpServer() *mcp.CanvasServer {
	return mcp.NewCanvasServer(mcp.CanvasServerDeps{
		Workspace:     a.workspace,
		Renderer:      a.renderer,
		Intents:       a.intents,
		Engines:       a.engines,
		MermaidBinDir: a.cfg.MermaidBinDir,
		Logger:        a.logger,
	})
}

// startLiveFeed subscribes to the MQTT status feed when a broker is
// configured. A broker that cannot be reached is logged, not fatal.
func (a *app) startLiveFeed(ctx context.Context) func() {
	if a.cfg.MQTTBroker == "" {
		return func() {}
	}
	client := livefeed.NewClient(a.cfg.MQTTBroker, a.cfg.MQTTClientID)
	if err := client.Connect(ctx); err != nil {
		a.logger.WarnContext(ctx, "mqtt unavailable, live status disabled",
			slog.String("broker", client.Broker()), slog.String("error", err.Error()))
		return func() {}
	}
	if err := livefeed.NewFeed(a.workspace, a.logger).Start(ctx, client); err != nil {
		a.logger.WarnContext(ctx, "mqtt subscribe failed", slog.String("error", err.Error()))
		client.Disconnect()
		return func() {}
	}
	return client.Disconnect
}

// startRefresh refreshes event counts on the configured schedule when an
// event counter is available.
func (a *app) startRefresh(ctx context.Context) func() {
	if a.counter == nil || a.cfg.RefreshInterval == "" {
		return func() {}
	}
	sched, err := scheduler.ParseSchedule(a.cfg.RefreshInterval)
	if err != nil {
		a.logger.WarnContext(ctx, "event count refresh disabled", slog.String("error", err.Error()))
		return func() {}
	}
	s := scheduler.NewScheduler(a.workspace, a.counter, sched, a.logger)
	if err := s.Start(ctx); err != nil {
		return func() {}
	}
	return s.Stop
}
