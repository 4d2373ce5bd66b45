// Command simulate is the entry point for the ride-hail simulation engine.
// It reads a run's configuration from the process environment, then either
// drives one continuous simulation while serving its control/observation
// API over HTTP and WebSocket, or — when a sequence parameter is
// configured — drives a batch of independent runs varying that one
// parameter, reporting each run's results-window means. Grounded on the
// teacher's cmd/server/main.go (config-init -> logging-init -> wire ->
// serve -> graceful-shutdown shape); the elevator manager/factory wiring
// is replaced by a single simulation.Simulation per run.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"

	httpPkg "github.com/tomslee/ridehail-sim/internal/http"
	"github.com/tomslee/ridehail-sim/internal/infra/config"
	"github.com/tomslee/ridehail-sim/internal/infra/logging"
	"github.com/tomslee/ridehail-sim/internal/infra/observability"
	"github.com/tomslee/ridehail-sim/internal/simulation"
)

func main() {
	cfg, err := config.InitConfig()
	if err != nil {
		slog.Error("failed to initialize configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.InfoContext(ctx, "ridehail simulation starting up",
		slog.String("environment", cfg.Environment),
		slog.String("log_level", cfg.LogLevel),
		slog.Int("port", cfg.Port),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
		slog.Bool("websocket_enabled", cfg.WebSocketEnabled),
		slog.Any("config_summary", cfg.GetEnvironmentInfo()))

	telemetryCfg, err := observability.LoadConfig()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load telemetry configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	telemetry, err := observability.NewTelemetryProvider(telemetryCfg, slog.With(slog.String("component", "telemetry")), os.Stdout)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize telemetry provider", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if values := cfg.SequenceValues(); values != nil {
		runSequence(ctx, cfg, telemetry, values)
		return
	}

	runSingle(ctx, cancel, cfg, telemetry)
}

// runSingle drives one continuous simulation, streaming each block's
// observation to the websocket feed while serving the control/observation
// REST API, until a shutdown signal arrives or the configured time_blocks
// is reached.
func runSingle(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, telemetry *observability.TelemetryProvider) {
	engineCfg, err := cfg.ToEngineConfig(nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build engine configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sim, err := simulation.New(engineCfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to construct simulation", slog.String("error", err.Error()))
		os.Exit(1)
	}

	feed := httpPkg.NewObservationFeed()

	port := cfg.Port
	if port <= 0 {
		slog.WarnContext(ctx, "invalid port in configuration, using default",
			slog.Int("configured_port", port), slog.Int("default_port", 6660))
		port = 6660
	}

	server := httpPkg.NewServer(cfg, port, sim)
	var wsServer *httpPkg.WebSocketServer
	if cfg.WebSocketEnabled {
		wsServer = httpPkg.NewWebSocketServer(port+1, feed, slog.With(slog.String("component", "websocket-server")))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 2)

	go func() {
		slog.InfoContext(ctx, "starting HTTP server", slog.Int("port", port))
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if wsServer != nil {
		go func() {
			slog.InfoContext(ctx, "starting WebSocket server", slog.Int("port", port+1))
			if err := wsServer.Start(); err != nil && err != http.ErrServerClosed {
				serverErrCh <- fmt.Errorf("WebSocket server failed: %w", err)
			}
		}()
	}

	driverDone := make(chan error, 1)
	go func() {
		driverDone <- runDriverLoop(ctx, sim, feed, telemetry)
	}()

	startupTimer := time.NewTimer(2 * time.Second)
	select {
	case err := <-serverErrCh:
		startupTimer.Stop()
		slog.ErrorContext(ctx, "server startup failed", slog.String("error", err.Error()))
		cancel()
		shutdownServers(cfg, server, wsServer)
		<-driverDone
		os.Exit(1)
	case sig := <-quit:
		startupTimer.Stop()
		slog.InfoContext(ctx, "received shutdown signal during startup", slog.String("signal", sig.String()))
		cancel()
		shutdownServers(cfg, server, wsServer)
		<-driverDone
		return
	case <-startupTimer.C:
		slog.InfoContext(ctx, "all servers started successfully")
	}

	// Wait for either a shutdown signal or the simulation run completing on
	// its own (time_blocks reached, or a stop control message). Once
	// driverDone has been consumed, nil it out so the select below never
	// revisits an already-drained channel.
	select {
	case sig := <-quit:
		slog.InfoContext(ctx, "received shutdown signal", slog.String("signal", sig.String()))
	case err := <-driverDone:
		driverDone = nil
		if err != nil {
			slog.ErrorContext(ctx, "simulation run failed", slog.String("error", err.Error()))
		} else {
			slog.InfoContext(ctx, "simulation run completed, awaiting shutdown signal")
		}
		<-quit
		slog.InfoContext(ctx, "received shutdown signal")
	}

	cancel()
	shutdownServers(cfg, server, wsServer)
	if driverDone != nil {
		<-driverDone
	}

	<-time.After(cfg.ShutdownGrace)
	slog.InfoContext(ctx, "graceful shutdown completed", slog.Duration("grace_period", cfg.ShutdownGrace))
}

// runDriverLoop advances sim one block at a time, publishing each
// observation to feed and wrapping the step in a trace span, until the
// configured time_blocks is reached, a stop control message lands, or ctx
// is cancelled.
func runDriverLoop(ctx context.Context, sim *simulation.Simulation, feed *httpPkg.ObservationFeed, telemetry *observability.TelemetryProvider) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if sim.Done() {
			return nil
		}
		if sim.Paused() {
			time.Sleep(time.Millisecond)
			continue
		}

		block := sim.Block()
		_, span := telemetry.CreateSpan(ctx, "block", attribute.Int("block.index", block))
		obs, err := sim.Step()
		span.End()
		if err != nil {
			return err
		}
		feed.Publish(obs)
	}
}

func shutdownServers(cfg *config.Config, server *httpPkg.Server, wsServer *httpPkg.WebSocketServer) {
	slog.Info("shutting down servers gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	if wsServer != nil {
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("WebSocket server shutdown failed", slog.String("error", err.Error()))
		} else {
			slog.Info("WebSocket server shutdown completed")
		}
	}
}

// runSequence drives len(values) independent simulations in parallel, each
// with its own derived seed and the named parameter set to one value, and
// logs each run's results-window summary. No HTTP/WebSocket surface is
// started: batch mode has no live observer, only a final report per run.
func runSequence(ctx context.Context, cfg *config.Config, telemetry *observability.TelemetryProvider, values []float64) {
	var baseSeed int64
	if cfg.RandomNumberSeed != 0 {
		baseSeed = cfg.RandomNumberSeed
	} else {
		baseSeed = time.Now().UnixNano()
	}

	slog.InfoContext(ctx, "starting sequence run",
		slog.String("parameter", cfg.SequenceParameter),
		slog.Int("runs", len(values)))

	var wg sync.WaitGroup
	for i, value := range values {
		wg.Add(1)
		go func(i int, value float64) {
			defer wg.Done()
			seed := baseSeed + int64(i)
			runSequencePoint(ctx, cfg, telemetry, i, value, seed)
		}(i, value)
	}
	wg.Wait()

	slog.InfoContext(ctx, "sequence run completed", slog.Int("runs", len(values)))
}

func runSequencePoint(ctx context.Context, cfg *config.Config, telemetry *observability.TelemetryProvider, index int, value float64, seed int64) {
	engineCfg, err := cfg.ToEngineConfig(&seed)
	if err != nil {
		slog.ErrorContext(ctx, "sequence run: failed to build engine configuration",
			slog.Int("index", index), slog.String("error", err.Error()))
		return
	}

	if err := applySequenceParameter(&engineCfg, cfg.SequenceParameter, value); err != nil {
		slog.ErrorContext(ctx, "sequence run: unsupported sequence parameter",
			slog.String("parameter", cfg.SequenceParameter), slog.String("error", err.Error()))
		return
	}

	sim, err := simulation.New(engineCfg)
	if err != nil {
		slog.ErrorContext(ctx, "sequence run: failed to construct simulation",
			slog.Int("index", index), slog.String("error", err.Error()))
		return
	}

	_, span := telemetry.CreateSpan(ctx, "sequence_run",
		attribute.String("parameter", cfg.SequenceParameter),
		attribute.Float64("value", value))
	defer span.End()

	observations, err := sim.Run()
	if err != nil {
		slog.ErrorContext(ctx, "sequence run failed",
			slog.Int("index", index), slog.Float64("value", value), slog.String("error", err.Error()))
		return
	}

	var last simulation.Observation
	if len(observations) > 0 {
		last = observations[len(observations)-1]
	}

	slog.InfoContext(ctx, "sequence run point completed",
		slog.Int("index", index),
		slog.String("parameter", cfg.SequenceParameter),
		slog.Float64("value", value),
		slog.Int64("seed", seed),
		slog.Int("blocks", len(observations)),
		slog.Float64("trailing_mean_wait_blocks", last.TrailingMeanWaitBlocks),
		slog.Float64("trailing_mean_ride_blocks", last.TrailingMeanRideBlocks),
		slog.Float64("dispatch_success_rate", last.DispatchSuccessRate),
		slog.Float64("p1_fraction", last.P1Fraction),
		slog.Float64("p2_fraction", last.P2Fraction),
		slog.Float64("p3_fraction", last.P3Fraction),
		slog.Float64("price", last.Price))
}

// applySequenceParameter sets the one field sequence mode is varying on
// engineCfg, by the spec section 6 parameter name.
func applySequenceParameter(engineCfg *simulation.Config, parameter string, value float64) error {
	switch parameter {
	case "vehicle_count":
		engineCfg.VehicleCount = int(value)
	case "base_demand":
		engineCfg.BaseDemand = value
	case "platform_commission":
		engineCfg.PlatformCommission = value
	case "price":
		engineCfg.Price = value
	case "reserved_wage":
		engineCfg.ReservedWage = value
	case "wait_cost":
		engineCfg.WaitCost = value
	case "demand_elasticity":
		engineCfg.DemandElasticity = value
	case "city_size":
		engineCfg.CitySize = int(value)
	default:
		return fmt.Errorf("unsupported sequence parameter %q", parameter)
	}
	return nil
}
