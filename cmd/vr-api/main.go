// Package main implements the entry point for the VR-API bridge. The
// bridge reads muscle activity samples from a USB EMG sensor and serves
// binary activation events to VR clients over WebSocket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	ossignal "os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashwingupta21/VR-API/broadcast"
	"github.com/ashwingupta21/VR-API/component"
	"github.com/ashwingupta21/VR-API/config"
	"github.com/ashwingupta21/VR-API/health"
	"github.com/ashwingupta21/VR-API/input/emg"
	"github.com/ashwingupta21/VR-API/metric"
	natsout "github.com/ashwingupta21/VR-API/output/nats"
	wsout "github.com/ashwingupta21/VR-API/output/websocket"
	"github.com/ashwingupta21/VR-API/serialport"
	"github.com/ashwingupta21/VR-API/signal"
)

// Build information constants
const (
	Version   = "1.0.0"
	BuildTime = "dev"
	appName   = "vr-api"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	cfg, err := config.NewLoader().Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// CLI log flags win over the config file.
	logCfg := cfg.Logging
	if cliCfg.LogLevel != "" {
		logCfg.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		logCfg.Format = cliCfg.LogFormat
	}
	logger := setupLogger(logCfg)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	logger.Info("Starting VR-API bridge",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return runBridge(cfg, logger, cliCfg.ShutdownTimeout)
}

// fixedResolver short-circuits port resolution when the config pins a
// device path.
type fixedResolver struct {
	device string
}

func (r fixedResolver) Resolve() (serialport.Candidate, error) {
	return serialport.Candidate{Device: r.device, Description: "configured device"}, nil
}

func runBridge(cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	metricsRegistry := metric.NewMetricsRegistry()

	// Delivery path: registry of WebSocket subscribers fed by the
	// dispatcher, plus the optional NATS mirror.
	registry := broadcast.NewRegistry()
	dispatcher := broadcast.NewDispatcher(broadcast.DispatcherDeps{
		Registry:        registry,
		Logger:          logger,
		MetricsRegistry: metricsRegistry,
	})
	publishers := []emg.Publisher{dispatcher}

	mirror, err := natsout.NewMirror(natsout.Deps{
		Config:          natsout.Config{URL: cfg.NATS.URL, Subject: cfg.NATS.Subject},
		Logger:          logger,
		MetricsRegistry: metricsRegistry,
	})
	if err != nil {
		return fmt.Errorf("create nats mirror: %w", err)
	}
	if mirror.Enabled() {
		publishers = append(publishers, mirror)
	}

	wsOutput, err := wsout.NewOutput(wsout.Deps{
		Config: wsout.Config{
			Bind: cfg.Server.Bind,
			Port: cfg.Server.Port,
			Path: cfg.Server.Path,
		},
		Registry:        registry,
		Logger:          logger,
		MetricsRegistry: metricsRegistry,
	})
	if err != nil {
		return fmt.Errorf("create websocket output: %w", err)
	}

	// Device side: resolver picks the port, the link owns the handle.
	var resolver emg.Resolver
	if cfg.Serial.Device != "" {
		logger.Info("Serial device pinned by config", "device", cfg.Serial.Device)
		resolver = fixedResolver{device: cfg.Serial.Device}
	} else {
		resolver = serialport.NewResolver(logger, cfg.Serial.Markers)
	}

	var reclaimer serialport.Reclaimer
	if cfg.Serial.Reclaim {
		reclaimer = serialport.NewProcReclaimer(logger)
	}
	link := serialport.NewLink(serialport.LinkDeps{
		Config: serialport.LinkConfig{
			BaudRate:    cfg.Serial.BaudRate,
			ReadTimeout: cfg.Serial.ReadTimeout.Std(),
		},
		Reclaimer: reclaimer,
		Logger:    logger,
	})

	input, err := emg.NewInput(emg.Deps{
		Config: emg.Config{
			ConnectBackoff: cfg.Serial.ConnectBackoff.Std(),
			NoPortBackoff:  cfg.Serial.NoPortBackoff.Std(),
			RetryThreshold: cfg.Serial.RetryThreshold,
		},
		Resolver:        resolver,
		Link:            link,
		Decoder:         signal.NewDecoder(cfg.Serial.Threshold),
		Publishers:      publishers,
		Logger:          logger,
		MetricsRegistry: metricsRegistry,
	})
	if err != nil {
		return fmt.Errorf("create emg input: %w", err)
	}

	// Outputs start before the input so no event is dropped on the floor
	// during startup. Stop runs the same list in reverse.
	components := []component.LifecycleComponent{mirror, wsOutput, input}

	for _, c := range components {
		if err := c.Initialize(); err != nil {
			return fmt.Errorf("initialize %s: %w", c.Meta().Name, err)
		}
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	started := make([]component.LifecycleComponent, 0, len(components))
	for _, c := range components {
		if err := c.Start(ctx); err != nil {
			stopComponents(started, shutdownTimeout, logger)
			return fmt.Errorf("start %s: %w", c.Meta().Name, err)
		}
		started = append(started, c)
		logger.Info("Component started", "component", c.Meta().Name)
	}

	checker := health.NewChecker(appName)
	for _, c := range components {
		checker.Register(c)
	}

	adminServer := newAdminServer(cfg.Admin.Port, checker, metricsRegistry, logger)

	g, gctx := errgroup.WithContext(ctx)
	if adminServer != nil {
		g.Go(func() error {
			logger.Info("Admin server listening", "addr", adminServer.Addr)
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		if adminServer != nil {
			shutdownCtx, cancelAdmin := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelAdmin()
			if err := adminServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Admin server shutdown error", "error", err)
			}
		}
		return nil
	})

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("Shutting down after failure", "error", runErr)
	} else {
		logger.Info("Shutdown signal received")
	}

	stopComponents(started, shutdownTimeout, logger)
	logger.Info("Shutdown complete")
	return runErr
}

// newAdminServer builds the /healthz and /metrics server when a port is
// configured, returning nil when disabled.
func newAdminServer(port int, checker *health.Checker, metricsRegistry *metric.MetricsRegistry, logger *slog.Logger) *http.Server {
	if port <= 0 {
		logger.Info("Admin server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", checker.Handler())
	mux.Handle("/metrics", metricsRegistry.Handler())

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
}

func stopComponents(components []component.LifecycleComponent, timeout time.Duration, logger *slog.Logger) {
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.Stop(timeout); err != nil {
			logger.Warn("Component stop failed", "component", c.Meta().Name, "error", err)
		} else {
			logger.Info("Component stopped", "component", c.Meta().Name)
		}
	}
}
