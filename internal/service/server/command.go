package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
	"github.com/oshokin/catpoint/internal/version"
)

// Options controls the catpoint-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile specifies the path to persist controller state JSON.
	StateFile string
}

// metricsShutdownTimeout bounds the graceful stop of the metrics endpoint.
const metricsShutdownTimeout = 5 * time.Second

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server and blocks until context is canceled or server stops.
// Loads configuration first, then determines listen address from config or override.
//
//nolint:funlen // Sequential wiring of the process components.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "catpoint-server")

	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = logger.SetLevelName(settings.LogLevel); err != nil {
		return fmt.Errorf("set log level: %w", err)
	}

	// Use StateFile from config unless overridden by command line option.
	stateFile := settings.StateFile
	if opts.StateFile != "" {
		stateFile = opts.StateFile
	}

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	parts, err := newComponents(ctx, settings, stateFile)
	if err != nil {
		return fmt.Errorf("initialise controller: %w", err)
	}
	defer parts.close()

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer()
	api.RegisterSecurityServiceServer(grpcServer, api.NewServer(parts.controller))

	logger.InfoKV(ctx, "Catpoint server listening",
		"listen_address", listenAddress,
		"state_file", stateFile,
		"version", version.Short(),
	)

	// Background workers stop when runCtx is canceled, either by the caller
	// or because the gRPC server exited on its own.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	if parts.metrics != nil {
		wg.Go(func() {
			serveMetrics(runCtx, settings.MetricsAddress, parts.metrics)
		})
	}

	if parts.mqttListener != nil {
		wg.Go(func() {
			parts.mqttListener.Run(runCtx)
		})
	}

	if parts.camera != nil {
		wg.Go(func() {
			_ = parts.camera.Run(runCtx) //nolint:errcheck // Run only returns on cancellation.
		})
	}

	wg.Go(func() {
		<-runCtx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
	})

	err = grpcServer.Serve(lis)

	cancel()
	wg.Wait()

	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// serveMetrics exposes the Prometheus endpoint until ctx is canceled.
func serveMetrics(ctx context.Context, address string, metrics *notify.Metrics) {
	mux := http.NewServeMux()
	mux.Handle(notify.MetricsPath, metrics.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: metricsShutdownTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx) //nolint:errcheck // Best effort on exit.
	}()

	logger.InfoKV(ctx, "Metrics endpoint listening", "metrics_address", address, "path", notify.MetricsPath)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorKV(ctx, "Metrics endpoint failed", "error", err)
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}
