package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/calibd"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/store"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/logger"
)

type serveOptions struct {
	configPath        string
	grpcAddr          string
	httpAddr          string
	dataDir           string
	maxConcurrentRuns int
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the calibration daemon (gRPC and HTTP)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.serverConfig(cmd.Flags())
			if err != nil {
				return err
			}
			applyConfigLogLevel(cmd, cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}

// applyConfigLogLevel switches the default logger to the config file's
// log_level unless --log-level was given.
func applyConfigLogLevel(cmd *cobra.Command, cfg *config.ServerConfig) bool {
	level := cmd.Flag("log-level")
	if level == nil || level.Changed {
		return false
	}
	format := "text"
	if f := cmd.Flag("log-format"); f != nil {
		format = f.Value.String()
	}
	setupLogger(cfg.LogLevel, format)
	return true
}

func (o *serveOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", "", "daemon configuration file")
	fs.StringVar(&o.grpcAddr, "grpc-addr", "", "gRPC listen address (overrides config)")
	fs.StringVar(&o.httpAddr, "http-addr", "", "HTTP listen address (overrides config)")
	fs.StringVar(&o.dataDir, "data-dir", "", "scheme and run store directory (overrides config)")
	fs.IntVar(&o.maxConcurrentRuns, "max-concurrent-runs", 0, "runs annealing at once (overrides config)")
}

// serverConfig loads the config file, if any, and applies flags that were set
func (o *serveOptions) serverConfig(flags *pflag.FlagSet) (*config.ServerConfig, error) {
	cfg := config.DefaultServerConfig()
	if o.configPath != "" {
		loaded, err := config.LoadServerConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.Changed("grpc-addr") {
		cfg.GRPCAddr = o.grpcAddr
	}
	if flags.Changed("http-addr") {
		cfg.HTTPAddr = o.httpAddr
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = o.dataDir
	}
	if flags.Changed("max-concurrent-runs") {
		if o.maxConcurrentRuns <= 0 {
			return nil, fmt.Errorf("max-concurrent-runs must be positive")
		}
		cfg.MaxConcurrentRuns = o.maxConcurrentRuns
	}
	if cfg.GRPCAddr == "" && cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("at least one of grpc-addr or http-addr must be set")
	}
	return cfg, nil
}

func openStore(cfg *config.ServerConfig) (*store.Store, error) {
	storeCfg := store.InMemoryConfig()
	if cfg.DataDir != "" {
		storeCfg = store.Config{Path: cfg.DataDir}
	}
	storeCfg.Logger = logger.Component("badger")
	return store.Open(storeCfg)
}

// serve runs the daemon until ctx is cancelled
func serve(ctx context.Context, cfg *config.ServerConfig) error {
	schemes, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := schemes.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	runs := calibd.NewRunStore()
	if persisted, err := schemes.ListRuns(); err != nil {
		logger.Warn("failed to load persisted runs", "error", err)
	} else {
		runs.Load(persisted)
		logger.Info("loaded persisted runs", "count", len(persisted))
	}
	executor := calibd.NewRunExecutor(runs, schemes, calibd.ExecutorOptions{
		MaxConcurrentRuns: cfg.MaxConcurrentRuns,
		Defaults:          cfg.Annealing,
		Callbacks:         cfg.Callbacks,
	})

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	if cfg.DataDir != "" {
		go schemes.RunGC(ctx, 10*time.Minute, 0.5)
	}

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.GRPCAddr, err)
		}
		// TODO: Configure gRPC server security (TLS, authentication) before
		// exposing the daemon outside a trusted network.
		grpcServer = grpc.NewServer()
		calibd.RegisterCalibrationServiceServer(grpcServer, calibd.NewCalibrationGRPCServer(runs, executor))
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(grpcLis); err != nil {
				logger.Error("gRPC server error", "error", err)
				stop()
			}
		}()
	}

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		httpSrv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           calibd.NewHTTPServer(runs, executor).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
	}
	if err := executor.Shutdown(shutdownCtx); err != nil {
		logger.Error("executor shutdown error", "error", err)
	}
	return nil
}
