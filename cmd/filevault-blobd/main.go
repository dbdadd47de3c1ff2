// Command filevault-blobd serves a local FileStore over the BlobStore gRPC
// service, with health and Prometheus endpoints on a separate HTTP listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/bitfsorg/filevault-go/config"
	"github.com/bitfsorg/filevault-go/storage"
	"github.com/bitfsorg/filevault-go/storage/grpcstore"
	"github.com/bitfsorg/filevault-go/vault"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "config file (default <datadir>/config)")
	listen := flag.String("listen", "", "gRPC listen address (overrides config)")
	metrics := flag.String("metrics", "", "HTTP listen address for /healthz and /metrics (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "filevault-blobd:", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *metrics != "" {
		cfg.MetricsAddr = *metrics
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "filevault-blobd:", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("blobd exited", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads path, or the default location when path is empty, then
// overlays FILEVAULT_* variables. A missing file means defaults.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = config.ConfigPath(config.DefaultDataDir())
	}
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, config.ErrConfigNotFound) {
		cfg, err = config.DefaultConfig(), nil
	}
	if err != nil {
		return cfg, err
	}
	return config.ApplyEnv(cfg, config.Environ())
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := storage.NewFileStore(filepath.Join(cfg.DataDir, vault.BlobDirName))
	if err != nil {
		return err
	}
	defer store.Close()

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}

	gs := grpc.NewServer(grpcstore.ServerOptions(cfg.GRPCMaxMsg)...)
	grpcstore.RegisterBlobStoreServer(gs, &grpcstore.Server{Store: store})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var httpSrv *http.Server
	if cfg.MetricsAddr != "" {
		httpSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newRouter(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC blob store listening", "addr", lis.Addr().String(), "datadir", cfg.DataDir, "max_msg_bytes", cfg.GRPCMaxMsg)
		if err := gs.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	if httpSrv != nil {
		go func() {
			logger.Info("HTTP listening", "addr", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		gs.Stop()
	}
	logger.Info("stopped")
	return runErr
}

// newRouter serves /healthz and /metrics from reg.
func newRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}
