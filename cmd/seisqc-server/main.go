// seisqc-server serves metric runs over gRPC.
//
// Usage:
//
//	SEISQC_CONFIG=seisqc.yaml go run ./cmd/seisqc-server
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"seisqc/internal/api"
	"seisqc/internal/backend"
	"seisqc/internal/config"
	"seisqc/internal/util"
)

func main() {
	cfg, err := config.Load(os.Getenv("SEISQC_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	b, err := backend.Open(cfg, logger)
	if err != nil {
		log.Fatalf("failed to open backends: %v", err)
	}
	defer b.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := api.NewServer(cfg, api.NewSimpleMetricsService(cfg, b, logger), logger)
	slog.Info("seisqc-server starting", "addr", srv.Addr(), "metric_library", b.Version)
	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
