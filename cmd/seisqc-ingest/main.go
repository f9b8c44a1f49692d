// One-shot tool: copy channel epochs and day-long sample streams for a time
// range from the FDSN services into the local archive (storage.data_dir and
// storage.sqlite_path), for later runs with the local sources.
//
// Usage:
//
//	go run ./cmd/seisqc-ingest [-config seisqc.yaml] -start 2024-03-01 [-end 2024-03-03]
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"

	"seisqc/internal/backend"
	"seisqc/internal/config"
	"seisqc/internal/ingest"
	"seisqc/internal/store"
	"seisqc/internal/util"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("SEISQC_CONFIG"), "config file (default $SEISQC_CONFIG)")
	start := flag.String("start", "", "start date or time, UTC (overrides run.start)")
	end := flag.String("end", "", "end date or time, UTC, exclusive (overrides run.end)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *start != "" {
		cfg.Run.Start = *start
	}
	if *end != "" {
		cfg.Run.End = *end
	}
	if err := validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func validate(cfg *config.Config) error {
	var result *multierror.Error
	if err := cfg.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := cfg.Range(); err != nil {
		result = multierror.Append(result, err)
	}
	if cfg.Storage.DataDir == "" {
		result = multierror.Append(result, errors.New("storage.data_dir is empty"))
	}
	if cfg.Storage.SQLitePath == "" {
		result = multierror.Append(result, errors.New("storage.sqlite_path is empty"))
	}
	return result.ErrorOrNil()
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	rng, err := cfg.Range()
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	client := backend.NewFDSNClient(cfg, logger)
	in := ingest.New(client, client, store.NewParquetStore(cfg.Storage.DataDir), db, logger)
	st, err := in.Run(ctx, rng)
	slog.Info("ingest finished",
		"days", st.Days, "days_skipped", st.DaysSkipped,
		"channels", st.Channels, "segments", st.Segments, "epochs", st.Epochs,
		"no_data", st.NoData, "failed", st.Failed)
	return err
}
