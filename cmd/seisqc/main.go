// One-shot tool: compute simple QC metrics for a time range and write them
// to the configured outputs (CSV on stdout when none is configured).
//
// Usage:
//
//	go run ./cmd/seisqc [-config seisqc.yaml] -start 2024-03-01 [-end 2024-03-03] -metrics gaps,sample_mean
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"seisqc/internal/backend"
	"seisqc/internal/config"
	"seisqc/internal/domain"
	"seisqc/internal/metric"
	"seisqc/internal/report"
	"seisqc/internal/simple"
	"seisqc/internal/store"
	"seisqc/internal/util"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("SEISQC_CONFIG"), "config file (default $SEISQC_CONFIG)")
	start := flag.String("start", "", "start date or time, UTC (overrides run.start)")
	end := flag.String("end", "", "end date or time, UTC, exclusive (overrides run.end)")
	metrics := flag.String("metrics", "", "comma-separated metric or family names (overrides run.metrics)")
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
	if *metrics != "" {
		cfg.Run.Metrics = strings.Split(*metrics, ",")
	}
	if err := cfg.ValidateRun(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		if errors.Is(err, domain.ErrNoAvailableData) {
			slog.Error("no data available for the requested range", "err", err)
		} else {
			slog.Error("run failed", "err", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	b, err := backend.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	rc, err := cfg.BuildRunContext(metric.Catalog(), b.Version)
	if err != nil {
		return err
	}

	began := time.Now()
	runner := simple.NewRunner(rc, b.Collaborators, logger)
	rs, err := runner.Run(ctx)
	summary := runner.Summary()
	elapsed := time.Since(began)

	if cfg.Output.SummaryPath != "" {
		if werr := report.WriteSummaryFile(cfg.Output.SummaryPath, summary, elapsed); werr != nil {
			slog.Error("writing summary failed", "path", cfg.Output.SummaryPath, "err", werr)
		}
	}
	if err != nil {
		return err
	}
	if rs == nil {
		slog.Warn("run produced no result", "status", summary.Status)
		return nil
	}
	return writeOutputs(ctx, cfg, b, rs)
}

func writeOutputs(ctx context.Context, cfg *config.Config, b *backend.Backends, rs *domain.ResultSet) error {
	out := cfg.Output
	if out.CSVPath == "" && out.ParquetPath == "" && !out.SQLite {
		return report.WriteCSV(os.Stdout, rs.Records)
	}

	if out.CSVPath != "" {
		if err := report.WriteCSVFile(out.CSVPath, rs.Records); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		slog.Info("wrote csv", "path", out.CSVPath, "records", rs.Len())
	}
	if out.ParquetPath != "" {
		if err := store.WriteMetricsParquet(out.ParquetPath, rs.Records); err != nil {
			return fmt.Errorf("writing parquet: %w", err)
		}
		slog.Info("wrote parquet", "path", out.ParquetPath, "records", rs.Len())
	}
	if out.SQLite && b.Metrics != nil {
		if err := b.Metrics.SaveMetrics(ctx, rs.Records); err != nil {
			return fmt.Errorf("saving metrics: %w", err)
		}
		slog.Info("saved metrics", "path", cfg.Storage.SQLitePath, "records", rs.Len())
	}
	return nil
}
