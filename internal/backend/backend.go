// Package backend builds the run collaborators selected by the configuration.
package backend

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"seisqc/internal/availability"
	"seisqc/internal/config"
	"seisqc/internal/fdsn"
	"seisqc/internal/metric"
	"seisqc/internal/simple"
	"seisqc/internal/store"
	"seisqc/internal/stream"
)

// Backends holds the collaborators of a run and the resources behind them.
type Backends struct {
	simple.Collaborators

	// Metrics persists results; nil unless storage.sqlite_path is set.
	Metrics store.MetricStore
	// Version is the metric library version, unless overridden by
	// metrics.library_version.
	Version string

	closers []func() error
}

// Open wires the configured availability and data-select sources and the
// metric registry.
func Open(cfg *config.Config, log *slog.Logger) (*Backends, error) {
	registry := metric.NewRegistry()
	b := &Backends{Version: registry.Version()}
	if cfg.Metrics.LibraryVersion != "" {
		b.Version = cfg.Metrics.LibraryVersion
	}
	b.Calculator = registry

	var epochs store.EpochStore
	if cfg.Storage.SQLitePath != "" {
		db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", cfg.Storage.SQLitePath, err)
		}
		b.closers = append(b.closers, db.Close)
		epochs = db
		b.Metrics = db
	}

	var archive *store.LocalArchive
	if cfg.Storage.DataDir != "" {
		archive = store.NewLocalArchive(store.NewParquetStore(cfg.Storage.DataDir), epochs)
	}

	var client *fdsn.Client
	if cfg.Services.Availability == config.SourceFDSN || cfg.Services.DataSelect == config.SourceFDSN {
		client = NewFDSNClient(cfg, log)
	}

	var err error
	if b.Availability, err = pick[availability.Service](cfg.Services.Availability, client, archive); err != nil {
		b.Close()
		return nil, fmt.Errorf("services.availability: %w", err)
	}
	if b.DataSelect, err = pick[stream.DataSelect](cfg.Services.DataSelect, client, archive); err != nil {
		b.Close()
		return nil, fmt.Errorf("services.dataselect: %w", err)
	}
	return b, nil
}

func pick[T any](source string, client *fdsn.Client, archive *store.LocalArchive) (T, error) {
	var zero T
	switch source {
	case config.SourceFDSN:
		if v, ok := any(client).(T); ok {
			return v, nil
		}
	case config.SourceLocal:
		if archive == nil {
			return zero, errors.New("local source needs storage.data_dir")
		}
		if v, ok := any(archive).(T); ok {
			return v, nil
		}
	}
	return zero, fmt.Errorf("unknown source %q", source)
}

// NewFDSNClient builds the web-service client described by cfg.Services and
// the run selection.
func NewFDSNClient(cfg *config.Config, log *slog.Logger) *fdsn.Client {
	return fdsn.New(fdsn.Options{
		StationURL:      cfg.Services.StationURL,
		DataSelectURL:   cfg.Services.DataSelectURL,
		Selection:       fdsn.Selection(cfg.Run.Selection),
		Timeout:         cfg.Services.Timeout,
		RateLimitPerMin: cfg.Services.RateLimitPerMin,
		RateLimitBurst:  cfg.Services.RateLimitBurst,
	}, log)
}

// Close releases every resource opened by Open.
func (b *Backends) Close() error {
	var result *multierror.Error
	for _, c := range b.closers {
		if err := c(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	b.closers = nil
	return result.ErrorOrNil()
}
