// Package store defines storage interfaces for the local seismic archive:
// waveform segments, channel epoch metadata and computed metrics.
package store

import (
	"context"
	"time"

	"seisqc/internal/domain"
)

// WaveformStore persists and retrieves contiguous trace segments per channel.
type WaveformStore interface {
	// WriteTraces persists traces recorded on one channel.
	WriteTraces(ctx context.Context, sncl domain.SNCL, traces []domain.Trace) error

	// ReadTraces returns the traces of channel id clipped to [start, end).
	ReadTraces(ctx context.Context, id string, start, end time.Time) ([]domain.Trace, error)

	// ListChannels returns the IDs of all channels holding data.
	ListChannels(ctx context.Context) ([]string, error)
}

// EpochStore persists channel metadata epochs.
type EpochStore interface {
	// SaveEpoch inserts or replaces the epoch of channel id starting at e.Start.
	SaveEpoch(ctx context.Context, id string, e domain.Epoch) error

	// ListEpochs returns the epochs of channel id ordered by start.
	ListEpochs(ctx context.Context, id string) ([]domain.Epoch, error)
}

// MetricStore persists metric results.
type MetricStore interface {
	// SaveMetrics inserts or replaces a batch of records.
	SaveMetrics(ctx context.Context, recs []domain.MetricRecord) error

	// ListMetrics returns records of channel id starting within [start, end).
	// An empty id matches every channel.
	ListMetrics(ctx context.Context, id string, start, end time.Time) ([]domain.MetricRecord, error)
}
