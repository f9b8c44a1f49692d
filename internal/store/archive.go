package store

import (
	"context"
	"fmt"
	"time"

	"seisqc/internal/availability"
	"seisqc/internal/domain"
	"seisqc/internal/stream"
)

var _ availability.Service = (*LocalArchive)(nil)
var _ stream.DataSelect = (*LocalArchive)(nil)

// LocalArchive serves availability and sample streams from a local
// waveform store and its epoch metadata.
type LocalArchive struct {
	waveforms *ParquetStore
	epochs    EpochStore
}

// NewLocalArchive joins a waveform store and an epoch store.
func NewLocalArchive(waveforms *ParquetStore, epochs EpochStore) *LocalArchive {
	return &LocalArchive{waveforms: waveforms, epochs: epochs}
}

// GetAvailability lists the channels with a day file in [start, end), one
// row per recorded epoch overlapping the range. A channel without epoch
// metadata yields a single row without an epoch. It returns
// domain.ErrNoAvailableData when the archive holds no channels at all.
func (a *LocalArchive) GetAvailability(ctx context.Context, start, end time.Time) ([]domain.SNCL, error) {
	ids, err := a.waveforms.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing archive channels: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("local archive %s: %w", a.waveforms.DataDir, domain.ErrNoAvailableData)
	}

	rng := domain.TimeRange{Start: start, End: end}
	var out []domain.SNCL
	for _, id := range ids {
		if !a.waveforms.HasData(id, start, end) {
			continue
		}
		base, err := domain.ParseSNCL(id)
		if err != nil {
			continue
		}
		epochs, err := a.overlapping(ctx, id, rng)
		if err != nil {
			return nil, err
		}
		if len(epochs) == 0 {
			out = append(out, base)
			continue
		}
		for i := range epochs {
			row := base
			row.Epoch = &epochs[i]
			out = append(out, row)
		}
	}
	return out, nil
}

// GetDataSelect returns the samples of sncl in [start, end). Under
// domain.EpochStrict it fails with domain.ErrMultipleEpochs when more than
// one epoch overlaps the window.
func (a *LocalArchive) GetDataSelect(ctx context.Context, sncl domain.SNCL, start, end time.Time, policy domain.EpochPolicy) (*domain.SampleStream, error) {
	id := sncl.ID()
	if policy == domain.EpochStrict {
		epochs, err := a.overlapping(ctx, id, domain.TimeRange{Start: start, End: end})
		if err != nil {
			return nil, err
		}
		if len(epochs) > 1 {
			return nil, fmt.Errorf("%s: %d epochs: %w", id, len(epochs), domain.ErrMultipleEpochs)
		}
	}

	traces, err := a.waveforms.ReadTraces(ctx, id, start, end)
	if err != nil {
		return nil, err
	}
	if len(traces) == 0 {
		return nil, fmt.Errorf("%s %s: %w", id, start.Format("2006-01-02"), domain.ErrNoData)
	}
	return &domain.SampleStream{SNCL: sncl, Start: start, End: end, Traces: traces}, nil
}

func (a *LocalArchive) overlapping(ctx context.Context, id string, rng domain.TimeRange) ([]domain.Epoch, error) {
	if a.epochs == nil {
		return nil, nil
	}
	all, err := a.epochs.ListEpochs(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []domain.Epoch
	for _, e := range all {
		if e.Overlaps(rng) {
			out = append(out, e)
		}
	}
	return out, nil
}
