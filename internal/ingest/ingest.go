// Package ingest fills the local archive from remote web services: channel
// epochs go to the epoch store and day-long sample streams to the waveform
// store, so later runs can use the local sources.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"seisqc/internal/availability"
	"seisqc/internal/domain"
	"seisqc/internal/simple"
	"seisqc/internal/store"
	"seisqc/internal/stream"
	"seisqc/internal/util"
)

// Stats counts what one Run stored.
type Stats struct {
	Days        int // windows with at least one channel
	DaysSkipped int // windows the availability source reported empty
	Channels    int // channel-days written
	Segments    int // traces written
	Epochs      int // distinct epochs saved
	NoData      int // channel-days the data source had nothing for
	Failed      int // channel-days whose fetch failed
}

// Ingester copies availability and samples into the local archive.
type Ingester struct {
	avail     availability.Service
	data      stream.DataSelect
	waveforms store.WaveformStore
	epochs    store.EpochStore
	log       *slog.Logger
}

// New creates an Ingester reading from avail and data.
func New(avail availability.Service, data stream.DataSelect, waveforms store.WaveformStore, epochs store.EpochStore, log *slog.Logger) *Ingester {
	return &Ingester{
		avail:     avail,
		data:      data,
		waveforms: waveforms,
		epochs:    epochs,
		log:       log.With("component", "ingest"),
	}
}

// Run ingests every UTC day of rng. A failed fetch is logged and counted
// and the channel-day is left out. Availability and store errors end the
// run.
func (in *Ingester) Run(ctx context.Context, rng domain.TimeRange) (Stats, error) {
	var st Stats
	saved := make(map[string]struct{})

	for _, w := range simple.DayWindows(rng) {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		date := util.DateString(w.Start)

		rows, err := in.avail.GetAvailability(ctx, w.Start, w.End)
		if err != nil && !errors.Is(err, domain.ErrNoAvailableData) {
			return st, fmt.Errorf("availability for %s: %w", date, err)
		}
		if len(rows) == 0 {
			in.log.Info("no channels available, skipping day", "date", date)
			st.DaysSkipped++
			continue
		}
		st.Days++

		for _, row := range rows {
			if row.Epoch == nil {
				continue
			}
			key := row.ID() + "@" + row.Epoch.Start.Format(time.RFC3339Nano)
			if _, ok := saved[key]; ok {
				continue
			}
			if err := in.epochs.SaveEpoch(ctx, row.ID(), *row.Epoch); err != nil {
				return st, fmt.Errorf("saving epoch of %s: %w", row.ID(), err)
			}
			saved[key] = struct{}{}
			st.Epochs++
		}

		channels := availability.Dedupe(rows)
		for _, sncl := range channels {
			s, err := in.data.GetDataSelect(ctx, sncl, w.Start, w.End, domain.EpochIgnore)
			if err != nil {
				if ctx.Err() != nil {
					return st, ctx.Err()
				}
				if stream.Classify(err) == stream.OutcomeNoData {
					in.log.Info("no data", "sncl", sncl.ID(), "date", date)
					st.NoData++
				} else {
					in.log.Warn("fetch failed", "sncl", sncl.ID(), "date", date, "err", err)
					st.Failed++
				}
				continue
			}
			if err := in.waveforms.WriteTraces(ctx, sncl, s.Traces); err != nil {
				return st, fmt.Errorf("writing %s %s: %w", sncl.ID(), date, err)
			}
			st.Channels++
			st.Segments += len(s.Traces)
		}
		in.log.Info("day ingested", "date", date, "channels", len(channels))
	}
	return st, nil
}
