// Package availability resolves which channels have data in a window.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"seisqc/internal/domain"
)

// Service is the availability/metadata backend. It returns one row per
// channel epoch with data between start and end, or an error wrapping
// domain.ErrNoAvailableData when it knows of no data at all.
type Service interface {
	GetAvailability(ctx context.Context, start, end time.Time) ([]domain.SNCL, error)
}

// Resolver turns raw availability rows into the de-duplicated, filtered
// channel list for one window.
type Resolver struct {
	svc Service
	log *slog.Logger
}

// NewResolver creates a Resolver over svc.
func NewResolver(svc Service, log *slog.Logger) *Resolver {
	return &Resolver{svc: svc, log: log.With("component", "availability")}
}

// Resolve returns the channels with data in window whose code passes filter,
// keeping the first epoch seen for each SNCL identity and stamping each with
// the window's day.
//
// An error wrapping domain.ErrNoAvailableData is returned unchanged. An
// empty result with a nil error means nothing is available in this window.
func (r *Resolver) Resolve(ctx context.Context, window domain.TimeRange, filter ChannelFilter) ([]domain.SNCL, error) {
	rows, err := r.svc.GetAvailability(ctx, window.Start, window.End)
	if err != nil {
		if errors.Is(err, domain.ErrNoAvailableData) {
			return nil, err
		}
		return nil, fmt.Errorf("availability %s: %w", window, err)
	}

	out := Dedupe(Filter(rows, filter))
	for i := range out {
		out[i].Day = window.Start
	}

	r.log.Debug("resolved availability",
		"window", window.String(),
		"filter", filter.Name(),
		"rows", len(rows),
		"channels", len(out),
	)
	return out, nil
}

// Preflight queries availability for the whole range and discards the
// result. It surfaces credential and connectivity problems before any
// day-by-day work starts. Errors follow the same contract as Resolve.
func (r *Resolver) Preflight(ctx context.Context, rng domain.TimeRange) error {
	_, err := r.svc.GetAvailability(ctx, rng.Start, rng.End)
	if err == nil || errors.Is(err, domain.ErrNoAvailableData) {
		return err
	}
	return fmt.Errorf("availability preflight %s: %w", rng, err)
}

// Filter keeps rows whose channel code passes f, preserving order.
func Filter(rows []domain.SNCL, f ChannelFilter) []domain.SNCL {
	out := make([]domain.SNCL, 0, len(rows))
	for _, row := range rows {
		if f.Match(row.Channel) {
			out = append(out, row)
		}
	}
	return out
}

// Dedupe keeps the first row for each SNCL identity, preserving order.
func Dedupe(rows []domain.SNCL) []domain.SNCL {
	seen := make(map[string]struct{}, len(rows))
	out := make([]domain.SNCL, 0, len(rows))
	for _, row := range rows {
		id := row.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, row)
	}
	return out
}
