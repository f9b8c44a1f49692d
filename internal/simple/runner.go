// Package simple computes the simple quality-control metrics over a time
// range, one UTC day, one channel and one metric family at a time. Failures
// are isolated to the smallest unit they affect: a metric, a channel-day or
// a day. Only availability failures end the run.
package simple

import (
	"context"
	"errors"
	"log/slog"

	"seisqc/internal/availability"
	"seisqc/internal/domain"
	"seisqc/internal/metric"
	"seisqc/internal/stream"
)

// Collaborators are the external services a Runner depends on.
type Collaborators struct {
	Availability availability.Service
	DataSelect   stream.DataSelect
	Calculator   metric.Calculator
}

// Runner executes one metric run.
type Runner struct {
	rc       domain.RunContext
	resolver *availability.Resolver
	fetcher  *stream.Fetcher
	dispatch *Dispatcher
	log      *slog.Logger
	summary  Summary
}

// NewRunner creates a Runner for rc.
func NewRunner(rc domain.RunContext, deps Collaborators, log *slog.Logger) *Runner {
	r := &Runner{
		rc:       rc,
		resolver: availability.NewResolver(deps.Availability, log),
		fetcher:  stream.NewFetcher(deps.DataSelect, rc.DataSelectURL(), log),
		log:      log.With("component", "simple"),
		summary:  newSummary(),
	}
	r.dispatch = newDispatcher(rc, r.fetcher, deps.Calculator, &r.summary, r.log)
	return r
}

// Summary returns a copy of the counters collected by the last Run.
func (r *Runner) Summary() Summary { return r.summary.clone() }

// Run computes the requested metrics.
//
// It returns a non-nil error only for domain.ErrNoAvailableData or context
// cancellation. Any other availability failure is logged and reported as
// (nil, nil), as is a run that produced no metric output at all. A non-nil
// ResultSet may be empty when every produced row was filtered out.
func (r *Runner) Run(ctx context.Context) (*domain.ResultSet, error) {
	r.summary = newSummary()
	rng := r.rc.Range()
	filter := availability.FilterFor(r.rc.Families())
	r.log.Info("starting simple metrics",
		"start", rng.Start, "end", rng.End,
		"metrics", r.rc.AcceptedMetrics(),
		"library_version", r.rc.LibraryVersion(),
		"dataselect", r.rc.DataSelectURL())
	r.log.Debug("channel filter selected", "filter", filter.Name(), "pattern", filter.Pattern())

	if DayCount(rng) > 1 && !r.rc.StationMetadata() {
		if err := r.resolver.Preflight(ctx, rng); err != nil {
			return r.availabilityFailed(ctx, rng, err)
		}
	}

	acc := &Accumulator{}
	for _, window := range DayWindows(rng) {
		if err := ctx.Err(); err != nil {
			return r.cancelled(err)
		}

		sncls, err := r.resolver.Resolve(ctx, window, filter)
		if err != nil {
			return r.availabilityFailed(ctx, window, err)
		}
		if len(sncls) == 0 {
			r.log.Info("no channels available, skipping day", "day", window.Start.Format("2006-01-02"))
			r.summary.DaysSkipped++
			continue
		}

		r.summary.Days++
		r.log.Info("calculating simple metrics",
			"day", window.Start.Format("2006-01-02"), "channels", len(sncls))

		for i, sncl := range sncls {
			if err := ctx.Err(); err != nil {
				return r.cancelled(err)
			}
			r.log.Info("calculating simple metrics for channel",
				"sncl", sncl.ID(), "index", i+1, "channels", len(sncls))
			r.summary.ChannelDays++

			s, outcome := r.fetcher.Fetch(ctx, sncl, window, domain.EpochIgnore)
			if outcome != stream.OutcomeOK {
				r.summary.skipChannel(outcome)
				continue
			}
			r.dispatch.Dispatch(ctx, sncl, window, s, acc)
		}
	}

	rs := Aggregate(acc.frames, r.rc.Accepts)
	if rs == nil {
		r.log.Warn("simple metric calculation generated zero metrics",
			"start", rng.Start, "end", rng.End)
		r.summary.Status = StatusNoMetrics
		return nil, nil
	}
	r.summary.Status = StatusOK
	r.summary.Records = rs.Len()
	r.log.Info("simple metrics complete",
		"frames", acc.Frames(), "records", rs.Len(), "days", r.summary.Days)
	return rs, nil
}

func (r *Runner) availabilityFailed(ctx context.Context, rng domain.TimeRange, err error) (*domain.ResultSet, error) {
	if errors.Is(err, domain.ErrNoAvailableData) {
		r.summary.Status = StatusNoAvailableData
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return r.cancelled(ctxErr)
	}
	r.log.Error("availability lookup failed",
		"start", rng.Start, "end", rng.End, "err", err)
	r.summary.Status = StatusNoResult
	return nil, nil
}

func (r *Runner) cancelled(err error) (*domain.ResultSet, error) {
	r.summary.Status = StatusCancelled
	return nil, err
}
