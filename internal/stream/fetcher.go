// Package stream retrieves sample streams for one channel-day and classifies
// retrieval failures.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"seisqc/internal/domain"
)

// DataSelect is the raw sample-stream backend.
type DataSelect interface {
	GetDataSelect(ctx context.Context, sncl domain.SNCL, start, end time.Time, policy domain.EpochPolicy) (*domain.SampleStream, error)
}

// Outcome classifies the result of one fetch.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNoData
	OutcomeMultipleEpochs
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNoData:
		return "no_data"
	case OutcomeMultipleEpochs:
		return "multiple_epochs"
	default:
		return "failed"
	}
}

// Classify maps a fetch error to an Outcome. Backends that do not wrap the
// domain sentinels are classified by their message text.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, domain.ErrNoData), strings.Contains(msg, "no data"):
		return OutcomeNoData
	case errors.Is(err, domain.ErrMultipleEpochs), strings.Contains(msg, "multiple epochs"):
		return OutcomeMultipleEpochs
	default:
		return OutcomeFailed
	}
}

// Fetcher retrieves one stream per call and logs any failure with its
// classification. A failure is final for that channel-day.
type Fetcher struct {
	svc     DataSelect
	backend string
	log     *slog.Logger
}

// NewFetcher creates a Fetcher. backend identifies the data source in
// warnings, e.g. the data-select URL or the local archive path.
func NewFetcher(svc DataSelect, backend string, log *slog.Logger) *Fetcher {
	return &Fetcher{svc: svc, backend: backend, log: log.With("component", "stream")}
}

// Fetch retrieves the stream for sncl over window. The stream is nil unless
// the outcome is OutcomeOK.
func (f *Fetcher) Fetch(ctx context.Context, sncl domain.SNCL, window domain.TimeRange, policy domain.EpochPolicy) (*domain.SampleStream, Outcome) {
	s, err := f.svc.GetDataSelect(ctx, sncl, window.Start, window.End, policy)
	if err == nil && s == nil {
		err = domain.ErrNoData
	}

	outcome := Classify(err)
	switch outcome {
	case OutcomeOK:
		return s, outcome
	case OutcomeNoData:
		f.log.Info("no data available", "sncl", sncl.ID(), "day", window.Start.Format("2006-01-02"))
	case OutcomeMultipleEpochs:
		f.log.Info("skipping channel, multiple metadata epochs found",
			"sncl", sncl.ID(), "day", window.Start.Format("2006-01-02"))
	default:
		f.log.Warn("stream fetch failed",
			"sncl", sncl.ID(),
			"day", window.Start.Format("2006-01-02"),
			"backend", f.backend,
			"policy", policy.String(),
			"err", err,
		)
	}
	return nil, outcome
}
