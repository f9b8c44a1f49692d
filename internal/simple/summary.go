package simple

import (
	"seisqc/internal/domain"
	"seisqc/internal/stream"
)

// Status describes how a run ended.
type Status string

const (
	StatusOK Status = "ok"
	// StatusNoAvailableData: the availability service knows of no data in
	// the requested range. Run returns the error.
	StatusNoAvailableData Status = "no_available_data"
	// StatusNoResult: availability resolution failed for another reason.
	StatusNoResult Status = "no_result"
	// StatusNoMetrics: processing completed without producing any output.
	StatusNoMetrics Status = "no_metrics"
	StatusCancelled Status = "cancelled"
)

// Summary counts what happened during a run.
type Summary struct {
	Status Status

	Days        int // day windows with available channels
	DaysSkipped int // day windows with nothing available
	ChannelDays int // channel-days attempted

	// ChannelsSkipped counts channel-days abandoned after a fetch failure,
	// keyed by stream.Outcome name.
	ChannelsSkipped map[string]int
	// Ineligible counts family invocations skipped for the channel code,
	// keyed by family name.
	Ineligible map[string]int
	// MetricFailures counts failed invocations keyed by family name.
	MetricFailures map[string]int

	Frames  int // successful invocations accumulated
	Records int // rows in the final result
}

func newSummary() Summary {
	return Summary{
		ChannelsSkipped: make(map[string]int),
		Ineligible:      make(map[string]int),
		MetricFailures:  make(map[string]int),
	}
}

func (s *Summary) skipChannel(o stream.Outcome) { s.ChannelsSkipped[o.String()]++ }

func (s *Summary) ineligible(f domain.Family) { s.Ineligible[f.String()]++ }

func (s *Summary) failed(f domain.Family) { s.MetricFailures[f.String()]++ }

func (s Summary) clone() Summary {
	out := s
	out.ChannelsSkipped = cloneCounts(s.ChannelsSkipped)
	out.Ineligible = cloneCounts(s.Ineligible)
	out.MetricFailures = cloneCounts(s.MetricFailures)
	return out
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
