package metric

import (
	"sort"
	"time"

	"seisqc/internal/domain"
)

// Gaps reports gaps and overlaps between consecutive traces, counting
// missing data at either end of the window as gaps, and the percentage of
// the window covered by data.
func Gaps(s *domain.SampleStream, _ domain.Params) ([]domain.MetricRecord, error) {
	window := s.End.Sub(s.Start)

	traces := append([]domain.Trace(nil), s.Traces...)
	sort.SliceStable(traces, func(i, j int) bool { return traces[i].Start.Before(traces[j].Start) })

	var (
		numGaps, numOverlaps int
		maxGap, maxOverlap   time.Duration
	)
	addGap := func(d time.Duration) {
		numGaps++
		if d > maxGap {
			maxGap = d
		}
	}

	cursor := s.Start
	for i, tr := range traces {
		tolerance := halfSample(tr.SampleRate)
		delta := tr.Start.Sub(cursor)
		switch {
		case delta > tolerance:
			addGap(delta)
		case i > 0 && delta < -tolerance:
			numOverlaps++
			if -delta > maxOverlap {
				maxOverlap = -delta
			}
		}
		if end := tr.End(); end.After(cursor) {
			cursor = end
		}
	}
	if len(traces) == 0 {
		addGap(window)
	} else if tail := s.End.Sub(cursor); tail > halfSample(traces[len(traces)-1].SampleRate) {
		addGap(tail)
	}

	var pct float64
	if window > 0 {
		pct = float64(coverage(traces, s.Start, s.End)) / float64(window) * 100
	}

	return []domain.MetricRecord{
		record(s, "num_gaps", float64(numGaps)),
		record(s, "max_gap", maxGap.Seconds()),
		record(s, "num_overlaps", float64(numOverlaps)),
		record(s, "max_overlap", maxOverlap.Seconds()),
		record(s, "percent_availability", pct),
	}, nil
}

func halfSample(rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(0.5 / rate * float64(time.Second))
}

// coverage returns the length of the union of traces clipped to [start, end).
// traces must be sorted by start.
func coverage(traces []domain.Trace, start, end time.Time) time.Duration {
	var total time.Duration
	cursor := start
	for _, tr := range traces {
		from, to := tr.Start, tr.End()
		if from.Before(cursor) {
			from = cursor
		}
		if to.After(end) {
			to = end
		}
		if to.After(from) {
			total += to.Sub(from)
			cursor = to
		}
	}
	return total
}
