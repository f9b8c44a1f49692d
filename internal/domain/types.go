// Package domain defines the core value types shared by every stage of a
// metric run: channels, time windows, sample streams and metric rows.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeRange is a closed-open interval of absolute UTC timestamps.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange normalises start and end to UTC and rejects start > end.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	start, end = start.UTC(), end.UTC()
	if start.After(end) {
		return TimeRange{}, fmt.Errorf("time range start %s is after end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeRange{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration { return r.End.Sub(r.Start) }

func (r TimeRange) String() string {
	return r.Start.Format(time.RFC3339) + "/" + r.End.Format(time.RFC3339)
}

// Epoch is an interval over which a channel's metadata is valid. A zero End
// means the epoch is still open.
type Epoch struct {
	Start      time.Time
	End        time.Time
	SampleRate float64
}

// Overlaps reports whether the epoch is valid at any instant of r.
func (e Epoch) Overlaps(r TimeRange) bool {
	if !e.Start.Before(r.End) {
		return false
	}
	return e.End.IsZero() || e.End.After(r.Start)
}

// SNCL names one physical recording channel, optionally qualified by the
// metadata epoch the availability feed reported it under.
type SNCL struct {
	Network  string
	Station  string
	Location string
	Channel  string

	Epoch *Epoch    // nil when the feed carries no epoch information
	Day   time.Time // availability day the resolver produced it for
}

// ID returns the dotted NET.STA.LOC.CHA identity. Epoch and Day are not part
// of the identity.
func (s SNCL) ID() string {
	return s.Network + "." + s.Station + "." + s.Location + "." + s.Channel
}

func (s SNCL) String() string { return s.ID() }

// ParseSNCL splits a dotted NET.STA.LOC.CHA identifier.
func ParseSNCL(id string) (SNCL, error) {
	parts := strings.Split(id, ".")
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" || parts[3] == "" {
		return SNCL{}, fmt.Errorf("invalid sncl %q: want NET.STA.LOC.CHA", id)
	}
	return SNCL{Network: parts[0], Station: parts[1], Location: parts[2], Channel: parts[3]}, nil
}

// Trace is one contiguous run of evenly spaced samples.
type Trace struct {
	Start      time.Time
	SampleRate float64 // samples per second
	Samples    []float64

	// Flags lists the state-of-health flags raised in the records that make
	// up this trace, one entry per occurrence.
	Flags []string
	// TimingQuality is the clock quality percentage, nil when not reported.
	TimingQuality *int
}

// End returns the time just past the last sample.
func (t Trace) End() time.Time {
	if t.SampleRate <= 0 || len(t.Samples) == 0 {
		return t.Start
	}
	return t.Start.Add(time.Duration(float64(len(t.Samples)) / t.SampleRate * float64(time.Second)))
}

// SampleStream is the raw time series for one SNCL over one window.
type SampleStream struct {
	SNCL   SNCL
	Start  time.Time
	End    time.Time
	Traces []Trace
}

// SamplingRate returns the rate of the first trace, or 0 for an empty stream.
func (s *SampleStream) SamplingRate() float64 {
	if s == nil || len(s.Traces) == 0 {
		return 0
	}
	return s.Traces[0].SampleRate
}

// Samples returns all samples of all traces, concatenated in trace order.
func (s *SampleStream) Samples() []float64 {
	n := 0
	for _, t := range s.Traces {
		n += len(t.Samples)
	}
	out := make([]float64, 0, n)
	for _, t := range s.Traces {
		out = append(out, t.Samples...)
	}
	return out
}

// MetricRecord is one computed metric value for one channel and window.
type MetricRecord struct {
	MetricName string
	SNCLID     string
	Start      time.Time
	End        time.Time
	Value      float64
}

// ResultSet is the final table of a run. A nil *ResultSet means the run
// produced nothing; a non-nil set with no records is a present, empty table.
type ResultSet struct {
	Records []MetricRecord
}

// Len returns the number of records, treating nil as empty.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Records)
}

// EpochPolicy controls how a stream fetch treats a channel with several
// metadata epochs inside the requested window.
type EpochPolicy int

const (
	// EpochIgnore uses the requested window regardless of epoch boundaries.
	EpochIgnore EpochPolicy = iota
	// EpochStrict fails with ErrMultipleEpochs when the window is ambiguous.
	EpochStrict
)

func (p EpochPolicy) String() string {
	if p == EpochStrict {
		return "strict"
	}
	return "ignore"
}
