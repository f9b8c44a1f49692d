package simple

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"seisqc/internal/domain"
	"seisqc/internal/metric"
	"seisqc/internal/stream"
)

// Fixed family parameters.
const (
	staSecs           = 3.0
	ltaSecs           = 30.0
	spikeWindowSize   = 41
	spikeThresholdMin = 10.0
)

// staltaPrefixes are the band/instrument codes of broadband, high-gain and
// short-period seismometers and accelerometers.
var staltaPrefixes = []string{
	"BH", "HH", "CH", "DH", "EH", "SH", "LH", "MH",
	"DP", "SP", "LP", "EP", "EL", "HL", "LL", "BL", "SL",
	"BX", "HX", "NH", "XH", "EN",
}

var spikePrefixes = []string{"BH", "HH", "SH", "EH", "BX", "HX", "NH", "XH", "DH"}

// legacySOHMetrics are dropped from stateOfHealth output for local data when
// the metric library predates reliable flag decoding. "event_in_progess" is
// the historical name; the calculators emit "event_in_progress".
var legacySOHMetrics = map[string]struct{}{
	"calibration_signal": {},
	"clock_locked":       {},
	"event_begin":        {},
	"event_end":          {},
	"event_in_progess":   {},
	"event_in_progress":  {},
	"timing_correction":  {},
	"timing_quality":     {},
}

// STALTAEligible reports whether a channel code may reach the STA/LTA calculator.
func STALTAEligible(channel string) bool { return hasPrefix(channel, staltaPrefixes) }

// NumSpikesEligible reports whether a channel code may reach the spike counter.
func NumSpikesEligible(channel string) bool { return hasPrefix(channel, spikePrefixes) }

func anyChannel(string) bool { return true }

func hasPrefix(channel string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(channel, p) {
			return true
		}
	}
	return false
}

type streamSource int

const (
	sharedStream streamSource = iota // the channel-day stream fetched with EpochIgnore
	strictStream                     // a separate fetch with EpochStrict
)

// familySpec describes how one family is dispatched.
type familySpec struct {
	family   domain.Family
	eligible func(channel string) bool
	source   streamSource
	params   func(s *domain.SampleStream) domain.Params
	post     func(rc domain.RunContext, recs []domain.MetricRecord) []domain.MetricRecord
}

func noParams(*domain.SampleStream) domain.Params { return domain.Params{} }

// familyTable is iterated in order for every channel-day.
var familyTable = []familySpec{
	{family: domain.FamilyGaps, eligible: anyChannel, source: sharedStream, params: noParams},
	{family: domain.FamilyStateOfHealth, eligible: anyChannel, source: sharedStream, params: noParams, post: filterLegacySOH},
	{family: domain.FamilyBasicStats, eligible: anyChannel, source: sharedStream, params: noParams},
	{family: domain.FamilySTALTA, eligible: STALTAEligible, source: strictStream, params: staltaParams},
	{family: domain.FamilyNumSpikes, eligible: NumSpikesEligible, source: sharedStream, params: spikeParams},
}

// STALTAIncrement returns the decimation stride for a sampling rate.
func STALTAIncrement(samplingRate float64) int {
	return int(math.Ceil(samplingRate / 2.0))
}

func staltaParams(s *domain.SampleStream) domain.Params {
	return domain.Params{STALTA: &domain.STALTAParams{
		STASecs:   staSecs,
		LTASecs:   ltaSecs,
		Increment: STALTAIncrement(s.SamplingRate()),
		Algorithm: metric.AlgorithmClassicLR,
	}}
}

func spikeParams(*domain.SampleStream) domain.Params {
	return domain.Params{Spikes: &domain.SpikeParams{
		WindowSize:     spikeWindowSize,
		ThresholdMin:   spikeThresholdMin,
		FixedThreshold: true,
	}}
}

func filterLegacySOH(rc domain.RunContext, recs []domain.MetricRecord) []domain.MetricRecord {
	if !rc.LocalData() || !rc.LegacyLibrary() {
		return recs
	}
	out := recs[:0:0]
	for _, r := range recs {
		if _, drop := legacySOHMetrics[r.MetricName]; !drop {
			out = append(out, r)
		}
	}
	return out
}

// Dispatcher runs every requested family for one channel-day.
type Dispatcher struct {
	rc      domain.RunContext
	fetcher *stream.Fetcher
	calc    metric.Calculator
	summary *Summary
	log     *slog.Logger
}

func newDispatcher(rc domain.RunContext, fetcher *stream.Fetcher, calc metric.Calculator, summary *Summary, log *slog.Logger) *Dispatcher {
	return &Dispatcher{rc: rc, fetcher: fetcher, calc: calc, summary: summary, log: log}
}

// Dispatch invokes the calculator for each requested and eligible family on
// sncl and appends every successful output to acc. shared is the stream
// fetched with EpochIgnore. A failed strict fetch ends the channel-day.
func (d *Dispatcher) Dispatch(ctx context.Context, sncl domain.SNCL, window domain.TimeRange, shared *domain.SampleStream, acc *Accumulator) {
	for _, entry := range familyTable {
		if !d.rc.Requested(entry.family) {
			continue
		}
		if !entry.eligible(sncl.Channel) {
			d.log.Info("channel not eligible for metric family",
				"family", entry.family.String(), "sncl", sncl.ID(), "channel", sncl.Channel)
			d.summary.ineligible(entry.family)
			continue
		}

		s := shared
		if entry.source == strictStream {
			var outcome stream.Outcome
			s, outcome = d.fetcher.Fetch(ctx, sncl, window, domain.EpochStrict)
			if outcome != stream.OutcomeOK {
				d.summary.skipChannel(outcome)
				return
			}
		}

		recs, err := d.invoke(ctx, entry, s)
		if err != nil {
			d.log.Warn("metric calculation failed",
				"family", entry.family.String(), "sncl", sncl.ID(),
				"day", window.Start.Format("2006-01-02"), "err", err)
			d.summary.failed(entry.family)
			continue
		}
		if entry.post != nil {
			recs = entry.post(d.rc, recs)
		}
		acc.Add(recs)
		d.summary.Frames++
	}
}

func (d *Dispatcher) invoke(ctx context.Context, entry familySpec, s *domain.SampleStream) (recs []domain.MetricRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s calculator panicked: %v", entry.family, p)
		}
	}()
	return d.calc.Apply(ctx, s, entry.family, entry.params(s))
}
