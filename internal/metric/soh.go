package metric

import "seisqc/internal/domain"

// sohFlags are the activity, I/O and data-quality flags counted by
// StateOfHealth, in report order.
var sohFlags = []string{
	"calibration_signal",
	"timing_correction",
	"event_begin",
	"event_end",
	"event_in_progress",
	"clock_locked",
	"amplifier_saturation",
	"digitizer_clipping",
	"spikes",
	"glitches",
	"missing_padded_data",
	"telemetry_sync_error",
	"digital_filter_charging",
	"suspect_time_tag",
}

// StateOfHealth counts each state-of-health flag over all traces and
// reports the mean timing quality when any trace carries one.
func StateOfHealth(s *domain.SampleStream, _ domain.Params) ([]domain.MetricRecord, error) {
	counts := make(map[string]int, len(sohFlags))
	var (
		qualitySum float64
		qualityN   int
	)
	for _, tr := range s.Traces {
		for _, flag := range tr.Flags {
			counts[flag]++
		}
		if tr.TimingQuality != nil {
			qualitySum += float64(*tr.TimingQuality)
			qualityN++
		}
	}

	out := make([]domain.MetricRecord, 0, len(sohFlags)+1)
	for _, flag := range sohFlags {
		out = append(out, record(s, flag, float64(counts[flag])))
	}
	if qualityN > 0 {
		out = append(out, record(s, "timing_quality", qualitySum/float64(qualityN)))
	}
	return out, nil
}
