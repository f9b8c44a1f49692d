package report

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"seisqc/internal/simple"
)

// SummaryFamilies converts a run summary into Prometheus metric families.
// Labelled families without samples are omitted.
func SummaryFamilies(s simple.Summary, elapsed time.Duration) []*dto.MetricFamily {
	all := []*dto.MetricFamily{
		gauge("seisqc_run_status", "Outcome of the run; the status label carries the value.",
			metric(1, "status", string(s.Status))),
		gauge("seisqc_run_duration_seconds", "Wall time of the run.",
			metric(elapsed.Seconds())),
		counter("seisqc_days_total", "Day windows by outcome.",
			metric(float64(s.Days), "state", "processed"),
			metric(float64(s.DaysSkipped), "state", "skipped")),
		counter("seisqc_channel_days_total", "Channel-days attempted.",
			metric(float64(s.ChannelDays))),
		counter("seisqc_channels_skipped_total", "Channel-days abandoned after a failed fetch.",
			labelled(s.ChannelsSkipped, "reason")...),
		counter("seisqc_family_ineligible_total", "Family invocations skipped for the channel code.",
			labelled(s.Ineligible, "family")...),
		counter("seisqc_metric_failures_total", "Failed calculator invocations.",
			labelled(s.MetricFailures, "family")...),
		counter("seisqc_frames_total", "Successful calculator invocations.",
			metric(float64(s.Frames))),
		counter("seisqc_records_total", "Rows in the final result.",
			metric(float64(s.Records))),
	}
	out := all[:0]
	for _, mf := range all {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

// WriteSummary writes the run summary in the Prometheus text format.
func WriteSummary(w io.Writer, s simple.Summary, elapsed time.Duration) error {
	for _, mf := range SummaryFamilies(s, elapsed) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummaryFile writes the run summary to path, for example for the node
// exporter textfile collector.
func WriteSummaryFile(path string, s simple.Summary, elapsed time.Duration) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteSummary(f, s, elapsed)
}

func gauge(name, help string, ms ...*dto.Metric) *dto.MetricFamily {
	return family(name, help, dto.MetricType_GAUGE, ms)
}

func counter(name, help string, ms ...*dto.Metric) *dto.MetricFamily {
	return family(name, help, dto.MetricType_COUNTER, ms)
}

func family(name, help string, typ dto.MetricType, ms []*dto.Metric) *dto.MetricFamily {
	if typ == dto.MetricType_COUNTER {
		for _, m := range ms {
			m.Counter = &dto.Counter{Value: m.Gauge.Value}
			m.Gauge = nil
		}
	}
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   typ.Enum(),
		Metric: ms,
	}
}

// metric builds a gauge sample; family converts it for counters.
func metric(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	return m
}

func labelled(counts map[string]int, label string) []*dto.Metric {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*dto.Metric, 0, len(keys))
	for _, k := range keys {
		out = append(out, metric(float64(counts[k]), label, k))
	}
	return out
}
