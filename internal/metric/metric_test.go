package metric

import (
	"context"
	"math"
	"testing"
	"time"

	"seisqc/internal/domain"
)

var (
	dayStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	anmo     = domain.SNCL{Network: "IU", Station: "ANMO", Location: "00", Channel: "BHZ"}
)

// values indexes records by metric name.
func values(t *testing.T, recs []domain.MetricRecord) map[string]float64 {
	t.Helper()
	out := make(map[string]float64, len(recs))
	for _, r := range recs {
		if r.SNCLID != anmo.ID() {
			t.Errorf("%s has SNCLID %q, want %q", r.MetricName, r.SNCLID, anmo.ID())
		}
		out[r.MetricName] = r.Value
	}
	return out
}

func stream(window time.Duration, traces ...domain.Trace) *domain.SampleStream {
	return &domain.SampleStream{SNCL: anmo, Start: dayStart, End: dayStart.Add(window), Traces: traces}
}

func constant(n int, v float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = v
	}
	return xs
}

func TestGapsContiguous(t *testing.T) {
	s := stream(100*time.Second, domain.Trace{Start: dayStart, SampleRate: 1, Samples: constant(100, 1)})

	recs, err := Gaps(s, domain.Params{})
	if err != nil {
		t.Fatalf("Gaps returned error: %v", err)
	}
	got := values(t, recs)
	if got["num_gaps"] != 0 || got["num_overlaps"] != 0 {
		t.Errorf("contiguous trace reported gaps=%v overlaps=%v", got["num_gaps"], got["num_overlaps"])
	}
	if got["percent_availability"] != 100 {
		t.Errorf("percent_availability = %v, want 100", got["percent_availability"])
	}
}

func TestGapsAndOverlaps(t *testing.T) {
	s := stream(100*time.Second,
		domain.Trace{Start: dayStart, SampleRate: 1, Samples: constant(30, 1)},                        // 0-30
		domain.Trace{Start: dayStart.Add(40 * time.Second), SampleRate: 1, Samples: constant(30, 1)}, // 40-70, 10s gap
		domain.Trace{Start: dayStart.Add(65 * time.Second), SampleRate: 1, Samples: constant(25, 1)}, // 65-90, 5s overlap
	)

	recs, err := Gaps(s, domain.Params{})
	if err != nil {
		t.Fatalf("Gaps returned error: %v", err)
	}
	got := values(t, recs)

	// Inner 10s gap plus the 10s missing at the end of the window.
	if got["num_gaps"] != 2 {
		t.Errorf("num_gaps = %v, want 2", got["num_gaps"])
	}
	if got["max_gap"] != 10 {
		t.Errorf("max_gap = %v, want 10", got["max_gap"])
	}
	if got["num_overlaps"] != 1 || got["max_overlap"] != 5 {
		t.Errorf("overlaps = %v (max %v), want 1 (max 5)", got["num_overlaps"], got["max_overlap"])
	}
	if got["percent_availability"] != 80 {
		t.Errorf("percent_availability = %v, want 80", got["percent_availability"])
	}
}

func TestGapsEmptyStream(t *testing.T) {
	recs, err := Gaps(stream(time.Hour), domain.Params{})
	if err != nil {
		t.Fatalf("Gaps returned error: %v", err)
	}
	got := values(t, recs)
	if got["num_gaps"] != 1 || got["max_gap"] != 3600 || got["percent_availability"] != 0 {
		t.Errorf("empty stream metrics = %v", got)
	}
}

func TestStateOfHealth(t *testing.T) {
	q1, q2 := 80, 100
	s := stream(time.Hour,
		domain.Trace{Flags: []string{"clock_locked", "event_begin", "clock_locked"}, TimingQuality: &q1},
		domain.Trace{Flags: []string{"glitches"}, TimingQuality: &q2},
	)

	recs, err := StateOfHealth(s, domain.Params{})
	if err != nil {
		t.Fatalf("StateOfHealth returned error: %v", err)
	}
	got := values(t, recs)
	if len(got) != len(sohFlags)+1 {
		t.Errorf("got %d metrics, want %d", len(got), len(sohFlags)+1)
	}
	if got["clock_locked"] != 2 || got["event_begin"] != 1 || got["glitches"] != 1 || got["spikes"] != 0 {
		t.Errorf("unexpected flag counts: %v", got)
	}
	if got["timing_quality"] != 90 {
		t.Errorf("timing_quality = %v, want 90", got["timing_quality"])
	}

	// Without timing quality the metric is omitted.
	recs, _ = StateOfHealth(stream(time.Hour, domain.Trace{}), domain.Params{})
	if _, ok := values(t, recs)["timing_quality"]; ok {
		t.Error("timing_quality reported without any timing quality data")
	}
}

func TestBasicStats(t *testing.T) {
	s := stream(time.Minute,
		domain.Trace{SampleRate: 1, Samples: []float64{3, -4, 3}},
		domain.Trace{SampleRate: 1, Samples: []float64{0, 8}},
	)

	recs, err := BasicStats(s, domain.Params{})
	if err != nil {
		t.Fatalf("BasicStats returned error: %v", err)
	}
	got := values(t, recs)

	want := map[string]float64{
		"sample_min":    -4,
		"sample_max":    8,
		"sample_mean":   2,
		"sample_median": 3,
		"sample_rms":    math.Sqrt((9 + 16 + 9 + 0 + 64) / 5.0),
		"sample_unique": 4,
	}
	for name, w := range want {
		if math.Abs(got[name]-w) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got[name], w)
		}
	}

	if _, err := BasicStats(stream(time.Minute), domain.Params{}); err == nil {
		t.Error("expected error for a stream without samples")
	}
}

func staltaParams(increment int) domain.Params {
	return domain.Params{STALTA: &domain.STALTAParams{
		STASecs: 3, LTASecs: 30, Increment: increment, Algorithm: AlgorithmClassicLR,
	}}
}

func TestSTALTADetectsBurst(t *testing.T) {
	const rate = 10.0
	xs := make([]float64, 600)
	for i := range xs {
		xs[i] = math.Sin(float64(i)) // low-level background
	}
	for i := 400; i < 430; i++ {
		xs[i] *= 20
	}
	s := stream(time.Minute, domain.Trace{Start: dayStart, SampleRate: rate, Samples: xs})

	recs, err := STALTA(s, staltaParams(int(math.Ceil(rate/2))))
	if err != nil {
		t.Fatalf("STALTA returned error: %v", err)
	}
	got := values(t, recs)["max_stalta"]
	if got < 10 {
		t.Errorf("max_stalta = %v, want a clear detection (>= 10)", got)
	}

	quiet := stream(time.Minute, domain.Trace{Start: dayStart, SampleRate: rate, Samples: xs[:400]})
	recs, _ = STALTA(quiet, staltaParams(1))
	if q := values(t, recs)["max_stalta"]; q >= got {
		t.Errorf("background max_stalta %v should be below burst %v", q, got)
	}
}

func TestSTALTAErrors(t *testing.T) {
	short := stream(time.Minute, domain.Trace{SampleRate: 10, Samples: constant(100, 1)})
	if _, err := STALTA(short, staltaParams(5)); err == nil {
		t.Error("expected error for a trace shorter than STA+LTA")
	}
	if _, err := STALTA(short, domain.Params{}); err == nil {
		t.Error("expected error for missing parameters")
	}
	bad := domain.Params{STALTA: &domain.STALTAParams{STASecs: 3, LTASecs: 30, Algorithm: "recursive"}}
	if _, err := STALTA(short, bad); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}

func TestNumSpikes(t *testing.T) {
	xs := make([]float64, 500)
	for i := range xs {
		xs[i] = math.Sin(float64(i) / 3)
	}
	xs[100] = 500
	xs[300] = -500
	s := stream(time.Minute, domain.Trace{SampleRate: 40, Samples: xs})

	params := domain.Params{Spikes: &domain.SpikeParams{WindowSize: 41, ThresholdMin: 10, FixedThreshold: true}}
	recs, err := NumSpikes(s, params)
	if err != nil {
		t.Fatalf("NumSpikes returned error: %v", err)
	}
	if got := values(t, recs)["num_spikes"]; got != 2 {
		t.Errorf("num_spikes = %v, want 2", got)
	}

	if _, err := NumSpikes(s, domain.Params{}); err == nil {
		t.Error("expected error for missing parameters")
	}
}

func TestDeviationScores(t *testing.T) {
	xs := []float64{1, 2, 3, 100, 5, 6, 7}
	orig := append([]float64(nil), xs...)

	scores := deviationScores(xs, 7)

	// Window median 5, MAD 2.
	want := 95 / (madScale * 2)
	for i, got := range scores {
		w := 0.0
		if i == 3 {
			w = want
		}
		if math.Abs(got-w) > 1e-6 {
			t.Errorf("score[%d] = %v, want %v", i, got, w)
		}
	}
	for i := range xs {
		if xs[i] != orig[i] {
			t.Fatalf("deviationScores modified its input: %v", xs)
		}
	}
}

func TestRegistryApply(t *testing.T) {
	r := NewRegistry()
	if r.Version() != Version {
		t.Errorf("Version = %q, want %q", r.Version(), Version)
	}

	s := stream(time.Minute, domain.Trace{Start: dayStart, SampleRate: 1, Samples: constant(60, 2)})
	recs, err := r.Apply(context.Background(), s, domain.FamilyBasicStats, domain.Params{})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if len(recs) != len(Names(domain.FamilyBasicStats)) {
		t.Errorf("Apply returned %d records, want %d", len(recs), len(Names(domain.FamilyBasicStats)))
	}

	if _, err := r.Apply(context.Background(), s, domain.Family(42), domain.Params{}); err == nil {
		t.Error("expected error for an unregistered family")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Apply(ctx, s, domain.FamilyGaps, domain.Params{}); err == nil {
		t.Error("expected error for a cancelled context")
	}
}

func TestCatalogCoversEveryFamily(t *testing.T) {
	cat := Catalog()
	for _, f := range domain.Families {
		names := Names(f)
		if len(names) == 0 {
			t.Errorf("family %s has no metric names", f)
		}
		for _, n := range names {
			if cat[n] != f {
				t.Errorf("Catalog()[%q] = %s, want %s", n, cat[n], f)
			}
		}
	}
}
