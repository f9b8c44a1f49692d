// Package metric implements the simple metric calculators and the registry
// that dispatches to them by family.
package metric

import (
	"context"
	"fmt"
	"sort"

	"seisqc/internal/domain"
)

// Version is the release of this metric library. State-of-health decoding of
// locally supplied data is reliable from 1.1.0 on.
const Version = "1.2.0"

// Calculator computes one family of metrics over a stream.
type Calculator interface {
	Apply(ctx context.Context, s *domain.SampleStream, family domain.Family, params domain.Params) ([]domain.MetricRecord, error)
}

// Func computes the metrics of a single family.
type Func func(s *domain.SampleStream, params domain.Params) ([]domain.MetricRecord, error)

// Registry maps each family to its Func.
type Registry struct {
	funcs   map[domain.Family]Func
	version string
}

var _ Calculator = (*Registry)(nil)

// NewRegistry returns a Registry with the built-in calculators registered.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[domain.Family]Func), version: Version}
	r.Register(domain.FamilyGaps, Gaps)
	r.Register(domain.FamilyStateOfHealth, StateOfHealth)
	r.Register(domain.FamilyBasicStats, BasicStats)
	r.Register(domain.FamilySTALTA, STALTA)
	r.Register(domain.FamilyNumSpikes, NumSpikes)
	return r
}

// Register installs or replaces the Func for a family.
func (r *Registry) Register(f domain.Family, fn Func) {
	r.funcs[f] = fn
}

// Version returns the library version the registry reports.
func (r *Registry) Version() string { return r.version }

// Apply runs the family's calculator on s.
func (r *Registry) Apply(ctx context.Context, s *domain.SampleStream, family domain.Family, params domain.Params) ([]domain.MetricRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fn, ok := r.funcs[family]
	if !ok {
		return nil, fmt.Errorf("no calculator registered for %s", family)
	}
	if s == nil {
		return nil, fmt.Errorf("%s: nil stream", family)
	}
	return fn(s, params)
}

var catalog = map[domain.Family][]string{
	domain.FamilyGaps: {
		"num_gaps", "max_gap", "num_overlaps", "max_overlap", "percent_availability",
	},
	domain.FamilyStateOfHealth: append(append([]string(nil), sohFlags...), "timing_quality"),
	domain.FamilyBasicStats: {
		"sample_min", "sample_max", "sample_mean", "sample_median", "sample_rms", "sample_unique",
	},
	domain.FamilySTALTA:    {"max_stalta"},
	domain.FamilyNumSpikes: {"num_spikes"},
}

// Catalog maps every metric name this library can produce to its family.
func Catalog() map[string]domain.Family {
	out := make(map[string]domain.Family)
	for f, names := range catalog {
		for _, name := range names {
			out[name] = f
		}
	}
	return out
}

// Names returns the metric names a family produces, sorted.
func Names(f domain.Family) []string {
	out := append([]string(nil), catalog[f]...)
	sort.Strings(out)
	return out
}

func record(s *domain.SampleStream, name string, value float64) domain.MetricRecord {
	return domain.MetricRecord{
		MetricName: name,
		SNCLID:     s.SNCL.ID(),
		Start:      s.Start,
		End:        s.End,
		Value:      value,
	}
}
