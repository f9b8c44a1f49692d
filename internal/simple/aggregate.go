package simple

import "seisqc/internal/domain"

// Accumulator is the append-only store of calculator outputs for one run.
type Accumulator struct {
	frames [][]domain.MetricRecord
}

// Add appends one calculator output. An empty output still counts as a frame.
func (a *Accumulator) Add(recs []domain.MetricRecord) {
	a.frames = append(a.frames, recs)
}

// Frames returns the number of outputs added.
func (a *Accumulator) Frames() int { return len(a.frames) }

// Aggregate concatenates frames in encounter order and keeps only rows whose
// metric name is accepted. It returns nil when there are no frames at all.
func Aggregate(frames [][]domain.MetricRecord, accepts func(name string) bool) *domain.ResultSet {
	if len(frames) == 0 {
		return nil
	}
	n := 0
	for _, f := range frames {
		n += len(f)
	}
	all := make([]domain.MetricRecord, 0, n)
	for _, f := range frames {
		all = append(all, f...)
	}
	return &domain.ResultSet{Records: FilterAccepted(all, accepts)}
}

// FilterAccepted returns the rows whose metric name is accepted, in order,
// in a newly allocated slice.
func FilterAccepted(recs []domain.MetricRecord, accepts func(name string) bool) []domain.MetricRecord {
	out := make([]domain.MetricRecord, 0, len(recs))
	for _, r := range recs {
		if accepts(r.MetricName) {
			out = append(out, r)
		}
	}
	return out
}
