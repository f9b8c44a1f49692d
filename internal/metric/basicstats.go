package metric

import (
	"errors"
	"math"

	"github.com/aclements/go-moremath/stats"

	"seisqc/internal/domain"
)

var errNoSamples = errors.New("stream has no samples")

// BasicStats reports the extrema, mean, median, RMS and number of distinct
// values of all samples in the stream.
func BasicStats(s *domain.SampleStream, _ domain.Params) ([]domain.MetricRecord, error) {
	xs := s.Samples()
	if len(xs) == 0 {
		return nil, errNoSamples
	}

	sample := stats.Sample{Xs: xs}
	lo, hi := sample.Bounds()

	var sumSq float64
	unique := make(map[float64]struct{})
	for _, x := range xs {
		sumSq += x * x
		unique[x] = struct{}{}
	}

	return []domain.MetricRecord{
		record(s, "sample_min", lo),
		record(s, "sample_max", hi),
		record(s, "sample_mean", sample.Mean()),
		record(s, "sample_median", sample.Quantile(0.5)),
		record(s, "sample_rms", math.Sqrt(sumSq/float64(len(xs)))),
		record(s, "sample_unique", float64(len(unique))),
	}, nil
}
