package metric

import (
	"errors"
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"

	"seisqc/internal/domain"
)

// madScale converts a median absolute deviation into a standard deviation
// estimate for normally distributed data.
const madScale = 1.4826

// maxThresholdDoublings bounds the adaptive threshold search.
const maxThresholdDoublings = 8

// NumSpikes counts samples that deviate from the rolling median of a
// WindowSize-sample window by more than the threshold times the window's
// robust standard deviation. With FixedThreshold unset the threshold is
// doubled, starting from ThresholdMin, until outliers make up under one
// percent of the samples.
func NumSpikes(s *domain.SampleStream, params domain.Params) ([]domain.MetricRecord, error) {
	p := params.Spikes
	if p == nil {
		return nil, errors.New("numSpikes parameters missing")
	}
	if p.WindowSize < 3 || p.ThresholdMin <= 0 {
		return nil, errors.New("numSpikes needs a window of at least 3 samples and a positive threshold")
	}

	scores := make([][]float64, 0, len(s.Traces))
	total := 0
	for _, tr := range s.Traces {
		scores = append(scores, deviationScores(tr.Samples, p.WindowSize))
		total += len(tr.Samples)
	}
	if total == 0 {
		return nil, errNoSamples
	}

	threshold := p.ThresholdMin
	count := countAbove(scores, threshold)
	if !p.FixedThreshold {
		for i := 0; i < maxThresholdDoublings && float64(count) >= float64(total)/100; i++ {
			threshold *= 2
			count = countAbove(scores, threshold)
		}
	}
	return []domain.MetricRecord{record(s, "num_spikes", float64(count))}, nil
}

// deviationScores returns, for each sample with a full centred window, its
// absolute deviation from the window median in robust standard deviations.
// Samples near the edges and windows with zero spread score 0.
func deviationScores(xs []float64, window int) []float64 {
	half := window / 2
	out := make([]float64, len(xs))
	sorted := make([]float64, 2*half+1)
	dev := make([]float64, 2*half+1)
	for i := half; i+half < len(xs); i++ {
		w := xs[i-half : i+half+1]
		copy(sorted, w)
		sort.Float64s(sorted)
		med := stats.Sample{Xs: sorted, Sorted: true}.Quantile(0.5)

		for j, x := range w {
			dev[j] = math.Abs(x - med)
		}
		sort.Float64s(dev)
		sigma := madScale * stats.Sample{Xs: dev, Sorted: true}.Quantile(0.5)
		if sigma == 0 {
			continue
		}
		out[i] = math.Abs(xs[i]-med) / sigma
	}
	return out
}

func countAbove(scores [][]float64, threshold float64) int {
	n := 0
	for _, trace := range scores {
		for _, v := range trace {
			if v > threshold {
				n++
			}
		}
	}
	return n
}
