package metric

import (
	"errors"
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"

	"seisqc/internal/domain"
)

// AlgorithmClassicLR averages signal energy over a long-term window to the
// left of each evaluation point and a short-term window to its right.
const AlgorithmClassicLR = "classic_LR"

var errShortStream = errors.New("no trace is long enough for the STA/LTA windows")

// STALTA reports the largest short-term/long-term average energy ratio over
// all traces, evaluated every params.STALTA.Increment samples.
func STALTA(s *domain.SampleStream, params domain.Params) ([]domain.MetricRecord, error) {
	p := params.STALTA
	if p == nil {
		return nil, errors.New("STALTA parameters missing")
	}
	if p.Algorithm != "" && p.Algorithm != AlgorithmClassicLR {
		return nil, fmt.Errorf("unsupported STA/LTA algorithm %q", p.Algorithm)
	}
	if p.STASecs <= 0 || p.LTASecs <= p.STASecs {
		return nil, fmt.Errorf("invalid STA/LTA windows sta=%gs lta=%gs", p.STASecs, p.LTASecs)
	}
	step := p.Increment
	if step < 1 {
		step = 1
	}

	best := math.Inf(-1)
	for _, tr := range s.Traces {
		if r, ok := maxRatio(tr, p.STASecs, p.LTASecs, step); ok && r > best {
			best = r
		}
	}
	if math.IsInf(best, -1) {
		return nil, errShortStream
	}
	return []domain.MetricRecord{record(s, "max_stalta", best)}, nil
}

// maxRatio evaluates the classic left/right ratio on one demeaned trace.
func maxRatio(tr domain.Trace, staSecs, ltaSecs float64, step int) (float64, bool) {
	staN := int(math.Round(staSecs * tr.SampleRate))
	ltaN := int(math.Round(ltaSecs * tr.SampleRate))
	n := len(tr.Samples)
	if staN < 1 || ltaN < 1 || n < ltaN+staN {
		return 0, false
	}

	mean := stats.Mean(tr.Samples)
	// energy[i] is the sum of squared demeaned samples before index i.
	energy := make([]float64, n+1)
	for i, x := range tr.Samples {
		d := x - mean
		energy[i+1] = energy[i] + d*d
	}

	best, found := 0.0, false
	for i := ltaN; i+staN <= n; i += step {
		lta := (energy[i] - energy[i-ltaN]) / float64(ltaN)
		if lta <= 0 {
			continue
		}
		sta := (energy[i+staN] - energy[i]) / float64(staN)
		if r := sta / lta; !found || r > best {
			best, found = r, true
		}
	}
	return best, found
}
