package extractors

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TimeDomainFeatures holds statistical HRV measures over one RR window.
// All values are in milliseconds except PNN50 and CV, which are percents.
type TimeDomainFeatures struct {
	MeanRR float64
	SDNN   float64
	RMSSD  float64
	PNN50  float64
	CV     float64
}

// TimeDomainExtractor computes mean, dispersion and successive-difference
// statistics over RR intervals.
type TimeDomainExtractor struct{}

// NewTimeDomainExtractor creates a time-domain feature extractor.
func NewTimeDomainExtractor() *TimeDomainExtractor {
	return &TimeDomainExtractor{}
}

// Extract computes time-domain features from RR intervals in ms. A window
// with too few intervals yields NaN for the affected measures instead of
// an error: the mean needs one interval, everything else needs two.
func (e *TimeDomainExtractor) Extract(rr []float64) TimeDomainFeatures {
	nan := math.NaN()
	out := TimeDomainFeatures{MeanRR: nan, SDNN: nan, RMSSD: nan, PNN50: nan, CV: nan}

	if len(rr) == 0 {
		return out
	}
	out.MeanRR = stat.Mean(rr, nil)

	if len(rr) < 2 {
		return out
	}
	out.SDNN = stat.StdDev(rr, nil)

	sumSq := 0.0
	over50 := 0
	for i := 1; i < len(rr); i++ {
		d := rr[i] - rr[i-1]
		sumSq += d * d
		if math.Abs(d) > 50 {
			over50++
		}
	}
	diffs := float64(len(rr) - 1)
	out.RMSSD = math.Sqrt(sumSq / diffs)
	out.PNN50 = float64(over50) / diffs * 100

	if out.MeanRR != 0 {
		out.CV = out.SDNN / out.MeanRR * 100
	}

	return out
}
