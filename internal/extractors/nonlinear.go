package extractors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// NonlinearFeatures holds Poincaré dispersion measures (ms) and the
// dimensionless Baevsky stress index.
type NonlinearFeatures struct {
	SD1 float64
	SD2 float64
	SI  float64
}

// NonlinearExtractor derives geometry-based HRV measures from the lag-1
// RR scatter and the RR histogram.
type NonlinearExtractor struct {
	binWidth float64
}

// NewNonlinearExtractor creates a nonlinear extractor. binWidth is the
// stress-index histogram bin width in ms; <= 0 selects the classical 50.
func NewNonlinearExtractor(binWidth float64) *NonlinearExtractor {
	if binWidth <= 0 {
		binWidth = 50
	}
	return &NonlinearExtractor{binWidth: binWidth}
}

// Extract computes SD1, SD2 and SI from RR intervals in ms. Fewer than
// two intervals yield NaN across the board. A constant RR sequence has
// zero range, which leaves SI undefined; that case returns +Inf to mark
// a pathologically rigid rhythm, distinct from the NaN "no data" case.
func (e *NonlinearExtractor) Extract(rr []float64) NonlinearFeatures {
	nan := math.NaN()
	out := NonlinearFeatures{SD1: nan, SD2: nan, SI: nan}
	if len(rr) < 2 {
		return out
	}

	diffs := make([]float64, len(rr)-1)
	sums := make([]float64, len(rr)-1)
	for i := 1; i < len(rr); i++ {
		diffs[i-1] = (rr[i] - rr[i-1]) / math.Sqrt2
		sums[i-1] = (rr[i] + rr[i-1]) / math.Sqrt2
	}
	out.SD1 = stat.StdDev(diffs, nil)
	out.SD2 = stat.StdDev(sums, nil)
	out.SI = e.stressIndex(rr)

	return out
}

// stressIndex computes the classical Baevsky formulation: AMo in percent,
// Mo and MxDMn in seconds, binned at binWidth ms aligned to the absolute
// grid.
func (e *NonlinearExtractor) stressIndex(rr []float64) float64 {
	min := floats.Min(rr)
	max := floats.Max(rr)

	mxDMn := (max - min) / 1000
	if mxDMn == 0 {
		return math.Inf(1)
	}

	sorted := append([]float64(nil), rr...)
	sort.Float64s(sorted)

	lo := math.Floor(min/e.binWidth) * e.binWidth
	dividers := []float64{lo}
	for edge := lo; edge <= max; edge += e.binWidth {
		dividers = append(dividers, edge+e.binWidth)
	}

	counts := stat.Histogram(nil, dividers, sorted, nil)
	modal := 0
	for i, c := range counts {
		if c > counts[modal] {
			modal = i
		}
	}

	mo := (dividers[modal] + dividers[modal+1]) / 2 / 1000
	amo := counts[modal] / float64(len(rr)) * 100

	return amo / (2 * mo * mxDMn)
}
