package extractors

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestPoincareVarianceIdentity(t *testing.T) {
	rr := []float64{800, 820, 790, 805, 815, 798, 802, 811, 793, 807}

	got := NewNonlinearExtractor(0).Extract(rr)

	// SD1 and SD2 decompose the lag-1 scatter: their squares sum to the
	// combined sample variance of the two lagged subsequences.
	lagged := stat.Variance(rr[1:], nil) + stat.Variance(rr[:len(rr)-1], nil)
	sum := got.SD1*got.SD1 + got.SD2*got.SD2
	if !almostEqual(sum, lagged, 1e-9*lagged) {
		t.Fatalf("identity violated: sd1^2+sd2^2=%v, lagged variance sum=%v", sum, lagged)
	}
}

func TestStressIndexKnownValue(t *testing.T) {
	rr := []float64{600, 650, 650, 700}

	got := NewNonlinearExtractor(0).Extract(rr)

	// Modal bin [650, 700) holds 2 of 4 intervals: AMo = 50%,
	// Mo = 0.675 s, MxDMn = 0.1 s, SI = 50 / (2*0.675*0.1).
	want := 50.0 / (2 * 0.675 * 0.1)
	if !almostEqual(got.SI, want, 1e-9) {
		t.Fatalf("si: expected %v, got %v", want, got.SI)
	}
}

func TestStressIndexConstantSeries(t *testing.T) {
	got := NewNonlinearExtractor(0).Extract([]float64{800, 800, 800, 800})

	if !math.IsInf(got.SI, 1) {
		t.Fatalf("constant series has zero range; expected +Inf sentinel, got %v", got.SI)
	}
	if got.SD1 != 0 || got.SD2 != 0 {
		t.Fatalf("constant series should have zero dispersion, got sd1=%v sd2=%v", got.SD1, got.SD2)
	}
}

func TestNonlinearInsufficientData(t *testing.T) {
	got := NewNonlinearExtractor(0).Extract([]float64{812})

	if !math.IsNaN(got.SD1) || !math.IsNaN(got.SD2) || !math.IsNaN(got.SI) {
		t.Fatalf("expected NaN for a single interval, got %+v", got)
	}
}

func TestNonlinearSinglePair(t *testing.T) {
	got := NewNonlinearExtractor(0).Extract([]float64{800, 900})

	// One lag-1 pair has no sample dispersion, but the histogram metrics
	// are still defined.
	if !math.IsNaN(got.SD1) || !math.IsNaN(got.SD2) {
		t.Fatalf("expected NaN dispersion for a single pair, got %+v", got)
	}
	want := 50.0 / (2 * 0.825 * 0.1)
	if !almostEqual(got.SI, want, 1e-9) {
		t.Fatalf("si: expected %v, got %v", want, got.SI)
	}
}
