package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCohensDKnownValue(t *testing.T) {
	a := []float64{2, 4, 6, 8}
	b := []float64{1, 3, 5, 7}

	// Identical spread, means differ by 1; pooled sd is the common sd.
	got := CohensD(a, b)
	want := 1.0 / math.Sqrt(20.0/3.0)
	if !almostEqual(got, want, 1e-12) {
		t.Fatalf("expected d=%v, got %v", want, got)
	}

	if d := CohensD(b, a); !almostEqual(d, -want, 1e-12) {
		t.Fatalf("expected sign flip, got %v", d)
	}
}

func TestCohensDZeroPooledDeviation(t *testing.T) {
	a := []float64{5, 5, 5}
	b := []float64{7, 7, 7}
	if d := CohensD(a, b); d != 0 {
		t.Fatalf("zero pooled deviation must yield 0, got %v", d)
	}
}

func TestCohensDInsufficientData(t *testing.T) {
	if d := CohensD([]float64{1}, []float64{2, 3}); !math.IsNaN(d) {
		t.Fatalf("expected NaN for one-element group, got %v", d)
	}
}

func TestOneWayANOVASeparatedGroups(t *testing.T) {
	res, err := OneWayANOVA(
		[]float64{10, 11, 9, 10},
		[]float64{20, 21, 19, 20},
		[]float64{30, 29, 31, 30},
	)
	if err != nil {
		t.Fatalf("anova: %v", err)
	}
	if !res.Significant || res.PValue >= 0.05 {
		t.Fatalf("clearly separated groups should be significant, got %+v", res)
	}
	if res.F <= 1 {
		t.Fatalf("expected large F statistic, got %v", res.F)
	}
}

func TestOneWayANOVAIdenticalGroups(t *testing.T) {
	res, err := OneWayANOVA(
		[]float64{5, 5, 5},
		[]float64{5, 5, 5},
	)
	if err != nil {
		t.Fatalf("anova: %v", err)
	}
	if res.F != 0 || res.PValue != 1 || res.Significant {
		t.Fatalf("identical constant groups: expected F=0 p=1, got %+v", res)
	}
}

func TestOneWayANOVAValidation(t *testing.T) {
	if _, err := OneWayANOVA([]float64{1, 2}); err == nil {
		t.Fatal("expected error for a single group")
	}
	if _, err := OneWayANOVA([]float64{1}, nil); err == nil {
		t.Fatal("expected error for an empty group")
	}
	if _, err := OneWayANOVA([]float64{1}, []float64{2}); err == nil {
		t.Fatal("expected error without residual degrees of freedom")
	}
}

func TestMannWhitneyUSeparatedGroups(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	b := []float64{10, 11, 12, 13, 14, 15, 16, 17}

	res, err := MannWhitneyU(a, b)
	if err != nil {
		t.Fatalf("mann-whitney: %v", err)
	}
	if res.U != 0 {
		t.Fatalf("fully separated groups: expected U=0, got %v", res.U)
	}
	if !res.Significant {
		t.Fatalf("expected significance, got p=%v", res.PValue)
	}
	if res.EffectD >= 0 {
		t.Fatalf("group a is smaller, expected negative effect size, got %v", res.EffectD)
	}
}

func TestMannWhitneyUHandlesTies(t *testing.T) {
	a := []float64{1, 2, 2, 3}
	b := []float64{2, 3, 3, 4}

	res, err := MannWhitneyU(a, b)
	if err != nil {
		t.Fatalf("mann-whitney: %v", err)
	}
	if res.PValue <= 0 || res.PValue > 1 {
		t.Fatalf("p-value out of range: %v", res.PValue)
	}
}

func TestMannWhitneyUAllIdentical(t *testing.T) {
	res, err := MannWhitneyU([]float64{3, 3}, []float64{3, 3, 3})
	if err != nil {
		t.Fatalf("mann-whitney: %v", err)
	}
	if res.PValue != 1 || res.Significant {
		t.Fatalf("identical samples: expected p=1, got %+v", res)
	}
}

func TestMedianStressLabelsBalancedSplit(t *testing.T) {
	si := []float64{10, 20, 30, 40, 50, 60}
	labels := MedianStressLabels(si)

	ones := 0
	for _, l := range labels {
		ones += l
	}
	if ones != 3 {
		t.Fatalf("expected half the windows stressed, got %d of %d", ones, len(labels))
	}
	for i := 0; i < 3; i++ {
		if labels[i] != 0 {
			t.Fatalf("low-SI window %d labelled stressed", i)
		}
	}
}

func TestMedianStressLabelsSentinels(t *testing.T) {
	si := []float64{10, math.NaN(), 30, math.Inf(1)}
	labels := MedianStressLabels(si)

	if labels[1] != 0 {
		t.Fatal("NaN window must label 0")
	}
	if labels[3] != 1 {
		t.Fatal("+Inf (rigid rhythm) must label stressed")
	}

	empty := MedianStressLabels([]float64{math.NaN()})
	if len(empty) != 1 || empty[0] != 0 {
		t.Fatalf("all-NaN input must label all 0, got %v", empty)
	}
}
