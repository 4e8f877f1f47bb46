// Package stats carries the statistical helpers used by cohort analyses
// over exported HRV features: effect sizes, group comparison tests and
// the median-split stress labelling that feeds downstream model training.
package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CohensD computes the pooled-standard-deviation effect size between two
// independent samples. Positive d means group a has the larger mean. A
// zero pooled deviation (both groups constant) yields 0 rather than an
// error, matching the convention downstream comparisons rely on.
func CohensD(a, b []float64) float64 {
	na, nb := len(a), len(b)
	if na < 2 || nb < 2 {
		return math.NaN()
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)

	pooled := math.Sqrt((float64(na-1)*varA + float64(nb-1)*varB) / float64(na+nb-2))
	if pooled == 0 {
		return 0
	}
	return (meanA - meanB) / pooled
}

// ANOVAResult summarises a one-way ANOVA.
type ANOVAResult struct {
	F           float64
	PValue      float64
	Significant bool
}

// OneWayANOVA tests whether the group means differ. Each group needs at
// least one observation and the total must leave residual degrees of
// freedom.
func OneWayANOVA(groups ...[]float64) (ANOVAResult, error) {
	k := len(groups)
	if k < 2 {
		return ANOVAResult{}, fmt.Errorf("stats: anova needs at least 2 groups, got %d", k)
	}

	total := 0
	grand := 0.0
	for i, g := range groups {
		if len(g) == 0 {
			return ANOVAResult{}, fmt.Errorf("stats: anova group %d is empty", i)
		}
		total += len(g)
		for _, v := range g {
			grand += v
		}
	}
	if total <= k {
		return ANOVAResult{}, fmt.Errorf("stats: anova needs more observations (%d) than groups (%d)", total, k)
	}
	grand /= float64(total)

	ssBetween := 0.0
	ssWithin := 0.0
	for _, g := range groups {
		mean := stat.Mean(g, nil)
		ssBetween += float64(len(g)) * (mean - grand) * (mean - grand)
		for _, v := range g {
			ssWithin += (v - mean) * (v - mean)
		}
	}

	dfBetween := float64(k - 1)
	dfWithin := float64(total - k)
	if ssWithin == 0 {
		// All groups constant: either no effect at all or a perfectly
		// separated one.
		if ssBetween == 0 {
			return ANOVAResult{F: 0, PValue: 1}, nil
		}
		return ANOVAResult{F: math.Inf(1), PValue: 0, Significant: true}, nil
	}

	f := (ssBetween / dfBetween) / (ssWithin / dfWithin)
	dist := distuv.F{D1: dfBetween, D2: dfWithin}
	p := dist.Survival(f)

	return ANOVAResult{F: f, PValue: p, Significant: p < 0.05}, nil
}

// MannWhitneyResult summarises a two-sided Mann-Whitney U test.
type MannWhitneyResult struct {
	U           float64
	PValue      float64
	Significant bool
	EffectD     float64
}

// MannWhitneyU runs the two-sided rank-sum test with midranks for ties,
// tie-corrected variance and continuity correction, using the normal
// approximation. EffectD carries the companion Cohen's d of the same two
// groups for reporting.
func MannWhitneyU(a, b []float64) (MannWhitneyResult, error) {
	na, nb := len(a), len(b)
	if na == 0 || nb == 0 {
		return MannWhitneyResult{}, fmt.Errorf("stats: mann-whitney needs non-empty groups")
	}

	type obs struct {
		value float64
		fromA bool
	}
	pooled := make([]obs, 0, na+nb)
	for _, v := range a {
		pooled = append(pooled, obs{value: v, fromA: true})
	}
	for _, v := range b {
		pooled = append(pooled, obs{value: v})
	}
	sort.Slice(pooled, func(i, j int) bool { return pooled[i].value < pooled[j].value })

	n := float64(na + nb)
	rankSumA := 0.0
	tieTerm := 0.0
	for i := 0; i < len(pooled); {
		j := i
		for j < len(pooled) && pooled[j].value == pooled[i].value {
			j++
		}
		// Midrank for the tied run [i, j).
		midrank := float64(i+j+1) / 2
		if run := float64(j - i); run > 1 {
			tieTerm += run*run*run - run
		}
		for ; i < j; i++ {
			if pooled[i].fromA {
				rankSumA += midrank
			}
		}
	}

	u := rankSumA - float64(na)*float64(na+1)/2
	mu := float64(na) * float64(nb) / 2
	variance := float64(na) * float64(nb) / 12 * ((n + 1) - tieTerm/(n*(n-1)))
	if variance <= 0 {
		// Every observation identical: no evidence either way.
		return MannWhitneyResult{U: u, PValue: 1, EffectD: CohensD(a, b)}, nil
	}

	z := u - mu
	switch {
	case z > 0.5:
		z -= 0.5
	case z < -0.5:
		z += 0.5
	default:
		z = 0
	}
	z /= math.Sqrt(variance)

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	p := 2 * normal.Survival(math.Abs(z))
	if p > 1 {
		p = 1
	}

	return MannWhitneyResult{
		U:           u,
		PValue:      p,
		Significant: p < 0.05,
		EffectD:     CohensD(a, b),
	}, nil
}

// MedianStressLabels splits stress-index observations at their median:
// values strictly above the median label 1 (stressed), the rest 0. The
// per-subject median split keeps classes balanced regardless of each
// subject's baseline SI. NaN observations label 0 and are excluded from
// the median.
func MedianStressLabels(si []float64) []int {
	finite := make([]float64, 0, len(si))
	for _, v := range si {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}

	labels := make([]int, len(si))
	if len(finite) == 0 {
		return labels
	}

	sort.Float64s(finite)
	median := stat.Quantile(0.5, stat.Empirical, finite, nil)

	for i, v := range si {
		// +Inf (rigid rhythm sentinel) exceeds any median.
		if !math.IsNaN(v) && v > median {
			labels[i] = 1
		}
	}
	return labels
}
