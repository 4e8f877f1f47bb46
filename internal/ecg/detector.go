package ecg

import (
	"fmt"
	"math"
	"sort"
)

// DefaultMinDistance is the refractory gap between kept peaks, in
// samples: 50 samples at 128 Hz is roughly 390 ms, capping detection
// near 154 bpm and preventing double-counted beats.
const DefaultMinDistance = 50

// PeakOptions configures R-peak detection over a raw ECG window.
type PeakOptions struct {
	// Height is the absolute amplitude a sample must reach to qualify.
	Height float64
	// MinDistance is the smallest allowed gap between kept peaks, in
	// samples. Candidates closer than this are pruned, keeping the
	// higher-amplitude peak.
	MinDistance int
}

// DetectPeaks returns the sample indices of R-peak candidates in signal.
// A peak is a local maximum (plateaus resolve to their midpoint) at or
// above the height threshold; surviving peaks are at least MinDistance
// samples apart. A flat or empty signal yields no peaks and no error.
func DetectPeaks(signal []float64, opts PeakOptions) ([]int, error) {
	if opts.MinDistance < 1 {
		return nil, fmt.Errorf("ecg: min peak distance must be >= 1, got %d", opts.MinDistance)
	}
	if math.IsNaN(opts.Height) || math.IsInf(opts.Height, 0) {
		return nil, fmt.Errorf("ecg: peak height threshold must be finite")
	}

	maxima := localMaxima(signal)
	candidates := make([]int, 0, len(maxima))
	for _, p := range maxima {
		if signal[p] >= opts.Height {
			candidates = append(candidates, p)
		}
	}

	return pruneByDistance(signal, candidates, opts.MinDistance), nil
}

// AdaptiveHeight derives a detection threshold of mean + sigma standard
// deviations over the window. sigma <= 0 selects 2. Returns 0 for an
// empty window.
func AdaptiveHeight(signal []float64, sigma float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	if sigma <= 0 {
		sigma = 2
	}

	mean := 0.0
	for _, v := range signal {
		mean += v
	}
	mean /= float64(len(signal))

	variance := 0.0
	for _, v := range signal {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(signal))

	return mean + sigma*math.Sqrt(variance)
}

// localMaxima finds strict local maxima. A plateau counts once, at its
// midpoint, and only when the signal falls on both sides.
func localMaxima(x []float64) []int {
	if len(x) < 3 {
		return nil
	}

	var peaks []int
	i := 1
	last := len(x) - 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
				continue
			}
		}
		i++
	}
	return peaks
}

// pruneByDistance removes peaks closer than distance samples to a
// higher-amplitude peak. Peaks are visited tallest first; everything a
// kept peak shadows is dropped.
func pruneByDistance(x []float64, peaks []int, distance int) []int {
	if len(peaks) == 0 {
		return nil
	}

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}

	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] > x[peaks[order[b]]]
	})

	for _, idx := range order {
		if !keep[idx] {
			continue
		}
		for j := idx - 1; j >= 0 && peaks[idx]-peaks[j] < distance; j-- {
			keep[j] = false
		}
		for j := idx + 1; j < len(peaks) && peaks[j]-peaks[idx] < distance; j++ {
			keep[j] = false
		}
	}

	out := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}
