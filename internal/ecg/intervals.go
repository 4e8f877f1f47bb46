package ecg

import "fmt"

// Physiological bounds on a beat-to-beat interval. Anything outside
// roughly 30-200 bpm is treated as a detection artifact.
const (
	MinIntervalMS = 300.0
	MaxIntervalMS = 2000.0
)

// Intervals converts peak sample indices into RR intervals in
// milliseconds. Fewer than two peaks yield an empty sequence.
func Intervals(peaks []int, samplingRate float64) ([]float64, error) {
	if samplingRate <= 0 {
		return nil, fmt.Errorf("ecg: sampling rate must be positive, got %g", samplingRate)
	}
	if len(peaks) < 2 {
		return nil, nil
	}

	rr := make([]float64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		rr = append(rr, float64(peaks[i]-peaks[i-1])/samplingRate*1000)
	}
	return rr, nil
}

// RejectArtifacts drops intervals outside [MinIntervalMS, MaxIntervalMS].
// Survivors keep their temporal order; gaps are not reinserted, so the
// result is a subsequence of the input, not a uniformly spaced series.
func RejectArtifacts(rr []float64) []float64 {
	clean := make([]float64, 0, len(rr))
	for _, v := range rr {
		if v >= MinIntervalMS && v <= MaxIntervalMS {
			clean = append(clean, v)
		}
	}
	return clean
}
