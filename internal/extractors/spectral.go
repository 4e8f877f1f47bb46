package extractors

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// Frequency bands (Hz) for RR spectral power, half-open [lo, hi).
var (
	bandVLF = [2]float64{0.003, 0.04}
	bandLF  = [2]float64{0.04, 0.15}
	bandHF  = [2]float64{0.15, 0.40}
)

// SpectralFeatures holds band powers integrated from the RR power
// spectral density, in ms^2, plus the LF/HF balance ratio.
type SpectralFeatures struct {
	VLF  float64
	LF   float64
	HF   float64
	LFHF float64
}

// SpectralExtractor estimates frequency-domain HRV. Heartbeats arrive
// irregularly, so the RR series is first projected onto a uniform grid
// with a cubic spline over the cumulative beat-time axis, then a Welch
// periodogram (Hann window, half-overlapping segments) produces the
// density that the bands integrate.
type SpectralExtractor struct {
	resampleHz float64
	maxSegment int
}

// NewSpectralExtractor creates a spectral extractor. resampleHz <= 0
// selects 4 Hz; maxSegment <= 0 selects 256 samples, 64 s of resampled
// data. Shorter series shrink the segment rather than erroring.
func NewSpectralExtractor(resampleHz float64, maxSegment int) *SpectralExtractor {
	if resampleHz <= 0 {
		resampleHz = 4
	}
	if maxSegment <= 0 {
		maxSegment = 256
	}
	return &SpectralExtractor{resampleHz: resampleHz, maxSegment: maxSegment}
}

// Extract computes band powers from RR intervals in ms. Windows too short
// to interpolate, or bands the shrunken segment cannot resolve, come back
// as NaN rather than an error.
func (e *SpectralExtractor) Extract(rr []float64) SpectralFeatures {
	nan := math.NaN()
	out := SpectralFeatures{VLF: nan, LF: nan, HF: nan, LFHF: nan}

	if len(rr) < 2 {
		return out
	}

	series, ok := e.resample(rr)
	if !ok {
		return out
	}

	freqs, psd := e.welch(series)
	if len(freqs) == 0 {
		return out
	}

	out.VLF = bandPower(freqs, psd, bandVLF)
	out.LF = bandPower(freqs, psd, bandLF)
	out.HF = bandPower(freqs, psd, bandHF)
	if !math.IsNaN(out.LF) && !math.IsNaN(out.HF) && out.HF != 0 {
		out.LFHF = out.LF / out.HF
	}

	return out
}

// resample fits a natural cubic spline over (cumulative time, RR) and
// samples it on the uniform grid.
func (e *SpectralExtractor) resample(rr []float64) ([]float64, bool) {
	times := make([]float64, len(rr))
	acc := 0.0
	for i, v := range rr {
		acc += v
		times[i] = acc / 1000
	}

	var spline interp.NaturalCubic
	if err := spline.Fit(times, rr); err != nil {
		return nil, false
	}

	dt := 1 / e.resampleHz
	span := times[len(times)-1] - times[0]
	n := int(math.Ceil(span / dt))
	if n < 2 {
		return nil, false
	}

	series := make([]float64, n)
	for i := range series {
		series[i] = spline.Predict(times[0] + float64(i)*dt)
	}
	return series, true
}

// welch averages mean-detrended, Hann-windowed periodograms over
// half-overlapping segments and returns one-sided density estimates.
func (e *SpectralExtractor) welch(series []float64) ([]float64, []float64) {
	nper := e.maxSegment
	if len(series) < nper {
		nper = len(series)
	}
	if nper < 2 {
		return nil, nil
	}

	win := window.Hann(ones(nper))
	wss := 0.0
	for _, w := range win {
		wss += w * w
	}
	if wss == 0 {
		return nil, nil
	}

	step := nper - nper/2
	fft := fourier.NewFFT(nper)
	nfreq := nper/2 + 1
	acc := make([]float64, nfreq)
	buf := make([]float64, nper)
	coeffs := make([]complex128, nfreq)
	segments := 0

	for start := 0; start+nper <= len(series); start += step {
		seg := series[start : start+nper]
		mean := stat.Mean(seg, nil)
		for i, v := range seg {
			buf[i] = (v - mean) * win[i]
		}
		coeffs = fft.Coefficients(coeffs, buf)
		for i, c := range coeffs {
			acc[i] += real(c)*real(c) + imag(c)*imag(c)
		}
		segments++
	}
	if segments == 0 {
		return nil, nil
	}

	scale := 1 / (e.resampleHz * wss)
	freqs := make([]float64, nfreq)
	psd := make([]float64, nfreq)
	for i := range psd {
		v := acc[i] / float64(segments) * scale
		// One-sided spectrum doubles every bin except DC and, for even
		// segment lengths, Nyquist.
		if i != 0 && !(nper%2 == 0 && i == nfreq-1) {
			v *= 2
		}
		psd[i] = v
		freqs[i] = fft.Freq(i) * e.resampleHz
	}

	return freqs, psd
}

// bandPower integrates the PSD across [band[0], band[1]). Fewer than two
// in-band bins cannot be integrated and yield NaN.
func bandPower(freqs, psd []float64, band [2]float64) float64 {
	lo, hi := -1, -1
	for i, f := range freqs {
		if f >= band[0] && f < band[1] {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo < 0 || hi-lo < 1 {
		return math.NaN()
	}
	return integrate.Trapezoidal(freqs[lo:hi+1], psd[lo:hi+1])
}

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
