package ecg

import (
	"math"
	"math/rand"
)

// Synthesizer produces an ECG-like waveform (morphological, not clinical)
// at a fixed sampling rate: gaussian P, QRS and T deflections on a slow
// baseline wander. Beat-to-beat jitter perturbs each cycle length so the
// derived RR series carries realistic variability instead of a constant.
type Synthesizer struct {
	fs     float64
	bpm    float64
	noise  float64
	jitter float64

	phase   float64
	cycleHz float64
	rng     *rand.Rand
}

// NewSynthesizer builds a generator. bpm is the mean heart rate, noise the
// additive gaussian noise amplitude in mV, jitter the relative spread of
// individual cycle lengths (0 disables variability). The seed fixes the
// sample stream for reproducible runs.
func NewSynthesizer(fs, bpm, noise, jitter float64, seed int64) *Synthesizer {
	s := &Synthesizer{
		fs:     fs,
		bpm:    bpm,
		noise:  noise,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(seed)),
	}
	s.cycleHz = s.nextCycleRate()
	return s
}

// Next returns the next sample in mV and advances time by one sample.
func (s *Synthesizer) Next() float64 {
	s.phase += s.cycleHz / s.fs
	if s.phase >= 1 {
		s.phase -= 1
		s.cycleHz = s.nextCycleRate()
	}

	t := s.phase

	baseline := 0.05 * math.Sin(2*math.Pi*0.33*t)

	p := 0.08 * gauss(t, 0.18, 0.03)
	q := -0.12 * gauss(t, 0.30, 0.01)
	r := 1.00 * gauss(t, 0.32, 0.008)
	sw := -0.25 * gauss(t, 0.35, 0.012)
	tw := 0.25 * gauss(t, 0.60, 0.06)

	n := 0.0
	if s.noise > 0 {
		n = s.noise * s.rng.NormFloat64()
	}

	return baseline + p + q + r + sw + tw + n
}

// Window fills and returns a fresh slice of n consecutive samples.
func (s *Synthesizer) Window(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Next()
	}
	return out
}

func (s *Synthesizer) nextCycleRate() float64 {
	base := s.bpm / 60
	if s.jitter <= 0 {
		return base
	}
	scale := 1 + s.jitter*(2*s.rng.Float64()-1)
	return base * scale
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}
