package ecg

import (
	"math"
	"testing"
)

func TestDetectPeaksPeriodicImpulses(t *testing.T) {
	const spacing = 64
	signal := make([]float64, 1280)
	for i := spacing; i < len(signal)-1; i += spacing {
		signal[i] = 1.0
	}

	peaks, err := DetectPeaks(signal, PeakOptions{Height: 0.5, MinDistance: 50})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(peaks) == 0 {
		t.Fatal("expected peaks on periodic impulses")
	}
	for i := 1; i < len(peaks); i++ {
		if got := peaks[i] - peaks[i-1]; got != spacing {
			t.Fatalf("expected spacing %d, got %d between %d and %d", spacing, got, peaks[i-1], peaks[i])
		}
	}
}

func TestDetectPeaksKeepsHigherAmplitude(t *testing.T) {
	signal := make([]float64, 200)
	signal[60] = 0.8
	signal[70] = 1.0

	peaks, err := DetectPeaks(signal, PeakOptions{Height: 0.5, MinDistance: 50})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(peaks) != 1 {
		t.Fatalf("expected 1 peak after distance pruning, got %d (%v)", len(peaks), peaks)
	}
	if peaks[0] != 70 {
		t.Fatalf("expected the taller peak at 70 to survive, got %d", peaks[0])
	}
}

func TestDetectPeaksFlatSignal(t *testing.T) {
	signal := make([]float64, 500)
	for i := range signal {
		signal[i] = 0.42
	}

	peaks, err := DetectPeaks(signal, PeakOptions{Height: 0.1, MinDistance: 50})
	if err != nil {
		t.Fatalf("flat signal must not error: %v", err)
	}
	if len(peaks) != 0 {
		t.Fatalf("expected no peaks on a flat signal, got %v", peaks)
	}
}

func TestDetectPeaksPlateauMidpoint(t *testing.T) {
	signal := []float64{0, 0, 1, 1, 1, 0, 0}

	peaks, err := DetectPeaks(signal, PeakOptions{Height: 0.5, MinDistance: 1})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(peaks) != 1 || peaks[0] != 3 {
		t.Fatalf("expected plateau midpoint 3, got %v", peaks)
	}
}

func TestDetectPeaksHeightFilter(t *testing.T) {
	signal := make([]float64, 300)
	signal[100] = 0.3
	signal[200] = 0.9

	peaks, err := DetectPeaks(signal, PeakOptions{Height: 0.5, MinDistance: 10})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(peaks) != 1 || peaks[0] != 200 {
		t.Fatalf("expected only the peak above threshold, got %v", peaks)
	}
}

func TestDetectPeaksRejectsBadConfig(t *testing.T) {
	signal := []float64{0, 1, 0}

	if _, err := DetectPeaks(signal, PeakOptions{Height: 0.5, MinDistance: 0}); err == nil {
		t.Fatal("expected error for non-positive distance")
	}
	if _, err := DetectPeaks(signal, PeakOptions{Height: math.NaN(), MinDistance: 50}); err == nil {
		t.Fatal("expected error for NaN height")
	}
}

func TestAdaptiveHeight(t *testing.T) {
	signal := []float64{2, 2, 2, 2}
	if got := AdaptiveHeight(signal, 2); got != 2 {
		t.Fatalf("zero-variance window should threshold at its mean, got %v", got)
	}

	spiky := make([]float64, 1000)
	for i := 100; i < len(spiky); i += 100 {
		spiky[i] = 1.0
	}
	h := AdaptiveHeight(spiky, 2)
	if h <= 0 || h >= 1 {
		t.Fatalf("adaptive threshold should sit between baseline and spike amplitude, got %v", h)
	}

	peaks, err := DetectPeaks(spiky, PeakOptions{Height: h, MinDistance: 50})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(peaks) != 9 {
		t.Fatalf("expected 9 impulses above adaptive threshold, got %d", len(peaks))
	}
}
