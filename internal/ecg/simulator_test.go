package ecg

import "testing"

func TestSynthesizerDeterministic(t *testing.T) {
	a := NewSynthesizer(128, 72, 0.02, 0.05, 7)
	b := NewSynthesizer(128, 72, 0.02, 0.05, 7)

	for i := 0; i < 256; i++ {
		if a.Next() != b.Next() {
			t.Fatalf("same seed diverged at sample %d", i)
		}
	}
}

func TestSynthesizerBeatRate(t *testing.T) {
	const fs = 128.0
	sim := NewSynthesizer(fs, 60, 0, 0, 1)
	signal := sim.Window(int(10 * fs))

	peaks, err := DetectPeaks(signal, PeakOptions{
		Height:      AdaptiveHeight(signal, 2),
		MinDistance: 50,
	})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	// 60 bpm over 10 s should yield roughly ten QRS complexes.
	if len(peaks) < 8 || len(peaks) > 11 {
		t.Fatalf("expected ~10 beats at 60 bpm over 10s, got %d", len(peaks))
	}

	rr, err := Intervals(peaks, fs)
	if err != nil {
		t.Fatalf("intervals: %v", err)
	}
	for _, v := range RejectArtifacts(rr) {
		if v < 900 || v > 1100 {
			t.Fatalf("expected RR near 1000 ms at fixed 60 bpm, got %v", v)
		}
	}
}
