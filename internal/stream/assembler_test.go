package stream

import (
	"math"
	"testing"
)

func TestAssemblerSlidingWindows(t *testing.T) {
	// 10 Hz, 1 s window, 0.5 s step: 10-sample windows every 5 samples.
	asm, err := NewAssembler(10, 1, 0.5)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}

	samples := make([]float64, 20)
	for i := range samples {
		samples[i] = float64(i)
	}

	windows := asm.Push("chest", samples)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows from 20 samples, got %d", len(windows))
	}
	for w, window := range windows {
		if len(window) != 10 {
			t.Fatalf("window %d: expected 10 samples, got %d", w, len(window))
		}
		for i, v := range window {
			if v != float64(w*5+i) {
				t.Fatalf("window %d sample %d: expected %d, got %g", w, i, w*5+i, v)
			}
		}
	}

	// 5 samples remain buffered; 5 more complete the next window.
	if more := asm.Push("chest", samples[:4]); more != nil {
		t.Fatalf("expected no window from partial fill, got %d", len(more))
	}
	more := asm.Push("chest", samples[:1])
	if len(more) != 1 {
		t.Fatalf("expected exactly one follow-up window, got %d", len(more))
	}
}

func TestAssemblerSourcesAreIndependent(t *testing.T) {
	asm, err := NewAssembler(10, 1, 1)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}

	if w := asm.Push("a", make([]float64, 9)); w != nil {
		t.Fatalf("source a should still be filling, got %d windows", len(w))
	}
	if w := asm.Push("b", make([]float64, 10)); len(w) != 1 {
		t.Fatalf("source b should emit one window, got %d", len(w))
	}
	if w := asm.Push("a", make([]float64, 1)); len(w) != 1 {
		t.Fatalf("source a should now complete, got %d windows", len(w))
	}
}

func TestAssemblerReset(t *testing.T) {
	asm, err := NewAssembler(10, 1, 1)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}

	asm.Push("a", make([]float64, 9))
	asm.Reset("a")
	if w := asm.Push("a", make([]float64, 9)); w != nil {
		t.Fatalf("reset should drop the partial buffer, got %d windows", len(w))
	}
}

func TestAssemblerWindowsAreCopies(t *testing.T) {
	asm, err := NewAssembler(10, 1, 0.5)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}

	first := asm.Push("a", make([]float64, 10))
	if len(first) != 1 {
		t.Fatalf("expected one window, got %d", len(first))
	}
	first[0][0] = 99

	second := asm.Push("a", make([]float64, 5))
	if len(second) != 1 {
		t.Fatalf("expected one window, got %d", len(second))
	}
	// The second window overlaps the first by 5 samples; mutating the
	// first must not have leaked into the shared buffer.
	if second[0][0] != 0 {
		t.Fatalf("windows must be copies; overlap corrupted to %g", second[0][0])
	}
}

func TestAssemblerConfigValidation(t *testing.T) {
	if _, err := NewAssembler(0, 1, 1); err == nil {
		t.Fatal("expected error for zero sampling rate")
	}
	if _, err := NewAssembler(10, 0, 1); err == nil {
		t.Fatal("expected error for zero window")
	}
	if _, err := NewAssembler(10, 1, 2); err == nil {
		t.Fatal("expected error for step larger than window")
	}
}

func TestSampleCodecRoundTrip(t *testing.T) {
	in := []float64{0, 1.5, -0.25, 0.0078125}
	out := DecodeSamples(EncodeSamples(in))
	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if math.Abs(out[i]-in[i]) > 1e-6 {
			t.Fatalf("sample %d: expected %g, got %g", i, in[i], out[i])
		}
	}

	// A trailing partial float is dropped, not an error.
	if got := DecodeSamples(EncodeSamples(in)[:7]); len(got) != 1 {
		t.Fatalf("expected 1 sample from 7 bytes, got %d", len(got))
	}
}
