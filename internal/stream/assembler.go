package stream

import (
	"fmt"
	"sync"
)

// Assembler buffers incoming samples per source and emits fixed-size
// sliding windows: every window covers windowSec seconds and consecutive
// windows start stepSec apart. Sources are independent; a slow source
// never blocks a fast one.
type Assembler struct {
	windowSamples int
	stepSamples   int

	mu      sync.Mutex
	buffers map[string][]float64
}

// NewAssembler builds an assembler for the given sampling rate and
// window/step durations in seconds.
func NewAssembler(samplingRate, windowSec, stepSec float64) (*Assembler, error) {
	if samplingRate <= 0 {
		return nil, fmt.Errorf("stream: sampling rate must be positive, got %g", samplingRate)
	}
	if windowSec <= 0 || stepSec <= 0 {
		return nil, fmt.Errorf("stream: window/step must be positive, got %g/%g", windowSec, stepSec)
	}
	if stepSec > windowSec {
		return nil, fmt.Errorf("stream: step %gs exceeds window %gs", stepSec, windowSec)
	}

	windowSamples := int(windowSec * samplingRate)
	stepSamples := int(stepSec * samplingRate)
	if windowSamples < 1 || stepSamples < 1 {
		return nil, fmt.Errorf("stream: window/step shorter than one sample")
	}

	return &Assembler{
		windowSamples: windowSamples,
		stepSamples:   stepSamples,
		buffers:       make(map[string][]float64),
	}, nil
}

// Push appends samples for one source and returns every full window that
// became available, oldest first. Returned slices are copies; the caller
// may hold them across further pushes.
func (a *Assembler) Push(source string, samples []float64) [][]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := append(a.buffers[source], samples...)

	var windows [][]float64
	for len(buf) >= a.windowSamples {
		window := make([]float64, a.windowSamples)
		copy(window, buf[:a.windowSamples])
		windows = append(windows, window)
		buf = buf[a.stepSamples:]
	}
	a.buffers[source] = buf

	return windows
}

// Reset drops any buffered samples for a source, e.g. after a stream gap
// that would otherwise stitch unrelated beats together.
func (a *Assembler) Reset(source string) {
	a.mu.Lock()
	delete(a.buffers, source)
	a.mu.Unlock()
}

// WindowSamples reports the configured window length in samples.
func (a *Assembler) WindowSamples() int { return a.windowSamples }
