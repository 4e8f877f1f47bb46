// Package stream runs the live analysis path: raw ECG sample frames
// arrive on NATS subjects, per-source sliding windows feed the pipeline,
// and classified states are published back for dashboards.
package stream

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials NATS with the reconnect posture a long-lived worker
// needs: retry forever, short backoff.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// EncodeSamples packs voltage samples as little-endian float32, the wire
// format raw ECG frames travel in.
func EncodeSamples(samples []float64) []byte {
	out := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
	}
	return out
}

// DecodeSamples unpacks a raw frame. Trailing partial values are
// discarded.
func DecodeSamples(data []byte) []float64 {
	n := len(data) / 4
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = float64(math.Float32frombits(bits))
	}
	return out
}
