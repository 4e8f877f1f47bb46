package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/ecg"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/stream"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/utils"
)

// Synthetic signal producer for local development: publishes ECG frames
// to NATS at real-time pace so the stream worker has something to chew.
func main() {
	var (
		natsURL = flag.String("nats", "nats://127.0.0.1:4222", "NATS url")
		subject = flag.String("subject", "ecg.raw.sim-1", "publish subject (rawSubject.source)")
		fs      = flag.Float64("fs", 128, "sampling rate Hz")
		bpm     = flag.Float64("bpm", 72, "mean heart rate")
		noise   = flag.Float64("noise", 0.02, "additive noise amplitude in mV")
		jitter  = flag.Float64("jitter", 0.05, "beat-to-beat rate variation fraction")
		batch   = flag.Int("batch", 64, "samples per message")
		seed    = flag.Int64("seed", 0, "RNG seed, 0 derives from time")
	)
	flag.Parse()

	logger := utils.NewLogger("info", false)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	conn, err := stream.Connect(*natsURL, "hrv-producer")
	if err != nil {
		logger.Error("failed to connect to NATS", slog.String("url", *natsURL), slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Drain()

	synth := ecg.NewSynthesizer(*fs, *bpm, *noise, *jitter, *seed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(float64(*batch) / *fs * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("producing synthetic ECG",
		slog.String("subject", *subject),
		slog.Float64("fs", *fs),
		slog.Float64("bpm", *bpm),
		slog.Int("batch", *batch),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info("producer stopping")
			return
		case <-ticker.C:
			frame := stream.EncodeSamples(synth.Window(*batch))
			if err := conn.Publish(*subject, frame); err != nil {
				logger.Warn("publish failed", slog.Any("error", err))
			}
		}
	}
}
