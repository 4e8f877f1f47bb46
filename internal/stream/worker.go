package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/engine"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/metrics"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/models"
)

// Worker consumes raw ECG frames from <rawSubject>.<source>, assembles
// sliding windows per source, runs the analysis pipeline and publishes
// each result as JSON on <stateSubject>.<source>.
type Worker struct {
	logger       *slog.Logger
	conn         *nats.Conn
	rawSubject   string
	stateSubject string
	samplingRate float64
	assembler    *Assembler
	pipeline     *engine.Pipeline

	// OnResult, when set, additionally receives every published result
	// (the websocket fanout hooks in here).
	OnResult func(models.AnalysisResult)

	sub *nats.Subscription
}

// NewWorker wires a stream worker. The pipeline must not be nil.
func NewWorker(
	logger *slog.Logger,
	conn *nats.Conn,
	rawSubject, stateSubject string,
	samplingRate, windowSec, stepSec float64,
	pipeline *engine.Pipeline,
) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if pipeline == nil {
		return nil, fmt.Errorf("stream: pipeline is required")
	}

	assembler, err := NewAssembler(samplingRate, windowSec, stepSec)
	if err != nil {
		return nil, err
	}

	return &Worker{
		logger:       logger,
		conn:         conn,
		rawSubject:   strings.TrimSuffix(rawSubject, "."),
		stateSubject: strings.TrimSuffix(stateSubject, "."),
		samplingRate: samplingRate,
		assembler:    assembler,
		pipeline:     pipeline,
	}, nil
}

// Start subscribes to the raw subject tree. Analysis runs on the NATS
// delivery goroutine; windows are seconds apart, so keeping ordering per
// source matters more than parallelism here.
func (w *Worker) Start() error {
	subject := w.rawSubject + ".>"
	sub, err := w.conn.Subscribe(subject, w.handleFrame)
	if err != nil {
		return fmt.Errorf("stream: subscribe %s: %w", subject, err)
	}
	w.sub = sub
	w.logger.Info("stream worker subscribed", slog.String("subject", subject))
	return nil
}

// Stop unsubscribes; buffered windows in flight finish first.
func (w *Worker) Stop() {
	if w.sub != nil {
		_ = w.sub.Drain()
	}
}

func (w *Worker) handleFrame(msg *nats.Msg) {
	source := strings.TrimPrefix(msg.Subject, w.rawSubject+".")
	if source == "" || source == msg.Subject {
		return
	}

	samples := DecodeSamples(msg.Data)
	if len(samples) == 0 {
		return
	}

	for _, window := range w.assembler.Push(source, samples) {
		w.analyzeWindow(source, window)
	}
}

func (w *Worker) analyzeWindow(source string, window []float64) {
	windowDuration := time.Duration(float64(len(window)) / w.samplingRate * float64(time.Second))
	result, err := w.pipeline.Analyze(engine.Window{
		Record:       source,
		SamplingRate: w.samplingRate,
		Start:        time.Now().UTC().Add(-windowDuration),
		Samples:      window,
	})
	if err != nil {
		metrics.IncStreamWindow(metrics.OutcomeError)
		w.logger.Error("stream window analysis failed", slog.String("source", source), slog.Any("error", err))
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		metrics.IncStreamWindow(metrics.OutcomeError)
		w.logger.Error("stream result marshal failed", slog.String("source", source), slog.Any("error", err))
		return
	}

	if err := w.conn.Publish(w.stateSubject+"."+source, payload); err != nil {
		metrics.IncStreamWindow(metrics.OutcomeError)
		w.logger.Error("stream result publish failed", slog.String("source", source), slog.Any("error", err))
		return
	}
	metrics.IncStreamWindow(metrics.OutcomeSuccess)

	if w.OnResult != nil {
		w.OnResult(result)
	}

	w.logger.Debug("stream window published",
		slog.String("source", source),
		slog.String("state", result.State),
		slog.Int("score", result.Score),
	)
}
