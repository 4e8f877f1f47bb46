package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/ecg"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/extractors"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/models"
)

// DetectorConfig controls R-peak detection for a pipeline invocation.
type DetectorConfig struct {
	// Height is an absolute detection threshold in mV. Zero selects an
	// adaptive threshold of mean + HeightSigma standard deviations over
	// the window.
	Height      float64
	HeightSigma float64
	// MinDistance in samples; zero selects ecg.DefaultMinDistance.
	MinDistance int
}

// Window describes one raw segment to analyze.
type Window struct {
	Record       string
	Channel      int
	Start        time.Time
	SamplingRate float64
	Samples      []float64
}

// Pipeline runs the full window analysis: peak detection, interval
// building, the three feature extractors, classification and quality
// grading. It holds no per-window state, so a single instance serves
// concurrent callers.
type Pipeline struct {
	logger     *slog.Logger
	detector   DetectorConfig
	timeDomain *extractors.TimeDomainExtractor
	spectral   *extractors.SpectralExtractor
	nonlinear  *extractors.NonlinearExtractor
	classifier *Classifier
	quality    *QualityEngine
}

// NewPipeline constructs an analysis pipeline. Nil collaborators are
// replaced with defaults.
func NewPipeline(
	logger *slog.Logger,
	detector DetectorConfig,
	classifier *Classifier,
	quality *QualityEngine,
	timeDomain *extractors.TimeDomainExtractor,
	spectral *extractors.SpectralExtractor,
	nonlinear *extractors.NonlinearExtractor,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = NewDefaultClassifier(logger)
	}
	if quality == nil {
		quality = NewQualityEngine(logger)
	}
	if timeDomain == nil {
		timeDomain = extractors.NewTimeDomainExtractor()
	}
	if spectral == nil {
		spectral = extractors.NewSpectralExtractor(0, 0)
	}
	if nonlinear == nil {
		nonlinear = extractors.NewNonlinearExtractor(0)
	}
	if detector.MinDistance == 0 {
		detector.MinDistance = ecg.DefaultMinDistance
	}

	return &Pipeline{
		logger:     logger,
		detector:   detector,
		timeDomain: timeDomain,
		spectral:   spectral,
		nonlinear:  nonlinear,
		classifier: classifier,
		quality:    quality,
	}
}

// Analyze runs one window through the pipeline. Configuration errors
// (non-positive sampling rate, bad detector settings) fail fast; windows
// that are merely short, flat or noisy degrade to NaN features and a low
// quality grade instead of an error.
func (p *Pipeline) Analyze(w Window) (models.AnalysisResult, error) {
	if w.SamplingRate <= 0 {
		return models.AnalysisResult{}, fmt.Errorf("pipeline: sampling rate must be positive, got %g", w.SamplingRate)
	}

	height := p.detector.Height
	if height == 0 {
		height = ecg.AdaptiveHeight(w.Samples, p.detector.HeightSigma)
	}

	peaks, err := ecg.DetectPeaks(w.Samples, ecg.PeakOptions{Height: height, MinDistance: p.detector.MinDistance})
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("detect peaks: %w", err)
	}

	raw, err := ecg.Intervals(peaks, w.SamplingRate)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("build intervals: %w", err)
	}
	clean := ecg.RejectArtifacts(raw)

	td := p.timeDomain.Extract(clean)
	sp := p.spectral.Extract(clean)
	nl := p.nonlinear.Extract(clean)

	meanHR := math.NaN()
	if !math.IsNaN(td.MeanRR) && td.MeanRR > 0 {
		meanHR = 60000 / td.MeanRR
	}

	features := models.FeatureSet{
		MeanRR: td.MeanRR,
		SDNN:   td.SDNN,
		RMSSD:  td.RMSSD,
		PNN50:  td.PNN50,
		CV:     td.CV,
		VLF:    sp.VLF,
		LF:     sp.LF,
		HF:     sp.HF,
		LFHF:   sp.LFHF,
		SD1:    nl.SD1,
		SD2:    nl.SD2,
		SI:     nl.SI,
		MeanHR: meanHR,
	}

	verdict := p.classifier.Classify(ClassifierInputs{
		SI:     nl.SI,
		RMSSD:  td.RMSSD,
		LFHF:   sp.LFHF,
		MeanHR: meanHR,
		SDNN:   td.SDNN,
	})

	windowSeconds := float64(len(w.Samples)) / w.SamplingRate
	cleanSeconds := 0.0
	for _, v := range clean {
		cleanSeconds += v
	}
	cleanSeconds /= 1000

	quality := p.quality.Evaluate(QualityInputs{
		WindowSeconds:  windowSeconds,
		Beats:          len(peaks),
		RawIntervals:   len(raw),
		CleanIntervals: len(clean),
		CleanSeconds:   cleanSeconds,
	})

	now := time.Now().UTC()
	start := w.Start
	duration := time.Duration(windowSeconds * float64(time.Second))
	if start.IsZero() {
		start = now.Add(-duration)
	}

	p.logger.Debug("window analyzed",
		slog.String("record", w.Record),
		slog.Int("beats", len(peaks)),
		slog.Int("clean_intervals", len(clean)),
		slog.String("state", verdict.State),
	)

	return models.AnalysisResult{
		AnalysisID:   uuid.NewString(),
		Record:       w.Record,
		Channel:      w.Channel,
		WindowStart:  start,
		WindowEnd:    start.Add(duration),
		SamplingRate: w.SamplingRate,
		Samples:      len(w.Samples),
		Beats:        len(peaks),
		Features:     features,
		Score:        verdict.Score,
		State:        verdict.State,
		Color:        verdict.Color,
		Quality:      quality,
		CreatedAt:    now,
	}, nil
}
