package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/engine"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/metrics"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/models"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/repo"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/utils"
)

// SegmentFetcher retrieves one channel of an archive record.
type SegmentFetcher interface {
	FetchSegment(ctx context.Context, record string, channel int, offsetSec, windowSec float64) (repo.Segment, error)
}

// ResultSink receives every completed analysis, e.g. the parquet
// exporter.
type ResultSink interface {
	Append(ctx context.Context, result models.AnalysisResult) error
}

// AnalysisService orchestrates one analysis end to end: fetch the
// segment, run the pipeline, record the result in history, hand it to
// the dataset sink and track latency.
type AnalysisService struct {
	logger           *slog.Logger
	archive          SegmentFetcher
	pipeline         *engine.Pipeline
	history          *repo.HistoryRepo
	sink             ResultSink
	latencies        *utils.LatencyTracker
	defaultWindowSec float64
}

// NewAnalysisService constructs the service facade. archive and sink may
// be nil; the corresponding operations then degrade (no archive analyses,
// no export).
func NewAnalysisService(
	logger *slog.Logger,
	archive SegmentFetcher,
	pipeline *engine.Pipeline,
	history *repo.HistoryRepo,
	sink ResultSink,
	defaultWindowSec float64,
) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if history == nil {
		history = repo.NewHistoryRepo(0)
	}
	if defaultWindowSec <= 0 {
		defaultWindowSec = 300
	}
	return &AnalysisService{
		logger:           logger,
		archive:          archive,
		pipeline:         pipeline,
		history:          history,
		sink:             sink,
		latencies:        utils.NewLatencyTracker(1024),
		defaultWindowSec: defaultWindowSec,
	}
}

// AnalyzeRecord fetches a segment of an archive record and analyzes it.
func (s *AnalysisService) AnalyzeRecord(ctx context.Context, req models.AnalyzeRecordRequest) (models.AnalysisResult, error) {
	if s.archive == nil {
		return models.AnalysisResult{}, fmt.Errorf("signal archive not configured")
	}
	if req.Record == "" {
		return models.AnalysisResult{}, fmt.Errorf("record is required")
	}
	windowSec := req.WindowSec
	if windowSec <= 0 {
		windowSec = s.defaultWindowSec
	}

	segment, err := s.archive.FetchSegment(ctx, req.Record, req.Channel, req.OffsetSec, windowSec)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("fetch segment: %w", err)
	}

	return s.analyze(ctx, engine.Window{
		Record:       segment.Record,
		Channel:      segment.Channel,
		SamplingRate: segment.SamplingRate,
		Samples:      segment.Samples,
	})
}

// AnalyzeSamples analyzes a caller-supplied raw signal.
func (s *AnalysisService) AnalyzeSamples(ctx context.Context, req models.AnalyzeSamplesRequest) (models.AnalysisResult, error) {
	if req.SamplingRate <= 0 {
		return models.AnalysisResult{}, fmt.Errorf("sampling_rate must be positive, got %g", req.SamplingRate)
	}
	if len(req.Samples) == 0 {
		return models.AnalysisResult{}, fmt.Errorf("samples are required")
	}

	record := req.Record
	if record == "" {
		record = "adhoc"
	}

	return s.analyze(ctx, engine.Window{
		Record:       record,
		SamplingRate: req.SamplingRate,
		Samples:      req.Samples,
	})
}

func (s *AnalysisService) analyze(ctx context.Context, window engine.Window) (models.AnalysisResult, error) {
	start := time.Now()
	result, err := s.pipeline.Analyze(window)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		return models.AnalysisResult{}, err
	}
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)

	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("analysis latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count),
		)
	}

	s.history.Store(result)

	if s.sink != nil {
		if err := s.sink.Append(ctx, result); err != nil {
			s.logger.Warn("dataset export failed",
				slog.String("analysis_id", result.AnalysisID),
				slog.Any("error", err),
			)
		}
	}

	return result, nil
}

// ListAnalyses pages through the history.
func (s *AnalysisService) ListAnalyses(req models.ListAnalysesRequest) (models.ListAnalysesResponse, error) {
	return s.history.List(req)
}

// GetAnalysis returns a single historical result.
func (s *AnalysisService) GetAnalysis(id string) (models.AnalysisResult, error) {
	return s.history.Get(id)
}

// SimilarAnalyses returns the k nearest historical windows in feature
// space.
func (s *AnalysisService) SimilarAnalyses(id string, k int) ([]models.AnalysisResult, error) {
	return s.history.Similar(id, k)
}

// LatencyP95 exposes the current p95 analysis latency.
func (s *AnalysisService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}
