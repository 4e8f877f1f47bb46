package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/config"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/engine"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/extractors"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/metrics"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/stream"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/utils"
)

// Standalone stream worker: consumes raw signal frames from NATS and
// publishes per-window analysis states, without the HTTP API.
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting hrv-stream", slog.String("nats", cfg.Stream.URL))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var classifier *engine.Classifier
	if cfg.Rules.Path != "" {
		classifier, err = engine.NewClassifier(cfg.Rules.Path, logger)
		if err != nil {
			logger.Error("failed to load rule pack", slog.String("path", cfg.Rules.Path), slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		classifier = engine.NewDefaultClassifier(logger)
	}

	pipeline := engine.NewPipeline(
		logger,
		engine.DetectorConfig{
			Height:      cfg.Pipeline.PeakHeight,
			HeightSigma: cfg.Pipeline.PeakHeightSigma,
			MinDistance: cfg.Pipeline.PeakMinDistance,
		},
		classifier,
		engine.NewQualityEngine(logger),
		extractors.NewTimeDomainExtractor(),
		extractors.NewSpectralExtractor(cfg.Pipeline.ResampleHz, cfg.Pipeline.WelchSegment),
		extractors.NewNonlinearExtractor(cfg.Pipeline.HistogramBinMS),
	)

	conn, err := stream.Connect(cfg.Stream.URL, "hrv-stream")
	if err != nil {
		logger.Error("failed to connect to NATS", slog.String("url", cfg.Stream.URL), slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Drain()

	worker, err := stream.NewWorker(
		logger,
		conn,
		cfg.Stream.RawSubject,
		cfg.Stream.StateSubject,
		cfg.Stream.SamplingRate,
		cfg.Stream.WindowSec,
		cfg.Stream.StepSec,
		pipeline,
	)
	if err != nil {
		logger.Error("failed to create stream worker", slog.Any("error", err))
		os.Exit(1)
	}
	if err := worker.Start(); err != nil {
		logger.Error("failed to start stream worker", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Stream.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Stream.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Stream.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	worker.Stop()

	if metricsServer != nil {
		metricsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancel()
	}

	time.Sleep(100 * time.Millisecond)
	logger.Info("hrv-stream stopped")
}
