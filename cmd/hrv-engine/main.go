package main

import (
	"context"
	"encoding/json"
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

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/api"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/cache"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/config"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/engine"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/export"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/extractors"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/metrics"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/models"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/repo"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/services"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/stream"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/utils"
)

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
	logger.Info("starting hrv-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable, using in-process cache", slog.Any("error", err))
			cacheProvider = cache.NewMemoryProvider()
		} else {
			cacheProvider = provider
		}
	} else if cfg.Cache.Enabled {
		cacheProvider = cache.NewMemoryProvider()
	}
	defer cacheProvider.Close()

	classifier, err := loadClassifier(cfg.Rules.Path, logger)
	if err != nil {
		logger.Error("failed to load rule pack", slog.String("path", cfg.Rules.Path), slog.Any("error", err))
		os.Exit(1)
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

	var fetcher services.SegmentFetcher
	if cfg.Archive.BaseURL != "" {
		fetcher = repo.NewArchiveClient(
			cfg.Archive.BaseURL,
			cfg.Archive.Database,
			cfg.Archive.Timeout,
			cfg.Archive.RatePerSecond,
			cfg.Archive.Burst,
			cacheProvider,
			cfg.Archive.SegmentTTL,
			cfg.Archive.CacheMaxBytes,
		)
	} else {
		logger.Warn("no archive base URL configured, record analysis disabled")
	}

	var sink services.ResultSink
	var exporter *export.Exporter
	if cfg.Export.Enabled {
		var uploader export.Uploader
		if cfg.Export.S3.Enabled {
			s3up, err := export.NewS3Uploader(context.Background(), export.S3Options{
				Bucket:          cfg.Export.S3.Bucket,
				Region:          cfg.Export.S3.Region,
				Endpoint:        cfg.Export.S3.Endpoint,
				PathStyle:       cfg.Export.S3.PathStyle,
				AccessKeyID:     cfg.Export.S3.AccessKeyID,
				SecretAccessKey: cfg.Export.S3.SecretAccessKey,
			}, logger)
			if err != nil {
				logger.Error("failed to initialise S3 uploader", slog.Any("error", err))
				os.Exit(1)
			}
			uploader = s3up
		}
		exporter = export.NewExporter(cfg.Export.Dir, uploader, logger)
		sink = exporter
	}

	history := repo.NewHistoryRepo(cfg.History.MaxEntries)
	service := services.NewAnalysisService(logger, fetcher, pipeline, history, sink, cfg.Pipeline.DefaultWindowSec)

	hub := api.NewHub(logger)
	router := api.NewRouter(logger, service, hub)
	server, err := api.NewServer(cfg.Server, router)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var worker *stream.Worker
	if cfg.Stream.Enabled {
		conn, err := stream.Connect(cfg.Stream.URL, "hrv-engine")
		if err != nil {
			logger.Error("failed to connect to NATS", slog.String("url", cfg.Stream.URL), slog.Any("error", err))
			os.Exit(1)
		}
		defer conn.Drain()

		worker, err = stream.NewWorker(
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
		worker.OnResult = func(result models.AnalysisResult) {
			history.Store(result)
			if payload, err := json.Marshal(result); err == nil {
				hub.Broadcast(payload)
			}
		}
		if err := worker.Start(); err != nil {
			logger.Error("failed to start stream worker", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("API server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("API server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if worker != nil {
		worker.Stop()
	}
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	if exporter != nil {
		closeCtx, cancelClose := context.WithTimeout(context.Background(), 30*time.Second)
		if err := exporter.Close(closeCtx); err != nil {
			logger.Warn("dataset exporter close", slog.Any("error", err))
		}
		cancelClose()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("hrv-engine stopped")
}

func loadClassifier(path string, logger *slog.Logger) (*engine.Classifier, error) {
	if path == "" {
		return engine.NewDefaultClassifier(logger), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warn("rule pack not found, using built-in rules", slog.String("path", path))
		return engine.NewDefaultClassifier(logger), nil
	}
	return engine.NewClassifier(path, logger)
}
