// Package export appends analyzed windows to a parquet feature dataset,
// one file per record per UTC day. The files feed the offline model
// training pipelines, which expect nullable DOUBLE features: a missing
// HRV metric lands as null, never as NaN or zero.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/metrics"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/models"
)

// FeatureRow is the parquet schema for one analyzed window.
type FeatureRow struct {
	AnalysisID  string   `parquet:"name=analysis_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Record      string   `parquet:"name=record, type=BYTE_ARRAY, convertedtype=UTF8"`
	Channel     int32    `parquet:"name=channel, type=INT32"`
	WindowStart int64    `parquet:"name=window_start_ms, type=INT64"`
	WindowEnd   int64    `parquet:"name=window_end_ms, type=INT64"`
	Beats       int32    `parquet:"name=beats, type=INT32"`
	MeanRR      *float64 `parquet:"name=mean_rr, type=DOUBLE, repetitiontype=OPTIONAL"`
	SDNN        *float64 `parquet:"name=sdnn, type=DOUBLE, repetitiontype=OPTIONAL"`
	RMSSD       *float64 `parquet:"name=rmssd, type=DOUBLE, repetitiontype=OPTIONAL"`
	PNN50       *float64 `parquet:"name=pnn50, type=DOUBLE, repetitiontype=OPTIONAL"`
	CV          *float64 `parquet:"name=cv, type=DOUBLE, repetitiontype=OPTIONAL"`
	VLF         *float64 `parquet:"name=vlf, type=DOUBLE, repetitiontype=OPTIONAL"`
	LF          *float64 `parquet:"name=lf, type=DOUBLE, repetitiontype=OPTIONAL"`
	HF          *float64 `parquet:"name=hf, type=DOUBLE, repetitiontype=OPTIONAL"`
	LFHF        *float64 `parquet:"name=lf_hf, type=DOUBLE, repetitiontype=OPTIONAL"`
	SD1         *float64 `parquet:"name=sd1, type=DOUBLE, repetitiontype=OPTIONAL"`
	SD2         *float64 `parquet:"name=sd2, type=DOUBLE, repetitiontype=OPTIONAL"`
	SI          *float64 `parquet:"name=si, type=DOUBLE, repetitiontype=OPTIONAL"`
	MeanHR      *float64 `parquet:"name=mean_hr, type=DOUBLE, repetitiontype=OPTIONAL"`
	Score       int32    `parquet:"name=score, type=INT32"`
	State       string   `parquet:"name=state, type=BYTE_ARRAY, convertedtype=UTF8"`
	Quality     float64  `parquet:"name=quality, type=DOUBLE"`
}

// Uploader ships a closed dataset file to object storage.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

type datasetWriter struct {
	day  string
	path string
	fw   source.ParquetFile
	pw   *writer.ParquetWriter
}

// Exporter maintains one open parquet writer per record, rotating to a
// fresh file when the window's UTC day changes. Closed files are handed
// to the uploader when one is configured.
type Exporter struct {
	mu       sync.Mutex
	dir      string
	uploader Uploader
	logger   *slog.Logger
	writers  map[string]*datasetWriter
}

// NewExporter creates an exporter rooted at dir. uploader may be nil.
func NewExporter(dir string, uploader Uploader, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		dir:      dir,
		uploader: uploader,
		logger:   logger,
		writers:  make(map[string]*datasetWriter),
	}
}

// Append writes one analyzed window to the record's current dataset file.
func (e *Exporter) Append(ctx context.Context, result models.AnalysisResult) error {
	row := RowFromResult(result)
	day := result.WindowStart.UTC().Format("2006-01-02")

	e.mu.Lock()
	defer e.mu.Unlock()

	dw, err := e.writerFor(ctx, result.Record, day)
	if err != nil {
		return err
	}
	if err := dw.pw.Write(row); err != nil {
		return fmt.Errorf("export: write row: %w", err)
	}
	metrics.AddExportRows(1)
	return nil
}

// Close flushes and closes every open file, uploading them when an
// uploader is configured.
func (e *Exporter) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for record, dw := range e.writers {
		if err := e.closeWriter(ctx, dw); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(e.writers, record)
	}
	return firstErr
}

func (e *Exporter) writerFor(ctx context.Context, record, day string) (*datasetWriter, error) {
	if dw, ok := e.writers[record]; ok {
		if dw.day == day {
			return dw, nil
		}
		if err := e.closeWriter(ctx, dw); err != nil {
			e.logger.Warn("closing rotated dataset file failed", slog.String("path", dw.path), slog.Any("error", err))
		}
		delete(e.writers, record)
	}

	dir := filepath.Join(e.dir, record)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "features-"+day+".parquet")

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(FeatureRow), 1)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("export: parquet writer for %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	dw := &datasetWriter{day: day, path: path, fw: fw, pw: pw}
	e.writers[record] = dw
	e.logger.Debug("dataset file opened", slog.String("path", path))
	return dw, nil
}

func (e *Exporter) closeWriter(ctx context.Context, dw *datasetWriter) error {
	if err := dw.pw.WriteStop(); err != nil {
		_ = dw.fw.Close()
		return fmt.Errorf("export: finalize %s: %w", dw.path, err)
	}
	if err := dw.fw.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", dw.path, err)
	}

	if e.uploader != nil {
		key := datasetKey(dw.path)
		if err := e.uploader.Upload(ctx, dw.path, key); err != nil {
			e.logger.Warn("dataset upload failed", slog.String("path", dw.path), slog.Any("error", err))
		}
	}
	return nil
}

// datasetKey maps a local dataset path onto its object-storage key,
// keeping the record/file layout: features/<record>/<file>.
func datasetKey(path string) string {
	dir, file := filepath.Split(path)
	record := filepath.Base(filepath.Clean(dir))
	return "features/" + record + "/" + file
}

// RowFromResult converts an analysis result into the parquet row shape,
// translating non-finite feature values to nulls.
func RowFromResult(result models.AnalysisResult) FeatureRow {
	f := result.Features
	return FeatureRow{
		AnalysisID:  result.AnalysisID,
		Record:      result.Record,
		Channel:     int32(result.Channel),
		WindowStart: result.WindowStart.UTC().UnixMilli(),
		WindowEnd:   result.WindowEnd.UTC().UnixMilli(),
		Beats:       int32(result.Beats),
		MeanRR:      nullable(f.MeanRR),
		SDNN:        nullable(f.SDNN),
		RMSSD:       nullable(f.RMSSD),
		PNN50:       nullable(f.PNN50),
		CV:          nullable(f.CV),
		VLF:         nullable(f.VLF),
		LF:          nullable(f.LF),
		HF:          nullable(f.HF),
		LFHF:        nullable(f.LFHF),
		SD1:         nullable(f.SD1),
		SD2:         nullable(f.SD2),
		SI:          nullable(f.SI),
		MeanHR:      nullable(f.MeanHR),
		Score:       int32(result.Score),
		State:       result.State,
		Quality:     result.Quality.Score,
	}
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
