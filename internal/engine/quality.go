package engine

import (
	"log/slog"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/models"
)

// QualityEngine grades how much trust a window's features deserve before
// the classification is reported downstream.
type QualityEngine struct {
	logger *slog.Logger
}

// QualityInputs carries the pipeline observations the grade derives from.
type QualityInputs struct {
	WindowSeconds  float64
	Beats          int
	RawIntervals   int
	CleanIntervals int
	// CleanSeconds is the summed duration of surviving RR intervals.
	CleanSeconds float64
}

// NewQualityEngine constructs a QualityEngine.
func NewQualityEngine(logger *slog.Logger) *QualityEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &QualityEngine{logger: logger}
}

// Evaluate combines artifact ratio and analyzable coverage into a [0,1]
// score. Degenerate windows score zero with a note instead of erroring.
func (e *QualityEngine) Evaluate(in QualityInputs) models.QualityReport {
	report := models.QualityReport{}

	if in.RawIntervals <= 0 {
		report.ArtifactRatio = 1
		report.Notes = append(report.Notes, "no beat intervals detected")
		return report
	}

	report.ArtifactRatio = 1 - float64(in.CleanIntervals)/float64(in.RawIntervals)
	if in.WindowSeconds > 0 {
		report.Coverage = clamp(in.CleanSeconds/in.WindowSeconds, 0, 1)
	}

	score := (1-report.ArtifactRatio)*0.6 + report.Coverage*0.4
	if in.CleanIntervals < 30 {
		score *= 0.5
		report.Notes = append(report.Notes, "fewer than 30 clean intervals")
	}
	if report.ArtifactRatio > 0.2 {
		report.Notes = append(report.Notes, "artifact ratio above 20%")
	}

	report.Score = clamp(score, 0, 1)
	return report
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
