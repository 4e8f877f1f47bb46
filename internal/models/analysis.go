package models

import "time"

// AnalysisResult summarises one analyzed ECG window.
type AnalysisResult struct {
	AnalysisID   string        `json:"analysis_id"`
	Record       string        `json:"record"`
	Channel      int           `json:"channel"`
	WindowStart  time.Time     `json:"window_start"`
	WindowEnd    time.Time     `json:"window_end"`
	SamplingRate float64       `json:"sampling_rate"`
	Samples      int           `json:"samples"`
	Beats        int           `json:"beats"`
	Features     FeatureSet    `json:"features"`
	Score        int           `json:"score"`
	State        string        `json:"state"`
	Color        string        `json:"color"`
	Quality      QualityReport `json:"quality"`
	CreatedAt    time.Time     `json:"created_at"`
}

// QualityReport grades how trustworthy a window's features are.
type QualityReport struct {
	Score         float64  `json:"score"`
	ArtifactRatio float64  `json:"artifact_ratio"`
	Coverage      float64  `json:"coverage"`
	Notes         []string `json:"notes,omitempty"`
}
