package models

import "time"

// AnalyzeRecordRequest asks the engine to fetch a segment of an archive
// record and run the analysis pipeline over it.
type AnalyzeRecordRequest struct {
	Record    string  `json:"record"`
	Channel   int     `json:"channel"`
	OffsetSec float64 `json:"offset_sec"`
	WindowSec float64 `json:"window_sec"`
}

// AnalyzeSamplesRequest carries a caller-supplied raw signal.
type AnalyzeSamplesRequest struct {
	Record       string    `json:"record"`
	SamplingRate float64   `json:"sampling_rate"`
	Samples      []float64 `json:"samples"`
}

// ListAnalysesRequest captures filters for historical results.
type ListAnalysesRequest struct {
	Record    string
	Start     time.Time
	End       time.Time
	PageSize  int
	PageToken string
}

// ListAnalysesResponse contains history records and pagination state.
type ListAnalysesResponse struct {
	Analyses      []AnalysisResult `json:"analyses"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}
