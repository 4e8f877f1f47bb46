package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/ecg"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/engine"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/models"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/repo"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/services"
)

type fakeArchive struct {
	records map[string][]float64
	fs      float64
}

func (f *fakeArchive) FetchSegment(_ context.Context, record string, channel int, _, _ float64) (repo.Segment, error) {
	samples, ok := f.records[record]
	if !ok {
		return repo.Segment{}, fmt.Errorf("%w: %s", repo.ErrRecordNotFound, record)
	}
	return repo.Segment{
		Record:       record,
		Channel:      channel,
		SamplingRate: f.fs,
		Samples:      samples,
	}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *services.AnalysisService) {
	t.Helper()
	fs := 128.0
	synth := ecg.NewSynthesizer(fs, 72, 0.01, 0.05, 7)
	archive := &fakeArchive{
		fs:      fs,
		records: map[string][]float64{"16265": synth.Window(int(fs) * 60)},
	}
	pipeline := engine.NewPipeline(nil, engine.DetectorConfig{}, nil, nil, nil, nil, nil)
	svc := services.NewAnalysisService(nil, archive, pipeline, repo.NewHistoryRepo(100), nil, 60)
	return NewRouter(nil, svc, nil), svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeRecordEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/analyses", models.AnalyzeRecordRequest{
		Record:    "16265",
		WindowSec: 60,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.AnalysisID == "" || result.Record != "16265" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.State == "" || result.Color == "" {
		t.Fatalf("expected classified state, got %+v", result)
	}
}

func TestAnalyzeRecordNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/analyses", models.AnalyzeRecordRequest{Record: "99999"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAnalyzeRecordValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/analyses", map[string]any{"channel": 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", w.Code)
	}
}

func TestAnalyzeSamplesEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	synth := ecg.NewSynthesizer(128, 65, 0.01, 0.05, 11)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/analyses/raw", models.AnalyzeSamplesRequest{
		Record:       "wearable-1",
		SamplingRate: 128,
		Samples:      synth.Window(128 * 60),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Record != "wearable-1" {
		t.Fatalf("record = %q", result.Record)
	}
	if result.Beats < 40 {
		t.Fatalf("beats = %d, expected a plausible count for a 60s window", result.Beats)
	}
}

func TestAnalyzeSamplesMissingRate(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/analyses/raw", map[string]any{
		"samples": []float64{0.1, 0.2},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListAndGetAnalyses(t *testing.T) {
	router, svc := newTestRouter(t)

	var ids []string
	for i := 0; i < 3; i++ {
		result, err := svc.AnalyzeRecord(context.Background(), models.AnalyzeRecordRequest{Record: "16265"})
		if err != nil {
			t.Fatalf("seed analysis: %v", err)
		}
		ids = append(ids, result.AnalysisID)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/analyses?record=16265&page_size=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listResp models.ListAnalysesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listResp.Analyses) != 2 || listResp.NextPageToken == "" {
		t.Fatalf("page = %d entries, token = %q", len(listResp.Analyses), listResp.NextPageToken)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+ids[0], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/analyses/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get missing status = %d, want 404", rec.Code)
	}
}

func TestListAnalysesBadTimeFilter(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/analyses?start=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSimilarAnalysesEndpoint(t *testing.T) {
	router, svc := newTestRouter(t)

	var first string
	for i := 0; i < 4; i++ {
		result, err := svc.AnalyzeRecord(context.Background(), models.AnalyzeRecordRequest{
			Record:    "16265",
			OffsetSec: float64(i * 60),
		})
		if err != nil {
			t.Fatalf("seed analysis: %v", err)
		}
		if i == 0 {
			first = result.AnalysisID
		}
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+first+"/similar?k=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Analyses []models.AnalysisResult `json:"analyses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Analyses) != 2 {
		t.Fatalf("neighbors = %d, want 2", len(resp.Analyses))
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+first+"/similar?k=zero", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad k status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("status field = %v", body["status"])
	}
}
