package repo

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/models"
)

// ErrAnalysisNotFound signals an unknown analysis id.
var ErrAnalysisNotFound = errors.New("analysis not found")

// HistoryRepo keeps recent analysis results in memory, bounded to a fixed
// number of entries. Oldest results are evicted first. Nothing here
// persists across restarts; the parquet export is the durable record.
type HistoryRepo struct {
	mu         sync.RWMutex
	maxEntries int
	order      []string
	byID       map[string]models.AnalysisResult
}

// NewHistoryRepo creates a history bounded to maxEntries results;
// maxEntries <= 0 selects 1024.
func NewHistoryRepo(maxEntries int) *HistoryRepo {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &HistoryRepo{
		maxEntries: maxEntries,
		byID:       make(map[string]models.AnalysisResult),
	}
}

// Store appends a result, evicting the oldest entry when full.
func (r *HistoryRepo) Store(result models.AnalysisResult) {
	if result.AnalysisID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[result.AnalysisID]; !exists {
		r.order = append(r.order, result.AnalysisID)
	}
	r.byID[result.AnalysisID] = result

	for len(r.order) > r.maxEntries {
		evict := r.order[0]
		r.order = r.order[1:]
		delete(r.byID, evict)
	}
}

// Get returns one result by id or ErrAnalysisNotFound.
func (r *HistoryRepo) Get(id string) (models.AnalysisResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result, ok := r.byID[id]
	if !ok {
		return models.AnalysisResult{}, fmt.Errorf("%w: %s", ErrAnalysisNotFound, id)
	}
	return result, nil
}

// List returns results newest first, filtered by record and window time,
// with token pagination. The token is the offset into the filtered view;
// a shrinking history can shift pages, which is acceptable for a bounded
// diagnostic log.
func (r *HistoryRepo) List(req models.ListAnalysesRequest) (models.ListAnalysesResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	offset := 0
	if req.PageToken != "" {
		parsed, err := strconv.Atoi(req.PageToken)
		if err != nil || parsed < 0 {
			return models.ListAnalysesResponse{}, fmt.Errorf("invalid page token %q", req.PageToken)
		}
		offset = parsed
	}

	r.mu.RLock()
	filtered := make([]models.AnalysisResult, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		result := r.byID[r.order[i]]
		if req.Record != "" && result.Record != req.Record {
			continue
		}
		if !req.Start.IsZero() && result.WindowEnd.Before(req.Start) {
			continue
		}
		if !req.End.IsZero() && result.WindowStart.After(req.End) {
			continue
		}
		filtered = append(filtered, result)
	}
	r.mu.RUnlock()

	if offset >= len(filtered) {
		return models.ListAnalysesResponse{Analyses: []models.AnalysisResult{}}, nil
	}

	end := offset + pageSize
	next := ""
	if end < len(filtered) {
		next = strconv.Itoa(end)
	} else {
		end = len(filtered)
	}

	return models.ListAnalysesResponse{
		Analyses:      filtered[offset:end],
		NextPageToken: next,
	}, nil
}

// Similar returns the k stored results closest to the given analysis in
// feature space, nearest first, excluding the analysis itself. Distance is
// Euclidean over per-feature normalized values; features that are NaN in
// either vector are skipped, and pairs with no comparable feature are
// excluded.
func (r *HistoryRepo) Similar(id string, k int) ([]models.AnalysisResult, error) {
	if k <= 0 {
		k = 5
	}

	target, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	targetVec := target.Features.Vector()

	r.mu.RLock()
	candidates := make([]models.AnalysisResult, 0, len(r.order))
	for _, otherID := range r.order {
		if otherID == id {
			continue
		}
		candidates = append(candidates, r.byID[otherID])
	}
	r.mu.RUnlock()

	scale := featureScale(append(candidates, target))

	type scored struct {
		result   models.AnalysisResult
		distance float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		d, ok := normalizedDistance(targetVec, candidate.Features.Vector(), scale)
		if !ok {
			continue
		}
		ranked = append(ranked, scored{result: candidate, distance: d})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].distance < ranked[b].distance
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]models.AnalysisResult, len(ranked))
	for i, s := range ranked {
		out[i] = s.result
	}
	return out, nil
}

// featureScale derives a per-feature magnitude so millisecond features and
// dimensionless ratios weigh comparably in the distance.
func featureScale(results []models.AnalysisResult) []float64 {
	var dims int
	if len(results) > 0 {
		dims = len(results[0].Features.Vector())
	}
	scale := make([]float64, dims)
	for _, result := range results {
		for i, v := range result.Features.Vector() {
			if abs := math.Abs(v); !math.IsNaN(v) && !math.IsInf(v, 0) && abs > scale[i] {
				scale[i] = abs
			}
		}
	}
	for i, s := range scale {
		if s == 0 {
			scale[i] = 1
		}
	}
	return scale
}

func normalizedDistance(a, b, scale []float64) (float64, bool) {
	sum := 0.0
	compared := 0
	for i := range a {
		av, bv := a[i], b[i]
		if math.IsNaN(av) || math.IsNaN(bv) || math.IsInf(av, 0) || math.IsInf(bv, 0) {
			continue
		}
		d := (av - bv) / scale[i]
		sum += d * d
		compared++
	}
	if compared == 0 {
		return 0, false
	}
	return math.Sqrt(sum / float64(compared)), true
}
