package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/models"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/repo"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/services"
)

// Handler serves the analysis REST API.
type Handler struct {
	logger  *slog.Logger
	service *services.AnalysisService
	hub     *Hub
}

// NewRouter builds the gin engine with all API routes registered. hub is
// optional; when nil the /ws endpoint is not mounted.
func NewRouter(logger *slog.Logger, service *services.AnalysisService, hub *Hub) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service, hub: hub}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	v1.POST("/analyses", h.AnalyzeRecord)
	v1.POST("/analyses/raw", h.AnalyzeSamples)
	v1.GET("/analyses", h.ListAnalyses)
	v1.GET("/analyses/:id", h.GetAnalysis)
	v1.GET("/analyses/:id/similar", h.SimilarAnalyses)
	v1.GET("/healthz", h.Health)

	if hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			hub.serve(c.Writer, c.Request)
		})
	}

	return router
}

// AnalyzeRecord fetches a segment of an archive record and analyzes it.
func (h *Handler) AnalyzeRecord(c *gin.Context) {
	var req models.AnalyzeRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request",
			"details": err.Error(),
		})
		return
	}
	if req.Record == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record is required"})
		return
	}

	result, err := h.service.AnalyzeRecord(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, repo.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found", "record": req.Record})
			return
		}
		h.logger.Error("record analysis failed",
			slog.String("record", req.Record),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "analysis failed",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyzeSamples analyzes a caller-supplied raw signal.
func (h *Handler) AnalyzeSamples(c *gin.Context) {
	var req models.AnalyzeSamplesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request",
			"details": err.Error(),
		})
		return
	}
	if req.SamplingRate <= 0 || len(req.Samples) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sampling_rate and samples are required"})
		return
	}

	result, err := h.service.AnalyzeSamples(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("sample analysis failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "analysis failed",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListAnalyses pages through historical results with optional filters.
func (h *Handler) ListAnalyses(c *gin.Context) {
	req := models.ListAnalysesRequest{
		Record:    c.Query("record"),
		PageToken: c.Query("page_token"),
	}

	if v := c.Query("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
			return
		}
		req.PageSize = size
	}
	if v := c.Query("start"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC 3339"})
			return
		}
		req.Start = start
	}
	if v := c.Query("end"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC 3339"})
			return
		}
		req.End = end
	}

	resp, err := h.service.ListAnalyses(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid listing request",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetAnalysis returns one historical result by id.
func (h *Handler) GetAnalysis(c *gin.Context) {
	result, err := h.service.GetAnalysis(c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrAnalysisNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// SimilarAnalyses returns the k historical windows closest in feature
// space to the given analysis.
func (h *Handler) SimilarAnalyses(c *gin.Context) {
	k := 5
	if v := c.Query("k"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "k must be a positive integer"})
			return
		}
		k = parsed
	}

	neighbors, err := h.service.SimilarAnalyses(c.Param("id"), k)
	if err != nil {
		if errors.Is(err, repo.ErrAnalysisNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": neighbors})
}

// Health reports service liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"latency_p95": h.service.LatencyP95().String(),
	})
}
