package handlers

import (
	"net/http"
	"strconv"
	"time"

	"oscap-monitor/internal/analysis"
	"oscap-monitor/internal/models"
	"oscap-monitor/internal/store"

	"github.com/gin-gonic/gin"
)

// APIHandler handles all API requests
type APIHandler struct {
	store    *store.MetricsStore
	pipeline *analysis.Pipeline
	window   time.Duration
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(s *store.MetricsStore, p *analysis.Pipeline, window time.Duration) *APIHandler {
	return &APIHandler{
		store:    s,
		pipeline: p,
		window:   window,
	}
}

// GetNodes returns all monitored nodes with their latest sample
func (h *APIHandler) GetNodes(c *gin.Context) {
	names, err := h.store.ListNodes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	nodes := make([]models.MetricSample, 0, len(names))
	for _, name := range names {
		latest, err := h.store.GetLatestSample(name)
		if err != nil {
			continue
		}
		nodes = append(nodes, *latest)
	}

	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// GetNodeDetails returns the latest sample and on-demand analysis for a node
func (h *APIHandler) GetNodeDetails(c *gin.Context) {
	node := c.Param("name")

	latest, err := h.store.GetLatestSample(node)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}

	end := time.Now().UTC()
	window, err := h.store.GetWindow(node, end.Add(-h.window), end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	report, err := h.pipeline.Run(node, window)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"node":   node,
			"latest": latest,
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"node":   node,
		"latest": latest,
		"report": report,
	})
}

// GetNodeHistory returns a node's stored sample window
func (h *APIHandler) GetNodeHistory(c *gin.Context) {
	node := c.Param("name")

	hours := 24
	if v := c.Query("hours"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			hours = parsed
		}
	}

	end := time.Now().UTC()
	samples, err := h.store.GetWindow(node, end.Add(-time.Duration(hours)*time.Hour), end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"samples": samples,
		"count":   len(samples),
	})
}

// GetNodeAnalysis returns the most recent stored analysis result for a node
func (h *APIHandler) GetNodeAnalysis(c *gin.Context) {
	node := c.Param("name")

	result, err := h.store.GetLatestAnalysis(node)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis available for node"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetNodeForecast returns the stored forecast for a node. Metrics with no
// stored forecast are reported as unavailable, never as zero values.
func (h *APIHandler) GetNodeForecast(c *gin.Context) {
	node := c.Param("name")

	forecasts := make(map[string][]models.ForecastPoint)
	var unavailable []string

	for _, metric := range models.Metrics {
		points, err := h.store.GetForecasts(node, metric)
		if err != nil || len(points) == 0 {
			unavailable = append(unavailable, metric)
			continue
		}
		forecasts[metric] = points
	}

	c.JSON(http.StatusOK, gin.H{
		"node":        node,
		"forecasts":   forecasts,
		"unavailable": unavailable,
	})
}

// GetRecommendations runs the analysis pass across all nodes and returns the
// ranked recommendations
func (h *APIHandler) GetRecommendations(c *gin.Context) {
	names, err := h.store.ListNodes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	end := time.Now().UTC()
	windows := make(map[string][]models.MetricSample, len(names))
	for _, name := range names {
		window, err := h.store.GetWindow(name, end.Add(-h.window), end)
		if err != nil {
			continue
		}
		windows[name] = window
	}

	reports, failures := h.pipeline.RunAll(c.Request.Context(), windows, names)

	recommendations := make([]models.Recommendation, 0)
	for _, report := range reports {
		recommendations = append(recommendations, report.Recommendations...)
	}

	skipped := make([]string, 0, len(failures))
	for node := range failures {
		skipped = append(skipped, node)
	}

	c.JSON(http.StatusOK, gin.H{
		"recommendations": recommendations,
		"count":           len(recommendations),
		"skippedNodes":    skipped,
	})
}

// GetCapacity returns the fleet-wide capacity rollup
func (h *APIHandler) GetCapacity(c *gin.Context) {
	names, err := h.store.ListNodes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	latest := make([]models.MetricSample, 0, len(names))
	for _, name := range names {
		sample, err := h.store.GetLatestSample(name)
		if err != nil {
			continue
		}
		latest = append(latest, *sample)
	}

	c.JSON(http.StatusOK, analysis.ClusterCapacity(latest))
}

// GetAlerts returns active alerts, or with ?hours= every alert raised in that
// window regardless of resolution
func (h *APIHandler) GetAlerts(c *gin.Context) {
	var alerts []models.Alert
	var err error

	if v := c.Query("hours"); v != "" {
		hours, parseErr := strconv.Atoi(v)
		if parseErr != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hours"})
			return
		}
		alerts, err = h.store.GetRecentAlerts(hours)
	} else {
		alerts, err = h.store.GetActiveAlerts()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetNodeAlerts returns the alert history for one node
func (h *APIHandler) GetNodeAlerts(c *gin.Context) {
	alerts, err := h.store.GetAlertsByNode(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ResolveAlert marks an alert as resolved
func (h *APIHandler) ResolveAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	if err := h.store.ResolveAlert(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}
