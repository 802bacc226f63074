package analysis

import (
	"fmt"
	"sort"
	"strings"

	"oscap-monitor/internal/config"
	"oscap-monitor/internal/models"
)

// Recommendation severities, worst first
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
)

var severityRank = map[string]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
}

// Engine ranks capacity-planning advice from the classifier, analyzer,
// anomaly detector and forecaster outputs. Output is deterministic for
// identical inputs.
type Engine struct {
	cpu    config.Thresholds
	memory config.Thresholds
	disk   config.Thresholds
}

// NewEngine creates a recommendation engine from validated configuration
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		cpu:    cfg.CPU,
		memory: cfg.Memory,
		disk:   cfg.Disk,
	}
}

// Recommend produces the ranked recommendation list for one node. Forecasts
// are keyed by metric name; a missing entry means no forecast was available
// for that metric (distinct from a zero forecast).
func (e *Engine) Recommend(
	assessment *models.RiskAssessment,
	forecasts map[string][]models.ForecastPoint,
	anomalies []models.AnomalyReport,
) []models.Recommendation {
	anomalous := make(map[string]bool)
	for _, a := range anomalies {
		if a.Verdict == models.VerdictAnomalous {
			anomalous[a.Metric] = true
		}
	}

	var recs []models.Recommendation
	// Fixed metric order keeps ties deterministic
	for _, metric := range models.Metrics {
		th := e.thresholds(metric)
		current := assessment.ForResource(metric)
		points := forecasts[metric]

		maxForecast, avgForecast := forecastSummary(points)
		crossing := earliestCrossing(points, current, th)

		rec := models.Recommendation{
			Node:         assessment.Node,
			Resource:     resourceName(metric),
			CrossingStep: crossing,
		}

		switch {
		case maxForecast > 90:
			rec.Severity = SeverityCritical
			rec.Message = fmt.Sprintf("Predicted %s utilization will reach %.1f%% - immediate action required", resourceName(metric), maxForecast)
			rec.Action = "Add capacity or migrate instances immediately"
		case current == models.RiskCritical:
			rec.Severity = SeverityCritical
			rec.Message = fmt.Sprintf("Current %s utilization is above the critical threshold of %.0f%%", resourceName(metric), th.Critical)
			rec.Action = "Add capacity or migrate instances immediately"
		case crossing > 0 && maxForecast > th.Critical:
			rec.Severity = SeverityHigh
			rec.Message = fmt.Sprintf("Predicted %s utilization will reach %.1f%% - plan for capacity increase", resourceName(metric), maxForecast)
			rec.Action = "Plan capacity increase within 1-2 days"
		case len(points) > 0 && avgForecast > 70:
			rec.Severity = SeverityMedium
			rec.Message = fmt.Sprintf("Predicted average %s utilization will be %.1f%% - monitor closely", resourceName(metric), avgForecast)
			rec.Action = "Monitor trends and plan for future capacity needs"
		case current == models.RiskWarning:
			rec.Severity = SeverityMedium
			rec.Message = fmt.Sprintf("Current %s utilization is above the warning threshold of %.0f%%", resourceName(metric), th.Warning)
			rec.Action = "Monitor trends and plan for future capacity needs"
		case anomalous[metric]:
			rec.Severity = SeverityMedium
			rec.Message = fmt.Sprintf("Recent %s utilization deviates from its historical baseline", resourceName(metric))
			rec.Action = "Investigate recent workload changes on this node"
		default:
			continue
		}

		recs = append(recs, rec)
	}

	// Rank by severity, then by which forecast crosses a worse threshold
	// first; ties keep the fixed resource order from construction
	sort.SliceStable(recs, func(i, j int) bool {
		if severityRank[recs[i].Severity] != severityRank[recs[j].Severity] {
			return severityRank[recs[i].Severity] < severityRank[recs[j].Severity]
		}
		return crossingRank(recs[i].CrossingStep) < crossingRank(recs[j].CrossingStep)
	})

	return recs
}

func (e *Engine) thresholds(metric string) config.Thresholds {
	switch metric {
	case models.MetricMemory:
		return e.memory
	case models.MetricDisk:
		return e.disk
	default:
		return e.cpu
	}
}

// forecastSummary returns the max and mean point estimates of a forecast run
func forecastSummary(points []models.ForecastPoint) (max, avg float64) {
	if len(points) == 0 {
		return 0, 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Forecast
		if p.Forecast > max {
			max = p.Forecast
		}
	}
	return max, sum / float64(len(points))
}

// earliestCrossing finds the first horizon step whose forecast enters a risk
// band worse than the current level; 0 means no crossing is predicted
func earliestCrossing(points []models.ForecastPoint, current models.RiskLevel, th config.Thresholds) int {
	for i, p := range points {
		level := classify(p.Forecast, th)
		if level > current {
			return i + 1
		}
	}
	return 0
}

// crossingRank orders earliest-crossing first with no-crossing last
func crossingRank(step int) int {
	if step == 0 {
		return int(^uint(0) >> 1)
	}
	return step
}

// resourceName renders a metric name for recommendation text
func resourceName(metric string) string {
	return strings.TrimSuffix(metric, "_utilization")
}
