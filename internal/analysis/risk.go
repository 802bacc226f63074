package analysis

import (
	"oscap-monitor/internal/config"
	"oscap-monitor/internal/models"
)

// Classifier maps a node's latest utilization values to risk levels.
// Classification deliberately uses only the most recent sample, not a
// historical average, so current emergencies surface immediately.
type Classifier struct {
	cpu    config.Thresholds
	memory config.Thresholds
	disk   config.Thresholds
}

// NewClassifier creates a classifier from validated configuration thresholds
func NewClassifier(cfg *config.Config) *Classifier {
	return &Classifier{
		cpu:    cfg.CPU,
		memory: cfg.Memory,
		disk:   cfg.Disk,
	}
}

// Classify returns per-resource risk levels plus the overall (worst) level
// for the given sample. A zero-total resource classifies as Healthy but
// carries a data-quality flag distinct from risk.
func (c *Classifier) Classify(sample *models.MetricSample) (*models.RiskAssessment, error) {
	if sample == nil || sample.Node == "" || sample.Timestamp.IsZero() {
		return nil, models.ErrMissingData
	}

	assessment := &models.RiskAssessment{
		Node:   sample.Node,
		CPU:    classify(sample.CPUUtilization, c.cpu),
		Memory: classify(sample.MemoryUtilization, c.memory),
		Disk:   classify(sample.DiskUtilization, c.disk),
	}
	assessment.Overall = models.MaxRisk(assessment.CPU, assessment.Memory, assessment.Disk)

	if sample.VCPUsTotal == 0 {
		assessment.DataQuality = append(assessment.DataQuality, "cpu total is zero")
	}
	if sample.MemoryTotalMB == 0 {
		assessment.DataQuality = append(assessment.DataQuality, "memory total is zero")
	}
	if sample.DiskTotalGB == 0 {
		assessment.DataQuality = append(assessment.DataQuality, "disk total is zero")
	}

	return assessment, nil
}

// classify is a pure function of (value, thresholds)
func classify(value float64, t config.Thresholds) models.RiskLevel {
	switch {
	case value > t.Critical:
		return models.RiskCritical
	case value > t.Warning:
		return models.RiskWarning
	default:
		return models.RiskHealthy
	}
}
