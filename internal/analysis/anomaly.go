package analysis

import (
	"math"

	"oscap-monitor/internal/config"
	"oscap-monitor/internal/models"
)

// Detector flags samples that deviate statistically from recent history
type Detector struct {
	kSigma    float64
	minWindow int
	epsilon   float64
}

// NewDetector creates a detector from validated configuration
func NewDetector(cfg *config.Config) *Detector {
	return &Detector{
		kSigma:    cfg.Anomaly.KSigma,
		minWindow: cfg.Anomaly.MinWindow,
		epsilon:   cfg.Anomaly.Epsilon,
	}
}

// Detect checks the newest sample against the trailing history window for
// each utilization metric. The history must not include the newest sample.
// Below the minimum window size the verdict is Indeterminate, never a false
// normal/anomalous call.
func (d *Detector) Detect(history []models.MetricSample, newest *models.MetricSample) []models.AnomalyReport {
	reports := make([]models.AnomalyReport, 0, len(models.Metrics))

	for _, metric := range models.Metrics {
		report := models.AnomalyReport{
			Node:      newest.Node,
			Metric:    metric,
			Timestamp: newest.Timestamp,
			Value:     newest.Utilization(metric),
		}

		if len(history) < d.minWindow {
			report.Verdict = models.VerdictIndeterminate
			reports = append(reports, report)
			continue
		}

		mean, stddev := meanStdDev(history, metric)
		report.Mean = mean
		report.StdDev = stddev
		diff := math.Abs(report.Value - mean)

		if stddev <= d.epsilon {
			// Constant history: anomalous only if the newest value moved
			// beyond the epsilon tolerance
			if diff > d.epsilon {
				report.Verdict = models.VerdictAnomalous
				report.Deviation = diff
			} else {
				report.Verdict = models.VerdictNormal
			}
			reports = append(reports, report)
			continue
		}

		report.Deviation = diff / stddev
		if diff > d.kSigma*stddev {
			report.Verdict = models.VerdictAnomalous
		} else {
			report.Verdict = models.VerdictNormal
		}
		reports = append(reports, report)
	}

	return reports
}

// meanStdDev computes the mean and population standard deviation of one
// metric over a sample window
func meanStdDev(samples []models.MetricSample, metric string) (float64, float64) {
	n := float64(len(samples))
	if n == 0 {
		return 0, 0
	}

	var sum float64
	for i := range samples {
		sum += samples[i].Utilization(metric)
	}
	mean := sum / n

	var sqSum float64
	for i := range samples {
		diff := samples[i].Utilization(metric) - mean
		sqSum += diff * diff
	}

	return mean, math.Sqrt(sqSum / n)
}
