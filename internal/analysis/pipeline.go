package analysis

import (
	"context"
	"errors"
	"fmt"

	"oscap-monitor/internal/config"
	"oscap-monitor/internal/forecast"
	"oscap-monitor/internal/models"
)

// NodeReport is the full analysis output for one node from one pass
type NodeReport struct {
	Node            string                                `json:"node"`
	Analysis        *models.AnalysisResult                `json:"analysis"`
	Assessment      *models.RiskAssessment                `json:"assessment"`
	Anomalies       []models.AnomalyReport                `json:"anomalies"`
	Forecasts       map[string][]models.ForecastPoint     `json:"forecasts"`
	Accuracy        map[string]*models.ForecastAccuracy   `json:"accuracy,omitempty"`
	Recommendations []models.Recommendation               `json:"recommendations"`

	// ForecastSkipped names metrics for which the forecaster refused to run
	// (insufficient history); callers must render these as "no forecast
	// available", never as a zero forecast.
	ForecastSkipped []string `json:"forecastSkipped,omitempty"`
}

// Pipeline runs the stateless per-node analysis pass: classifier, anomaly
// detector, analyzer, forecaster and recommendation engine, in that strict
// order over an immutable sample window.
type Pipeline struct {
	classifier *Classifier
	detector   *Detector
	analyzer   *Analyzer
	forecaster *forecast.Forecaster
	engine     *Engine

	backtestHoldout int
}

// NewPipeline wires the analysis components from one validated configuration
func NewPipeline(cfg *config.Config) *Pipeline {
	return &Pipeline{
		classifier:      NewClassifier(cfg),
		detector:        NewDetector(cfg),
		analyzer:        NewAnalyzer(cfg),
		forecaster:      forecast.NewForecaster(cfg),
		engine:          NewEngine(cfg),
		backtestHoldout: 6,
	}
}

// Run analyzes one node's sample window and returns its report. The window
// must be ordered ascending by timestamp; per-sample data-quality failures
// are excluded and counted, and only an entirely invalid window fails.
func (p *Pipeline) Run(node string, window []models.MetricSample) (*NodeReport, error) {
	analysis, err := p.analyzer.Analyze(node, window)
	if err != nil {
		return nil, fmt.Errorf("analysis for node %s: %w", node, err)
	}

	report := &NodeReport{
		Node:      node,
		Analysis:  analysis,
		Forecasts: make(map[string][]models.ForecastPoint),
		Accuracy:  make(map[string]*models.ForecastAccuracy),
	}

	valid, _, err := ValidateWindow(node, window)
	if err != nil {
		return nil, fmt.Errorf("analysis for node %s: %w", node, err)
	}
	if len(valid) == 0 {
		return report, nil
	}

	newest := &valid[len(valid)-1]
	report.Assessment, err = p.classifier.Classify(newest)
	if err != nil {
		return nil, fmt.Errorf("classification for node %s: %w", node, err)
	}

	report.Anomalies = p.detector.Detect(valid[:len(valid)-1], newest)

	for _, metric := range models.Metrics {
		series := forecast.SeriesFromSamples(valid, metric)

		points, err := p.forecaster.Forecast(node, metric, series)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientHistory) {
				report.ForecastSkipped = append(report.ForecastSkipped, metric)
				continue
			}
			return nil, fmt.Errorf("forecast for node %s metric %s: %w", node, metric, err)
		}
		report.Forecasts[metric] = points

		if acc, err := p.forecaster.Backtest(node, metric, series, p.backtestHoldout); err == nil {
			report.Accuracy[metric] = acc
		}
	}

	report.Recommendations = p.engine.Recommend(report.Assessment, report.Forecasts, report.Anomalies)

	return report, nil
}

// RunAll analyzes many nodes sequentially, checking for cancellation at
// per-node boundaries. Nodes whose windows are entirely invalid are skipped
// with their error recorded.
func (p *Pipeline) RunAll(ctx context.Context, windows map[string][]models.MetricSample, nodes []string) ([]*NodeReport, map[string]error) {
	reports := make([]*NodeReport, 0, len(nodes))
	failures := make(map[string]error)

	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			failures[node] = err
			continue
		}
		report, err := p.Run(node, windows[node])
		if err != nil {
			failures[node] = err
			continue
		}
		reports = append(reports, report)
	}

	return reports, failures
}
