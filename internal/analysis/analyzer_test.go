package analysis

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"oscap-monitor/internal/config"
	"oscap-monitor/internal/models"
)

// TestAnalyzeComputesStatistics tests mean/variance over a window
func TestAnalyzeComputesStatistics(t *testing.T) {
	analyzer := NewAnalyzer(config.Default())

	window := makeWindow(t, "compute-01", []int{40, 50, 60})
	result, err := analyzer.Analyze("compute-01", window)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.CPU.Mean != 50 {
		t.Errorf("Expected CPU mean 50, got %f", result.CPU.Mean)
	}
	if result.CPU.Max != 60 || result.CPU.Min != 40 {
		t.Errorf("Expected CPU max/min 60/40, got %f/%f", result.CPU.Max, result.CPU.Min)
	}
	wantVariance := 200.0 / 3.0
	if math.Abs(result.CPU.Variance-wantVariance) > 1e-9 {
		t.Errorf("Expected CPU variance %f, got %f", wantVariance, result.CPU.Variance)
	}
	if result.SampleCount != 3 {
		t.Errorf("Expected sample count 3, got %d", result.SampleCount)
	}
	if result.InsufficientData {
		t.Error("Did not expect insufficient data marker for 3 samples")
	}
}

// TestAnalyzeEmptyWindow tests the degenerate case: marker set, no NaN
func TestAnalyzeEmptyWindow(t *testing.T) {
	analyzer := NewAnalyzer(config.Default())

	result, err := analyzer.Analyze("compute-01", nil)
	if err != nil {
		t.Fatalf("Analyze failed on empty window: %v", err)
	}

	if !result.InsufficientData {
		t.Error("Expected insufficient data marker for empty window")
	}
	for _, v := range []float64{result.CPU.Mean, result.CPU.StdDev, result.Memory.Mean, result.Disk.Variance} {
		if math.IsNaN(v) {
			t.Error("NaN leaked into analysis result")
		}
	}
	if len(result.Recommendations) == 0 {
		t.Fatal("Expected an insufficient data recommendation")
	}
	for _, rec := range result.Recommendations {
		if strings.Contains(rec, "NaN") {
			t.Errorf("NaN leaked into recommendation text: %q", rec)
		}
	}
}

// TestAnalyzeSingleSample tests that one sample still sets the marker
func TestAnalyzeSingleSample(t *testing.T) {
	analyzer := NewAnalyzer(config.Default())

	window := makeWindow(t, "compute-01", []int{70})
	result, err := analyzer.Analyze("compute-01", window)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if !result.InsufficientData {
		t.Error("Expected insufficient data marker for single sample")
	}
	if result.CPU.Mean != 70 {
		t.Errorf("Expected point statistics pinned at 70, got %f", result.CPU.Mean)
	}
}

// TestAnalyzeExcludesInvalidSamples tests that bad samples are counted, not
// silently dropped
func TestAnalyzeExcludesInvalidSamples(t *testing.T) {
	analyzer := NewAnalyzer(config.Default())

	window := makeWindow(t, "compute-01", []int{40, 50, 60})
	// Corrupt one sample after construction
	window[1].VCPUsUsed = -5

	result, err := analyzer.Analyze("compute-01", window)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.ExcludedSamples != 1 {
		t.Errorf("Expected 1 excluded sample, got %d", result.ExcludedSamples)
	}
	if len(result.ExclusionReasons) != 1 {
		t.Errorf("Expected 1 exclusion reason, got %v", result.ExclusionReasons)
	}
	if result.SampleCount != 2 {
		t.Errorf("Expected 2 valid samples, got %d", result.SampleCount)
	}
	if result.CPU.Mean != 50 {
		t.Errorf("Expected mean 50 over remaining samples, got %f", result.CPU.Mean)
	}
}

// TestAnalyzeAllInvalidFails tests that an entirely invalid window fails with
// insufficient history
func TestAnalyzeAllInvalidFails(t *testing.T) {
	analyzer := NewAnalyzer(config.Default())

	window := makeWindow(t, "compute-01", []int{40, 50})
	window[0].VCPUsUsed = 200
	window[1].MemoryUsedMB = 900

	_, err := analyzer.Analyze("compute-01", window)
	if !errors.Is(err, models.ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory, got %v", err)
	}
}

// TestRecommendationTemplates tests the templated text for each direction
func TestRecommendationTemplates(t *testing.T) {
	analyzer := NewAnalyzer(config.Default())

	// Persistently high CPU
	window := makeWindow(t, "compute-01", []int{85, 90, 95})
	result, err := analyzer.Analyze("compute-01", window)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !containsRecommendation(result.Recommendations, "Consider adding more CPU capacity or migrating instances") {
		t.Errorf("Expected CPU over-provisioned recommendation, got %v", result.Recommendations)
	}

	// Persistently idle node
	window = makeWindow(t, "compute-02", []int{5, 8, 10})
	result, err = analyzer.Analyze("compute-02", window)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !containsRecommendation(result.Recommendations, "CPU capacity is underutilized - consider consolidating instances") {
		t.Errorf("Expected CPU under-utilized recommendation, got %v", result.Recommendations)
	}

	// Balanced node
	window = makeWindow(t, "compute-03", []int{45, 50, 55})
	result, err = analyzer.Analyze("compute-03", window)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !containsRecommendation(result.Recommendations, "Node capacity is well-balanced") {
		t.Errorf("Expected balanced recommendation, got %v", result.Recommendations)
	}
}

// TestAnalyzeRiskBands tests the Low/Medium/High vocabulary on mean usage
func TestAnalyzeRiskBands(t *testing.T) {
	analyzer := NewAnalyzer(config.Default())

	window := makeWindow(t, "compute-01", []int{85, 90, 95})
	result, err := analyzer.Analyze("compute-01", window)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.CPURisk != models.BandHigh {
		t.Errorf("Expected High CPU risk for 90%% mean, got %s", result.CPURisk)
	}
	if result.MemoryRisk != models.BandLow {
		t.Errorf("Expected Low memory risk for 50%% mean, got %s", result.MemoryRisk)
	}
	if result.OverallRisk != models.BandHigh {
		t.Errorf("Expected High overall risk, got %s", result.OverallRisk)
	}
}

// TestClusterCapacityRollup tests the fleet-wide totals
func TestClusterCapacityRollup(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var latest []models.MetricSample
	for i, node := range []string{"compute-01", "compute-02"} {
		s, err := models.NewMetricSample(base, node, 8, 16, 8192, 16384, 200, 500, 4+i)
		if err != nil {
			t.Fatalf("Failed to create sample: %v", err)
		}
		latest = append(latest, *s)
	}

	rollup := ClusterCapacity(latest)

	if rollup.TotalNodes != 2 {
		t.Errorf("Expected 2 nodes, got %d", rollup.TotalNodes)
	}
	if rollup.TotalVCPUs != 32 || rollup.UsedVCPUs != 16 {
		t.Errorf("Expected 16/32 vCPUs, got %d/%d", rollup.UsedVCPUs, rollup.TotalVCPUs)
	}
	if rollup.CPUUtilization != 50 {
		t.Errorf("Expected 50%% CPU utilization, got %f", rollup.CPUUtilization)
	}
	if rollup.AvailableVCPUs != 16 {
		t.Errorf("Expected 16 available vCPUs, got %d", rollup.AvailableVCPUs)
	}
	if rollup.TotalInstances != 9 {
		t.Errorf("Expected 9 instances, got %d", rollup.TotalInstances)
	}
}

func containsRecommendation(recs []string, want string) bool {
	for _, r := range recs {
		if r == want {
			return true
		}
	}
	return false
}
