package analysis

import (
	"fmt"
	"math"

	"oscap-monitor/internal/config"
	"oscap-monitor/internal/models"
)

// Analyzer aggregates a node's sample window into summary statistics,
// efficiency metrics and capacity recommendations
type Analyzer struct {
	cpu    config.Thresholds
	memory config.Thresholds
	disk   config.Thresholds

	// lowUtilization marks a resource as underprovisioned candidate
	lowUtilization float64
}

// NewAnalyzer creates an analyzer from validated configuration
func NewAnalyzer(cfg *config.Config) *Analyzer {
	return &Analyzer{
		cpu:            cfg.CPU,
		memory:         cfg.Memory,
		disk:           cfg.Disk,
		lowUtilization: 20,
	}
}

// direction of a utilization gap relative to the target band
type direction int

const (
	overUtilized direction = iota
	underUtilized
)

// recommendation texts keyed by (metric, direction); generation is templated,
// never free-form
var recommendationText = map[string]map[direction]string{
	models.MetricCPU: {
		overUtilized:  "Consider adding more CPU capacity or migrating instances",
		underUtilized: "CPU capacity is underutilized - consider consolidating instances",
	},
	models.MetricMemory: {
		overUtilized:  "Consider adding more memory or migrating instances",
		underUtilized: "Memory capacity is underutilized - consider consolidating instances",
	},
	models.MetricDisk: {
		overUtilized:  "Consider adding more disk storage or cleaning up unused data",
		underUtilized: "Disk capacity is underutilized",
	},
}

const balancedText = "Node capacity is well-balanced"

// ValidateWindow splits a window into usable samples and exclusions. Each
// rejected sample is counted with its reason; exclusions are surfaced in the
// AnalysisResult, never silently dropped. An all-invalid window is an
// ErrInsufficientHistory for the node.
func ValidateWindow(node string, window []models.MetricSample) (valid []models.MetricSample, reasons []string, err error) {
	valid = make([]models.MetricSample, 0, len(window))
	for i := range window {
		s := window[i]
		if verr := s.Validate(); verr != nil {
			reasons = append(reasons, fmt.Sprintf("sample at %s: %v", s.Timestamp.Format("2006-01-02T15:04:05Z"), verr))
			continue
		}
		if s.Node != node {
			reasons = append(reasons, fmt.Sprintf("sample at %s: node mismatch", s.Timestamp.Format("2006-01-02T15:04:05Z")))
			continue
		}
		valid = append(valid, s)
	}
	if len(window) > 0 && len(valid) == 0 {
		return nil, reasons, models.ErrInsufficientHistory
	}
	return valid, reasons, nil
}

// Analyze computes the AnalysisResult for one node's validated window. An
// empty or single-sample window yields a result with the insufficient-data
// marker set and zero-valued statistics rather than NaN.
func (a *Analyzer) Analyze(node string, window []models.MetricSample) (*models.AnalysisResult, error) {
	if node == "" {
		return nil, models.ErrMissingData
	}

	valid, reasons, err := ValidateWindow(node, window)
	if err != nil {
		return nil, err
	}

	result := &models.AnalysisResult{
		Node:             node,
		SampleCount:      len(valid),
		ExcludedSamples:  len(window) - len(valid),
		ExclusionReasons: reasons,
	}

	if len(valid) < 2 {
		result.InsufficientData = true
		result.Recommendations = []string{"insufficient data for analysis"}
		if len(valid) == 1 {
			// A single sample still pins the point statistics
			result.CPU = pointStats(valid[0].CPUUtilization)
			result.Memory = pointStats(valid[0].MemoryUtilization)
			result.Disk = pointStats(valid[0].DiskUtilization)
			result.InstancesMean = float64(valid[0].Instances)
		}
		return result, nil
	}

	result.CPU = computeStats(valid, models.MetricCPU)
	result.Memory = computeStats(valid, models.MetricMemory)
	result.Disk = computeStats(valid, models.MetricDisk)

	var instSum float64
	for i := range valid {
		instSum += float64(valid[i].Instances)
	}
	result.InstancesMean = instSum / float64(len(valid))

	a.computeEfficiency(valid, result)

	result.CPURisk = a.band(result.CPU.Mean, a.cpu)
	result.MemoryRisk = a.band(result.Memory.Mean, a.memory)
	result.DiskRisk = a.band(result.Disk.Mean, a.disk)
	result.OverallRisk = models.MaxBand(result.CPURisk, result.MemoryRisk, result.DiskRisk)

	result.Recommendations = a.recommend(result)

	return result, nil
}

// band maps a mean utilization to the Low/Medium/High vocabulary
func (a *Analyzer) band(mean float64, t config.Thresholds) models.RiskBand {
	switch {
	case mean > t.Critical:
		return models.BandHigh
	case mean > t.Warning:
		return models.BandMedium
	default:
		return models.BandLow
	}
}

// computeEfficiency compares instance-requested capacity to host totals.
// Waste is the share of utilization not accounted for by instance requests.
func (a *Analyzer) computeEfficiency(valid []models.MetricSample, result *models.AnalysisResult) {
	var cpuEff, memEff float64
	var n float64
	for i := range valid {
		s := valid[i]
		if s.VCPUsTotal > 0 {
			cpuEff += float64(s.InstanceVCPUs) / float64(s.VCPUsTotal) * 100
		}
		if s.MemoryTotalMB > 0 {
			memEff += float64(s.InstanceMemoryMB) / float64(s.MemoryTotalMB) * 100
		}
		n++
	}
	if n > 0 {
		result.CPUEfficiency = cpuEff / n
		result.MemoryEfficiency = memEff / n
	}
	result.CPUWaste = result.CPU.Mean - result.CPUEfficiency
	result.MemoryWaste = result.Memory.Mean - result.MemoryEfficiency
}

// recommend generates templated recommendation strings from the magnitude and
// direction of each metric's gap
func (a *Analyzer) recommend(result *models.AnalysisResult) []string {
	var recs []string
	for _, item := range []struct {
		metric string
		mean   float64
		th     config.Thresholds
	}{
		{models.MetricCPU, result.CPU.Mean, a.cpu},
		{models.MetricMemory, result.Memory.Mean, a.memory},
		{models.MetricDisk, result.Disk.Mean, a.disk},
	} {
		if item.mean > item.th.Critical {
			recs = append(recs, recommendationText[item.metric][overUtilized])
		} else if item.mean < a.lowUtilization {
			recs = append(recs, recommendationText[item.metric][underUtilized])
		}
	}
	if len(recs) == 0 {
		recs = append(recs, balancedText)
	}
	return recs
}

// ClusterCapacity rolls up the latest sample per node into fleet totals
func ClusterCapacity(latest []models.MetricSample) *models.ClusterCapacity {
	rollup := &models.ClusterCapacity{TotalNodes: len(latest)}

	var totalMemoryMB, usedMemoryMB int
	for i := range latest {
		s := latest[i]
		rollup.TotalVCPUs += s.VCPUsTotal
		rollup.UsedVCPUs += s.VCPUsUsed
		totalMemoryMB += s.MemoryTotalMB
		usedMemoryMB += s.MemoryUsedMB
		rollup.TotalDiskGB += s.DiskTotalGB
		rollup.UsedDiskGB += s.DiskUsedGB
		rollup.TotalInstances += s.Instances
	}

	rollup.AvailableVCPUs = rollup.TotalVCPUs - rollup.UsedVCPUs
	rollup.TotalMemoryGB = float64(totalMemoryMB) / 1024
	rollup.UsedMemoryGB = float64(usedMemoryMB) / 1024
	rollup.AvailableMemoryGB = rollup.TotalMemoryGB - rollup.UsedMemoryGB
	rollup.AvailableDiskGB = rollup.TotalDiskGB - rollup.UsedDiskGB

	if rollup.TotalVCPUs > 0 {
		rollup.CPUUtilization = round2(float64(rollup.UsedVCPUs) / float64(rollup.TotalVCPUs) * 100)
	}
	if totalMemoryMB > 0 {
		rollup.MemoryUtilization = round2(float64(usedMemoryMB) / float64(totalMemoryMB) * 100)
	}
	if rollup.TotalDiskGB > 0 {
		rollup.DiskUtilization = round2(float64(rollup.UsedDiskGB) / float64(rollup.TotalDiskGB) * 100)
	}

	return rollup
}

// computeStats calculates mean/max/min/stddev/variance for one metric
func computeStats(samples []models.MetricSample, metric string) models.MetricStats {
	n := float64(len(samples))
	stats := models.MetricStats{Min: math.MaxFloat64}

	var sum float64
	for i := range samples {
		v := samples[i].Utilization(metric)
		sum += v
		if v > stats.Max {
			stats.Max = v
		}
		if v < stats.Min {
			stats.Min = v
		}
	}
	stats.Mean = sum / n

	var sqSum float64
	for i := range samples {
		diff := samples[i].Utilization(metric) - stats.Mean
		sqSum += diff * diff
	}
	stats.Variance = sqSum / n
	stats.StdDev = math.Sqrt(stats.Variance)

	return stats
}

func pointStats(v float64) models.MetricStats {
	return models.MetricStats{Mean: v, Max: v, Min: v}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
