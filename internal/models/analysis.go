package models

import "time"

// MetricStats holds summary statistics for one utilization metric over a window
type MetricStats struct {
	Mean     float64 `json:"mean"`
	Max      float64 `json:"max"`
	Min      float64 `json:"min"`
	StdDev   float64 `json:"stdDev"`
	Variance float64 `json:"variance"`
}

// AnalysisResult is one node's analysis for one run. It is computed fresh
// each cycle from the current sample window and never mutated afterwards.
type AnalysisResult struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Node      string    `json:"node" gorm:"index"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`

	CPU    MetricStats `json:"cpu" gorm:"embedded;embeddedPrefix:cpu_"`
	Memory MetricStats `json:"memory" gorm:"embedded;embeddedPrefix:memory_"`
	Disk   MetricStats `json:"disk" gorm:"embedded;embeddedPrefix:disk_"`

	InstancesMean float64 `json:"instancesMean"`

	// CPUEfficiency/MemoryEfficiency compare instance-requested capacity to
	// host totals; waste is actual utilization minus that requested share.
	CPUEfficiency    float64 `json:"cpuEfficiency"`
	MemoryEfficiency float64 `json:"memoryEfficiency"`
	CPUWaste         float64 `json:"cpuWaste"`
	MemoryWaste      float64 `json:"memoryWaste"`

	CPURisk     RiskBand `json:"cpuRisk"`
	MemoryRisk  RiskBand `json:"memoryRisk"`
	DiskRisk    RiskBand `json:"diskRisk"`
	OverallRisk RiskBand `json:"overallRisk"`

	Recommendations []string `json:"recommendations" gorm:"serializer:json"`

	SampleCount      int      `json:"sampleCount"`
	ExcludedSamples  int      `json:"excludedSamples"`
	ExclusionReasons []string `json:"exclusionReasons,omitempty" gorm:"serializer:json"`

	// InsufficientData marks a degenerate (empty or single-sample) window;
	// statistics are zero-valued, never NaN, when it is set.
	InsufficientData bool `json:"insufficientData"`
}

// Stats returns the summary statistics for the named metric
func (r *AnalysisResult) Stats(metric string) MetricStats {
	switch metric {
	case MetricCPU:
		return r.CPU
	case MetricMemory:
		return r.Memory
	case MetricDisk:
		return r.Disk
	}
	return MetricStats{}
}

// ClusterCapacity is the fleet-wide rollup of the latest sample per node
type ClusterCapacity struct {
	TotalNodes     int `json:"totalNodes"`
	TotalInstances int `json:"totalInstances"`

	TotalVCPUs     int     `json:"totalVcpus"`
	UsedVCPUs      int     `json:"usedVcpus"`
	AvailableVCPUs int     `json:"availableVcpus"`
	CPUUtilization float64 `json:"cpuUtilization"`

	TotalMemoryGB     float64 `json:"totalMemoryGb"`
	UsedMemoryGB      float64 `json:"usedMemoryGb"`
	AvailableMemoryGB float64 `json:"availableMemoryGb"`
	MemoryUtilization float64 `json:"memoryUtilization"`

	TotalDiskGB     int     `json:"totalDiskGb"`
	UsedDiskGB      int     `json:"usedDiskGb"`
	AvailableDiskGB int     `json:"availableDiskGb"`
	DiskUtilization float64 `json:"diskUtilization"`
}

// AnomalyVerdict is the detector's per-metric outcome
type AnomalyVerdict int

const (
	// VerdictIndeterminate means the history window was below the detector
	// minimum; it is not a normal/anomalous call.
	VerdictIndeterminate AnomalyVerdict = iota
	VerdictNormal
	VerdictAnomalous
)

func (v AnomalyVerdict) String() string {
	switch v {
	case VerdictNormal:
		return "Normal"
	case VerdictAnomalous:
		return "Anomalous"
	default:
		return "Indeterminate"
	}
}

func (v AnomalyVerdict) MarshalJSON() ([]byte, error) {
	return []byte(`"` + v.String() + `"`), nil
}

// AnomalyReport is the detector output for one metric of one node
type AnomalyReport struct {
	Node      string         `json:"node"`
	Metric    string         `json:"metric"`
	Timestamp time.Time      `json:"timestamp"`
	Value     float64        `json:"value"`
	Mean      float64        `json:"mean"`
	StdDev    float64        `json:"stdDev"`
	Deviation float64        `json:"deviation"` // |value-mean|/stddev, for severity ranking
	Verdict   AnomalyVerdict `json:"verdict"`
}
