package models

import "time"

// MetricSample is one utilization observation for one hypervisor node
type MetricSample struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
	Node      string    `json:"node" gorm:"index"`

	VCPUsUsed     int `json:"vcpusUsed"`
	VCPUsTotal    int `json:"vcpusTotal"`
	MemoryUsedMB  int `json:"memoryUsedMb"`
	MemoryTotalMB int `json:"memoryTotalMb"`
	DiskUsedGB    int `json:"diskUsedGb"`
	DiskTotalGB   int `json:"diskTotalGb"`
	Instances     int `json:"instances"`

	// Derived percentages, always recomputed from used/total
	CPUUtilization    float64 `json:"cpuUtilization"`
	MemoryUtilization float64 `json:"memoryUtilization"`
	DiskUtilization   float64 `json:"diskUtilization"`

	// Requested capacity of instances placed on the node, for efficiency metrics
	InstanceVCPUs    int `json:"instanceVcpus"`
	InstanceMemoryMB int `json:"instanceMemoryMb"`

	HypervisorType string `json:"hypervisorType"`
	State          string `json:"state"`  // up/down
	Status         string `json:"status"` // enabled/disabled

	// DataQualityFlags records zero-capacity resources; not persisted
	DataQualityFlags []string `json:"dataQualityFlags,omitempty" gorm:"-"`
}

// NewMetricSample builds a validated sample. Utilization percentages are
// always derived here; a used value exceeding its total is rejected rather
// than clamped. A zero total yields 0% utilization plus a data-quality flag.
func NewMetricSample(ts time.Time, node string, vcpusUsed, vcpusTotal, memUsedMB, memTotalMB, diskUsedGB, diskTotalGB, instances int) (*MetricSample, error) {
	if node == "" {
		return nil, ErrMissingData
	}
	if ts.IsZero() {
		return nil, ErrMissingData
	}
	if vcpusUsed < 0 || memUsedMB < 0 || diskUsedGB < 0 || instances < 0 {
		return nil, &DataQualityError{Node: node, Field: "used", Reason: "negative value"}
	}
	if vcpusUsed > vcpusTotal {
		return nil, &DataQualityError{Node: node, Field: "vcpus", Reason: "used exceeds total"}
	}
	if memUsedMB > memTotalMB {
		return nil, &DataQualityError{Node: node, Field: "memory", Reason: "used exceeds total"}
	}
	if diskUsedGB > diskTotalGB {
		return nil, &DataQualityError{Node: node, Field: "disk", Reason: "used exceeds total"}
	}

	s := &MetricSample{
		Timestamp:     ts.UTC(),
		Node:          node,
		VCPUsUsed:     vcpusUsed,
		VCPUsTotal:    vcpusTotal,
		MemoryUsedMB:  memUsedMB,
		MemoryTotalMB: memTotalMB,
		DiskUsedGB:    diskUsedGB,
		DiskTotalGB:   diskTotalGB,
		Instances:     instances,
	}

	s.CPUUtilization = utilization(float64(vcpusUsed), float64(vcpusTotal))
	s.MemoryUtilization = utilization(float64(memUsedMB), float64(memTotalMB))
	s.DiskUtilization = utilization(float64(diskUsedGB), float64(diskTotalGB))

	if vcpusTotal == 0 {
		s.DataQualityFlags = append(s.DataQualityFlags, "cpu total is zero")
	}
	if memTotalMB == 0 {
		s.DataQualityFlags = append(s.DataQualityFlags, "memory total is zero")
	}
	if diskTotalGB == 0 {
		s.DataQualityFlags = append(s.DataQualityFlags, "disk total is zero")
	}

	return s, nil
}

// Validate re-checks an already-populated sample (e.g. one loaded from the
// store or an external source) and recomputes the derived utilizations.
func (s *MetricSample) Validate() error {
	if s.Node == "" || s.Timestamp.IsZero() {
		return ErrMissingData
	}
	if s.VCPUsUsed < 0 || s.MemoryUsedMB < 0 || s.DiskUsedGB < 0 || s.Instances < 0 {
		return &DataQualityError{Node: s.Node, Field: "used", Reason: "negative value"}
	}
	if s.VCPUsUsed > s.VCPUsTotal {
		return &DataQualityError{Node: s.Node, Field: "vcpus", Reason: "used exceeds total"}
	}
	if s.MemoryUsedMB > s.MemoryTotalMB {
		return &DataQualityError{Node: s.Node, Field: "memory", Reason: "used exceeds total"}
	}
	if s.DiskUsedGB > s.DiskTotalGB {
		return &DataQualityError{Node: s.Node, Field: "disk", Reason: "used exceeds total"}
	}
	s.CPUUtilization = utilization(float64(s.VCPUsUsed), float64(s.VCPUsTotal))
	s.MemoryUtilization = utilization(float64(s.MemoryUsedMB), float64(s.MemoryTotalMB))
	s.DiskUtilization = utilization(float64(s.DiskUsedGB), float64(s.DiskTotalGB))
	return nil
}

// Utilization returns the derived percentage for the named metric
func (s *MetricSample) Utilization(metric string) float64 {
	switch metric {
	case MetricCPU:
		return s.CPUUtilization
	case MetricMemory:
		return s.MemoryUtilization
	case MetricDisk:
		return s.DiskUtilization
	}
	return 0
}

func utilization(used, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return used / total * 100
}

// Metric names used across store, analysis and forecast packages.
// Order is fixed and used for deterministic output.
const (
	MetricCPU    = "cpu_utilization"
	MetricMemory = "memory_utilization"
	MetricDisk   = "disk_utilization"
)

// Metrics lists the utilization metrics in their canonical order
var Metrics = []string{MetricCPU, MetricMemory, MetricDisk}
