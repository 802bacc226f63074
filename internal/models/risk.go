package models

// RiskLevel classifies a resource's or node's current state.
// The total order Healthy < Warning < Critical is fixed.
type RiskLevel int

const (
	RiskHealthy RiskLevel = iota
	RiskWarning
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskWarning:
		return "Warning"
	case RiskCritical:
		return "Critical"
	default:
		return "Healthy"
	}
}

// MarshalJSON renders the level name; the sink contract only recognizes
// Healthy/Warning/Critical.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// MaxRisk returns the worst of the given levels
func MaxRisk(levels ...RiskLevel) RiskLevel {
	max := RiskHealthy
	for _, l := range levels {
		if l > max {
			max = l
		}
	}
	return max
}

// RiskBand classifies average utilization over a window in the analyzer's
// Low/Medium/High vocabulary, distinct from the classifier's point-in-time
// Healthy/Warning/Critical levels.
type RiskBand int

const (
	BandLow RiskBand = iota
	BandMedium
	BandHigh
)

func (b RiskBand) String() string {
	switch b {
	case BandMedium:
		return "Medium"
	case BandHigh:
		return "High"
	default:
		return "Low"
	}
}

func (b RiskBand) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

// MaxBand returns the worst of the given bands
func MaxBand(bands ...RiskBand) RiskBand {
	max := BandLow
	for _, b := range bands {
		if b > max {
			max = b
		}
	}
	return max
}

// RiskAssessment is the classifier output for one node
type RiskAssessment struct {
	Node        string    `json:"node"`
	CPU         RiskLevel `json:"cpu"`
	Memory      RiskLevel `json:"memory"`
	Disk        RiskLevel `json:"disk"`
	Overall     RiskLevel `json:"overall"`
	DataQuality []string  `json:"dataQuality,omitempty"`
}

// ForResource returns the per-resource level for the named metric
func (a *RiskAssessment) ForResource(metric string) RiskLevel {
	switch metric {
	case MetricCPU:
		return a.CPU
	case MetricMemory:
		return a.Memory
	case MetricDisk:
		return a.Disk
	}
	return RiskHealthy
}
