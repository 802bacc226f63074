package models

import "time"

// Forecast model variants, chosen by available-history policy
const (
	ModelSeasonal = "seasonal"
	ModelLinear   = "linear"
)

// ForecastPoint is one projected value for one node/metric at one future instant
type ForecastPoint struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Node       string    `json:"node" gorm:"index"`
	Metric     string    `json:"metric" gorm:"index"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
	Forecast   float64   `json:"forecast"`
	LowerBound float64   `json:"lowerBound"`
	UpperBound float64   `json:"upperBound"`
	Confidence float64   `json:"confidence"`
	ModelType  string    `json:"modelType"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Width returns the confidence interval width
func (p *ForecastPoint) Width() float64 {
	return p.UpperBound - p.LowerBound
}

// ForecastAccuracy reports backtest error metrics. It is only ever produced
// by withholding known points and comparing forecasts against them.
type ForecastAccuracy struct {
	Node          string  `json:"node"`
	Metric        string  `json:"metric"`
	MAE           float64 `json:"mae"`
	MAPE          float64 `json:"mape"`
	RMSE          float64 `json:"rmse"`
	PointsHeldOut int     `json:"pointsHeldOut"`
}

// Recommendation is one ranked capacity-planning advice item
type Recommendation struct {
	Node     string `json:"node"`
	Resource string `json:"resource"`
	Severity string `json:"severity"` // Critical/High/Medium
	Message  string `json:"message"`
	Action   string `json:"action"`

	// CrossingStep is the earliest forecast step at which the resource
	// crosses into a worse risk band; 0 when no crossing is predicted.
	CrossingStep int `json:"crossingStep,omitempty"`
}

// Alert is a persisted threshold or anomaly alert
type Alert struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Node      string    `json:"node" gorm:"index"`
	Severity  string    `json:"severity"` // Warning/Critical
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Resolved  bool      `json:"resolved"`
}
