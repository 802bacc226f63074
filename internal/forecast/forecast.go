package forecast

import (
	"math"
	"time"

	"oscap-monitor/internal/config"
	"oscap-monitor/internal/models"
)

// Point is one (timestamp, value) observation of a node/metric series
type Point struct {
	Time  time.Time
	Value float64
}

// Forecaster projects future utilization over a fixed horizon with
// confidence bounds. Model selection is driven by available history: a
// seasonal decomposition when the series covers at least two full seasonal
// periods, otherwise an explicit linear-trend fallback.
type Forecaster struct {
	horizonPoints  int
	confidence     float64
	minHistory     int
	minSeasonal    int
	seasonalPeriod int
}

// NewForecaster creates a forecaster from validated configuration
func NewForecaster(cfg *config.Config) *Forecaster {
	return &Forecaster{
		horizonPoints:  cfg.Forecast.HorizonPoints,
		confidence:     cfg.Forecast.Confidence,
		minHistory:     cfg.Forecast.MinHistory,
		minSeasonal:    cfg.Forecast.MinSeasonal,
		seasonalPeriod: cfg.Forecast.SeasonalPeriod,
	}
}

// Forecast projects the series over the configured horizon. It fails with
// ErrInsufficientHistory below the minimum point count and with
// ErrInvalidSeries on non-monotonic or duplicate timestamps; no partial
// forecast is ever returned.
func (f *Forecaster) Forecast(node, metric string, series []Point) ([]models.ForecastPoint, error) {
	return f.forecast(node, metric, series, f.horizonPoints)
}

func (f *Forecaster) forecast(node, metric string, series []Point, horizon int) ([]models.ForecastPoint, error) {
	if len(series) < f.minHistory {
		return nil, models.ErrInsufficientHistory
	}
	if err := validateSeries(series); err != nil {
		return nil, err
	}

	model := f.fit(series)
	interval := nativeInterval(series)
	last := series[len(series)-1].Time
	z := zScore(f.confidence)
	n := float64(len(series))
	created := time.Now().UTC()

	points := make([]models.ForecastPoint, 0, horizon)
	for h := 1; h <= horizon; h++ {
		idx := len(series) - 1 + h
		value := model.predict(idx)

		// Uncertainty grows with the horizon step
		width := z * model.residualStdDev * math.Sqrt(1+float64(h)/n)

		points = append(points, models.ForecastPoint{
			Node:       node,
			Metric:     metric,
			Timestamp:  last.Add(time.Duration(h) * interval),
			Forecast:   value,
			LowerBound: value - width,
			UpperBound: value + width,
			Confidence: f.confidence,
			ModelType:  model.modelType,
			CreatedAt:  created,
		})
	}

	return points, nil
}

// Backtest withholds the last holdN points, forecasts them from the
// remaining history and reports error metrics against the withheld actuals.
// This is the only way the forecaster reports accuracy.
func (f *Forecaster) Backtest(node, metric string, series []Point, holdN int) (*models.ForecastAccuracy, error) {
	if holdN < 1 || len(series)-holdN < f.minHistory {
		return nil, models.ErrInsufficientHistory
	}
	if err := validateSeries(series); err != nil {
		return nil, err
	}

	train := series[:len(series)-holdN]
	held := series[len(series)-holdN:]

	points, err := f.forecast(node, metric, train, holdN)
	if err != nil {
		return nil, err
	}

	acc := &models.ForecastAccuracy{
		Node:          node,
		Metric:        metric,
		PointsHeldOut: holdN,
	}

	var absSum, sqSum, pctSum float64
	var pctCount int
	for i, p := range points {
		diff := held[i].Value - p.Forecast
		absSum += math.Abs(diff)
		sqSum += diff * diff
		if held[i].Value != 0 {
			pctSum += math.Abs(diff / held[i].Value)
			pctCount++
		}
	}

	n := float64(holdN)
	acc.MAE = absSum / n
	acc.RMSE = math.Sqrt(sqSum / n)
	if pctCount > 0 {
		acc.MAPE = pctSum / float64(pctCount) * 100
	}

	return acc, nil
}

// fitted holds a trained model's components
type fitted struct {
	modelType      string
	intercept      float64
	slope          float64
	seasonal       []float64
	period         int
	residualStdDev float64
}

// predict evaluates the model at the given series index
func (m *fitted) predict(idx int) float64 {
	v := m.intercept + m.slope*float64(idx)
	if m.period > 0 {
		v += m.seasonal[idx%m.period]
	}
	return v
}

// fit selects and trains the model allowed by the available history. The
// fallback to a plain linear trend is explicit: a seasonal model is never
// trained on fewer than two full periods.
func (f *Forecaster) fit(series []Point) *fitted {
	intercept, slope := linearRegression(series)

	model := &fitted{
		modelType: models.ModelLinear,
		intercept: intercept,
		slope:     slope,
	}

	if len(series) >= f.minSeasonal {
		model.modelType = models.ModelSeasonal
		model.period = f.seasonalPeriod
		model.seasonal = seasonalComponents(series, intercept, slope, f.seasonalPeriod)
	}

	model.residualStdDev = residualStdDev(series, model)
	return model
}

// linearRegression fits an ordinary least squares trend over series indices
func linearRegression(series []Point) (intercept, slope float64) {
	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range series {
		x := float64(i)
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return sumY / n, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return intercept, slope
}

// seasonalComponents averages the detrended residuals per period bucket
func seasonalComponents(series []Point, intercept, slope float64, period int) []float64 {
	sums := make([]float64, period)
	counts := make([]int, period)
	for i, p := range series {
		bucket := i % period
		sums[bucket] += p.Value - (intercept + slope*float64(i))
		counts[bucket]++
	}

	components := make([]float64, period)
	for b := 0; b < period; b++ {
		if counts[b] > 0 {
			components[b] = sums[b] / float64(counts[b])
		}
	}
	return components
}

// residualStdDev measures the in-sample fit error
func residualStdDev(series []Point, model *fitted) float64 {
	var sqSum float64
	for i, p := range series {
		diff := p.Value - model.predict(i)
		sqSum += diff * diff
	}
	return math.Sqrt(sqSum / float64(len(series)))
}

// validateSeries rejects non-monotonic or duplicate timestamps
func validateSeries(series []Point) error {
	for i := 1; i < len(series); i++ {
		if !series[i].Time.After(series[i-1].Time) {
			return models.ErrInvalidSeries
		}
	}
	return nil
}

// nativeInterval estimates the sampling interval from the median gap,
// tolerating irregular sampling
func nativeInterval(series []Point) time.Duration {
	if len(series) < 2 {
		return time.Hour
	}
	gaps := make([]time.Duration, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		gaps = append(gaps, series[i].Time.Sub(series[i-1].Time))
	}
	// insertion sort; gap counts are small
	for i := 1; i < len(gaps); i++ {
		for j := i; j > 0 && gaps[j] < gaps[j-1]; j-- {
			gaps[j], gaps[j-1] = gaps[j-1], gaps[j]
		}
	}
	return gaps[len(gaps)/2]
}

// zScore returns the standard normal quantile for a two-sided confidence
// level, via the Acklam rational approximation of the probit function
func zScore(confidence float64) float64 {
	p := 0.5 + confidence/2

	// Coefficients for the central region approximation
	a := []float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := []float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01}
	c := []float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	d := []float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00}

	switch {
	case p >= 0.97575:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	default:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	}
}

// SeriesFromSamples extracts the (timestamp, value) series of one metric
// from a sample window
func SeriesFromSamples(samples []models.MetricSample, metric string) []Point {
	series := make([]Point, 0, len(samples))
	for i := range samples {
		series = append(series, Point{
			Time:  samples[i].Timestamp,
			Value: samples[i].Utilization(metric),
		})
	}
	return series
}
