package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"oscap-monitor/internal/config"
	"oscap-monitor/internal/models"
)

func hourlySeries(values []float64) []Point {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	series := make([]Point, 0, len(values))
	for i, v := range values {
		series = append(series, Point{Time: base.Add(time.Duration(i) * time.Hour), Value: v})
	}
	return series
}

// TestForecastInsufficientHistory tests the typed refusal with no partial output
func TestForecastInsufficientHistory(t *testing.T) {
	f := NewForecaster(config.Default()) // minHistory 10

	points, err := f.Forecast("compute-01", models.MetricCPU, hourlySeries([]float64{50, 55, 58}))
	if !errors.Is(err, models.ErrInsufficientHistory) {
		t.Fatalf("Expected ErrInsufficientHistory, got %v", err)
	}
	if points != nil {
		t.Errorf("Expected no partial forecast, got %d points", len(points))
	}
}

// TestForecastInvalidSeries tests rejection of unordered and duplicate timestamps
func TestForecastInvalidSeries(t *testing.T) {
	f := NewForecaster(config.Default())

	series := hourlySeries([]float64{50, 51, 52, 53, 54, 55, 56, 57, 58, 59, 60})

	// Duplicate timestamp
	dup := make([]Point, len(series))
	copy(dup, series)
	dup[5].Time = dup[4].Time
	if _, err := f.Forecast("compute-01", models.MetricCPU, dup); !errors.Is(err, models.ErrInvalidSeries) {
		t.Errorf("Expected ErrInvalidSeries for duplicate timestamps, got %v", err)
	}

	// Out of order
	ooo := make([]Point, len(series))
	copy(ooo, series)
	ooo[3], ooo[4] = ooo[4], ooo[3]
	if _, err := f.Forecast("compute-01", models.MetricCPU, ooo); !errors.Is(err, models.ErrInvalidSeries) {
		t.Errorf("Expected ErrInvalidSeries for out-of-order timestamps, got %v", err)
	}
}

// TestForecastLinearFallback tests that short history uses the explicit
// linear model, never a seasonal one
func TestForecastLinearFallback(t *testing.T) {
	f := NewForecaster(config.Default()) // minSeasonal 48

	values := []float64{40, 42, 41, 44, 43, 46, 45, 48, 47, 50, 49, 52}
	points, err := f.Forecast("compute-01", models.MetricCPU, hourlySeries(values))
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	if len(points) != 24 {
		t.Fatalf("Expected 24 forecast points, got %d", len(points))
	}
	for _, p := range points {
		if p.ModelType != models.ModelLinear {
			t.Fatalf("Expected linear model for 12-point history, got %s", p.ModelType)
		}
	}
}

// TestForecastSeasonalSelection tests that two full periods enable the
// seasonal model
func TestForecastSeasonalSelection(t *testing.T) {
	f := NewForecaster(config.Default())

	// 72 hourly points with a daily cycle
	values := make([]float64, 72)
	for i := range values {
		values[i] = 50 + 20*math.Sin(2*math.Pi*float64(i%24)/24)
	}

	points, err := f.Forecast("compute-01", models.MetricCPU, hourlySeries(values))
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	for _, p := range points {
		if p.ModelType != models.ModelSeasonal {
			t.Fatalf("Expected seasonal model for 72-point history, got %s", p.ModelType)
		}
	}
}

// TestForecastBoundsOrdering tests lower <= forecast <= upper per point
func TestForecastBoundsOrdering(t *testing.T) {
	f := NewForecaster(config.Default())

	values := []float64{40, 45, 38, 50, 42, 55, 47, 52, 44, 58, 49, 53}
	points, err := f.Forecast("compute-01", models.MetricCPU, hourlySeries(values))
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	for i, p := range points {
		if p.LowerBound > p.Forecast || p.Forecast > p.UpperBound {
			t.Errorf("Point %d violates bound ordering: %f <= %f <= %f", i, p.LowerBound, p.Forecast, p.UpperBound)
		}
		if p.Confidence != 0.8 {
			t.Errorf("Expected confidence 0.8, got %f", p.Confidence)
		}
	}
}

// TestForecastWidthMonotonic tests that interval width never shrinks with
// increasing horizon step
func TestForecastWidthMonotonic(t *testing.T) {
	f := NewForecaster(config.Default())

	values := []float64{40, 45, 38, 50, 42, 55, 47, 52, 44, 58, 49, 53, 46, 57, 51}
	points, err := f.Forecast("compute-01", models.MetricCPU, hourlySeries(values))
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	for i := 1; i < len(points); i++ {
		if points[i].Width() < points[i-1].Width() {
			t.Errorf("Interval width shrank from step %d (%f) to step %d (%f)",
				i, points[i-1].Width(), i+1, points[i].Width())
		}
	}
	if points[0].Width() <= 0 {
		t.Error("Expected positive interval width for a noisy series")
	}
}

// TestForecastTimestampsFollowNativeInterval tests horizon spacing
func TestForecastTimestampsFollowNativeInterval(t *testing.T) {
	f := NewForecaster(config.Default())

	values := []float64{40, 42, 41, 44, 43, 46, 45, 48, 47, 50, 49, 52}
	series := hourlySeries(values)
	points, err := f.Forecast("compute-01", models.MetricCPU, series)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	last := series[len(series)-1].Time
	for i, p := range points {
		want := last.Add(time.Duration(i+1) * time.Hour)
		if !p.Timestamp.Equal(want) {
			t.Errorf("Point %d: expected timestamp %s, got %s", i, want, p.Timestamp)
		}
	}
}

// TestBacktestPerfectFit tests that MAE is zero exactly when the forecast
// matches every withheld actual
func TestBacktestPerfectFit(t *testing.T) {
	f := NewForecaster(config.Default())

	// Perfectly linear series: the linear model reproduces it exactly
	values := make([]float64, 16)
	for i := range values {
		values[i] = 10 + 2*float64(i)
	}

	acc, err := f.Backtest("compute-01", models.MetricCPU, hourlySeries(values), 4)
	if err != nil {
		t.Fatalf("Backtest failed: %v", err)
	}

	if acc.PointsHeldOut != 4 {
		t.Errorf("Expected 4 held-out points, got %d", acc.PointsHeldOut)
	}
	if math.Abs(acc.MAE) > 1e-9 {
		t.Errorf("Expected MAE 0 for perfect fit, got %f", acc.MAE)
	}
	if math.Abs(acc.RMSE) > 1e-9 {
		t.Errorf("Expected RMSE 0 for perfect fit, got %f", acc.RMSE)
	}
}

// TestBacktestMetricsNonNegative tests error metric signs on a noisy series
func TestBacktestMetricsNonNegative(t *testing.T) {
	f := NewForecaster(config.Default())

	values := []float64{40, 45, 38, 50, 42, 55, 47, 52, 44, 58, 49, 53, 46, 57, 51, 60}
	acc, err := f.Backtest("compute-01", models.MetricCPU, hourlySeries(values), 4)
	if err != nil {
		t.Fatalf("Backtest failed: %v", err)
	}

	if acc.MAE < 0 || acc.MAPE < 0 || acc.RMSE < 0 {
		t.Errorf("Error metrics must be non-negative: MAE=%f MAPE=%f RMSE=%f", acc.MAE, acc.MAPE, acc.RMSE)
	}
	if acc.RMSE < acc.MAE {
		t.Errorf("RMSE (%f) cannot be below MAE (%f)", acc.RMSE, acc.MAE)
	}
}

// TestBacktestMAPESkipsZeroActuals tests that MAPE averages only over the
// nonzero withheld actuals instead of dividing by zero
func TestBacktestMAPESkipsZeroActuals(t *testing.T) {
	f := NewForecaster(config.Default())

	// Constant training history makes every forecast exactly 10; the held-out
	// actuals are [10, 0, 20, 10]
	values := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 0, 20, 10}
	acc, err := f.Backtest("compute-01", models.MetricCPU, hourlySeries(values), 4)
	if err != nil {
		t.Fatalf("Backtest failed: %v", err)
	}

	// Percentage errors over the nonzero actuals: 0%, 50%, 0%
	wantMAPE := 50.0 / 3.0
	if math.Abs(acc.MAPE-wantMAPE) > 1e-9 {
		t.Errorf("Expected MAPE %f over nonzero actuals, got %f", wantMAPE, acc.MAPE)
	}
	if math.IsInf(acc.MAPE, 0) || math.IsNaN(acc.MAPE) {
		t.Errorf("Zero actual polluted MAPE: %f", acc.MAPE)
	}

	// MAE still counts every held-out point
	if math.Abs(acc.MAE-5) > 1e-9 {
		t.Errorf("Expected MAE 5 over all held-out points, got %f", acc.MAE)
	}
}

// TestBacktestRefusesShortTraining tests that the holdout cannot eat into the
// minimum training history
func TestBacktestRefusesShortTraining(t *testing.T) {
	f := NewForecaster(config.Default())

	values := []float64{40, 42, 41, 44, 43, 46, 45, 48, 47, 50, 49, 52}
	if _, err := f.Backtest("compute-01", models.MetricCPU, hourlySeries(values), 5); !errors.Is(err, models.ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory, got %v", err)
	}
}

// TestZScore tests the normal quantile approximation at known levels
func TestZScore(t *testing.T) {
	cases := []struct {
		confidence float64
		want       float64
	}{
		{0.8, 1.2816},
		{0.9, 1.6449},
		{0.95, 1.9600},
	}
	for _, tc := range cases {
		got := zScore(tc.confidence)
		if math.Abs(got-tc.want) > 0.001 {
			t.Errorf("zScore(%f): expected %f, got %f", tc.confidence, tc.want, got)
		}
	}
}
