package store

import (
	"time"

	"oscap-monitor/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MetricsStore handles database operations for samples, analysis results,
// forecasts and alerts
type MetricsStore struct {
	db *gorm.DB
}

// NewMetricsStore creates a new metrics store with SQLite
func NewMetricsStore(dbPath string) (*MetricsStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(
		&models.MetricSample{},
		&models.AnalysisResult{},
		&models.ForecastPoint{},
		&models.Alert{},
	); err != nil {
		return nil, err
	}

	return &MetricsStore{db: db}, nil
}

// SaveSample persists one metric sample
func (s *MetricsStore) SaveSample(sample *models.MetricSample) error {
	return s.db.Create(sample).Error
}

// SaveSamples persists a batch of samples
func (s *MetricsStore) SaveSamples(samples []models.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	return s.db.Create(&samples).Error
}

// GetWindow retrieves samples for a node within [start, end], ascending by
// timestamp. No gap guarantee is implied; sampling may be irregular.
func (s *MetricsStore) GetWindow(node string, start, end time.Time) ([]models.MetricSample, error) {
	var samples []models.MetricSample
	err := s.db.Where("node = ? AND timestamp >= ? AND timestamp <= ?", node, start, end).
		Order("timestamp ASC").
		Find(&samples).Error
	return samples, err
}

// GetLatestSamples retrieves the most recent n samples for a node, ascending
func (s *MetricsStore) GetLatestSamples(node string, limit int) ([]models.MetricSample, error) {
	var samples []models.MetricSample
	err := s.db.Where("node = ?", node).
		Order("timestamp DESC").
		Limit(limit).
		Find(&samples).Error
	if err != nil {
		return nil, err
	}
	// Reverse into ascending order
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// GetLatestSample retrieves the newest sample for a node
func (s *MetricsStore) GetLatestSample(node string) (*models.MetricSample, error) {
	var sample models.MetricSample
	err := s.db.Where("node = ?", node).
		Order("timestamp DESC").
		First(&sample).Error
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// ListNodes returns the distinct node names with stored samples
func (s *MetricsStore) ListNodes() ([]string, error) {
	var nodes []string
	err := s.db.Model(&models.MetricSample{}).
		Distinct("node").
		Order("node ASC").
		Pluck("node", &nodes).Error
	return nodes, err
}

// SaveAnalysis persists one analysis result
func (s *MetricsStore) SaveAnalysis(result *models.AnalysisResult) error {
	result.Timestamp = time.Now().UTC()
	return s.db.Create(result).Error
}

// GetLatestAnalysis retrieves the most recent analysis result for a node
func (s *MetricsStore) GetLatestAnalysis(node string) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	err := s.db.Where("node = ?", node).
		Order("timestamp DESC").
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveForecasts persists a forecast run for one node/metric, replacing any
// previous run for the same pair so stale projections are not served.
func (s *MetricsStore) SaveForecasts(node, metric string, points []models.ForecastPoint) error {
	if len(points) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("node = ? AND metric = ?", node, metric).
			Delete(&models.ForecastPoint{}).Error; err != nil {
			return err
		}
		return tx.Create(&points).Error
	})
}

// GetForecasts retrieves the stored forecast points for a node/metric, ascending
func (s *MetricsStore) GetForecasts(node, metric string) ([]models.ForecastPoint, error) {
	var points []models.ForecastPoint
	err := s.db.Where("node = ? AND metric = ?", node, metric).
		Order("timestamp ASC").
		Find(&points).Error
	return points, err
}

// CleanupOldData removes samples, analysis results and forecasts older than
// the given duration
func (s *MetricsStore) CleanupOldData(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	if err := s.db.Where("timestamp < ?", cutoff).Delete(&models.MetricSample{}).Error; err != nil {
		return err
	}
	if err := s.db.Where("timestamp < ?", cutoff).Delete(&models.AnalysisResult{}).Error; err != nil {
		return err
	}
	return s.db.Where("timestamp < ?", cutoff).Delete(&models.ForecastPoint{}).Error
}

// SaveAlert saves a new alert
func (s *MetricsStore) SaveAlert(alert *models.Alert) error {
	alert.Timestamp = time.Now().UTC()
	return s.db.Create(alert).Error
}

// GetActiveAlerts retrieves all unresolved alerts
func (s *MetricsStore) GetActiveAlerts() ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.Where("resolved = ?", false).
		Order("timestamp DESC").
		Find(&alerts).Error
	return alerts, err
}

// GetAlertsByNode retrieves alerts for a specific node
func (s *MetricsStore) GetAlertsByNode(node string) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.Where("node = ?", node).
		Order("timestamp DESC").
		Find(&alerts).Error
	return alerts, err
}

// ResolveAlert marks an alert as resolved
func (s *MetricsStore) ResolveAlert(id uint) error {
	return s.db.Model(&models.Alert{}).Where("id = ?", id).Update("resolved", true).Error
}

// GetRecentAlerts retrieves alerts from the last n hours
func (s *MetricsStore) GetRecentAlerts(hours int) ([]models.Alert, error) {
	var alerts []models.Alert
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	err := s.db.Where("timestamp > ?", cutoff).
		Order("timestamp DESC").
		Find(&alerts).Error

	return alerts, err
}

// Close closes the database connection
func (s *MetricsStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
