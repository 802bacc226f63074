package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InvalidConfigError reports a configuration that fails validation.
// It is fatal at load time; analysis never runs on an invalid config.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// Thresholds are the warning/critical utilization percentages for one resource
type Thresholds struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
}

// AnomalyConfig tunes the anomaly detector
type AnomalyConfig struct {
	KSigma    float64 `yaml:"kSigma"`
	MinWindow int     `yaml:"minWindow"`
	Epsilon   float64 `yaml:"epsilon"`
}

// ForecastConfig tunes the forecaster
type ForecastConfig struct {
	HorizonPoints  int     `yaml:"horizonPoints"`
	Confidence     float64 `yaml:"confidence"`
	MinHistory     int     `yaml:"minHistory"`
	MinSeasonal    int     `yaml:"minSeasonal"`
	SeasonalPeriod int     `yaml:"seasonalPeriod"`
}

// OpenStackConfig holds Keystone credentials and endpoints
type OpenStackConfig struct {
	AuthURL       string `yaml:"authURL"`
	ProjectName   string `yaml:"projectName"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	UserDomain    string `yaml:"userDomain"`
	ProjectDomain string `yaml:"projectDomain"`
}

// StoreConfig holds persistence settings
type StoreConfig struct {
	DBPath        string `yaml:"dbPath"`
	RetentionDays int    `yaml:"retentionDays"`
}

// Config is the full monitor configuration
type Config struct {
	Port                   string          `yaml:"port"`
	CollectIntervalMinutes int             `yaml:"collectIntervalMinutes"`
	AnalyzeIntervalMinutes int             `yaml:"analyzeIntervalMinutes"`
	CPU                    Thresholds      `yaml:"cpu"`
	Memory                 Thresholds      `yaml:"memory"`
	Disk                   Thresholds      `yaml:"disk"`
	Anomaly                AnomalyConfig   `yaml:"anomaly"`
	Forecast               ForecastConfig  `yaml:"forecast"`
	OpenStack              OpenStackConfig `yaml:"openstack"`
	Store                  StoreConfig     `yaml:"store"`
}

// Default returns the configuration defaults
func Default() *Config {
	return &Config{
		Port:                   "8080",
		CollectIntervalMinutes: 15,
		AnalyzeIntervalMinutes: 60,
		CPU:                    Thresholds{Warning: 60, Critical: 80},
		Memory:                 Thresholds{Warning: 60, Critical: 80},
		Disk:                   Thresholds{Warning: 60, Critical: 80},
		Anomaly: AnomalyConfig{
			KSigma:    3,
			MinWindow: 20,
			Epsilon:   1e-9,
		},
		Forecast: ForecastConfig{
			HorizonPoints:  24,
			Confidence:     0.8,
			MinHistory:     10,
			MinSeasonal:    48,
			SeasonalPeriod: 24,
		},
		OpenStack: OpenStackConfig{
			UserDomain:    "Default",
			ProjectDomain: "Default",
		},
		Store: StoreConfig{
			DBPath:        "data/metrics.db",
			RetentionDays: 30,
		},
	}
}

// Load reads the YAML config file, applies environment overrides for
// credentials, and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Credentials come from the environment when set
	cfg.OpenStack.AuthURL = getEnv("OS_AUTH_URL", cfg.OpenStack.AuthURL)
	cfg.OpenStack.ProjectName = getEnv("OS_PROJECT_NAME", cfg.OpenStack.ProjectName)
	cfg.OpenStack.Username = getEnv("OS_USERNAME", cfg.OpenStack.Username)
	cfg.OpenStack.Password = getEnv("OS_PASSWORD", cfg.OpenStack.Password)
	cfg.OpenStack.UserDomain = getEnv("OS_USER_DOMAIN_NAME", cfg.OpenStack.UserDomain)
	cfg.OpenStack.ProjectDomain = getEnv("OS_PROJECT_DOMAIN_NAME", cfg.OpenStack.ProjectDomain)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Store.DBPath = getEnv("DB_PATH", cfg.Store.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks threshold ordering and tuning ranges
func (c *Config) Validate() error {
	for _, t := range []struct {
		name string
		th   Thresholds
	}{
		{"cpu", c.CPU},
		{"memory", c.Memory},
		{"disk", c.Disk},
	} {
		if t.th.Warning >= t.th.Critical {
			return &InvalidConfigError{
				Field:  t.name + " thresholds",
				Reason: fmt.Sprintf("warning (%.1f) must be below critical (%.1f)", t.th.Warning, t.th.Critical),
			}
		}
		if t.th.Warning < 0 || t.th.Critical > 100 {
			return &InvalidConfigError{
				Field:  t.name + " thresholds",
				Reason: "thresholds must be within [0,100]",
			}
		}
	}

	if c.Anomaly.KSigma <= 0 {
		return &InvalidConfigError{Field: "anomaly.kSigma", Reason: "must be positive"}
	}
	if c.Anomaly.MinWindow < 2 {
		return &InvalidConfigError{Field: "anomaly.minWindow", Reason: "must be at least 2"}
	}
	if c.Forecast.HorizonPoints < 1 {
		return &InvalidConfigError{Field: "forecast.horizonPoints", Reason: "must be at least 1"}
	}
	if c.Forecast.Confidence <= 0 || c.Forecast.Confidence >= 1 {
		return &InvalidConfigError{Field: "forecast.confidence", Reason: "must be strictly between 0 and 1"}
	}
	if c.Forecast.MinHistory < 2 {
		return &InvalidConfigError{Field: "forecast.minHistory", Reason: "must be at least 2"}
	}
	if c.Forecast.SeasonalPeriod < 2 {
		return &InvalidConfigError{Field: "forecast.seasonalPeriod", Reason: "must be at least 2"}
	}
	if c.Forecast.MinSeasonal < 2*c.Forecast.SeasonalPeriod {
		return &InvalidConfigError{
			Field:  "forecast.minSeasonal",
			Reason: "must cover at least two full seasonal periods",
		}
	}
	if c.CollectIntervalMinutes < 1 || c.AnalyzeIntervalMinutes < 1 {
		return &InvalidConfigError{Field: "intervals", Reason: "must be at least 1 minute"}
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
