package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig tunes the equipment control engine.
type EngineConfig struct {
	StartupDelayMs         int `yaml:"startup_delay_ms"`
	ShutdownDelayMs        int `yaml:"shutdown_delay_ms"`
	InterlockWindowSeconds int `yaml:"interlock_window_seconds"`
	SweepPeriodSeconds     int `yaml:"sweep_period_seconds"`
}

// SamplingConfig tunes the historical sampler.
type SamplingConfig struct {
	PeriodSeconds int    `yaml:"period_seconds"`
	RetentionDays int    `yaml:"retention_days"`
	PurgeDailyAt  string `yaml:"purge_daily_at"`
}

// Config defines service configuration.
type Config struct {
	HTTPAddr    string         `yaml:"http_addr"`
	DatabaseDSN string         `yaml:"database_dsn"`
	JWTSecret   string         `yaml:"jwt_secret"`
	WebhookURL  string         `yaml:"webhook_url"`
	Engine      EngineConfig   `yaml:"engine"`
	Sampling    SamplingConfig `yaml:"sampling"`
}

// Load reads config from env, with an optional yaml file overriding defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:    getenvDefault("PLANT_HTTP_ADDR", ":8080"),
		DatabaseDSN: os.Getenv("PLANT_DATABASE_DSN"),
		JWTSecret:   os.Getenv("PLANT_JWT_SECRET"),
		WebhookURL:  os.Getenv("PLANT_WEBHOOK_URL"),
		Engine: EngineConfig{
			StartupDelayMs:         getenvIntDefault("PLANT_STARTUP_DELAY_MS", 100),
			ShutdownDelayMs:        getenvIntDefault("PLANT_SHUTDOWN_DELAY_MS", 50),
			InterlockWindowSeconds: getenvIntDefault("PLANT_INTERLOCK_WINDOW_SECONDS", 5),
			SweepPeriodSeconds:     getenvIntDefault("PLANT_SWEEP_PERIOD_SECONDS", 5),
		},
		Sampling: SamplingConfig{
			PeriodSeconds: getenvIntDefault("PLANT_SAMPLE_PERIOD_SECONDS", 3),
			RetentionDays: getenvIntDefault("PLANT_RETENTION_DAYS", 90),
			PurgeDailyAt:  getenvDefault("PLANT_PURGE_DAILY_AT", "00:00"),
		},
	}

	if path := os.Getenv("PLANT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.HTTPAddr == "" {
		return cfg, errors.New("config: http addr required")
	}
	if _, err := time.Parse("15:04", cfg.Sampling.PurgeDailyAt); err != nil {
		return cfg, errors.New("config: purge_daily_at must be HH:MM")
	}
	if cfg.Sampling.PeriodSeconds <= 0 {
		return cfg, errors.New("config: sampling period must be positive")
	}
	if cfg.Sampling.RetentionDays <= 0 {
		return cfg, errors.New("config: retention days must be positive")
	}
	return cfg, nil
}

// StartupDelay returns the engine startup ramp as a duration.
func (c Config) StartupDelay() time.Duration {
	return time.Duration(c.Engine.StartupDelayMs) * time.Millisecond
}

// ShutdownDelay returns the engine shutdown ramp as a duration.
func (c Config) ShutdownDelay() time.Duration {
	return time.Duration(c.Engine.ShutdownDelayMs) * time.Millisecond
}

// InterlockWindow returns the motor start dead time as a duration.
func (c Config) InterlockWindow() time.Duration {
	return time.Duration(c.Engine.InterlockWindowSeconds) * time.Second
}

// SweepPeriod returns the threshold sweep interval as a duration.
func (c Config) SweepPeriod() time.Duration {
	return time.Duration(c.Engine.SweepPeriodSeconds) * time.Second
}

// SamplePeriod returns the sampler interval as a duration.
func (c Config) SamplePeriod() time.Duration {
	return time.Duration(c.Sampling.PeriodSeconds) * time.Second
}

// Retention returns the sample retention as a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.Sampling.RetentionDays) * 24 * time.Hour
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
