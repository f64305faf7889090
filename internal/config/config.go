// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	DB         DBConfig         `mapstructure:"db"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Inspection InspectionConfig `mapstructure:"inspection"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Publisher  PublisherConfig  `mapstructure:"publisher"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProviderConfig selects and tunes the external analytics/inspection provider.
type ProviderConfig struct {
	// Kind selects the provider implementation ("noop" for dry runs).
	Kind               string `mapstructure:"kind"`
	SiteURL            string `mapstructure:"site_url"`
	RowLimit           int    `mapstructure:"row_limit"`
	ReportingDelayDays int    `mapstructure:"reporting_delay_days"`
}

// DBConfig controls the telemetry store.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// DetectorConfig carries the anomaly thresholds. The defaults are
// production-tuned values; change them only with product sign-off.
type DetectorConfig struct {
	HistoryDays         int     `mapstructure:"history_days"`
	BaselineDays        int     `mapstructure:"baseline_days"`
	MinHistoryDays      int     `mapstructure:"min_history_days"`
	TopPages            int     `mapstructure:"top_pages"`
	SiteDropCriticalPct float64 `mapstructure:"site_drop_critical_pct"`
	SiteDropWarningPct  float64 `mapstructure:"site_drop_warning_pct"`
	SiteSurgePct        float64 `mapstructure:"site_surge_pct"`
	PageDropPct         float64 `mapstructure:"page_drop_pct"`
	PageSurgePct        float64 `mapstructure:"page_surge_pct"`
	NoiseFloorClicks    float64 `mapstructure:"noise_floor_clicks"`
	LossFloorClicks     float64 `mapstructure:"loss_floor_clicks"`
	PositionDelta       float64 `mapstructure:"position_delta"`
	PositionRankCap     float64 `mapstructure:"position_rank_cap"`
	PageSurgeMinClicks  int64   `mapstructure:"page_surge_min_clicks"`
}

// InspectionConfig governs the rotation scheduler.
type InspectionConfig struct {
	Budget              int `mapstructure:"budget"`
	FreshnessWindowDays int `mapstructure:"freshness_window_days"`
	DelayMs             int `mapstructure:"delay_ms"`
	TrafficLookbackDays int `mapstructure:"traffic_lookback_days"`
}

// ArchiveConfig sets the raw report blob destination.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	BaseDir   string `mapstructure:"base_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PublisherConfig holds metadata for run-event notifications.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// MetricsConfig controls the optional metrics/health listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEARCHPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)

	v.SetDefault("provider.kind", "noop")
	v.SetDefault("provider.row_limit", 25000)
	v.SetDefault("provider.reporting_delay_days", 3)

	v.SetDefault("db.provider", "postgres")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)

	v.SetDefault("detector.history_days", 28)
	v.SetDefault("detector.baseline_days", 7)
	v.SetDefault("detector.min_history_days", 5)
	v.SetDefault("detector.top_pages", 200)
	v.SetDefault("detector.site_drop_critical_pct", -30)
	v.SetDefault("detector.site_drop_warning_pct", -15)
	v.SetDefault("detector.site_surge_pct", 50)
	v.SetDefault("detector.page_drop_pct", -50)
	v.SetDefault("detector.page_surge_pct", 100)
	v.SetDefault("detector.noise_floor_clicks", 2)
	v.SetDefault("detector.loss_floor_clicks", 5)
	v.SetDefault("detector.position_delta", 5)
	v.SetDefault("detector.position_rank_cap", 20)
	v.SetDefault("detector.page_surge_min_clicks", 5)

	v.SetDefault("inspection.budget", 500)
	v.SetDefault("inspection.freshness_window_days", 14)
	v.SetDefault("inspection.delay_ms", 200)
	v.SetDefault("inspection.traffic_lookback_days", 3)

	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "reports")

	v.SetDefault("publisher.provider", "noop")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Provider.RowLimit <= 0 {
		return fmt.Errorf("provider.row_limit must be > 0")
	}
	if c.Provider.ReportingDelayDays < 0 {
		return fmt.Errorf("provider.reporting_delay_days must be >= 0")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	if c.Detector.BaselineDays <= 0 || c.Detector.HistoryDays < c.Detector.BaselineDays {
		return fmt.Errorf("detector.history_days must be >= detector.baseline_days > 0")
	}
	if c.Detector.MinHistoryDays <= 0 {
		return fmt.Errorf("detector.min_history_days must be > 0")
	}
	if c.Inspection.Budget <= 0 {
		return fmt.Errorf("inspection.budget must be > 0")
	}
	if c.Inspection.FreshnessWindowDays <= 0 {
		return fmt.Errorf("inspection.freshness_window_days must be > 0")
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
	}
	if c.Archive.Provider == "local" && c.Archive.BaseDir == "" {
		return fmt.Errorf("archive.base_dir must be set when archive.provider is local")
	}
	if c.Publisher.Provider == "pubsub" && (c.Publisher.ProjectID == "" || c.Publisher.TopicID == "") {
		return fmt.Errorf("publisher.project_id and publisher.topic_id must be set when publisher.provider is pubsub")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// InspectionDelay converts the configured inter-call delay to a Duration.
func (c Config) InspectionDelay() time.Duration {
	return time.Duration(c.Inspection.DelayMs) * time.Millisecond
}
