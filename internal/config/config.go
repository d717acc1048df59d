// Package config holds all retain configuration.
package config

import (
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/lazypower/retain/internal/model"
)

// Config holds all retain configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// TierValues holds one float per tier.
type TierValues struct {
	Working   float64 `yaml:"working"`
	ShortTerm float64 `yaml:"short_term"`
	LongTerm  float64 `yaml:"long_term"`
	Core      float64 `yaml:"core"`
}

// For returns the value for the given tier.
func (v TierValues) For(t model.Tier) float64 {
	switch t {
	case model.TierShortTerm:
		return v.ShortTerm
	case model.TierLongTerm:
		return v.LongTerm
	case model.TierCore:
		return v.Core
	default:
		return v.Working
	}
}

// Weights are the composite-score component weights. They should sum to 1.0.
type Weights struct {
	AccessPattern      float64 `yaml:"access_pattern"`
	ContentStability   float64 `yaml:"content_stability"`
	UserEngagement     float64 `yaml:"user_engagement"`
	SemanticImportance float64 `yaml:"semantic_importance"`
}

// LifecycleConfig tunes scoring, promotion, decay, and expiry.
// The formula shapes are the contract; these values are not.
type LifecycleConfig struct {
	PromotionThreshold         float64 `yaml:"promotion_threshold"`
	MinimumAgeHours            float64 `yaml:"minimum_age_hours"`
	MinimumAccessCount         int     `yaml:"minimum_access_count"`
	ContradictionCooldownHours float64 `yaml:"contradiction_cooldown_hours"`
	CrossSessionThreshold      int     `yaml:"cross_session_threshold"`
	EmotionalThreshold         float64 `yaml:"emotional_threshold"`
	EmotionalMinAccess         int     `yaml:"emotional_min_access"`

	Weights Weights `yaml:"weights"`

	// DecayRates are importance points removed per idle 24h period.
	DecayRates TierValues `yaml:"decay_rates"`
	// DecayIdleHours is how long a memory must sit untouched before
	// decay applies at all.
	DecayIdleHours float64 `yaml:"decay_idle_hours"`
	// CoreFloor is the importance CORE memories never decay below.
	CoreFloor float64 `yaml:"core_floor"`

	// ExpiryMaxAgeHours per tier; a memory older than this with importance
	// below the tier's floor is deleted. Core is exempt regardless.
	ExpiryMaxAgeHours     TierValues `yaml:"expiry_max_age_hours"`
	ExpiryImportanceFloor TierValues `yaml:"expiry_importance_floor"`

	// AccessWindow bounds the retained access-timestamp sequence per memory.
	AccessWindow int `yaml:"access_window"`
	// BucketHours is the time-bucket granularity for the distribution bonus.
	BucketHours float64 `yaml:"bucket_hours"`

	// StoreRetries bounds the read-modify-write cycle on write conflicts.
	StoreRetries int `yaml:"store_retries"`

	MaintenanceWorkers       int     `yaml:"maintenance_workers"`
	MaintenanceIntervalHours float64 `yaml:"maintenance_interval_hours"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38338,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Log: LogConfig{
			Level: "info",
		},
		Lifecycle: LifecycleConfig{
			PromotionThreshold:         7.0,
			MinimumAgeHours:            6,
			MinimumAccessCount:         3,
			ContradictionCooldownHours: 24,
			CrossSessionThreshold:      3,
			EmotionalThreshold:         1.2,
			EmotionalMinAccess:         5,
			Weights: Weights{
				AccessPattern:      0.30,
				ContentStability:   0.25,
				UserEngagement:     0.25,
				SemanticImportance: 0.20,
			},
			DecayRates: TierValues{
				Working:   0.8,
				ShortTerm: 0.3,
				LongTerm:  0.05,
				Core:      0.01,
			},
			DecayIdleHours: 24,
			CoreFloor:      8.0,
			ExpiryMaxAgeHours: TierValues{
				Working:   24,
				ShortTerm: 168,
				LongTerm:  8760,
				Core:      0, // never
			},
			ExpiryImportanceFloor: TierValues{
				Working:   1.0,
				ShortTerm: 3.0,
				LongTerm:  5.0,
				Core:      8.0,
			},
			AccessWindow:             64,
			BucketHours:              6,
			StoreRetries:             3,
			MaintenanceWorkers:       4,
			MaintenanceIntervalHours: 6,
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, goerr.Wrap(err, "read config file", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, goerr.Wrap(err, "parse config YAML", goerr.V("path", path))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that would silently break the lifecycle math.
func (c *Config) Validate() error {
	lc := &c.Lifecycle
	if lc.PromotionThreshold < 0 || lc.PromotionThreshold > 10 {
		return goerr.New("promotion_threshold out of range", goerr.V("value", lc.PromotionThreshold))
	}
	sum := lc.Weights.AccessPattern + lc.Weights.ContentStability +
		lc.Weights.UserEngagement + lc.Weights.SemanticImportance
	if sum < 0.99 || sum > 1.01 {
		return goerr.New("score weights must sum to 1.0", goerr.V("sum", sum))
	}
	if lc.AccessWindow < 4 {
		return goerr.New("access_window too small", goerr.V("value", lc.AccessWindow))
	}
	if lc.StoreRetries < 1 {
		return goerr.New("store_retries must be at least 1", goerr.V("value", lc.StoreRetries))
	}
	if lc.MaintenanceWorkers < 1 {
		return goerr.New("maintenance_workers must be at least 1", goerr.V("value", lc.MaintenanceWorkers))
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
