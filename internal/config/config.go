package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jengzang/tour-geocompare/internal/geocompare"
	"github.com/jengzang/tour-geocompare/internal/repository"
	"github.com/jengzang/tour-geocompare/internal/stats"
)

// DefaultPath is read when no config file is given; it may be missing
const DefaultPath = "config.yml"

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Compare   CompareConfig   `yaml:"compare"`
	AppFilter AppFilterConfig `yaml:"app_filter"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port" validate:"required"`
}

// DatabaseConfig contains sqlite configuration
type DatabaseConfig struct {
	Path    string `yaml:"path" validate:"required"`
	Migrate bool   `yaml:"migrate"`
}

// AuthConfig contains JWT configuration
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwt_secret" validate:"omitempty,min=16"`
}

// CompareConfig contains geo compare configuration
type CompareConfig struct {
	GeoAccuracy        int                      `yaml:"geo_accuracy" validate:"gt=0"`
	DistanceAccuracy   float64                  `yaml:"distance_accuracy" validate:"gt=0"` // Meters
	Workers            int                      `yaml:"workers" validate:"gte=0"`          // 0 = number of CPUs
	ProgressIntervalMS int                      `yaml:"progress_interval_ms" validate:"gt=0"`
	PauseGapSeconds    int                      `yaml:"pause_gap_seconds" validate:"gt=0"`
	MinMovingSpeed     float64                  `yaml:"min_moving_speed" validate:"gte=0"` // km/h
	Filter             geocompare.FilterOptions `yaml:"filter"`
}

// AppFilterConfig restricts candidates when a request enables the app filter
type AppFilterConfig struct {
	PersonID    int64   `yaml:"person_id" validate:"gte=0"`
	TourTypeIDs []int64 `yaml:"tour_type_ids"`
}

// RateLimitConfig limits compare starts per client
type RateLimitConfig struct {
	Requests int `yaml:"requests" validate:"gt=0"`
	WindowMS int `yaml:"window_ms" validate:"gt=0"`
}

// Default returns the configuration used when nothing is configured
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: ":8080"},
		Database: DatabaseConfig{Path: "./data/tours/tours.db", Migrate: true},
		Compare: CompareConfig{
			GeoAccuracy:        10000,
			DistanceAccuracy:   10,
			ProgressIntervalMS: 1000,
			PauseGapSeconds:    300,
			MinMovingSpeed:     1.0,
			Filter: geocompare.FilterOptions{
				RelativeDiffPercent: 10,
				MaxResults:          100,
			},
		},
		RateLimit: RateLimitConfig{Requests: 30, WindowMS: 60000},
	}
}

// Load 加载配置: defaults, then the YAML file, then environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("invalid config: auth is enabled without a JWT secret")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = enabled
	}
	if v := os.Getenv("COMPARE_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COMPARE_WORKERS: %w", err)
		}
		cfg.Compare.Workers = workers
	}
	return nil
}

// EngineConfig returns the geo compare manager configuration
func (c CompareConfig) EngineConfig() geocompare.Config {
	return geocompare.Config{
		GeoAccuracy:      c.GeoAccuracy,
		DistanceAccuracy: c.DistanceAccuracy,
		Workers:          c.Workers,
		ProgressInterval: time.Duration(c.ProgressIntervalMS) * time.Millisecond,
		Stats: stats.Options{
			PauseGap:       time.Duration(c.PauseGapSeconds) * time.Second,
			MinMovingSpeed: c.MinMovingSpeed,
		},
	}
}

// RepositoryFilter returns the app filter for candidate queries
func (c AppFilterConfig) RepositoryFilter() repository.AppFilter {
	return repository.AppFilter{
		PersonID:    c.PersonID,
		TourTypeIDs: c.TourTypeIDs,
	}
}

// Window returns the rate limit window
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMS) * time.Millisecond
}
