package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"ee-insight/utils"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPollInterval is fixed for deployments; only tracker.Options can
	// override it.
	DefaultPollInterval  = 5000 * time.Millisecond
	DefaultMaxCells      = 50
	MaxCellsLimit        = 500
	DefaultBannerTimeout = 10 * time.Second
)

type Config struct {
	Server struct {
		Listen        string            `yaml:"listen"`
		Static        string            `yaml:"static"`
		StaticAllowed []string          `yaml:"static_allowed"`
		LogDir        string            `yaml:"log_dir"`
		TemplateVars  map[string]string `yaml:"template_vars"`
	} `yaml:"server"`
	EarthEngine EarthEngineConfig `yaml:"earth_engine"`
	JWT         struct {
		Secret            string `yaml:"secret"`
		ExpirationMinutes int    `yaml:"expiration_minutes"`
	} `yaml:"jwt"`
	Store struct {
		Backend string `yaml:"backend"` // "sqlite", "postgres", "mysql" or "" for none
		DSN     string `yaml:"dsn"`
	} `yaml:"store"`
	Banner struct {
		DismissSeconds int `yaml:"dismiss_seconds"`
	} `yaml:"banner"`
}

type EarthEngineConfig struct {
	APIURL                string   `yaml:"api_url"`
	Token                 string   `yaml:"token,omitempty"` // sent as a bearer token to the backend
	MaxCells              int      `yaml:"max_cells"`
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"` // 0 = no timeout
	DataSources           []string `yaml:"data_sources"`
}

func (e EarthEngineConfig) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutSeconds) * time.Second
}

func (c *Config) BannerTimeout() time.Duration {
	if c.Banner.DismissSeconds <= 0 {
		return DefaultBannerTimeout
	}
	return time.Duration(c.Banner.DismissSeconds) * time.Second
}

// Load reads a YAML file relative to the project root and fills defaults.
func Load(file string) (*Config, error) {
	data, err := os.ReadFile(utils.ResolvePath(file))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.LogDir == "" {
		c.Server.LogDir = "./logs"
	}
	if c.Server.Static == "" {
		c.Server.Static = "./static"
	}
	if c.EarthEngine.MaxCells == 0 {
		c.EarthEngine.MaxCells = DefaultMaxCells
	}
	if c.JWT.ExpirationMinutes == 0 {
		c.JWT.ExpirationMinutes = 60
	}
}

func (c *Config) Validate() error {
	if c.EarthEngine.APIURL == "" {
		return errors.New("earth_engine.api_url is required")
	}
	if c.EarthEngine.MaxCells < 1 || c.EarthEngine.MaxCells > MaxCellsLimit {
		return fmt.Errorf("earth_engine.max_cells must be between 1 and %d", MaxCellsLimit)
	}
	switch c.Store.Backend {
	case "", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("store.backend %q not supported", c.Store.Backend)
	}
	if c.Store.Backend != "" && c.Store.DSN == "" {
		return errors.New("store.dsn is required when store.backend is set")
	}
	return nil
}
