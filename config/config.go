// Package config loads the service configuration from YAML or JSON files
// with optional environment overrides (K_SECTION__KEY form).
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/eventrescue/core/dispatch"
	"github.com/kilianp07/eventrescue/core/forecast"
	"github.com/kilianp07/eventrescue/infra/eta"
	"github.com/kilianp07/eventrescue/infra/mqtt"
	"github.com/kilianp07/eventrescue/infra/redisfeed"
)

type Config struct {
	HTTP     HTTPConfig      `json:"http"`
	MQTT     MQTTConfig      `json:"mqtt"`
	Redis    RedisConfig     `json:"redis"`
	Metrics  MetricsConfig   `json:"metrics"`
	Dispatch dispatch.Config `json:"dispatch"`
	ETA      ETAConfig       `json:"eta"`
	Forecast forecast.Config `json:"forecast"`
	Logging  LoggingConfig   `json:"logging"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// MQTTConfig wraps the broker settings with an enable switch so the service
// can run without a broker in development.
type MQTTConfig struct {
	Enabled bool        `json:"enabled"`
	Client  mqtt.Config `json:"client"`
}

// RedisConfig wraps the feed settings with an enable switch.
type RedisConfig struct {
	Enabled bool             `json:"enabled"`
	Feed    redisfeed.Config `json:"feed"`
}

// MetricsConfig configures the Prometheus listener and optional InfluxDB sink.
type MetricsConfig struct {
	PromAddr     string `json:"prom_addr"`
	InfluxURL    string `json:"influx_url"`
	InfluxToken  string `json:"influx_token"`
	InfluxOrg    string `json:"influx_org"`
	InfluxBucket string `json:"influx_bucket"`
}

// ETAConfig selects the travel time estimator.
type ETAConfig struct {
	// Mode is "static" or "matrix".
	Mode    string           `json:"mode"`
	SpeedMS float64          `json:"speed_ms"`
	Matrix  eta.MatrixConfig `json:"matrix"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.ETA.Mode == "" {
		c.ETA.Mode = "static"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Forecast.SetDefaults()
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.ETA.Mode != "static" && c.ETA.Mode != "matrix" {
		return fmt.Errorf("unknown eta mode %s", c.ETA.Mode)
	}
	if c.ETA.Mode == "matrix" && c.ETA.Matrix.BaseURL == "" {
		return fmt.Errorf("eta matrix base_url is required")
	}
	if c.MQTT.Enabled && c.MQTT.Client.Broker == "" {
		return fmt.Errorf("mqtt broker is required when mqtt is enabled")
	}
	if c.Redis.Enabled && c.Redis.Feed.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
