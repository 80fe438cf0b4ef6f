// Package config loads the backend configuration from a YAML file with
// environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/conduit-ai/conduit/pkg/domain"
)

// Duration accepts human-readable YAML values ("2s", "1m") as well as
// integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		var n int64
		if err2 := value.Decode(&n); err2 != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration document.
type Config struct {
	Runtime RuntimeConfig  `yaml:"runtime"`
	Breaker BreakerConfig  `yaml:"breaker"`
	Redis   RedisConfig    `yaml:"redis"`
	Store   StoreConfig    `yaml:"store"`
	HTTP    HTTPConfig     `yaml:"http"`
	Tools   []ToolConfig   `yaml:"tools"`
	Sources []SourceConfig `yaml:"sources"`
}

// RuntimeConfig configures the OMC runtime bridge.
type RuntimeConfig struct {
	BaseURL        string   `yaml:"base_url"`
	APIKey         string   `yaml:"api_key"`
	RetryDelay     Duration `yaml:"retry_delay"`
	MaxRetryDelay  Duration `yaml:"max_retry_delay"`
	HealthInterval Duration `yaml:"health_interval"`
	DefaultTimeout Duration `yaml:"default_timeout"`
}

// BreakerConfig configures the submission circuit breaker.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	SuccessThreshold int      `yaml:"success_threshold"`
	OpenTimeout      Duration `yaml:"open_timeout"`
}

// RedisConfig configures the record store backend. An empty Addr selects
// the in-memory store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig tunes record persistence. EncryptionKey is a base64-encoded
// 32-byte key; when set, OAuth token records are encrypted at rest.
// RedactKeys are regex patterns; matching record fields are masked before
// persisting.
type StoreConfig struct {
	EncryptionKey string   `yaml:"encryption_key"`
	RedactKeys    []string `yaml:"redact_keys"`
}

// HTTPConfig configures the REST listener.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// ToolConfig declares one invocable tool. InputSchema is an OpenAPI schema
// object; empty disables input validation.
type ToolConfig struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	DefaultTimeout Duration       `yaml:"default_timeout"`
	InputSchema    map[string]any `yaml:"input_schema"`
}

// SourceConfig is a raw connector-source entry. Fields vary by kind, so
// the manifest is kept loosely typed until decoded.
type SourceConfig map[string]any

// Load reads the YAML file at path and applies environment overrides.
// A missing file yields the defaults, not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Runtime.RetryDelay <= 0 {
		c.Runtime.RetryDelay = Duration(time.Second)
	}
	if c.Runtime.MaxRetryDelay <= 0 {
		c.Runtime.MaxRetryDelay = Duration(30 * time.Second)
	}
	if c.Runtime.HealthInterval <= 0 {
		c.Runtime.HealthInterval = Duration(30 * time.Second)
	}
	if c.Runtime.DefaultTimeout <= 0 {
		c.Runtime.DefaultTimeout = Duration(30 * time.Second)
	}
	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.SuccessThreshold <= 0 {
		c.Breaker.SuccessThreshold = 2
	}
	if c.Breaker.OpenTimeout <= 0 {
		c.Breaker.OpenTimeout = Duration(30 * time.Second)
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
}

// applyEnv overlays CONDUIT_* environment variables on the loaded file.
// Environment always wins.
func (c *Config) applyEnv() {
	if v := os.Getenv("CONDUIT_RUNTIME_URL"); v != "" {
		c.Runtime.BaseURL = v
	}
	if v := os.Getenv("CONDUIT_RUNTIME_API_KEY"); v != "" {
		c.Runtime.APIKey = v
	}
	if v := os.Getenv("CONDUIT_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CONDUIT_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CONDUIT_STORE_KEY"); v != "" {
		c.Store.EncryptionKey = v
	}
	if v := os.Getenv("CONDUIT_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = port
		}
	}
}

// SchemaJSON renders the tool's input schema as raw JSON for the registry,
// or nil when no schema is configured.
func (t ToolConfig) SchemaJSON() (json.RawMessage, error) {
	if len(t.InputSchema) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %q: encode input schema: %w", t.Name, err)
	}
	return data, nil
}

// ConnectorSources decodes the raw source entries into typed connector
// source records. Entries without a name are skipped.
func (c *Config) ConnectorSources() ([]domain.ConnectorSource, error) {
	sources := make([]domain.ConnectorSource, 0, len(c.Sources))
	for i, raw := range c.Sources {
		var src struct {
			ID       string         `mapstructure:"id"`
			Name     string         `mapstructure:"name"`
			Kind     string         `mapstructure:"kind"`
			URL      string         `mapstructure:"url"`
			Manifest map[string]any `mapstructure:"manifest"`
			Enabled  *bool          `mapstructure:"enabled"`
		}
		if err := mapstructure.Decode(map[string]any(raw), &src); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		if src.Name == "" {
			continue
		}
		enabled := true
		if src.Enabled != nil {
			enabled = *src.Enabled
		}
		id := src.ID
		if id == "" {
			id = src.Name
		}
		sources = append(sources, domain.ConnectorSource{
			ID:       id,
			Name:     src.Name,
			Kind:     src.Kind,
			URL:      src.URL,
			Manifest: src.Manifest,
			Enabled:  enabled,
		})
	}
	return sources, nil
}
