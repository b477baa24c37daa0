// Package config loads service configuration from an optional YAML/JSON file
// with FLEET_-prefixed environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Addr        string        `json:"addr"`
	DatabaseURL string        `json:"databaseUrl"`
	RedisURL    string        `json:"redisUrl"`
	Migrate     bool          `json:"migrate"`
	Auth        AuthConfig    `json:"auth"`
	Webhooks    WebhookConfig `json:"webhooks"`
	RateLimit   RateConfig    `json:"rateLimit"`
}

type AuthConfig struct {
	// Mode is "dev" (trust headers) or "hmac" (HS256 bearer tokens).
	Mode       string `json:"mode"`
	HMACSecret string `json:"hmacSecret"`
}

type WebhookConfig struct {
	MaxAttempts     int `json:"maxAttempts"`
	IntervalSeconds int `json:"intervalSeconds"`
}

// Interval returns the worker poll cadence.
func (w WebhookConfig) Interval() time.Duration {
	return time.Duration(w.IntervalSeconds) * time.Second
}

type RateConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

// Load reads path (may be empty, meaning environment only) and applies
// FLEET_ environment overrides; double underscores nest, so FLEET_AUTH__MODE
// sets auth.mode and FLEET_DATABASEURL sets databaseUrl.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = kyaml.Parser()
		case ".json":
			parser = kjson.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", path)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("FLEET_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fleet_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "dev"
	}
	if c.Webhooks.MaxAttempts <= 0 {
		c.Webhooks.MaxAttempts = 10
	}
	if c.Webhooks.IntervalSeconds <= 0 {
		c.Webhooks.IntervalSeconds = 1
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 50
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 100
	}
}
