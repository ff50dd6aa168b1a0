package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crmforge/authcore"
)

// fileConfig mirrors the YAML schema of the demo server's config file.
type fileConfig struct {
	Listen string `yaml:"listen"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Token struct {
		SigningKey string `yaml:"signing_key"`
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"token"`

	Lockout struct {
		Threshold    int    `yaml:"threshold"`
		LockDuration string `yaml:"lock_duration"`
	} `yaml:"lockout"`

	Audit struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"audit"`
}

func loadConfig(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.Token.SigningKey == "" {
		return nil, fmt.Errorf("token.signing_key is required")
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	return &cfg, nil
}

// engineConfig maps the file values onto the library defaults, leaving
// untouched sections at their defaults.
func (c *fileConfig) engineConfig() (authcore.Config, error) {
	cfg := authcore.DefaultConfig()
	cfg.Token.PrivateKey = []byte(c.Token.SigningKey)
	if c.Token.Issuer != "" {
		cfg.Token.Issuer = c.Token.Issuer
	}
	if err := overrideDuration(&cfg.Token.AccessTTL, c.Token.AccessTTL); err != nil {
		return cfg, fmt.Errorf("token.access_ttl: %w", err)
	}
	if err := overrideDuration(&cfg.Token.RefreshTTL, c.Token.RefreshTTL); err != nil {
		return cfg, fmt.Errorf("token.refresh_ttl: %w", err)
	}
	if c.Lockout.Threshold > 0 {
		cfg.Lockout.Threshold = c.Lockout.Threshold
	}
	if err := overrideDuration(&cfg.Lockout.LockDuration, c.Lockout.LockDuration); err != nil {
		return cfg, fmt.Errorf("lockout.lock_duration: %w", err)
	}
	cfg.Audit.Enabled = c.Audit.Enabled
	return cfg, nil
}

func overrideDuration(dst *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
