// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads collabd's configuration from flags, a config file,
// and the environment, with the same layered precedence the teacher's
// server config uses: CLI flags > env vars > config file > defaults.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	keyringService    = "collabd"
	defaultConfigName = "collabd"
	envPrefix         = "COLLABD"
)

// ServerConfig holds the collaboration server's network configuration.
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	HTTPPort int    `mapstructure:"http_port"`
}

// LLMConfig holds the Agent Session Controller's model backend
// configuration.
type LLMConfig struct {
	Provider        string  `mapstructure:"provider"` // anthropic, memory (test double)
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key"`
	AnthropicModel  string  `mapstructure:"anthropic_model"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int64   `mapstructure:"max_tokens"`
}

// StorageConfig holds the Collaboration Session Registry's persistence
// backend configuration.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, postgres
	DSN    string `mapstructure:"dsn"`
}

// StaleSweepConfig configures the periodic stale-participant cleanup job.
type StaleSweepConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Schedule       string `mapstructure:"schedule"`        // cron expression
	StaleThreshold string `mapstructure:"stale_threshold"` // Go duration string
}

// LoggingConfig holds structured-logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console, json
}

// Config is collabd's top-level configuration.
type Config struct {
	Server  ServerConfig     `mapstructure:"server"`
	LLM     LLMConfig        `mapstructure:"llm"`
	Storage StorageConfig    `mapstructure:"storage"`
	Stale   StaleSweepConfig `mapstructure:"stale"`
	Logging LoggingConfig    `mapstructure:"logging"`
}

// Load reads configuration from cfgFile (if non-empty), the standard
// search paths otherwise, environment variables prefixed COLLABD_, and
// compiled-in defaults. Environment variables override the config file,
// and the config file overrides the defaults.
func Load(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/collabd/")
		viper.SetConfigName(defaultConfigName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	loadAPIKeyFromKeyring(&cfg)
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 7070)
	viper.SetDefault("server.http_port", 7071)

	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.anthropic_model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("llm.temperature", 1.0)
	viper.SetDefault("llm.max_tokens", 4096)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.dsn", "./collabd.db")

	viper.SetDefault("stale.enabled", true)
	viper.SetDefault("stale.schedule", "*/5 * * * *")
	viper.SetDefault("stale.stale_threshold", "10m")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// loadAPIKeyFromKeyring fills in LLM.AnthropicAPIKey from the system
// keyring when it wasn't provided via flag, config file, or environment —
// non-fatal, since a user may instead rely on COLLABD_LLM_ANTHROPIC_API_KEY.
func loadAPIKeyFromKeyring(cfg *Config) {
	if cfg.LLM.AnthropicAPIKey != "" {
		return
	}
	if v, err := keyring.Get(keyringService, "anthropic_api_key"); err == nil && v != "" {
		cfg.LLM.AnthropicAPIKey = v
	}
}

// SaveAPIKey persists the Anthropic API key to the system keyring.
func SaveAPIKey(value string) error {
	return keyring.Set(keyringService, "anthropic_api_key", value)
}

// Validate checks the configuration is complete enough to start serving.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
			return fmt.Errorf("llm.anthropic_api_key is required for provider anthropic")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported llm.provider: %s", c.LLM.Provider)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage.driver: %s", c.Storage.Driver)
	}
	return nil
}
