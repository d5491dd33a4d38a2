package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all panelbot settings. Values come from an optional YAML file,
// with environment variables overriding the scalar fields.
type Config struct {
	// Panel connection
	PanelURL string `yaml:"mcsm_url"`
	APIKey   string `yaml:"api_key"`

	// Authorization
	AuthorizedUsers  []string `yaml:"authorized_users"`
	AuthorizedGroups []string `yaml:"authorized_groups"`

	// Directory filtering
	FilteredNodes            []string `yaml:"filtered_nodes"`
	FilteredInstanceKeywords []string `yaml:"filtered_instance_keywords"`

	// Operation tuning
	BatchOperationInterval float64 `yaml:"batch_operation_interval"` // seconds
	LogSize                int     `yaml:"log_size"`                 // lines returned by the log command

	// Chat front-end
	OneBotURL         string `yaml:"onebot_url"`
	OneBotAccessToken string `yaml:"onebot_access_token"`

	// Ops HTTP API
	ListenAddr   string `yaml:"listen_addr"`
	OpsTokenHash string `yaml:"ops_token_hash"` // bcrypt hash, see cmd/panelbot-hashtoken

	// Storage and logging
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"` // "console" or "json"
}

// Load reads the config file at path (skipped when empty or missing), applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{
		BatchOperationInterval: 2.0,
		LogSize:                50,
		ListenAddr:             ":8710",
		DatabasePath:           "./data/panelbot.db",
		LogLevel:               "info",
		LogFormat:              "console",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.PanelURL = envOr("PANELBOT_MCSM_URL", cfg.PanelURL)
	cfg.APIKey = envOr("PANELBOT_API_KEY", cfg.APIKey)
	cfg.OneBotURL = envOr("PANELBOT_ONEBOT_URL", cfg.OneBotURL)
	cfg.OneBotAccessToken = envOr("PANELBOT_ONEBOT_TOKEN", cfg.OneBotAccessToken)
	cfg.ListenAddr = envOr("PANELBOT_LISTEN", cfg.ListenAddr)
	cfg.OpsTokenHash = envOr("PANELBOT_OPS_TOKEN_HASH", cfg.OpsTokenHash)
	cfg.DatabasePath = envOr("PANELBOT_DB", cfg.DatabasePath)
	cfg.LogLevel = envOr("PANELBOT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("PANELBOT_LOG_FORMAT", cfg.LogFormat)
	if v := os.Getenv("PANELBOT_LOG_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PANELBOT_LOG_SIZE: %w", err)
		}
		cfg.LogSize = n
	}

	if cfg.PanelURL == "" {
		return nil, fmt.Errorf("mcsm_url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required")
	}
	if cfg.BatchOperationInterval < 0 {
		return nil, fmt.Errorf("batch_operation_interval must not be negative")
	}
	if cfg.LogSize <= 0 {
		cfg.LogSize = 50
	}

	return cfg, nil
}

// BatchPause returns the pacing interval between batch items.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.BatchOperationInterval * float64(time.Second))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
