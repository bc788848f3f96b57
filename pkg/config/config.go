package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type LLMConfig struct {
	Provider string `json:"provider" label:"Provider" env:"SOULMINT_LLM_PROVIDER"`
	Model    string `json:"model" label:"Model" env:"SOULMINT_LLM_MODEL"`
	APIKey   string `json:"api_key" label:"API Key" env:"SOULMINT_LLM_API_KEY"`
	APIBase  string `json:"api_base" label:"API Base URL" env:"SOULMINT_LLM_API_BASE"`
	Proxy    string `json:"proxy" label:"Proxy" env:"SOULMINT_LLM_PROXY"`

	// RequestsPerMinute throttles all outbound provider calls.
	RequestsPerMinute int `json:"requests_per_minute" label:"Requests Per Minute" env:"SOULMINT_LLM_REQUESTS_PER_MINUTE"`

	// ReplyTimeoutSeconds bounds a reply-generation call; a timeout here
	// aborts the chat turn before any state mutation.
	ReplyTimeoutSeconds int `json:"reply_timeout_seconds" label:"Reply Timeout (s)" env:"SOULMINT_LLM_REPLY_TIMEOUT_SECONDS"`

	// RewriteTimeoutSeconds bounds a personality-rewrite call; a timeout
	// here degrades the evolution but never rolls back level/XP.
	RewriteTimeoutSeconds int `json:"rewrite_timeout_seconds" label:"Rewrite Timeout (s)" env:"SOULMINT_LLM_REWRITE_TIMEOUT_SECONDS"`
}

type StorageConfig struct {
	// Path is the SQLite database file holding souls, listings and the
	// evolution audit log.
	Path string `json:"path" label:"Database Path" env:"SOULMINT_STORAGE_PATH"`
}

type GatewayConfig struct {
	Host string `json:"host" label:"Host" env:"SOULMINT_GATEWAY_HOST"`
	Port int    `json:"port" label:"Port" env:"SOULMINT_GATEWAY_PORT"`
	Path string `json:"path" label:"WebSocket Path" env:"SOULMINT_GATEWAY_PATH"`
}

type BackfillConfig struct {
	Enabled bool `json:"enabled" label:"Enabled" env:"SOULMINT_BACKFILL_ENABLED"`

	// Schedule is a cron expression; each due tick retries personality
	// rewrites for souls whose rarity is ahead of their evolved tier.
	Schedule string `json:"schedule" label:"Cron Schedule" env:"SOULMINT_BACKFILL_SCHEDULE"`
	Batch    int    `json:"batch" label:"Batch Size" env:"SOULMINT_BACKFILL_BATCH"`
}

// ProgressionConfig carries the tunable constants of the progression
// engine. The zero value is not usable; call Defaults or load a file.
type ProgressionConfig struct {
	// BaseGain is granted for every accepted chat turn.
	BaseGain int `json:"base_gain" label:"Base Gain" env:"SOULMINT_PROGRESSION_BASE_GAIN"`

	// LengthDivisor converts message length into bonus XP.
	LengthDivisor int `json:"length_divisor" label:"Length Divisor" env:"SOULMINT_PROGRESSION_LENGTH_DIVISOR"`

	// LengthBonusCap caps the length-derived bonus.
	LengthBonusCap int `json:"length_bonus_cap" label:"Length Bonus Cap" env:"SOULMINT_PROGRESSION_LENGTH_BONUS_CAP"`

	// QualityBonusCap caps the keyword/diversity bonus.
	QualityBonusCap int `json:"quality_bonus_cap" label:"Quality Bonus Cap" env:"SOULMINT_PROGRESSION_QUALITY_BONUS_CAP"`

	// LevelMultiplierStep is the per-level increment of the gain
	// multiplier: gain *= 1 + step*(level-1).
	LevelMultiplierStep float64 `json:"level_multiplier_step" label:"Level Multiplier Step" env:"SOULMINT_PROGRESSION_LEVEL_MULTIPLIER_STEP"`

	// ExtrapolationStep is the constant XP added per level beyond the
	// threshold table.
	ExtrapolationStep int `json:"extrapolation_step" label:"Extrapolation Step" env:"SOULMINT_PROGRESSION_EXTRAPOLATION_STEP"`
}

type Config struct {
	LLM         LLMConfig         `json:"llm" label:"LLM"`
	Storage     StorageConfig     `json:"storage" label:"Storage"`
	Gateway     GatewayConfig     `json:"gateway" label:"Gateway"`
	Backfill    BackfillConfig    `json:"backfill" label:"Evolution Backfill"`
	Progression ProgressionConfig `json:"progression" label:"Progression"`
}

// DefaultConfig returns the canonical defaults. The progression numbers
// are load-bearing: tests and the documented gain examples assume them.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:              "openai",
			Model:                 "gpt-4o",
			RequestsPerMinute:     60,
			ReplyTimeoutSeconds:   60,
			RewriteTimeoutSeconds: 45,
		},
		Storage: StorageConfig{
			Path: defaultDBPath(),
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 8790,
			Path: "/ws",
		},
		Backfill: BackfillConfig{
			Enabled:  true,
			Schedule: "*/5 * * * *",
			Batch:    20,
		},
		Progression: ProgressionConfig{
			BaseGain:            10,
			LengthDivisor:       20,
			LengthBonusCap:      5,
			QualityBonusCap:     5,
			LevelMultiplierStep: 0.02,
			ExtrapolationStep:   500,
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "soulmint.db"
	}
	return filepath.Join(home, ".soulmint", "soulmint.db")
}

// Load reads the config file at path, fills gaps with defaults and then
// applies SOULMINT_* environment overrides. A missing file is not an
// error; defaults plus environment are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to env
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as indented JSON, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) validate() error {
	p := c.Progression
	if p.BaseGain < 0 || p.LengthBonusCap < 0 || p.QualityBonusCap < 0 {
		return fmt.Errorf("progression gain constants must be non-negative")
	}
	if p.LengthDivisor <= 0 {
		return fmt.Errorf("progression length_divisor must be positive")
	}
	if p.ExtrapolationStep <= 0 {
		return fmt.Errorf("progression extrapolation_step must be positive")
	}
	return nil
}
