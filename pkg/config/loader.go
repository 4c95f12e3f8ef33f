package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads sentinel.yaml from path, expands environment variables, merges
// the result over the built-in defaults, and validates. A missing file is
// not an error: the defaults (plus environment) are used as-is, which keeps
// worker subprocesses bootable from environment alone.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Warn("Config file not found, using defaults", "path", path)
	case err != nil:
		return nil, &LoadError{Path: path, Err: err}
	default:
		var fileCfg Config
		if err := yaml.Unmarshal(ExpandEnv(data), &fileCfg); err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("parsing yaml: %w", err)}
		}
		if err := mergo.Merge(cfg, &fileCfg, mergo.WithOverride); err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("merging defaults: %w", err)}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded",
		"path", path,
		"llm_model", cfg.LLM.Model,
		"embedding_dimension", cfg.Embedding.Dimension,
		"task_pool_size", cfg.Engine.TaskPoolSize,
		"policy_cache", cfg.Redis.Enabled())

	return cfg, nil
}

// applyEnvOverrides fills in secrets that are conventionally passed via the
// environment rather than the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		cfg.Discord.BotToken = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}
}

// Validate checks the invariants the engine depends on.
func (c *Config) Validate() error {
	if c.LLM.BaseURL == "" {
		return newFieldError("llm.base_url", "required")
	}
	if c.LLM.Model == "" {
		return newFieldError("llm.model", "required")
	}
	if c.Embedding.Dimension <= 0 {
		return newFieldError("embedding.dimension", "must be positive")
	}
	if c.Engine.TaskPoolSize < 0 {
		return newFieldError("engine.task_pool_size", "must be >= 0 (0 = unbounded)")
	}
	if c.Engine.Retry.MaxAttempts < 1 {
		return newFieldError("engine.retry.max_attempts", "must be >= 1")
	}
	if c.Engine.Retry.BaseDelay <= 0 {
		return newFieldError("engine.retry.base_delay", "must be positive")
	}
	if c.Engine.SimilarityThreshold < 0 {
		// Distances below zero are meaningless; treat as zero.
		c.Engine.SimilarityThreshold = 0
	}
	if c.Engine.ValidatorMaxAttempts < 1 {
		return newFieldError("engine.validator_max_attempts", "must be >= 1")
	}
	if c.Controller.JoinTimeout <= 0 {
		return newFieldError("controller.join_timeout", "must be positive")
	}
	if len(c.Bus.Brokers) == 0 {
		return newFieldError("bus.brokers", "at least one broker required")
	}
	if c.Bus.DeploymentEventsTopic == "" {
		return newFieldError("bus.deployment_events_topic", "required")
	}
	if c.Database.Host == "" || c.Database.Database == "" {
		return newFieldError("database", "host and database are required")
	}
	return nil
}

// DSN builds a pgx-compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}
