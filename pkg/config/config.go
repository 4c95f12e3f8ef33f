// Package config loads and validates the sentinel.yaml configuration file,
// expands environment variables, and applies built-in defaults.
package config

import "time"

// Config is the umbrella configuration object used throughout the engine.
// It is the primary object returned by Load().
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Bus        BusConfig        `yaml:"bus"`
	Database   DatabaseConfig   `yaml:"database"`
	Engine     EngineConfig     `yaml:"engine"`
	Controller ControllerConfig `yaml:"controller"`
	Discord    DiscordConfig    `yaml:"discord"`
	Redis      RedisConfig      `yaml:"redis"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// LLMConfig points at the chat-completions endpoint used for screening,
// topic scoring, and final verdicts.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// EmbeddingConfig points at the embeddings endpoint. Dimension is fixed for
// the lifetime of the message_evaluations corpus; changing it is a schema
// migration, not a config change.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// BusConfig is the Kafka connection for deployment lifecycle events.
type BusConfig struct {
	Brokers               []string `yaml:"brokers"`
	DeploymentEventsTopic string   `yaml:"deployment_events_topic"`
	Group                 string   `yaml:"group"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

// RetryConfig controls the outer evaluation retry wrapper.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// EngineConfig controls the per-deployment moderation loop.
type EngineConfig struct {
	TaskPoolSize         int         `yaml:"task_pool_size"`
	Retry                RetryConfig `yaml:"retry"`
	SimilarityThreshold  float64     `yaml:"similarity_threshold"`
	ValidatorMaxAttempts int         `yaml:"validator_max_attempts"`
}

// ControllerConfig controls deployment worker lifecycle management.
type ControllerConfig struct {
	// JoinTimeout is how long a stop waits for a worker process to exit
	// before escalating to forced termination.
	JoinTimeout time.Duration `yaml:"join_timeout"`
}

// DiscordConfig holds the bot credentials for streams and effectors.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// RedisConfig enables the cross-process moderation-policy cache when Addr is
// set. An empty Addr disables caching; workers then always read policies
// from PostgreSQL.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PolicyTTL time.Duration `yaml:"policy_ttl"`
}

// HTTPConfig is the control-surface listener.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Enabled reports whether the policy cache is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }
