package config

import "time"

// Defaults returns the built-in configuration. User values from sentinel.yaml
// override these field by field.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL: "https://api.mistral.ai/v1",
			Model:   "open-mixtral-8x22b",
		},
		Embedding: EmbeddingConfig{
			Model:     "Qwen/Qwen3-Embedding-0.6B",
			Dimension: 1024,
		},
		Bus: BusConfig{
			Brokers:               []string{"localhost:9092"},
			DeploymentEventsTopic: "deployment-events",
			Group:                 "sentinel-controller",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "sentinel",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Engine: EngineConfig{
			TaskPoolSize: 20,
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   time.Second,
			},
			SimilarityThreshold:  0.5,
			ValidatorMaxAttempts: 3,
		},
		Controller: ControllerConfig{
			JoinTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			PolicyTTL: 10 * time.Minute,
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
	}
}
