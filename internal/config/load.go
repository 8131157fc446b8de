package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "COPYBLOCKS"

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is applied first when present.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if len(cfg.Budget.Rates) == 0 {
		cfg.Budget.Rates = DefaultRates()
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tag constraints on a configuration.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model_name", "gpt-4")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.system_prompt", "You are an expert conversion copywriter. Reply only with the requested format.")
	v.SetDefault("llm.request_timeout_seconds", 60)
	v.SetDefault("llm.retry_attempts", 2)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("budget.tracking_enabled", true)
	v.SetDefault("budget.monthly_limit", 0)
	v.SetDefault("budget.log_retention_days", 30)

	v.SetDefault("queue.pacing_interval_seconds", 180)
	v.SetDefault("queue.poll_interval_seconds", 30)
	v.SetDefault("queue.stuck_task_age_minutes", 30)

	v.SetDefault("generation.max_concurrent_per_user", 3)
	v.SetDefault("generation.concurrency_ttl_minutes", 10)
	v.SetDefault("generation.progress_ttl_minutes", 10)
	v.SetDefault("generation.min_interval_seconds", 180)

	v.SetDefault("media.default_image_id", "")

	v.SetDefault("catalog.directory", "")
	v.SetDefault("catalog.reload_interval_seconds", 0)
}

// DefaultRates returns the built-in price table in dollars per 1,000 tokens.
func DefaultRates() []ModelRate {
	return []ModelRate{
		{Model: "gpt-4", Prompt: 0.03, Completion: 0.06},
		{Model: "gpt-4-turbo", Prompt: 0.01, Completion: 0.03},
		{Model: "gpt-4o", Prompt: 0.005, Completion: 0.015},
		{Model: "gpt-4o-mini", Prompt: 0.00015, Completion: 0.0006},
		{Model: "gpt-3.5-turbo", Prompt: 0.0005, Completion: 0.0015},
		{Model: "gemini-1.5-flash", Prompt: 0.000075, Completion: 0.0003},
		{Model: "gemini-1.5-pro", Prompt: 0.00125, Completion: 0.005},
		{Model: "gemini-2.0-flash", Prompt: 0.0001, Completion: 0.0004},
	}
}
