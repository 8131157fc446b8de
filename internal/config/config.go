package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm" validate:"required"`
	Budget     BudgetConfig     `mapstructure:"budget"`
	Queue      QueueConfig      `mapstructure:"queue" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Media      MediaConfig      `mapstructure:"media"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
}

// ServerConfig contains process-level settings.
type ServerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// LLMConfig contains all LLM integration related settings.
// An empty APIKey is allowed at load time; calls fail with a config error instead.
type LLMConfig struct {
	Provider              string  `mapstructure:"provider" validate:"required,oneof=openai gemini"`
	APIKey                string  `mapstructure:"api_key"`
	BaseURL               string  `mapstructure:"base_url" validate:"omitempty,url"`
	ModelName             string  `mapstructure:"model_name" validate:"required"`
	MaxTokens             int     `mapstructure:"max_tokens" validate:"gte=1"`
	Temperature           float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	SystemPrompt          string  `mapstructure:"system_prompt"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds" validate:"gte=1"`
	RetryAttempts         int     `mapstructure:"retry_attempts" validate:"gte=1,lte=5"`
	RetryDelaySeconds     int     `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// ModelRate is the price in dollars per 1,000 tokens for one model.
type ModelRate struct {
	Model      string  `mapstructure:"model" validate:"required"`
	Prompt     float64 `mapstructure:"prompt" validate:"gte=0"`
	Completion float64 `mapstructure:"completion" validate:"gte=0"`
}

// BudgetConfig controls spend tracking and the monthly ceiling.
// MonthlyLimit 0 means unlimited.
type BudgetConfig struct {
	TrackingEnabled  bool        `mapstructure:"tracking_enabled"`
	MonthlyLimit     float64     `mapstructure:"monthly_limit" validate:"gte=0"`
	LogRetentionDays int         `mapstructure:"log_retention_days" validate:"gte=1"`
	Rates            []ModelRate `mapstructure:"rates" validate:"dive"`
}

// QueueConfig controls pacing and the scheduler loop.
type QueueConfig struct {
	PacingIntervalSeconds int `mapstructure:"pacing_interval_seconds" validate:"gte=1"`
	PollIntervalSeconds   int `mapstructure:"poll_interval_seconds" validate:"gte=1"`
	StuckTaskAgeMinutes   int `mapstructure:"stuck_task_age_minutes" validate:"gte=1"`
}

// GenerationConfig controls the orchestrator gates.
type GenerationConfig struct {
	MaxConcurrentPerUser  int `mapstructure:"max_concurrent_per_user" validate:"gte=1"`
	ConcurrencyTTLMinutes int `mapstructure:"concurrency_ttl_minutes" validate:"gte=1"`
	ProgressTTLMinutes    int `mapstructure:"progress_ttl_minutes" validate:"gte=1"`
	MinIntervalSeconds    int `mapstructure:"min_interval_seconds" validate:"gte=0"`
}

// MediaConfig contains image matching settings.
type MediaConfig struct {
	DefaultImageID string `mapstructure:"default_image_id" validate:"omitempty,uuid"`
}

// CatalogConfig points at block definition files. An empty Directory uses the built-in catalog.
type CatalogConfig struct {
	Directory             string `mapstructure:"directory"`
	ReloadIntervalSeconds int    `mapstructure:"reload_interval_seconds" validate:"gte=0"`
}
