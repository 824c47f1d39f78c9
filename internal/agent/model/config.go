package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL               time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	TokenCeiling      int           `envconfig:"CONVERSATION_TOKEN_CEILING" default:"100000"`
	ToolMaxRoundTrips int           `envconfig:"CONVERSATION_TOOL_MAX_ROUND_TRIPS" default:"10"`
	SystemPrompt      string        `envconfig:"CONVERSATION_SYSTEM_PROMPT"`
}

type IntentModelConfig struct {
	Model       string  `envconfig:"INTENT_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"INTENT_MAX_TOKENS" default:"64"`
	Temperature float32 `envconfig:"INTENT_TEMPERATURE" default:"0"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"4096"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

type ImageModelConfig struct {
	Model          string `envconfig:"IMAGE_MODEL" default:"imagen-4.0-generate-001"`
	AspectRatio    string `envconfig:"IMAGE_ASPECT_RATIO" default:"1:1"`
	MaxConcurrency int    `envconfig:"IMAGE_MAX_CONCURRENCY" default:"2"`
}

type ResilienceConfig struct {
	MaxAttempts      int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	BaseDelay        time.Duration `envconfig:"RETRY_BASE_DELAY" default:"500ms"`
	MaxDelay         time.Duration `envconfig:"RETRY_MAX_DELAY" default:"10s"`
	BackoffFactor    float64       `envconfig:"RETRY_BACKOFF_FACTOR" default:"2"`
	Jitter           bool          `envconfig:"RETRY_JITTER" default:"true"`
	AttemptTimeout   time.Duration `envconfig:"RETRY_ATTEMPT_TIMEOUT" default:"60s"`
	FailureThreshold uint          `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	ResetTimeout     time.Duration `envconfig:"BREAKER_RESET_TIMEOUT" default:"30s"`
}

type StoreConfig struct {
	Driver     string `envconfig:"STORE_DRIVER" default:"redis"`
	SQLitePath string `envconfig:"STORE_SQLITE_PATH" default:"data/conversations.db"`
}

type SearchConfig struct {
	BaseURL    string        `envconfig:"SEARCH_BASE_URL" default:"https://html.duckduckgo.com/html/"`
	MaxResults int           `envconfig:"SEARCH_MAX_RESULTS" default:"5"`
	Timeout    time.Duration `envconfig:"SEARCH_TIMEOUT" default:"15s"`
}

type MediaConfig struct {
	SessionTTL time.Duration `envconfig:"MEDIA_SESSION_TTL" default:"10m"`
}
