// Package config provides application-wide configuration loaded from env vars.
// All fields have safe defaults so the binary runs locally without any env
// setup. A .env file in the working directory is loaded first if present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for Clario.
type Config struct {
	// Server
	Host string // CLARIO_HOST — default: "0.0.0.0"
	Port int    // CLARIO_PORT — default: 8080

	// Database
	DBPath string // CLARIO_DB — default: "clario.db"

	// LLM
	LLMProvider     string        // LLM_PROVIDER — "ollama" or "openai", default: "ollama"
	OllamaBaseURL   string        // OLLAMA_BASE_URL — default: "http://localhost:11434"
	OllamaModel     string        // OLLAMA_MODEL — default: "nomic-embed-text" (embed model, 768 dims)
	OllamaChatModel string        // OLLAMA_CHAT_MODEL — default: "llama3.2:3b"
	OpenAIBaseURL   string        // OPENAI_BASE_URL — default: "https://api.openai.com/v1"
	OpenAIAPIKey    string        // OPENAI_API_KEY — no default
	OpenAIModel     string        // OPENAI_MODEL — default: "text-embedding-3-small"
	OpenAIChatModel string        // OPENAI_CHAT_MODEL — default: "gpt-4o-mini"
	LLMTimeout      time.Duration // LLM_TIMEOUT_SECONDS — default: 30s, applies to embed + chat calls

	// Rate limiting (per conversation, sliding window)
	RateLimitMax    int           // RATE_LIMIT_MAX — default: 100 messages
	RateLimitWindow time.Duration // RATE_LIMIT_WINDOW_SECONDS — default: 1h

	// Redis — optional shared rate-limit counter. Empty RedisAddr means the
	// limiter counts committed messages in the primary store instead.
	RedisAddr     string // REDIS_ADDR — default: "" (disabled)
	RedisPassword string // REDIS_PASSWORD — no default
	RedisDB       int    // REDIS_DB — default: 0

	// Logging
	LogLevel string // LOG_LEVEL — default: "info"
}

const (
	envKeyHost            = "CLARIO_HOST"
	envKeyPort            = "CLARIO_PORT"
	envKeyDBPath          = "CLARIO_DB"
	envKeyLLMProvider     = "LLM_PROVIDER"
	envKeyOllamaBaseURL   = "OLLAMA_BASE_URL"
	envKeyOllamaModel     = "OLLAMA_MODEL"
	envKeyOllamaChatModel = "OLLAMA_CHAT_MODEL"
	envKeyOpenAIBaseURL   = "OPENAI_BASE_URL"
	envKeyOpenAIAPIKey    = "OPENAI_API_KEY"
	envKeyOpenAIModel     = "OPENAI_MODEL"
	envKeyOpenAIChatModel = "OPENAI_CHAT_MODEL"
	envKeyLLMTimeout      = "LLM_TIMEOUT_SECONDS"
	envKeyRateLimitMax    = "RATE_LIMIT_MAX"
	envKeyRateLimitWindow = "RATE_LIMIT_WINDOW_SECONDS"
	envKeyRedisAddr       = "REDIS_ADDR"
	envKeyRedisPassword   = "REDIS_PASSWORD"
	envKeyRedisDB         = "REDIS_DB"
	envKeyLogLevel        = "LOG_LEVEL"
)

// Load reads configuration from environment variables, applying defaults for
// missing values. A .env file is loaded first if one exists; real environment
// variables win over .env entries.
func Load() Config {
	_ = godotenv.Load() // no .env file is fine

	return Config{
		Host:            envOr(envKeyHost, "0.0.0.0"),
		Port:            envIntOr(envKeyPort, 8080),
		DBPath:          envOr(envKeyDBPath, "clario.db"),
		LLMProvider:     envOr(envKeyLLMProvider, "ollama"),
		OllamaBaseURL:   envOr(envKeyOllamaBaseURL, "http://localhost:11434"),
		OllamaModel:     envOr(envKeyOllamaModel, "nomic-embed-text"),
		OllamaChatModel: envOr(envKeyOllamaChatModel, "llama3.2:3b"),
		OpenAIBaseURL:   envOr(envKeyOpenAIBaseURL, "https://api.openai.com/v1"),
		OpenAIAPIKey:    envOr(envKeyOpenAIAPIKey, ""),
		OpenAIModel:     envOr(envKeyOpenAIModel, "text-embedding-3-small"),
		OpenAIChatModel: envOr(envKeyOpenAIChatModel, "gpt-4o-mini"),
		LLMTimeout:      envSecondsOr(envKeyLLMTimeout, 30*time.Second),
		RateLimitMax:    envIntOr(envKeyRateLimitMax, 100),
		RateLimitWindow: envSecondsOr(envKeyRateLimitWindow, time.Hour),
		RedisAddr:       envOr(envKeyRedisAddr, ""),
		RedisPassword:   envOr(envKeyRedisPassword, ""),
		RedisDB:         envIntOr(envKeyRedisDB, 0),
		LogLevel:        envOr(envKeyLogLevel, "info"),
	}
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envIntOr returns the integer value of key, or fallback if unset or invalid.
func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envSecondsOr returns key parsed as a number of seconds, or fallback.
func envSecondsOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
