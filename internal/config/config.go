package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLM provider identifiers.
const (
	ProviderOllama           = "ollama"
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
	ProviderBedrock          = "bedrock"
	ProviderOpenAICompatible = "openai-compatible"
	ProviderGemini           = "gemini"
)

// Store backends.
const (
	StoreSurrealDB = "surrealdb"
	StoreSQLite    = "sqlite"
)

// Config holds all configuration values.
type Config struct {
	ServerPort string

	// Persistence backend
	Store     string
	SQLiteDir string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Language model
	LLMProvider     string
	LLMModel        string
	LLMBaseURL      string
	LLMTimeout      time.Duration // 0 disables the per-call deadline
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	AWSRegion       string

	// Dispatcher
	Workers         int
	QueueSize       int
	TaskMaxAttempts int
	TaskTimeout     time.Duration

	// Rate limiting and notifications
	RateLimit     int
	RateWindow    time.Duration
	NotifyWebhook string
	NotifyDedupe  time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
// Values from .env.local and .env in the working directory are applied first
// unless RAVAN_DOTENV disables it; variables already set are never overridden.
func Load() Config {
	if !dotEnvDisabled() {
		loadDotEnv(".")
	}

	return Config{
		ServerPort: getEnv("RAVAN_SERVER_PORT", "8484"),

		Store:     strings.ToLower(getEnv("RAVAN_STORE", StoreSurrealDB)),
		SQLiteDir: getEnv("RAVAN_SQLITE_DIR", defaultDataDir()),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "ravan"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "therapy"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     strings.ToLower(getEnv("RAVAN_LLM_PROVIDER", ProviderOllama)),
		LLMModel:        getEnv("RAVAN_LLM_MODEL", "llama3.1"),
		LLMBaseURL:      getEnv("RAVAN_LLM_BASE_URL", ""),
		LLMTimeout:      getDuration("RAVAN_LLM_TIMEOUT", 0),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		Workers:         getInt("RAVAN_WORKERS", 4),
		QueueSize:       getInt("RAVAN_QUEUE_SIZE", 256),
		TaskMaxAttempts: getInt("RAVAN_TASK_MAX_ATTEMPTS", 1),
		TaskTimeout:     getDuration("RAVAN_TASK_TIMEOUT", 5*time.Minute),

		RateLimit:     getInt("RAVAN_RATE_LIMIT", 60),
		RateWindow:    getDuration("RAVAN_RATE_WINDOW", time.Minute),
		NotifyWebhook: getEnv("RAVAN_NOTIFY_WEBHOOK", ""),
		NotifyDedupe:  getDuration("RAVAN_NOTIFY_DEDUPE", time.Hour),

		LogFile:  getEnv("RAVAN_LOG_FILE", "/tmp/ravan.log"),
		LogLevel: parseLogLevel(getEnv("RAVAN_LOG_LEVEL", "INFO")),
	}
}

func loadDotEnv(dir string) {
	for _, p := range []string{filepath.Join(dir, ".env.local"), filepath.Join(dir, ".env")} {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			slog.Warn("failed to load env file", "file", p, "error", err)
			continue
		}
		slog.Debug("loaded env file", "file", p)
	}
}

func dotEnvDisabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("RAVAN_DOTENV"))) {
	case "0", "false", "off", "no":
		return true
	default:
		return false
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ravan"
	}
	return filepath.Join(home, ".ravan")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer in env, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if val == "0" {
		return 0
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration in env, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
