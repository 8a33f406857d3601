package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"edubot/internal/widget"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config is the server configuration.
type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Conversation history
	HistoryStore string
	DatabaseURL  string
	RedisURL     string

	// HTTP
	CORSOrigins     []string
	ChatRateLimit   int
	ChatRateWindow  time.Duration
	ShutdownTimeout time.Duration

	// Gemini fallback, disabled when the key is empty
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8000"),
		Env:                  getEnvOrDefault("ENV", "development"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		HistoryStore:         strings.ToLower(getEnvOrDefault("HISTORY_STORE", StoreMemory)),
		DatabaseURL:          getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		CORSOrigins:          getEnvAsListOrDefault("CORS_ORIGINS", []string{"*"}),
		ChatRateLimit:        getEnvAsIntOrDefault("CHAT_RATE_LIMIT", 60),
		ChatRateWindow:       getEnvAsDurationOrDefault("CHAT_RATE_WINDOW", time.Minute),
		ShutdownTimeout:      getEnvAsDurationOrDefault("SHUTDOWN_TIMEOUT", 30*time.Second),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
	}

	return cfg
}

func (c *Config) Validate() error {
	switch c.HistoryStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when HISTORY_STORE=redis")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when HISTORY_STORE=postgres")
		}
	default:
		return errors.Errorf("unknown HISTORY_STORE %q (want memory, redis or postgres)", c.HistoryStore)
	}
	if c.ChatRateLimit < 0 {
		return errors.Errorf("CHAT_RATE_LIMIT must not be negative, got %d", c.ChatRateLimit)
	}
	if c.ChatRateLimit > 0 && c.ChatRateWindow <= 0 {
		return errors.Errorf("CHAT_RATE_WINDOW must be positive when CHAT_RATE_LIMIT is set, got %s", c.ChatRateWindow)
	}
	return nil
}

// LoadClient reads the chat widget settings. Flags override these values.
func LoadClient() widget.Config {
	godotenv.Load()

	return widget.Config{
		Endpoint: getEnvOrDefault("EDUBOT_ENDPOINT", widget.DefaultEndpoint),
		UserID:   getEnvOrDefault("EDUBOT_USER_ID", widget.DefaultUserID),
		Timeout:  getEnvAsDurationOrDefault("EDUBOT_TIMEOUT", widget.DefaultTimeout),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
