// Package config provides environment configuration for the plugin daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ListenAddr         string
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// JWT settings
	JWTSecret string

	// Rate limiting of the local API
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Remote message API
	DiscordAPIBase         string
	DiscordToken           string
	DiscordRequestTimeout  time.Duration
	FetchPageDelayMode     string
	FetchPageDelay         time.Duration
	FetchRateLimitMargin   time.Duration
	FetchMaxRateLimitRetry int
	MessageCacheSize       int

	// AI assistant
	AIProvider      string
	AIAPIKey        string
	AIBaseURL       string
	AIModel         string
	AIMaxTokens     int
	AISystemPrompt  string
	AIContextLength int

	// Conversation retention
	MaxConversationHistory  int
	ConversationHistoryDays int

	// Storage
	StoreBackend string
	StorePath    string

	// NATS settings; NATSURL empty disables NATS entirely.
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Notification suppression
	SuppressChannels []string
	SuppressUsers    []string
	SuppressKeywords []string
	QuietHours       string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ListenAddr:         getEnv("LISTEN_ADDR", "127.0.0.1"),
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 300*time.Second),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Remote message API
		DiscordAPIBase:         getEnv("DISCORD_API_BASE", "https://discord.com/api/v9"),
		DiscordToken:           getEnv("DISCORD_TOKEN", ""),
		DiscordRequestTimeout:  getDurationEnv("DISCORD_REQUEST_TIMEOUT", 15*time.Second),
		FetchPageDelayMode:     getEnv("FETCH_PAGE_DELAY_MODE", "fixed"),
		FetchPageDelay:         getDurationEnv("FETCH_PAGE_DELAY", 200*time.Millisecond),
		FetchRateLimitMargin:   getDurationEnv("FETCH_RATE_LIMIT_MARGIN", 500*time.Millisecond),
		FetchMaxRateLimitRetry: getIntEnv("FETCH_MAX_RATE_LIMIT_RETRIES", 5),
		MessageCacheSize:       getIntEnv("MESSAGE_CACHE_SIZE", 1000),

		// AI
		AIProvider:      getEnv("AI_PROVIDER", "openai"),
		AIAPIKey:        getEnv("AI_API_KEY", ""),
		AIBaseURL:       getEnv("AI_BASE_URL", ""),
		AIModel:         getEnv("AI_MODEL", ""),
		AIMaxTokens:     getIntEnv("AI_MAX_TOKENS", 2048),
		AISystemPrompt:  getEnv("AI_SYSTEM_PROMPT", "You are a helpful assistant embedded in a chat client. Answer concisely."),
		AIContextLength: getIntEnv("AI_CONTEXT_MESSAGES", 50),

		// Retention
		MaxConversationHistory:  getIntEnv("MAX_CONVERSATION_HISTORY", 20),
		ConversationHistoryDays: getIntEnv("CONVERSATION_HISTORY_DAYS", 7),

		// Storage
		StoreBackend: getEnv("STORE_BACKEND", "bolt"),
		StorePath:    getEnv("STORE_PATH", "data/chatplugins.db"),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Notifications
		SuppressChannels: getListEnv("SUPPRESS_CHANNELS"),
		SuppressUsers:    getListEnv("SUPPRESS_USERS"),
		SuppressKeywords: getListEnv("SUPPRESS_KEYWORDS"),
		QuietHours:       getEnv("QUIET_HOURS", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks settings that would otherwise fail far from their source.
// A missing AI key or Discord token is not an error here: the commands that
// need them report it when invoked.
func (c *Config) Validate() error {
	switch c.FetchPageDelayMode {
	case "fixed", "scaled":
	default:
		return fmt.Errorf("invalid FETCH_PAGE_DELAY_MODE: %q (want fixed or scaled)", c.FetchPageDelayMode)
	}

	switch c.StoreBackend {
	case "bolt", "sqlite", "memory":
	case "nats":
		if c.NATSURL == "" {
			return fmt.Errorf("STORE_BACKEND=nats requires NATS_URL")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND: %q", c.StoreBackend)
	}

	if c.MaxConversationHistory < 0 {
		return fmt.Errorf("MAX_CONVERSATION_HISTORY must be >= 0, got %d", c.MaxConversationHistory)
	}
	if c.ConversationHistoryDays < 0 {
		return fmt.Errorf("CONVERSATION_HISTORY_DAYS must be >= 0, got %d", c.ConversationHistoryDays)
	}
	if c.AIContextLength < 0 {
		return fmt.Errorf("AI_CONTEXT_MESSAGES must be >= 0, got %d", c.AIContextLength)
	}
	if c.FetchMaxRateLimitRetry < 0 {
		return fmt.Errorf("FETCH_MAX_RATE_LIMIT_RETRIES must be >= 0, got %d", c.FetchMaxRateLimitRetry)
	}
	return nil
}

// knownSecrets are placeholder secrets that must never sign API tokens.
var knownSecrets = map[string]bool{
	"development-secret-change-in-production": true,
	"changeme":                                true,
	"secret":                                  true,
}

// minSecretLength is the shortest JWT_SECRET accepted for serving.
const minSecretLength = 16

// ErrWeakSecret is returned when JWT_SECRET is unset or guessable.
var ErrWeakSecret = errors.New("JWT_SECRET must be set to a private value of at least 16 characters")

// ValidateServer checks the settings only the API server and token minting
// depend on. The API exposes the user's messages and notes, so tokens must be
// signed with a secret nobody else can know.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" || knownSecrets[c.JWTSecret] || len(c.JWTSecret) < minSecretLength {
		return ErrWeakSecret
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated variable, dropping blanks.
func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
