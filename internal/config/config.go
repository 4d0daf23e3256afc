package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	// DatabaseURI selects the Postgres store; SQLitePath is used when it is
	// empty.
	DatabaseURI     string
	SQLitePath      string
	DefaultTimezone string

	TelegramToken  string
	TelegramChatID int64

	AIAPIKey  string
	AIBaseURL string
	AIModel   string

	RetryAttempts int
	RetryBackoff  time.Duration

	NotifyLedgerPath string
	SelfUserID       string
	WatchSubjectID   string
	WatchRole        string
	CooldownMissed   time.Duration
	CooldownSOS      time.Duration
	PushDedupWindow  time.Duration
	DeadlineGrace    time.Duration
}

// Load reads an optional .env file, then the environment. Every invalid value
// is reported in one error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	cfg := &Config{
		Env:              getEnvOrDefault("APP_ENV", "development"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPAddr:         getEnvOrDefault("HTTP_ADDR", ":8080"),
		DatabaseURI:      os.Getenv("DATABASE_URI"),
		SQLitePath:       getEnvOrDefault("SQLITE_PATH", "data/lifeline.db"),
		DefaultTimezone:  getEnvOrDefault("DEFAULT_TIMEZONE", "Asia/Taipei"),
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
		AIAPIKey:         os.Getenv("AI_API_KEY"),
		AIBaseURL:        getEnvOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:          getEnvOrDefault("AI_MODEL", "openai/gpt-4o-mini"),
		NotifyLedgerPath: getEnvOrDefault("NOTIFY_LEDGER_PATH", "data/notify.db"),
		SelfUserID:       os.Getenv("SELF_USER_ID"),
		WatchSubjectID:   os.Getenv("WATCH_SUBJECT_ID"),
		WatchRole:        getEnvOrDefault("WATCH_ROLE", "self"),
	}

	var invalid []string
	cfg.TelegramChatID = parseInt64(&invalid, "TELEGRAM_CHAT_ID", 0)
	cfg.RetryAttempts = parseInt(&invalid, "RETRY_ATTEMPTS", 3)
	cfg.RetryBackoff = parseDuration(&invalid, "RETRY_BACKOFF", 200*time.Millisecond)
	cfg.CooldownMissed = parseDuration(&invalid, "COOLDOWN_MISSED", 30*time.Second)
	cfg.CooldownSOS = parseDuration(&invalid, "COOLDOWN_SOS", 5*time.Minute)
	cfg.PushDedupWindow = parseDuration(&invalid, "PUSH_DEDUP_WINDOW", 5*time.Second)
	cfg.DeadlineGrace = parseDuration(&invalid, "DEADLINE_GRACE", time.Minute)

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("APP_ENV must be one of: development, staging, production")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1")
	}
	switch c.WatchRole {
	case "self", "family":
	default:
		return fmt.Errorf("WATCH_ROLE must be self or family")
	}
	if c.DatabaseURI == "" && c.SQLitePath == "" {
		return fmt.Errorf("either DATABASE_URI or SQLITE_PATH is required")
	}
	return nil
}

// Location returns the parsed default timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(invalid *[]string, key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*invalid = append(*invalid, key)
		return def
	}
	return n
}

func parseInt64(invalid *[]string, key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*invalid = append(*invalid, key)
		return def
	}
	return n
}

func parseDuration(invalid *[]string, key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		*invalid = append(*invalid, key)
		return def
	}
	return d
}
