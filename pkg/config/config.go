package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from and admins can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Broker     BrokerConfig     `json:"broker"`
	Broadcast  BroadcastConfig  `json:"broadcast"`
	Storage    StorageConfig    `json:"storage"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Classifier ClassifierConfig `json:"classifier"`
	Channels   ChannelsConfig   `json:"channels"`
	Logging    LoggingConfig    `json:"logging"`
	mu         sync.RWMutex
}

type BrokerConfig struct {
	Workspace            string              `json:"workspace" env:"BAZAAR_BROKER_WORKSPACE"`
	Admins               FlexibleStringSlice `json:"admins" env:"BAZAAR_BROKER_ADMINS"`
	SupportContacts      FlexibleStringSlice `json:"support_contacts" env:"BAZAAR_BROKER_SUPPORT_CONTACTS"`
	ReminderDelayMinutes int                 `json:"reminder_delay_minutes" env:"BAZAAR_BROKER_REMINDER_DELAY_MINUTES"`
	RequestTTLHours      int                 `json:"request_ttl_hours" env:"BAZAAR_BROKER_REQUEST_TTL_HOURS"`
	SweepCron            string              `json:"sweep_cron" env:"BAZAAR_BROKER_SWEEP_CRON"`
	SessionIdleMinutes   int                 `json:"session_idle_minutes" env:"BAZAAR_BROKER_SESSION_IDLE_MINUTES"`
	BuyerGuide           string              `json:"buyer_guide" env:"BAZAAR_BROKER_BUYER_GUIDE"`
	SellerGuide          string              `json:"seller_guide" env:"BAZAAR_BROKER_SELLER_GUIDE"`
}

// BroadcastConfig maps a category slug to the address of its broadcast channel.
// Categories without an entry fall back to their group's channel.
type BroadcastConfig struct {
	Channels map[string]string `json:"channels" env:"BAZAAR_BROADCAST_CHANNELS"`
}

type StorageConfig struct {
	Backend       string `json:"backend" env:"BAZAAR_STORAGE_BACKEND"` // file | redis | memory
	Dir           string `json:"dir" env:"BAZAAR_STORAGE_DIR"`
	RedisAddr     string `json:"redis_addr" env:"BAZAAR_STORAGE_REDIS_ADDR"`
	RedisPassword string `json:"redis_password" env:"BAZAAR_STORAGE_REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db" env:"BAZAAR_STORAGE_REDIS_DB"`
	RedisPrefix   string `json:"redis_prefix" env:"BAZAAR_STORAGE_REDIS_PREFIX"`
}

type SchedulerConfig struct {
	Backend       string `json:"backend" env:"BAZAAR_SCHEDULER_BACKEND"` // timer | asynq
	RedisAddr     string `json:"redis_addr" env:"BAZAAR_SCHEDULER_REDIS_ADDR"`
	RedisPassword string `json:"redis_password" env:"BAZAAR_SCHEDULER_REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db" env:"BAZAAR_SCHEDULER_REDIS_DB"`
	Queue         string `json:"queue" env:"BAZAAR_SCHEDULER_QUEUE"`
	Concurrency   int    `json:"concurrency" env:"BAZAAR_SCHEDULER_CONCURRENCY"`
}

type ClassifierConfig struct {
	Provider         string  `json:"provider" env:"BAZAAR_CLASSIFIER_PROVIDER"` // openai | openrouter | anthropic | none
	Model            string  `json:"model" env:"BAZAAR_CLASSIFIER_MODEL"`
	APIKey           string  `json:"api_key" env:"BAZAAR_CLASSIFIER_API_KEY"`
	APIBase          string  `json:"api_base" env:"BAZAAR_CLASSIFIER_API_BASE"`
	Temperature      float64 `json:"temperature" env:"BAZAAR_CLASSIFIER_TEMPERATURE"`
	MaxTokens        int     `json:"max_tokens" env:"BAZAAR_CLASSIFIER_MAX_TOKENS"`
	TimeoutSeconds   int     `json:"timeout_seconds" env:"BAZAAR_CLASSIFIER_TIMEOUT_SECONDS"`
	FallbackProvider string  `json:"fallback_provider" env:"BAZAAR_CLASSIFIER_FALLBACK_PROVIDER"`
	FallbackModel    string  `json:"fallback_model" env:"BAZAAR_CLASSIFIER_FALLBACK_MODEL"`
	FallbackAPIKey   string  `json:"fallback_api_key" env:"BAZAAR_CLASSIFIER_FALLBACK_API_KEY"`
	FallbackAPIBase  string  `json:"fallback_api_base" env:"BAZAAR_CLASSIFIER_FALLBACK_API_BASE"`
	HoldMinutes      int     `json:"hold_minutes" env:"BAZAAR_CLASSIFIER_HOLD_MINUTES"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Console  ConsoleConfig  `json:"console"`
}

type TelegramConfig struct {
	Enabled   bool                `json:"enabled" env:"BAZAAR_CHANNELS_TELEGRAM_ENABLED"`
	Token     string              `json:"token" env:"BAZAAR_CHANNELS_TELEGRAM_TOKEN"`
	Proxy     string              `json:"proxy" env:"BAZAAR_CHANNELS_TELEGRAM_PROXY"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"BAZAAR_CHANNELS_TELEGRAM_ALLOW_FROM"`
}

type ConsoleConfig struct {
	Enabled  bool   `json:"enabled" env:"BAZAAR_CHANNELS_CONSOLE_ENABLED"`
	Identity string `json:"identity" env:"BAZAAR_CHANNELS_CONSOLE_IDENTITY"`
}

type LoggingConfig struct {
	Level           string `json:"level" env:"BAZAAR_LOGGING_LEVEL"`
	FileEnabled     bool   `json:"file_enabled" env:"BAZAAR_LOGGING_FILE_ENABLED"`
	FilePath        string `json:"file_path" env:"BAZAAR_LOGGING_FILE_PATH"`
	RotationEnabled bool   `json:"rotation_enabled" env:"BAZAAR_LOGGING_ROTATION_ENABLED"`
	MaxAgeDays      int    `json:"max_age_days" env:"BAZAAR_LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB       int    `json:"max_size_mb" env:"BAZAAR_LOGGING_MAX_SIZE_MB"`
}

func DefaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Workspace:            "~/.bazaar",
			Admins:               FlexibleStringSlice{},
			SupportContacts:      FlexibleStringSlice{},
			ReminderDelayMinutes: 120,
			RequestTTLHours:      24,
			SweepCron:            "@hourly",
			SessionIdleMinutes:   30,
		},
		Broadcast: BroadcastConfig{
			Channels: map[string]string{},
		},
		Storage: StorageConfig{
			Backend:     "file",
			Dir:         "~/.bazaar/data",
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "bazaar:",
		},
		Scheduler: SchedulerConfig{
			Backend:     "timer",
			RedisAddr:   "127.0.0.1:6379",
			Queue:       "reminders",
			Concurrency: 4,
		},
		Classifier: ClassifierConfig{
			Provider:       "openrouter",
			Model:          "deepseek/deepseek-chat-v3-0324:free",
			APIBase:        "https://openrouter.ai/api/v1",
			Temperature:    0.3,
			MaxTokens:      500,
			TimeoutSeconds: 20,
			HoldMinutes:    30,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				AllowFrom: FlexibleStringSlice{},
			},
			Console: ConsoleConfig{
				Enabled:  false,
				Identity: "console",
			},
		},
		Logging: LoggingConfig{
			Level:           "info",
			FileEnabled:     false,
			FilePath:        "~/.bazaar/logs/bazaar.log",
			RotationEnabled: true,
			MaxAgeDays:      7,
			MaxSizeMB:       50,
		},
	}
}

// LoadConfig layers defaults, the JSON file at path, an optional .env file
// next to it and finally the process environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if _, statErr := os.Stat(dotenv); statErr == nil {
		// Load never overrides variables already set in the environment.
		if err := godotenv.Load(dotenv); err != nil {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	resolveEnvRefs(cfg)

	return cfg, nil
}

func resolveEnvRefs(cfg *Config) {
	refs := []*string{
		&cfg.Classifier.APIKey,
		&cfg.Classifier.APIBase,
		&cfg.Classifier.FallbackAPIKey,
		&cfg.Classifier.FallbackAPIBase,
		&cfg.Channels.Telegram.Token,
		&cfg.Storage.RedisPassword,
		&cfg.Scheduler.RedisPassword,
	}
	for _, p := range refs {
		*p = resolveEnvRef(*p)
	}
}

// resolveEnvRef expands "${NAME}" and "$NAME" references to environment values.
func resolveEnvRef(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return v
	}
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		key := strings.TrimSpace(s[2 : len(s)-1])
		if key == "" {
			return v
		}
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return v
	}
	if strings.HasPrefix(s, "$") && len(s) > 1 {
		key := strings.TrimSpace(s[1:])
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
	}
	return v
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Broker.Workspace)
}

func (c *Config) StorageDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Storage.Dir)
}

func (c *Config) LogFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Logging.FilePath)
}

func (c *Config) ReminderDelay() time.Duration {
	return minutesOr(c.Broker.ReminderDelayMinutes, 120)
}

func (c *Config) RequestTTL() time.Duration {
	if c.Broker.RequestTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Broker.RequestTTLHours) * time.Hour
}

func (c *Config) SessionIdle() time.Duration {
	return minutesOr(c.Broker.SessionIdleMinutes, 30)
}

func minutesOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Minute
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
