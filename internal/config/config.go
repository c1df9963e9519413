package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// Following 12-factor app principles, all config is loaded from environment variables
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Delivery DeliveryConfig
	Notify   NotifyConfig
	Relay    RelayConfig
	LogLevel string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
	RequestTimeout  int
}

// AuthConfig describes the single administrator seeded on first boot
type AuthConfig struct {
	AdminUsername string
	AdminPassword string
	BcryptCost    int
}

type StorageConfig struct {
	Driver      string // memory, json or postgres
	DataDir     string
	DatabaseURL string
	UploadDir   string
	FrontendDir string
}

// CacheConfig enables the Redis read cache when Addr is set
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DeliveryConfig carries the business-hour rules applied to delivery orders
type DeliveryConfig struct {
	ServiceAreaPrefix string
	LeadTime          time.Duration
	ClosedWeekday     time.Weekday
	WindowStart       TimeOfDay
	WindowEnd         TimeOfDay
	Location          *time.Location
}

type NotifyConfig struct {
	Sink           string // log, telegram, relay or kafka
	Language       string
	QueueSize      int
	Timeout        time.Duration
	TelegramToken  string
	TelegramChatID string
	TelegramAPIURL string
	RelayURL       string
	KafkaBrokers   []string
	KafkaTopic     string
}

// RelayConfig configures the standalone bot relay process
type RelayConfig struct {
	Port string
	Host string
}

const (
	StorageMemory   = "memory"
	StorageJSON     = "json"
	StoragePostgres = "postgres"

	SinkLog      = "log"
	SinkTelegram = "telegram"
	SinkRelay    = "relay"
	SinkKafka    = "kafka"
)

// Load reads configuration from environment variables, after merging an optional .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	location, err := time.LoadLocation(getEnv("TIMEZONE", "Europe/Moscow"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	closedDay, err := ParseWeekday(getEnv("CLOSED_WEEKDAY", "monday"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOSED_WEEKDAY: %w", err)
	}
	windowStart, err := ParseTimeOfDay(getEnv("DELIVERY_WINDOW_START", "09:00"))
	if err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_WINDOW_START: %w", err)
	}
	windowEnd, err := ParseTimeOfDay(getEnv("DELIVERY_WINDOW_END", "16:00"))
	if err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_WINDOW_END: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsInt("READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("WRITE_TIMEOUT", 15),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 30),
			RequestTimeout:  getEnvAsInt("REQUEST_TIMEOUT", 60),
		},
		Auth: AuthConfig{
			AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
			BcryptCost:    getEnvAsInt("BCRYPT_COST", 10),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(getEnv("STORAGE_DRIVER", StorageJSON)),
			DataDir:     getEnv("DATA_DIR", "data"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			UploadDir:   getEnv("UPLOAD_DIR", "static/uploads"),
			FrontendDir: getEnv("FRONTEND_DIR", "frontend"),
		},
		Cache: CacheConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvAsInt("CACHE_TTL", 300)) * time.Second,
		},
		Delivery: DeliveryConfig{
			ServiceAreaPrefix: getEnv("SERVICE_AREA_PREFIX", "г. Михайловск"),
			LeadTime:          time.Duration(getEnvAsInt("LEAD_TIME_MINUTES", 30)) * time.Minute,
			ClosedWeekday:     closedDay,
			WindowStart:       windowStart,
			WindowEnd:         windowEnd,
			Location:          location,
		},
		Notify: NotifyConfig{
			Sink:           strings.ToLower(getEnv("NOTIFY_SINK", SinkLog)),
			Language:       getEnv("NOTIFY_LANGUAGE", "ru"),
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 100),
			Timeout:        time.Duration(getEnvAsInt("NOTIFY_TIMEOUT", 10)) * time.Second,
			TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),
			TelegramAPIURL: getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			RelayURL:       getEnv("BOT_RELAY_URL", "http://localhost:5001/send_order"),
			KafkaBrokers:   getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:     getEnv("KAFKA_TOPIC", "orders.accepted"),
		},
		Relay: RelayConfig{
			Port: getEnv("BOT_PORT", "5001"),
			Host: getEnv("BOT_HOST", "0.0.0.0"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Auth.AdminUsername == "" || c.Auth.AdminPassword == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must not be empty")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	switch c.Storage.Driver {
	case StorageMemory, StorageJSON:
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be memory, json, or postgres)", c.Storage.Driver)
	}

	if c.Delivery.WindowEnd.Before(c.Delivery.WindowStart) {
		return fmt.Errorf("delivery window end %s is before start %s", c.Delivery.WindowEnd, c.Delivery.WindowStart)
	}
	if c.Delivery.LeadTime < 0 {
		return fmt.Errorf("LEAD_TIME_MINUTES must not be negative")
	}

	if c.Notify.QueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	switch c.Notify.Sink {
	case SinkLog:
	case SinkTelegram:
		if c.Notify.TelegramToken == "" || c.Notify.TelegramChatID == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required for the telegram sink")
		}
	case SinkRelay:
		if c.Notify.RelayURL == "" {
			return fmt.Errorf("BOT_RELAY_URL is required for the relay sink")
		}
	case SinkKafka:
		if len(c.Notify.KafkaBrokers) == 0 || c.Notify.KafkaTopic == "" {
			return fmt.Errorf("KAFKA_BROKERS and KAFKA_TOPIC are required for the kafka sink")
		}
	default:
		return fmt.Errorf("invalid notify sink: %s (must be log, telegram, relay, or kafka)", c.Notify.Sink)
	}

	return nil
}

// UsesDefaultAdminPassword reports whether the seeded password is still the built-in one
func (c *Config) UsesDefaultAdminPassword() bool {
	return c.Auth.AdminPassword == "admin123"
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
