package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uma-arai/sbcntr-hostel/internal/common/database"
)

// NotificationSource は通知フィードの取得元です
type NotificationSource string

const (
	NotificationSourceAPI NotificationSource = "api"
	NotificationSourceDB  NotificationSource = "db"
)

type Config struct {
	Env string
	DB  database.Config
	API struct {
		BaseURL     string
		RealtimeURL string
		Timeout     time.Duration
	}
	Auth struct {
		AccessToken  string
		RefreshToken string
	}
	Notification struct {
		Source NotificationSource
		Limit  int
	}
	ToastTTL time.Duration
	Log      struct {
		Level  string
		Format string
	}
	SFN struct {
		TaskToken string
	}
	EnableTracing bool
	// DefaultedKeys は未設定のためデフォルト値を使った環境変数です
	DefaultedKeys []string
}

// IsLocal はローカル実行かどうかを返します
func (c *Config) IsLocal() bool {
	return c.Env == "LOCAL"
}

// LoadConfig は設定を読み込みます
// カレントディレクトリに .env がある場合は先に読み込みます
func LoadConfig(taskToken string) (*Config, error) {
	_ = godotenv.Load()

	var defaulted []string
	getEnvOrDefault := func(key, defaultValue string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		defaulted = append(defaulted, key)
		return defaultValue
	}

	cfg := &Config{
		Env: os.Getenv("ENV"),
		DB: database.Config{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvAsIntOrDefault("DB_PORT", 5432),
			UserName: getEnvOrDefault("DB_USERNAME", "sbcntrapp"),
			Password: getEnvOrDefault("DB_PASSWORD", "password"),
			DBName:   getEnvOrDefault("DB_NAME", "sbcntrapp"),
			SSLMode:  os.Getenv("DB_SSL_MODE"),
		},
		EnableTracing: false,
	}

	cfg.API.BaseURL = strings.TrimRight(getEnvOrDefault("HOSTEL_API_BASE_URL", "http://localhost:8080/api"), "/")
	cfg.API.RealtimeURL = os.Getenv("HOSTEL_REALTIME_URL")
	cfg.API.Timeout = getEnvAsDurationOrDefault("HOSTEL_API_TIMEOUT", 15*time.Second)

	cfg.Auth.AccessToken = os.Getenv("HOSTEL_ACCESS_TOKEN")
	cfg.Auth.RefreshToken = os.Getenv("HOSTEL_REFRESH_TOKEN")

	cfg.Notification.Source = NotificationSource(strings.ToLower(getEnvOrDefault("HOSTEL_NOTIFICATION_SOURCE", string(NotificationSourceAPI))))
	if cfg.Notification.Source != NotificationSourceDB {
		cfg.Notification.Source = NotificationSourceAPI
	}
	cfg.Notification.Limit = getEnvAsIntOrDefault("HOSTEL_NOTIFICATION_LIMIT", 20)
	cfg.ToastTTL = getEnvAsDurationOrDefault("HOSTEL_TOAST_TTL", 5*time.Second)

	cfg.Log.Level = strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	cfg.Log.Format = strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json"))

	cfg.SFN.TaskToken = taskToken
	cfg.DefaultedKeys = defaulted

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("SBCNTR_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
