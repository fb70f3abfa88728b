package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DotEnvFile はカレントディレクトリから読み込む環境変数ファイル名。
const DotEnvFile = ".env"

// Config はAPIサーバーとワーカーの設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort        string
	CORSAllowedOrigin string

	// Cache
	RedisURL string
	CacheTTL time.Duration

	// Rate Limit
	RateLimitPerMinute int

	// Cleanup
	ExpiredRetentionDays int
	CleanupInterval      time.Duration

	// Logging
	LogLevel string
}

// ClientConfig はCLIクライアント（watch/list/add/update/delete）の設定を保持する。
type ClientConfig struct {
	APIBaseURL          string
	WatchInterval       time.Duration
	WatchRequestTimeout time.Duration
	LogLevel            string
}

// Load は環境変数からConfigを読み込む。
// .envファイルが存在すれば先に読み込む。既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.ServerPort = getEnvString("SERVER_PORT", getEnvString("PORT", "8080"))
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 30*time.Second)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 600)
	cfg.ExpiredRetentionDays = getEnvInt("EXPIRED_RETENTION_DAYS", 30)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// LoadClient は環境変数からClientConfigを読み込む。
// 必須項目はなく、未設定の場合はローカルのAPIサーバーを指す。
func LoadClient() (*ClientConfig, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	return &ClientConfig{
		APIBaseURL:          getEnvString("API_BASE_URL", "http://localhost:8080"),
		WatchInterval:       getEnvDuration("WATCH_INTERVAL", time.Second),
		WatchRequestTimeout: getEnvDuration("WATCH_REQUEST_TIMEOUT", 5*time.Second),
		LogLevel:            getEnvString("LOG_LEVEL", "info"),
	}, nil
}

// ServerPort はフル初期化を行わずにリッスンポートを解決する。
// healthcheckサブコマンドから使う。
func ServerPort() string {
	return getEnvString("SERVER_PORT", getEnvString("PORT", "8080"))
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
