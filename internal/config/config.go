package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 接続テストの動作モード。
const (
	// ConnectionTestModeSimulate は外部通信を行わず固定の遅延と判定を返すモード。
	ConnectionTestModeSimulate = "simulate"
	// ConnectionTestModeProbe は登録されたURLへ実際にリクエストを送るモード。
	ConnectionTestModeProbe = "probe"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	// 空の場合はインメモリストアで起動する。
	DatabaseURL string

	// Session
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Auth
	BcryptCost int

	// Connection Test
	ConnectionTestMode    string
	ConnectionTestDelay   time.Duration
	ConnectionTestTimeout time.Duration

	// Rate Limit
	RateLimitGeneral  int
	RateLimitConnTest int

	// Server
	ServerPort         string
	BaseURL            string
	MaxConcurrentConns int

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 0)
	cfg.ConnectionTestMode = getEnvString("CONNECTION_TEST_MODE", ConnectionTestModeSimulate)
	cfg.ConnectionTestDelay = getEnvDuration("CONNECTION_TEST_DELAY", 2*time.Second)
	cfg.ConnectionTestTimeout = getEnvDuration("CONNECTION_TEST_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitConnTest = getEnvInt("RATE_LIMIT_CONN_TEST", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MaxConcurrentConns = getEnvInt("MAX_CONCURRENT_CONNS", 256)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.ConnectionTestMode != ConnectionTestModeSimulate && cfg.ConnectionTestMode != ConnectionTestModeProbe {
		return nil, fmt.Errorf("CONNECTION_TEST_MODE must be %q or %q, got %q",
			ConnectionTestModeSimulate, ConnectionTestModeProbe, cfg.ConnectionTestMode)
	}

	return cfg, nil
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
	if err != nil {
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
	if err != nil {
		return defaultVal
	}
	return d
}
