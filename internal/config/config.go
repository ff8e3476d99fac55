// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var errNotPositive = errors.New("value must be positive")

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort        string
	CORSAllowedOrigin string

	// Logging
	LogLevel string

	// Break policy
	BreakPolicyEnabled bool
	PolicyCacheTTL     time.Duration

	// Rate Limit
	RateLimitGeneral int
	// TrustedProxies はX-Forwarded-Forを信頼する接続元（カンマ区切りのCIDRまたはIP）。
	TrustedProxies string

	// Site sync
	SiteSyncURL      string
	SiteSyncToken    string
	SiteSyncInterval time.Duration
	SiteSyncTimeout  time.Duration

	// Materialize
	MaterializeInterval     time.Duration
	MaterializeLookbackDays int

	// Retention
	PunchRetentionDays int
}

// SiteSyncEnabled は現場マスタ同期の取得元が設定されているかを返す。
func (c *Config) SiteSyncEnabled() bool {
	return c.SiteSyncURL != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.ServerPort = envOr("SERVER_PORT", "8080", parsePort)
	cfg.CORSAllowedOrigin = envOr("CORS_ALLOWED_ORIGIN", "http://localhost:3000", parseString)
	cfg.LogLevel = envOr("LOG_LEVEL", "info", parseString)
	cfg.BreakPolicyEnabled = envOr("BREAK_POLICY_ENABLED", true, strconv.ParseBool)
	cfg.PolicyCacheTTL = envOr("POLICY_CACHE_TTL", 5*time.Minute, parsePositiveDuration)
	cfg.RateLimitGeneral = envOr("RATE_LIMIT_GENERAL", 120, parsePositiveInt)
	cfg.TrustedProxies = envOr("TRUSTED_PROXIES", "", parseString)
	cfg.SiteSyncURL = envOr("SITE_SYNC_URL", "", parseString)
	cfg.SiteSyncToken = envOr("SITE_SYNC_TOKEN", "", parseString)
	cfg.SiteSyncInterval = envOr("SITE_SYNC_INTERVAL", time.Hour, parsePositiveDuration)
	cfg.SiteSyncTimeout = envOr("SITE_SYNC_TIMEOUT", 10*time.Second, parsePositiveDuration)
	cfg.MaterializeInterval = envOr("MATERIALIZE_INTERVAL", time.Hour, parsePositiveDuration)
	cfg.MaterializeLookbackDays = envOr("MATERIALIZE_LOOKBACK_DAYS", 3, parsePositiveInt)
	cfg.PunchRetentionDays = envOr("PUNCH_RETENTION_DAYS", 730, parsePositiveInt)

	return cfg, nil
}

// envOr は環境変数をparseで変換して返す。未設定または変換できない場合はdefaultValを返す。
func envOr[T any](key string, defaultVal T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	parsed, err := parse(v)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func parseString(v string) (string, error) { return v, nil }

func parsePositiveInt(v string) (int, error) {
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if i <= 0 {
		return 0, errNotPositive
	}
	return i, nil
}

func parsePositiveDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errNotPositive
	}
	return d, nil
}

func parsePort(v string) (string, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("invalid port: %q", v)
	}
	return v, nil
}
