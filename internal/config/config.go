package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend はデータ永続化と認証を委譲する先を表す。
type Backend string

const (
	// BackendPostgres はPostgreSQLへ直接接続するセルフホスト構成。
	BackendPostgres Backend = "postgres"
	// BackendSupabase はホスト型バックエンド（PostgREST + GoTrue互換API）を利用する構成。
	BackendSupabase Backend = "supabase"
)

// SessionStore はセッションの保存先を表す。
type SessionStore string

const (
	SessionStorePostgres SessionStore = "postgres"
	SessionStoreRedis    SessionStore = "redis"
)

// DuplicateSignaturePolicy は同一メールアドレスによる重複署名の扱いを表す。
type DuplicateSignaturePolicy string

const (
	// DuplicateAllow は重複署名を許可する（従来の挙動）。
	DuplicateAllow DuplicateSignaturePolicy = "allow"
	// DuplicateReject は同じペティションへの同一メールアドレスの再署名を拒否する。
	DuplicateReject DuplicateSignaturePolicy = "reject"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	Backend         Backend
	DatabaseURL     string
	SupabaseURL     string
	SupabaseAnonKey string
	RemoteTimeout   time.Duration

	// Session
	SessionStore           SessionStore
	RedisURL               string
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Rate Limit（req/min）
	RateLimitAuth int
	RateLimitSign int

	// Petition
	DuplicateSignatures DuplicateSignaturePolicy
	CopyNoticeDuration  time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// 必須かどうかはBACKENDとSESSION_STOREの組み合わせで決まる。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.Backend = Backend(getEnvString("BACKEND", string(BackendPostgres)))
	switch cfg.Backend {
	case BackendPostgres, BackendSupabase:
	default:
		return nil, fmt.Errorf("unsupported BACKEND: %q", cfg.Backend)
	}

	cfg.SessionStore = SessionStore(getEnvString("SESSION_STORE", string(SessionStorePostgres)))
	switch cfg.SessionStore {
	case SessionStorePostgres, SessionStoreRedis:
	default:
		return nil, fmt.Errorf("unsupported SESSION_STORE: %q", cfg.SessionStore)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.NeedsDatabase() {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SupabaseURL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	cfg.SupabaseAnonKey = os.Getenv("SUPABASE_ANON_KEY")
	if cfg.Backend == BackendSupabase {
		if cfg.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if cfg.SupabaseAnonKey == "" {
			missing = append(missing, "SUPABASE_ANON_KEY")
		}
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" && cfg.SessionStore == SessionStoreRedis {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.DuplicateSignatures = DuplicateSignaturePolicy(getEnvString("DUPLICATE_SIGNATURES", string(DuplicateAllow)))
	switch cfg.DuplicateSignatures {
	case DuplicateAllow, DuplicateReject:
	default:
		return nil, fmt.Errorf("unsupported DUPLICATE_SIGNATURES: %q", cfg.DuplicateSignatures)
	}

	// Optional fields with defaults
	cfg.RemoteTimeout = getEnvDuration("REMOTE_TIMEOUT", 10*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.RateLimitSign = getEnvInt("RATE_LIMIT_SIGN", 20)
	cfg.CopyNoticeDuration = getEnvDuration("COPY_NOTICE_DURATION", 3*time.Second)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	if err := cfg.validatePositive(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validatePositive は間隔・上限値が正であることを検証する。
// 0以下のティッカー間隔はpanicし、0のレート上限は全リクエストを拒否するため起動時に弾く。
func (c *Config) validatePositive() error {
	var invalid []string
	durations := []struct {
		key string
		val time.Duration
	}{
		{"REMOTE_TIMEOUT", c.RemoteTimeout},
		{"SESSION_CLEANUP_INTERVAL", c.SessionCleanupInterval},
		{"COPY_NOTICE_DURATION", c.CopyNoticeDuration},
	}
	for _, d := range durations {
		if d.val <= 0 {
			invalid = append(invalid, fmt.Sprintf("%s=%v", d.key, d.val))
		}
	}
	ints := []struct {
		key string
		val int
	}{
		{"SESSION_MAX_AGE", c.SessionMaxAge},
		{"RATE_LIMIT_AUTH", c.RateLimitAuth},
		{"RATE_LIMIT_SIGN", c.RateLimitSign},
	}
	for _, i := range ints {
		if i.val <= 0 {
			invalid = append(invalid, fmt.Sprintf("%s=%d", i.key, i.val))
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("environment variables must be positive: %v", invalid)
	}
	return nil
}

// NeedsDatabase はPostgreSQL接続が必要な構成かどうかを返す。
func (c *Config) NeedsDatabase() bool {
	return c.Backend == BackendPostgres || c.SessionStore == SessionStorePostgres
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
