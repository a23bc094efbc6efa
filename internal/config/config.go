package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string

	// same-origin API that owns checkout and provider profiles
	BackendURL     string
	HTTPTimeoutSec int

	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string
	PostImageBucket   string
	ImageCacheTTLMin  int

	StripeSecretKey string
	PayoutCountry   string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	SessionCookie     string
	CookieSecure      bool
	WorkspaceTTLHours int

	DefaultLang string
}

func Load() Config {
	return Config{
		AppEnv:   get("APP_ENV", "dev"),
		HTTPAddr: get("HTTP_ADDR", ":8080"),
		LogLevel: get("LOG_LEVEL", "info"),

		DatabaseURL: get("DATABASE_URL", ""),

		RedisAddr:     get("REDIS_ADDR", ""),
		RedisPassword: get("REDIS_PASSWORD", ""),

		BackendURL:     strings.TrimRight(get("BACKEND_URL", "http://localhost:4321"), "/"),
		HTTPTimeoutSec: getInt("HTTP_TIMEOUT_SEC", 15),

		SupabaseURL:       strings.TrimRight(get("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:   get("SUPABASE_ANON_KEY", ""),
		SupabaseJWTSecret: get("SUPABASE_JWT_SECRET", ""),
		PostImageBucket:   get("POST_IMAGE_BUCKET", "post.image"),
		ImageCacheTTLMin:  getInt("IMAGE_CACHE_TTL_MIN", 60),

		StripeSecretKey: get("STRIPE_SECRET_KEY", ""),
		PayoutCountry:   get("PAYOUT_COUNTRY", "US"),

		SMTPHost: get("SMTP_HOST", ""),
		SMTPPort: getInt("SMTP_PORT", 587),
		SMTPUser: get("SMTP_USER", ""),
		SMTPPass: get("SMTP_PASS", ""),
		SMTPFrom: get("SMTP_FROM", ""),

		SessionCookie:     get("SESSION_COOKIE", "sid"),
		CookieSecure:      getBool("COOKIE_SECURE", false),
		WorkspaceTTLHours: getInt("WORKSPACE_TTL_HOURS", 24*7),

		DefaultLang: get("DEFAULT_LANG", "en"),
	}
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
