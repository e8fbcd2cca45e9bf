package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Admin    AdminConfig
	Alert    AlertConfig
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type AuthConfig struct {
	JWTSecret        string
	RetiredSecrets   []string
	Issuer           string
	AccessTTL        string
	RefreshTTL       string
	AllowSignup      string
	MaxHashWorkers   string
	LoginMaxAttempts string
	LoginCooldown    string
	StoreTimeout     string
}

type AdminConfig struct {
	Email    string
	Password string
}

type AlertConfig struct {
	WebhookURL string
	Token      string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Addr:           getenv("HTTP_ADDR", ":8080"),
			AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Auth: AuthConfig{
			JWTSecret:        os.Getenv("JWT_SECRET"),
			RetiredSecrets:   splitList(os.Getenv("JWT_RETIRED_SECRETS")),
			Issuer:           getenv("JWT_ISSUER", "eduportal"),
			AccessTTL:        getenv("JWT_ACCESS_TTL", "30m"),
			RefreshTTL:       getenv("JWT_REFRESH_TTL", "336h"),
			AllowSignup:      getenv("ALLOW_SIGNUP", "true"),
			MaxHashWorkers:   getenv("AUTH_MAX_HASH_WORKERS", "4"),
			LoginMaxAttempts: getenv("AUTH_LOGIN_MAX_ATTEMPTS", "10"),
			LoginCooldown:    getenv("AUTH_LOGIN_COOLDOWN", "5m"),
			StoreTimeout:     getenv("AUTH_STORE_TIMEOUT", "5s"),
		},
		Admin: AdminConfig{
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
		Alert: AlertConfig{
			WebhookURL: os.Getenv("SECURITY_ALERT_WEBHOOK_URL"),
			Token:      os.Getenv("SECURITY_ALERT_TOKEN"),
		},
	}
}

func (c AuthConfig) ParseDurations() (access, refresh time.Duration, err error) {
	access, err = time.ParseDuration(c.AccessTTL)
	if err != nil {
		return 0, 0, err
	}
	refresh, err = time.ParseDuration(c.RefreshTTL)
	if err != nil {
		return 0, 0, err
	}
	return access, refresh, nil
}

func ParseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func ParseInt(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
