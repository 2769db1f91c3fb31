package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	AI       AIConfig       `mapstructure:"ai"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Clamd    ClamdConfig    `mapstructure:"clamd"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port               int    `mapstructure:"port"`
	AllowedOrigins     string `mapstructure:"allowed_origins"`
	AIRateLimitPerHour int    `mapstructure:"ai_rate_limit_per_hour"`
}

// Origins splits the comma-separated allowed origins list. Empty means
// same-host only for websockets and wildcard CORS for plain HTTP.
func (a APIConfig) Origins() []string {
	parts := strings.Split(a.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
// The platform uses three buckets: avatars, company logos and resume documents.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
	AvatarsBucket    string `mapstructure:"avatars_bucket"`
	LogosBucket      string `mapstructure:"logos_bucket"`
	ResumesBucket    string `mapstructure:"resumes_bucket"`
}

// Buckets lists every configured bucket in ensure order.
func (m MinIOConfig) Buckets() []string {
	return []string{m.AvatarsBucket, m.LogosBucket, m.ResumesBucket}
}

// AuthConfig contains JWT key material locations and token/lockout policy.
type AuthConfig struct {
	PrivateKeyPath        string `mapstructure:"private_key_path"`
	PublicKeyPath         string `mapstructure:"public_key_path"`
	AccessTTLMinutes      int    `mapstructure:"access_ttl_minutes"`
	RefreshTTLHours       int    `mapstructure:"refresh_ttl_hours"`
	LoginRateLimitPerHour int    `mapstructure:"login_rate_limit_per_hour"`
	LoginLockThreshold    int    `mapstructure:"login_lock_threshold"`
	LoginLockMinutes      int    `mapstructure:"login_lock_minutes"`
	CookieDomain          string `mapstructure:"cookie_domain"`
}

// AccessTTL returns the access token lifetime as a duration.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTTLMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime as a duration.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTTLHours) * time.Hour
}

// LoginLockTTL returns how long a locked account stays locked.
func (a AuthConfig) LoginLockTTL() time.Duration {
	return time.Duration(a.LoginLockMinutes) * time.Minute
}

// GitHubConfig points at the public GitHub REST API (overridable in tests).
type GitHubConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// AIConfig contains the generative backend credentials and model selection.
type AIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// WorkerConfig contains settings for the asynq worker and its callbacks into the API.
type WorkerConfig struct {
	Concurrency        int    `mapstructure:"concurrency"`
	InternalSecret     string `mapstructure:"internal_secret"`
	InternalAPIBaseURL string `mapstructure:"internal_api_base_url"`
}

// ClamdConfig contains the clamd scanner address. Empty disables scanning.
type ClamdConfig struct {
	Addr string `mapstructure:"addr"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowed_origins", "")
	v.SetDefault("api.ai_rate_limit_per_hour", 20)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "talentbridge")
	v.SetDefault("database.user", "talentbridge")
	v.SetDefault("database.password", "talentbridge")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("minio.avatars_bucket", "avatars")
	v.SetDefault("minio.logos_bucket", "company-logos")
	v.SetDefault("minio.resumes_bucket", "resumes")
	v.SetDefault("auth.private_key_path", "keys/jwt_private.pem")
	v.SetDefault("auth.public_key_path", "keys/jwt_public.pem")
	v.SetDefault("auth.access_ttl_minutes", 15)
	v.SetDefault("auth.refresh_ttl_hours", 168)
	v.SetDefault("auth.login_rate_limit_per_hour", 10)
	v.SetDefault("auth.login_lock_threshold", 5)
	v.SetDefault("auth.login_lock_minutes", 15)
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.internal_api_base_url", "http://localhost:8080")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                       "API_PORT",
		"api.allowed_origins":            "API_ALLOWED_ORIGINS",
		"api.ai_rate_limit_per_hour":     "AI_RATE_LIMIT_PER_HOUR",
		"database.host":                  "DATABASE_HOST",
		"database.port":                  "DATABASE_PORT",
		"database.name":                  "POSTGRES_DB",
		"database.user":                  "POSTGRES_USER",
		"database.password":              "POSTGRES_PASSWORD",
		"database.sslmode":               "DATABASE_SSLMODE",
		"redis.host":                     "REDIS_HOST",
		"redis.port":                     "REDIS_PORT",
		"minio.endpoint":                 "MINIO_ENDPOINT",
		"minio.public_endpoint":          "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":            "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":        "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                  "MINIO_USE_SSL",
		"minio.region":                   "MINIO_REGION",
		"minio.bucket_lookup":            "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":       "MINIO_AUTO_CREATE_BUCKET",
		"minio.avatars_bucket":           "MINIO_AVATARS_BUCKET",
		"minio.logos_bucket":             "MINIO_LOGOS_BUCKET",
		"minio.resumes_bucket":           "MINIO_RESUMES_BUCKET",
		"auth.private_key_path":          "AUTH_PRIVATE_KEY_PATH",
		"auth.public_key_path":           "AUTH_PUBLIC_KEY_PATH",
		"auth.access_ttl_minutes":        "AUTH_ACCESS_TTL_MINUTES",
		"auth.refresh_ttl_hours":         "AUTH_REFRESH_TTL_HOURS",
		"auth.login_rate_limit_per_hour": "AUTH_LOGIN_RATE_LIMIT_PER_HOUR",
		"auth.login_lock_threshold":      "AUTH_LOGIN_LOCK_THRESHOLD",
		"auth.login_lock_minutes":        "AUTH_LOGIN_LOCK_MINUTES",
		"auth.cookie_domain":             "AUTH_COOKIE_DOMAIN",
		"github.base_url":                "GITHUB_API_BASE_URL",
		"ai.api_key":                     "GEMINI_API_KEY",
		"ai.base_url":                    "GEMINI_API_BASE_URL",
		"ai.model":                       "GEMINI_MODEL",
		"worker.concurrency":             "WORKER_CONCURRENCY",
		"worker.internal_secret":         "INTERNAL_API_SECRET",
		"worker.internal_api_base_url":   "INTERNAL_API_BASE_URL",
		"clamd.addr":                     "CLAMD_ADDR",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.PublicEndpoint == "" {
		return errors.New("minio public endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.AvatarsBucket == "" || cfg.MinIO.LogosBucket == "" || cfg.MinIO.ResumesBucket == "" {
		return errors.New("minio buckets are required")
	}
	if cfg.Auth.AccessTTLMinutes <= 0 {
		return errors.New("auth access ttl must be positive")
	}
	if cfg.Auth.RefreshTTLHours <= 0 {
		return errors.New("auth refresh ttl must be positive")
	}
	if cfg.GitHub.BaseURL == "" {
		return errors.New("github base url is required")
	}
	if cfg.AI.BaseURL == "" {
		return errors.New("ai base url is required")
	}
	if cfg.AI.Model == "" {
		return errors.New("ai model is required")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	return nil
}
