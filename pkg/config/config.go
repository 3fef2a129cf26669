package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Review   ReviewConfig
	Patterns PatternsConfig
	Sources  SourcesConfig
	Ingest   IngestConfig
	Audit    AuditConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ReviewConfig tunes the suggestion review workflow.
type ReviewConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxBulkSize     int
	GroupCacheTTL   time.Duration
}

// PatternsConfig tunes the pattern learning engine.
type PatternsConfig struct {
	DefaultBoost  float64
	MatchCacheTTL time.Duration
}

// SourcesConfig locates raw correspondence bodies on disk.
type SourcesConfig struct {
	StorageDir string
}

// IngestConfig governs asynchronous source import jobs.
type IngestConfig struct {
	Enabled           bool
	DropDir           string
	WorkerConcurrency int
	WorkerRetries     int
	RecoveryLimit     int
}

// AuditConfig toggles the append-only platform audit trail.
type AuditConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Review = ReviewConfig{
		DefaultPageSize: v.GetInt("REVIEW_DEFAULT_PAGE_SIZE"),
		MaxPageSize:     v.GetInt("REVIEW_MAX_PAGE_SIZE"),
		MaxBulkSize:     v.GetInt("REVIEW_MAX_BULK_SIZE"),
		GroupCacheTTL:   parseDuration(v.GetString("REVIEW_GROUP_CACHE_TTL"), 30*time.Second),
	}

	cfg.Patterns = PatternsConfig{
		DefaultBoost:  v.GetFloat64("PATTERN_DEFAULT_BOOST"),
		MatchCacheTTL: parseDuration(v.GetString("PATTERN_MATCH_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Sources = SourcesConfig{
		StorageDir: v.GetString("SOURCES_STORAGE_DIR"),
	}

	cfg.Ingest = IngestConfig{
		Enabled:           v.GetBool("ENABLE_INGEST_JOBS"),
		DropDir:           v.GetString("INGEST_DROP_DIR"),
		WorkerConcurrency: v.GetInt("INGEST_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("INGEST_WORKER_RETRIES"),
		RecoveryLimit:     v.GetInt("INGEST_RECOVERY_LIMIT"),
	}

	cfg.Audit = AuditConfig{
		Enabled: v.GetBool("ENABLE_AUDIT_TRAIL"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "studio_ops")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REVIEW_DEFAULT_PAGE_SIZE", 20)
	v.SetDefault("REVIEW_MAX_PAGE_SIZE", 100)
	v.SetDefault("REVIEW_MAX_BULK_SIZE", 200)
	v.SetDefault("REVIEW_GROUP_CACHE_TTL", "30s")

	v.SetDefault("PATTERN_DEFAULT_BOOST", 0.1)
	v.SetDefault("PATTERN_MATCH_CACHE_TTL", "5m")

	v.SetDefault("SOURCES_STORAGE_DIR", "./sources")

	v.SetDefault("ENABLE_INGEST_JOBS", true)
	v.SetDefault("INGEST_DROP_DIR", "./imports")
	v.SetDefault("INGEST_WORKER_CONCURRENCY", 1)
	v.SetDefault("INGEST_WORKER_RETRIES", 3)
	v.SetDefault("INGEST_RECOVERY_LIMIT", 50)

	v.SetDefault("ENABLE_AUDIT_TRAIL", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
