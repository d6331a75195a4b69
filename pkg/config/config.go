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
	Storage  StorageConfig
	AI       AIConfig
	Indexer  IndexerConfig
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
	Enabled  bool
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects and configures the file storage backend.
type StorageConfig struct {
	Backend          string // "local" or "s3"
	LocalDir         string
	S3Bucket         string
	S3Region         string
	AWSAccessKey     string
	AWSSecretKey     string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
}

// AIConfig governs the Gemini completion client and answer caching.
type AIConfig struct {
	Enabled        bool
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	CacheTTL       time.Duration
}

// IndexerConfig tunes the background document indexing queue.
type IndexerConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
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
		Enabled:  v.GetBool("REDIS_ENABLED"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUploadSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 20 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Backend:          v.GetString("STORAGE_BACKEND"),
		LocalDir:         v.GetString("STORAGE_LOCAL_DIR"),
		S3Bucket:         v.GetString("AWS_S3_BUCKET"),
		S3Region:         v.GetString("AWS_REGION"),
		AWSAccessKey:     v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:     v.GetString("AWS_SECRET_ACCESS_KEY"),
		MaxFileSizeBytes: maxUploadSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
	}

	cfg.AI = AIConfig{
		Enabled:        v.GetBool("AI_ENABLED"),
		APIKey:         v.GetString("GEMINI_API_KEY"),
		Model:          v.GetString("GEMINI_MODEL"),
		RequestTimeout: parseDuration(v.GetString("AI_REQUEST_TIMEOUT"), 30*time.Second),
		CacheTTL:       parseDuration(v.GetString("AI_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Indexer = IndexerConfig{
		Workers:    v.GetInt("INDEXER_WORKERS"),
		MaxRetries: v.GetInt("INDEXER_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("INDEXER_RETRY_DELAY"), time.Second),
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
	v.SetDefault("DB_NAME", "sheriapal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_ENABLED", false)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "sheriapal-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 20*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "application/pdf,text/plain,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_download_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")

	v.SetDefault("AI_ENABLED", false)
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("AI_REQUEST_TIMEOUT", "30s")
	v.SetDefault("AI_CACHE_TTL", "10m")

	v.SetDefault("INDEXER_WORKERS", 2)
	v.SetDefault("INDEXER_MAX_RETRIES", 3)
	v.SetDefault("INDEXER_RETRY_DELAY", "1s")
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
