package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Blob storage drivers.
const (
	BlobDriverLocal = "local"
	BlobDriverS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Docs      bool

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Blob      BlobConfig
	Artifacts ArtifactsConfig
	Hierarchy HierarchyConfig
	Directory DirectoryConfig
	Cleanup   CleanupConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BlobConfig selects and configures the artifact blob store.
type BlobConfig struct {
	Driver   string
	LocalDir string
	Timeout  time.Duration
	S3       S3Config
}

// S3Config targets any S3 compatible endpoint (R2, MinIO, AWS).
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// ArtifactsConfig bounds staged uploads.
type ArtifactsConfig struct {
	MaxPageBytes         int64
	MaxAdditionalBytes   int64
	AdditionalExtensions []string
}

// HierarchyConfig tunes tree loading.
type HierarchyConfig struct {
	CacheTTL time.Duration
	MaxDepth int
}

// DirectoryConfig governs user identity lookups used during conflict enrichment.
type DirectoryConfig struct {
	Timeout          time.Duration
	PositionPrefixes []string
	UnknownPosition  string
}

// CleanupConfig sizes the worker queue that removes superseded pending blobs.
type CleanupConfig struct {
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Docs = v.GetBool("ENABLE_DOCS")

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
		Enabled:  v.GetBool("ENABLE_CACHE"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Blob = BlobConfig{
		Driver:   strings.ToLower(v.GetString("BLOB_DRIVER")),
		LocalDir: v.GetString("BLOB_LOCAL_DIR"),
		Timeout:  parseDuration(v.GetString("BLOB_TIMEOUT"), 30*time.Second),
		S3: S3Config{
			Endpoint:  v.GetString("S3_ENDPOINT"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
			Bucket:    v.GetString("S3_BUCKET"),
			Region:    v.GetString("S3_REGION"),
			UseSSL:    v.GetBool("S3_USE_SSL"),
		},
	}

	maxPage := v.GetInt64("ARTIFACT_MAX_PAGE_BYTES")
	if maxPage <= 0 {
		maxPage = 100 * 1024 * 1024
	}
	maxAdditional := v.GetInt64("ARTIFACT_MAX_ADDITIONAL_BYTES")
	if maxAdditional <= 0 {
		maxAdditional = 500 * 1024 * 1024
	}
	cfg.Artifacts = ArtifactsConfig{
		MaxPageBytes:         maxPage,
		MaxAdditionalBytes:   maxAdditional,
		AdditionalExtensions: splitAndTrim(v.GetString("ARTIFACT_ADDITIONAL_EXTENSIONS")),
	}

	maxDepth := v.GetInt("HIERARCHY_MAX_DEPTH")
	if maxDepth <= 0 {
		maxDepth = 32
	}
	cfg.Hierarchy = HierarchyConfig{
		CacheTTL: parseDuration(v.GetString("HIERARCHY_CACHE_TTL"), time.Minute),
		MaxDepth: maxDepth,
	}

	cfg.Directory = DirectoryConfig{
		Timeout:          parseDuration(v.GetString("DIRECTORY_TIMEOUT"), 2*time.Second),
		PositionPrefixes: splitAndTrim(v.GetString("DIRECTORY_POSITION_PREFIXES")),
		UnknownPosition:  v.GetString("DIRECTORY_UNKNOWN_POSITION"),
	}

	cfg.Cleanup = CleanupConfig{
		Workers:    v.GetInt("CLEANUP_WORKERS"),
		MaxRetries: v.GetInt("CLEANUP_RETRIES"),
		RetryDelay: parseDuration(v.GetString("CLEANUP_RETRY_DELAY"), 5*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("ENABLE_DOCS", true)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "content_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BLOB_DRIVER", BlobDriverLocal)
	v.SetDefault("BLOB_LOCAL_DIR", "./blobs")
	v.SetDefault("BLOB_TIMEOUT", "30s")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_BUCKET", "content-artifacts")
	v.SetDefault("S3_REGION", "auto")
	v.SetDefault("S3_USE_SSL", true)

	v.SetDefault("ARTIFACT_MAX_PAGE_BYTES", 100*1024*1024)
	v.SetDefault("ARTIFACT_MAX_ADDITIONAL_BYTES", 500*1024*1024)
	v.SetDefault("ARTIFACT_ADDITIONAL_EXTENSIONS", ".mp4,.avi,.mkv,.mov,.webm,.asf,.pdf,.png,.bmp,.jpg,.jpeg,.gif")

	v.SetDefault("HIERARCHY_CACHE_TTL", "1m")
	v.SetDefault("HIERARCHY_MAX_DEPTH", 32)

	v.SetDefault("DIRECTORY_TIMEOUT", "2s")
	v.SetDefault("DIRECTORY_POSITION_PREFIXES", "연구원,선임,책임,수석,대리,과장,차장,부장")
	v.SetDefault("DIRECTORY_UNKNOWN_POSITION", "미지정")

	v.SetDefault("CLEANUP_WORKERS", 1)
	v.SetDefault("CLEANUP_RETRIES", 3)
	v.SetDefault("CLEANUP_RETRY_DELAY", "5s")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
