package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "soundpost"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Media        MediaConfig
	Tools        ToolsConfig
	OpenAI       OpenAIConfig
	GCS          GCSConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DB.DSN == "" && !cfg.FeatureFlags.UseSQLite {
		return nil, fmt.Errorf("database DSN is required unless sqlite mode is enabled")
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SOUNDPOST_APP_ENV" default:"dev"`
	Port         string `envconfig:"SOUNDPOST_APP_PORT" default:"8000"`
	LogLevel     string `envconfig:"SOUNDPOST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOUNDPOST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SOUNDPOST_DB_DSN"`
	Driver string `envconfig:"SOUNDPOST_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"SOUNDPOST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOUNDPOST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOUNDPOST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOUNDPOST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOUNDPOST_REDIS_URL"`
	PoolSize     int           `envconfig:"SOUNDPOST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOUNDPOST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOUNDPOST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOUNDPOST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOUNDPOST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SOUNDPOST_JWT_SECRET" default:"dev-secret"`
	Issuer            string `envconfig:"SOUNDPOST_JWT_ISSUER" default:"soundpost"`
	ExpirationMinutes int    `envconfig:"SOUNDPOST_JWT_EXPIRATION_MINUTES" default:"1440"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SOUNDPOST_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SOUNDPOST_AUTO_MIGRATE" default:"false"`
}

type MediaConfig struct {
	RootDir          string `envconfig:"SOUNDPOST_MEDIA_ROOT" default:"media"`
	MaxUploadMB      int    `envconfig:"SOUNDPOST_MAX_UPLOAD_MB" default:"200"`
	AnonymousUserID  uint   `envconfig:"SOUNDPOST_ANONYMOUS_USER_ID" default:"2"`
	StreamBufferSize int    `envconfig:"SOUNDPOST_STREAM_BUFFER_KB" default:"64"`
}

// MaxUploadBytes converts the configured upload ceiling to bytes.
func (m MediaConfig) MaxUploadBytes() int64 {
	return int64(m.MaxUploadMB) * 1024 * 1024
}

// StreamBufferBytes converts the configured copy buffer size to bytes,
// falling back to 64 KiB when unset.
func (m MediaConfig) StreamBufferBytes() int {
	if m.StreamBufferSize <= 0 {
		return 64 * 1024
	}
	return m.StreamBufferSize * 1024
}

type ToolsConfig struct {
	FFmpegBin  string `envconfig:"SOUNDPOST_FFMPEG_BIN" default:"ffmpeg"`
	FFprobeBin string `envconfig:"SOUNDPOST_FFPROBE_BIN" default:"ffprobe"`
}

type OpenAIConfig struct {
	APIKey  string        `envconfig:"SOUNDPOST_OPENAI_API_KEY"`
	Model   string        `envconfig:"SOUNDPOST_OPENAI_WHISPER_MODEL" default:"whisper-1"`
	BaseURL string        `envconfig:"SOUNDPOST_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Timeout time.Duration `envconfig:"SOUNDPOST_OPENAI_TIMEOUT" default:"5m"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"SOUNDPOST_GCS_BUCKET_NAME"`
	CredentialsJSON   string        `envconfig:"SOUNDPOST_GCP_CREDENTIALS_JSON"`
	UploadURLExpiry   time.Duration `envconfig:"SOUNDPOST_GCS_UPLOAD_URL_EXPIRY" default:"5m"`
	DownloadURLExpiry time.Duration `envconfig:"SOUNDPOST_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

func (g GCSConfig) Enabled() bool {
	return g.BucketName != ""
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"SOUNDPOST_CRON_INTERVAL" default:"24h"`
	OrphanRetention   time.Duration `envconfig:"SOUNDPOST_CRON_ORPHAN_RETENTION" default:"168h"`
	TempFileRetention time.Duration `envconfig:"SOUNDPOST_CRON_TEMP_RETENTION" default:"24h"`
	LockKey           string        `envconfig:"SOUNDPOST_CRON_LOCK_KEY" default:"soundpost:cron:lock"`
	LockTTL           time.Duration `envconfig:"SOUNDPOST_CRON_LOCK_TTL" default:"25h"`
}
