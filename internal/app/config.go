package app

import (
	"strings"
	"time"

	"github.com/yungbote/markbook-backend/internal/observability"
	"github.com/yungbote/markbook-backend/internal/platform/envutil"
	"github.com/yungbote/markbook-backend/internal/services"
)

type StorageConfig struct {
	Mode string

	// gcs / gcs_emulator
	Bucket              string
	CDNDomain           string
	ObjectPublicBaseURL string
	EmulatorHost        string

	// redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// postgres / sqlite
	DatabaseDSN string
}

type Config struct {
	Port            string
	LogMode         string
	Environment     string
	Version         string
	PublicBaseURL   string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration

	Storage  StorageConfig
	Snapshot services.SnapshotGatewayConfig

	SettingsPath string
	ChartFont    string

	Otel        observability.OtelConfig
	Metrics     observability.MetricsConfig
	MetricsAddr string
}

func LoadConfig() Config {
	port := envutil.String("PORT", "8080")
	return Config{
		Port:            port,
		LogMode:         envutil.String("LOG_MODE", "development"),
		Environment:     envutil.String("APP_ENV", "development"),
		Version:         envutil.String("APP_VERSION", "dev"),
		PublicBaseURL:   strings.TrimRight(envutil.String("MARKBOOK_PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		AllowedOrigins:  envutil.List("CORS_ALLOWED_ORIGINS"),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Storage: StorageConfig{
			Mode:                envutil.String("MARKBOOK_STORAGE_MODE", ""),
			Bucket:              envutil.String("MARKBOOK_GCS_BUCKET_NAME", ""),
			CDNDomain:           envutil.String("MARKBOOK_CDN_DOMAIN", ""),
			ObjectPublicBaseURL: envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""),
			EmulatorHost:        envutil.String("STORAGE_EMULATOR_HOST", ""),
			RedisAddr:           envutil.String("REDIS_ADDR", ""),
			RedisPassword:       envutil.String("REDIS_PASSWORD", ""),
			RedisDB:             envutil.Int("REDIS_DB", 0),
			DatabaseDSN:         envutil.String("MARKBOOK_DATABASE_DSN", ""),
		},
		Snapshot: services.SnapshotGatewayConfig{
			Prefix:    envutil.String("MARKBOOK_BLOB_PREFIX", services.DefaultBlobPrefix),
			ListLimit: envutil.Int("MARKBOOK_LIST_LIMIT", services.DefaultListLimit),
		},
		SettingsPath: envutil.String("MARKBOOK_SETTINGS_YAML", ""),
		ChartFont:    envutil.String("CHART_FONT", ""),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "markbook"),
			Environment: envutil.String("APP_ENV", "development"),
			Version:     envutil.String("APP_VERSION", "dev"),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 0.1),
		},
		Metrics: observability.MetricsConfig{
			Enabled:        envutil.Bool("METRICS_ENABLED", false),
			ScrapeInterval: envutil.Duration("METRICS_SCRAPE_INTERVAL", 10*time.Second),
		},
		MetricsAddr: envutil.String("METRICS_ADDR", ":9090"),
	}
}

// BlobBaseURL is where backends without public URLs are served from.
func (c Config) BlobBaseURL() string {
	return c.PublicBaseURL + "/api/markbook/blob"
}
