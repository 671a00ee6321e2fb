// Package config builds the typed application config on top of wbf/config (env + .env file)
package config

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/wb-go/wbf/config"
)

type AppConfig struct {
	Port    string
	GinMode string
	LogLvl  string

	PostgresDSN string

	MinioEndpoint string
	MinioUser     string
	MinioPass     string
	MinioUseSSL   bool
	Bucket        string

	KafkaBroker  string
	KafkaTopic   string
	KafkaGroupID string

	Workers         int
	MaxUploadMB     int
	TemplateCatalog string
	LegacyNaming    bool
}

// Дефолты для пустых/битых значений
const (
	defaultPort      = "8080"
	defaultGinMode   = "release"
	defaultLogLevel  = "info"
	defaultEndpoint  = "minio:9000"
	defaultBucket    = "picdeck"
	defaultTopic     = "batches"
	defaultGroupID   = "picdeck-workers"
	defaultMaxUpload = 64
)

// Getter - то, что нужно от wbf/config; позволяет собирать конфиг в тестах без env
type Getter interface {
	GetString(key string) string
}

// Load reads envs (and ./.env when present) and builds AppConfig from them.
func Load() (*AppConfig, error) {
	cfg := config.New()
	cfg.EnableEnv("")
	if err := cfg.LoadEnvFiles("./.env"); err != nil {
		return nil, err
	}
	return FromGetter(cfg), nil
}

func FromGetter(g Getter) *AppConfig {
	return &AppConfig{
		Port:    stringOr(g, "APP_PORT", defaultPort),
		GinMode: stringOr(g, "GIN_MODE", defaultGinMode),
		LogLvl:  stringOr(g, "LOG_LEVEL", defaultLogLevel),

		PostgresDSN: g.GetString("POSTGRES_DSN"),

		MinioEndpoint: stringOr(g, "MINIO_ENDPOINT", defaultEndpoint),
		MinioUser:     g.GetString("MINIO_USER"),
		MinioPass:     g.GetString("MINIO_PASS"),
		MinioUseSSL:   boolOr(g, "MINIO_USE_SSL", false),
		Bucket:        stringOr(g, "BUCKET_NAME", defaultBucket),

		KafkaBroker:  g.GetString("KAFKA_BROKER"),
		KafkaTopic:   stringOr(g, "KAFKA_TOPIC", defaultTopic),
		KafkaGroupID: stringOr(g, "KAFKA_GROUPID", defaultGroupID),

		Workers:         positiveIntOr(g, "WORKERS", runtime.NumCPU()),
		MaxUploadMB:     positiveIntOr(g, "MAX_UPLOAD_MB", defaultMaxUpload),
		TemplateCatalog: g.GetString("TEMPLATE_CATALOG"),
		LegacyNaming:    boolOr(g, "LEGACY_FIRST_DOT_NAMING", false),
	}
}

func stringOr(g Getter, key, def string) string {
	if v := strings.TrimSpace(g.GetString(key)); v != "" {
		return v
	}
	return def
}

func positiveIntOr(g Getter, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(g.GetString(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func boolOr(g Getter, key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(g.GetString(key)))
	if err != nil {
		return def
	}
	return v
}
