package config

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

type mapGetter map[string]string

func (m mapGetter) GetString(key string) string {
	return m[key]
}

func TestFromGetter_Defaults(t *testing.T) {
	cfg := FromGetter(mapGetter{})

	require.Equal(t, defaultPort, cfg.Port)
	require.Equal(t, defaultGinMode, cfg.GinMode)
	require.Equal(t, defaultLogLevel, cfg.LogLvl)
	require.Equal(t, defaultBucket, cfg.Bucket)
	require.Equal(t, defaultTopic, cfg.KafkaTopic)
	require.Equal(t, runtime.NumCPU(), cfg.Workers)
	require.Equal(t, defaultMaxUpload, cfg.MaxUploadMB)
	require.False(t, cfg.MinioUseSSL)
	require.False(t, cfg.LegacyNaming)
}

func TestFromGetter_Values(t *testing.T) {
	cfg := FromGetter(mapGetter{
		"APP_PORT":                "9090",
		"POSTGRES_DSN":            "postgres://u:p@db:5432/picdeck?sslmode=disable",
		"MINIO_USE_SSL":           "true",
		"WORKERS":                 "3",
		"MAX_UPLOAD_MB":           "-5",
		"LEGACY_FIRST_DOT_NAMING": "1",
		"TEMPLATE_CATALOG":        "/etc/picdeck/catalog.toml",
	})

	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "postgres://u:p@db:5432/picdeck?sslmode=disable", cfg.PostgresDSN)
	require.True(t, cfg.MinioUseSSL)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, defaultMaxUpload, cfg.MaxUploadMB)
	require.True(t, cfg.LegacyNaming)
	require.Equal(t, "/etc/picdeck/catalog.toml", cfg.TemplateCatalog)
}
