package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 100, cfg.CascadePageSize)
	assert.Equal(t, 60*time.Second, cfg.SinkRetryMaxElapsed)
	assert.Equal(t, "fern:watermark:", cfg.WatermarkKeyPrefix)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.ElasticAddresses)

	kinds, err := cfg.Kinds()
	require.NoError(t, err)
	assert.Equal(t, []models.Kind{models.KindMovies, models.KindPersons, models.KindGenres}, kinds)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BATCH_SIZE", "250")
	t.Setenv("SCHEDULER_KINDS", "genres, movies")
	t.Setenv("SOURCE_RETRY_MAX_ELAPSED", "5s")
	t.Setenv("DB_TABLE_PREFIX", "")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.BatchSize)
	kinds, err := cfg.Kinds()
	require.NoError(t, err)
	assert.Equal(t, []models.Kind{models.KindGenres, models.KindMovies}, kinds)

	opts := cfg.Extractor()
	assert.Equal(t, 5*time.Second, opts.Retry.MaxElapsedTime)
	assert.Equal(t, 100, opts.PageSize)
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FERN_TEST_UNUSED=1\nKAFKA_TOPIC=catalog.sync\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("FERN_TEST_UNUSED")
		os.Unsetenv("KAFKA_TOPIC")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "catalog.sync", cfg.Kafka().Topic)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero batch size", env: map[string]string{"BATCH_SIZE": "0"}},
		{name: "zero source retry budget", env: map[string]string{"SOURCE_RETRY_MAX_ELAPSED": "0s"}},
		{name: "negative sink retry budget", env: map[string]string{"SINK_RETRY_MAX_ELAPSED": "-1s"}},
		{name: "unknown scheduler kind", env: map[string]string{"SCHEDULER_KINDS": "movies,studios"}},
		{name: "auth without issuer", env: map[string]string{"AUTH_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(missingEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestOTLP_DisabledHasNoEndpoint(t *testing.T) {
	cfg := &Config{OTLPEndpoint: "collector:4317"}
	assert.Empty(t, cfg.OTLP().Endpoint)

	cfg.OTLPEnabled = true
	assert.Equal(t, "collector:4317", cfg.OTLP().Endpoint)
}
