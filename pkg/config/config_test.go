package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "environment: test\ndatafeed:\n  data_dir: /srv/data\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 8000, c.Server.Port)
	assert.Equal(t, BackendFile, c.Datafeed.Backend)
	assert.Equal(t, "/srv/data/registry.json", c.RegistryPath())
	assert.Equal(t, "info", c.Log.Level)
}

func TestValidate(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\ndatafeed:\n  backend: clickhouse\n"))
	assert.ErrorContains(t, err, "clickhouse.host is required")

	_, err = Load(writeConfig(t, "environment: test\ndatafeed:\n  backend: sqlite\n"))
	assert.ErrorContains(t, err, "datafeed.backend must be")

	_, err = Load(writeConfig(t, "environment: test\nkafka:\n  enabled: true\n  brokers: []\n"))
	assert.ErrorContains(t, err, "kafka.brokers")
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"CHARTFEED_PORT":          "9001",
		"CHARTFEED_CACHE_TTL":     "5m",
		"CHARTFEED_KAFKA_BROKERS": "k1:9092,k2:9092",
		"CHARTFEED_REDIS_HOST":    "redis",
		"CHARTFEED_RATE_LIMIT":    "true",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, 9001, c.Server.Port)
	assert.Equal(t, 5*time.Minute, c.Datafeed.Cache.TTL)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Datafeed.Cache.Redis.Enabled)
	assert.True(t, c.RateLimit.Enabled)
	assert.NoError(t, c.Validate())
}

func TestShippedConfigIsValid(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "data/shapes.db", c.Shapes.DBPath)
	assert.Equal(t, 600, c.Server.CORS.MaxAge)
}
