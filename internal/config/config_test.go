package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":50051", cfg.GRPC.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 10, cfg.Workers.Count)
	assert.Equal(t, 10000, cfg.Workers.QueueSize)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OMS_HTTP_ADDR", ":9090")
	t.Setenv("OMS_CACHE_DRIVER", "redis")
	t.Setenv("OMS_WORKERS_COUNT", "3")
	t.Setenv("OMS_SESSION_IDLE_TTL", "90s")
	t.Setenv("OMS_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, 3, cfg.Workers.Count)
	assert.Equal(t, 90*time.Second, cfg.Session.IdleTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("storage:\n  driver: mysql\nworkers:\n  queue_size: 42\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Storage.Driver)
	assert.Equal(t, 42, cfg.Workers.QueueSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Workers.Count)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("OMS_STORAGE_DRIVER", "postgres")
	t.Setenv("OMS_WORKERS_COUNT", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
	assert.Contains(t, err.Error(), "workers.count")
}
