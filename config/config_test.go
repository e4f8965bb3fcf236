package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Reservation.HoldTTL)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 1440, cfg.Reservation.MaxDurationMinutes)
}

func TestLoadConfig_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
http:
  address: ":9000"
database:
  driver: postgres
  host: db
  port: 5433
cache:
  backend: redis
  ttl: 45s
worker:
  sweep_interval: 30s
kafka:
  enabled: true
  brokers: ["kafka:9092"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Address)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 45*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 30*time.Second, cfg.Worker.SweepInterval)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "parking", cfg.Database.User, "untouched keys keep defaults")
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db
`)
	t.Setenv("PARKING_DATABASE_HOST", "pg.internal")
	t.Setenv("PARKING_RESERVATION_HOLD_TTL", "5m")
	t.Setenv("PARKING_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "pg.internal", cfg.Database.Host)
	assert.Equal(t, 5*time.Minute, cfg.Reservation.HoldTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "http: ["))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "database:\n  driver: mysql\n"))
	assert.ErrorContains(t, err, "database.driver")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"zero hold ttl", func(c *Config) { c.Reservation.HoldTTL = 0 }},
		{"zero cache ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"zero sweep interval", func(c *Config) { c.Worker.SweepInterval = 0 }},
		{"zero batch", func(c *Config) { c.Worker.SweepBatchSize = 0 }},
		{"zero max duration", func(c *Config) { c.Reservation.MaxDurationMinutes = 0 }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
		{"lock keys inside cache prefix", func(c *Config) { c.Lock.Distributed = true; c.Lock.Prefix = c.Cache.Prefix }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Name: "n", SSLMode: "disable", MaxConns: 4}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=n sslmode=disable pool_max_conns=4", d.DSN())
}

func TestConfig_Warnings(t *testing.T) {
	cfg := Default()
	cfg.Worker.Embedded = true
	assert.Empty(t, cfg.Warnings())

	// отдельный воркер с памятью вместо общих хранилищ
	cfg.Worker.Embedded = false
	warnings := cfg.Warnings()
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "memory database")
	assert.Contains(t, warnings[1], "memory cache")

	cfg.Database.Driver = DriverPostgres
	cfg.Cache.Backend = CacheBackendRedis
	assert.Empty(t, cfg.Warnings())
}

func TestDefault_LockPrefixOutsideCache(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "parking-lock:", cfg.Lock.Prefix)
	assert.NotContains(t, cfg.Lock.Prefix, cfg.Cache.Prefix)
}
