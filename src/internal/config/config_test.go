package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_DSN", "MIGRATIONS_DIR", "HTTP_ADDR", "CHANNEL_ID", "CHANNEL_KEY", "CHANNEL_KEY_HASH",
		"LOG_LEVEL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "LOCK_TIMEOUT", "LOCK_EXPIRY",
		"SCHEDULER_INTERVAL", "SCHEDULER_BATCH_SIZE", "SCHEDULER_WORKERS", "CONFIG_CACHE_TTL", "SEED_FILE",
		"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_IDLE_TIME", "DB_CONN_MAX_LIFETIME",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, defaultChannelID, cfg.ChannelID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseDSN)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, 30*time.Second, cfg.LockExpiry)
	assert.Equal(t, 30*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, 100, cfg.SchedulerBatchSize)
	assert.Equal(t, 4, cfg.SchedulerWorkers)
	assert.Equal(t, 15*time.Second, cfg.ConfigCacheTTL)
	assert.Equal(t, 30, cfg.DBMaxOpenConns)
	assert.Equal(t, 10, cfg.DBMaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.DBConnMaxIdleTime)
	assert.Equal(t, 15*time.Minute, cfg.DBConnMaxLifetime)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CHANNEL_KEY", "  s3cret  ")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("LOCK_EXPIRY", "10s")
	t.Setenv("SCHEDULER_WORKERS", "8")
	t.Setenv("DB_MAX_OPEN_CONNS", "12")
	t.Setenv("DB_MAX_IDLE_CONNS", "6")
	t.Setenv("DB_CONN_MAX_LIFETIME", "1h")
	t.Setenv("DATABASE_DSN", "Host=db;Port=5432;Database=escrow;Username=app;Password=pw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "s3cret", cfg.ChannelKey)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.LockExpiry)
	assert.Equal(t, 8, cfg.SchedulerWorkers)
	assert.Equal(t, 12, cfg.DBMaxOpenConns)
	assert.Equal(t, 6, cfg.DBMaxIdleConns)
	assert.Equal(t, time.Hour, cfg.DBConnMaxLifetime)
	assert.Equal(t, "host=db port=5432 dbname=escrow user=app password=pw sslmode=disable", cfg.DatabaseDSN)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{name: "duration", key: "LOCK_TIMEOUT", value: "soon", want: "LOCK_TIMEOUT must be a duration"},
		{name: "integer", key: "SCHEDULER_BATCH_SIZE", value: "many", want: "SCHEDULER_BATCH_SIZE must be an integer"},
		{name: "expiry shorter than timeout", key: "LOCK_EXPIRY", value: "1s", want: "LOCK_EXPIRY must not be shorter than LOCK_TIMEOUT"},
		{name: "zero workers", key: "SCHEDULER_WORKERS", value: "0", want: "SCHEDULER_WORKERS must be greater than zero"},
		{name: "pool smaller than workers", key: "DB_MAX_OPEN_CONNS", value: "4", want: "DB_MAX_OPEN_CONNS must exceed SCHEDULER_WORKERS"},
		{name: "idle above open", key: "DB_MAX_IDLE_CONNS", value: "31", want: "DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		LockTimeout:        time.Second,
		LockExpiry:         time.Second,
		SchedulerInterval:  time.Second,
		SchedulerBatchSize: 1,
		SchedulerWorkers:   1,
		DBMaxOpenConns:     2,
		DBConnMaxIdleTime:  time.Minute,
		DBConnMaxLifetime:  time.Minute,
	}
	require.NoError(t, valid.Validate())

	negativeTTL := valid
	negativeTTL.ConfigCacheTTL = -time.Second
	assert.EqualError(t, negativeTTL.Validate(), "CONFIG_CACHE_TTL cannot be negative")

	noTimeout := valid
	noTimeout.LockTimeout = 0
	assert.EqualError(t, noTimeout.Validate(), "LOCK_TIMEOUT must be greater than zero")
}

func TestNormalizeConnectionString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "url untouched", raw: "postgres://app:pw@db:5432/escrow", want: "postgres://app:pw@db:5432/escrow"},
		{name: "keeps sslmode", raw: "Host=db;SslMode=require", want: "host=db sslmode=require"},
		{name: "timeouts", raw: "Host=db;Timeout=5;Command Timeout=30", want: "host=db connect_timeout=5 statement_timeout=30s sslmode=disable"},
		{name: "unparseable", raw: "not-a-dsn", want: "not-a-dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeConnectionString(tt.raw))
		})
	}
}
