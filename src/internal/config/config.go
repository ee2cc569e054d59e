package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultChannelID = "EscrowApp"
const defaultHTTPAddr = ":8080"

type Config struct {
	DatabaseDSN        string
	MigrationsDir      string
	HTTPAddr           string
	ChannelID          string
	ChannelKey         string
	ChannelKeyHash     string
	LogLevel           string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	LockTimeout        time.Duration
	LockExpiry         time.Duration
	SchedulerInterval  time.Duration
	SchedulerBatchSize int
	SchedulerWorkers   int
	ConfigCacheTTL     time.Duration
	SeedFile           string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxIdleTime  time.Duration
	DBConnMaxLifetime  time.Duration
}

// Load reads configuration from the environment, after merging an optional
// .env file. Variables already set in the environment win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		MigrationsDir:  envOr("MIGRATIONS_DIR", filepath.Join("src", "migrations")),
		HTTPAddr:       envOr("HTTP_ADDR", defaultHTTPAddr),
		ChannelID:      envOr("CHANNEL_ID", defaultChannelID),
		ChannelKey:     strings.TrimSpace(os.Getenv("CHANNEL_KEY")),
		ChannelKeyHash: strings.TrimSpace(os.Getenv("CHANNEL_KEY_HASH")),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		RedisAddr:      strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		SeedFile:       strings.TrimSpace(os.Getenv("SEED_FILE")),
	}

	if conn := strings.TrimSpace(os.Getenv("DATABASE_DSN")); conn != "" {
		cfg.DatabaseDSN = normalizeConnectionString(conn)
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = durationEnv("LOCK_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.LockExpiry, err = durationEnv("LOCK_EXPIRY", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerInterval, err = durationEnv("SCHEDULER_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerBatchSize, err = intEnv("SCHEDULER_BATCH_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerWorkers, err = intEnv("SCHEDULER_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.ConfigCacheTTL, err = durationEnv("CONFIG_CACHE_TTL", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxOpenConns, err = intEnv("DB_MAX_OPEN_CONNS", 30); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxIdleConns, err = intEnv("DB_MAX_IDLE_CONNS", 10); err != nil {
		return Config{}, err
	}
	if cfg.DBConnMaxIdleTime, err = durationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.DBConnMaxLifetime, err = durationEnv("DB_CONN_MAX_LIFETIME", 15*time.Minute); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.LockTimeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT must be greater than zero")
	}
	if c.LockExpiry < c.LockTimeout {
		return fmt.Errorf("LOCK_EXPIRY must not be shorter than LOCK_TIMEOUT")
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be greater than zero")
	}
	if c.SchedulerBatchSize <= 0 {
		return fmt.Errorf("SCHEDULER_BATCH_SIZE must be greater than zero")
	}
	if c.SchedulerWorkers <= 0 {
		return fmt.Errorf("SCHEDULER_WORKERS must be greater than zero")
	}
	if c.ConfigCacheTTL < 0 {
		return fmt.Errorf("CONFIG_CACHE_TTL cannot be negative")
	}
	// Each scheduler worker pins a connection for its release, and the
	// HTTP handlers need at least one left over.
	if c.DBMaxOpenConns <= c.SchedulerWorkers {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must exceed SCHEDULER_WORKERS")
	}
	if c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS")
	}
	if c.DBConnMaxIdleTime <= 0 || c.DBConnMaxLifetime <= 0 {
		return fmt.Errorf("DB_CONN_MAX_IDLE_TIME and DB_CONN_MAX_LIFETIME must be greater than zero")
	}
	return nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return value, nil
}

// normalizeConnectionString accepts both libpq key=value DSNs and the
// semicolon separated "Host=...;Port=..." form.
func normalizeConnectionString(raw string) string {
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		return raw
	}

	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	hasSSLMode := false

	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}

		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])

		switch key {
		case "host":
			out = append(out, "host="+val)
		case "port":
			out = append(out, "port="+val)
		case "database":
			out = append(out, "dbname="+val)
		case "username":
			out = append(out, "user="+val)
		case "password":
			out = append(out, "password="+val)
		case "timeout", "connect timeout":
			out = append(out, "connect_timeout="+val)
		case "commandtimeout", "command timeout":
			out = append(out, "statement_timeout="+val+"s")
		case "sslmode":
			hasSSLMode = true
			out = append(out, "sslmode="+val)
		default:
			out = append(out, key+"="+val)
		}
	}

	if len(out) == 0 {
		return raw
	}

	if !hasSSLMode {
		out = append(out, "sslmode=disable")
	}

	return strings.Join(out, " ")
}
