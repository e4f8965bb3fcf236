package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. PARKING_DATABASE_HOST.
const EnvPrefix = "PARKING"

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	GRPC        GRPCConfig        `yaml:"grpc"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Reservation ReservationConfig `yaml:"reservation"`
	Cache       CacheConfig       `yaml:"cache"`
	Lock        LockConfig        `yaml:"lock"`
	Worker      WorkerConfig      `yaml:"worker"`
	Log         LogConfig         `yaml:"log"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

type GRPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode" split_words:"true"`
	MaxConns int32  `yaml:"max_conns" split_words:"true"`
	Migrate  bool   `yaml:"migrate"`
	SeedFile string `yaml:"seed_file" split_words:"true"`
}

func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", d.MaxConns)
	}
	return dsn
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Brokers            []string `yaml:"brokers"`
	ReservationTopic   string   `yaml:"reservation_topic" split_words:"true"`
	NotificationsTopic string   `yaml:"notifications_topic" split_words:"true"`
	GroupID            string   `yaml:"group_id" split_words:"true"`
}

type ReservationConfig struct {
	HoldTTL            time.Duration `yaml:"hold_ttl" split_words:"true"`
	MaxDurationMinutes int           `yaml:"max_duration_minutes" split_words:"true"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type CacheConfig struct {
	Backend     string        `yaml:"backend"`
	TTL         time.Duration `yaml:"ttl"`
	Prefix      string        `yaml:"prefix"`
	WarmOnStart bool          `yaml:"warm_on_start" split_words:"true"`
}

type LockConfig struct {
	Distributed bool          `yaml:"distributed"`
	TTL         time.Duration `yaml:"ttl"`
	// Prefix namespaces lock keys away from cache entries.
	Prefix string `yaml:"prefix"`
}

type WorkerConfig struct {
	SweepInterval  time.Duration `yaml:"sweep_interval" split_words:"true"`
	SweepBatchSize int           `yaml:"sweep_batch_size" split_words:"true"`
	// Embedded runs the sweeper inside the API process as well.
	Embedded bool `yaml:"embedded"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration that runs standalone: in-memory storage and
// cache, no Kafka, HTTP on :8080.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Address: ":8080", ShutdownTimeout: 5 * time.Second},
		GRPC: GRPCConfig{Address: ":9090"},
		Database: DatabaseConfig{
			Driver:  DriverMemory,
			Host:    "localhost",
			Port:    5432,
			User:    "parking",
			Name:    "parking",
			SSLMode: "disable",
			Migrate: true,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{
			Brokers:            []string{"localhost:9092"},
			ReservationTopic:   "parking.reservations",
			NotificationsTopic: "parking.notifications",
			GroupID:            "parking-notifier",
		},
		Reservation: ReservationConfig{HoldTTL: 15 * time.Minute, MaxDurationMinutes: 24 * 60},
		Cache:       CacheConfig{Backend: CacheBackendMemory, TTL: 30 * time.Second, Prefix: "parking:"},
		Lock:        LockConfig{TTL: 10 * time.Second, Prefix: "parking-lock:"},
		Worker:      WorkerConfig{SweepInterval: time.Minute, SweepBatchSize: 100},
		Log:         LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig reads the YAML file on top of Default and then applies PARKING_*
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.Reservation.HoldTTL <= 0 {
		return fmt.Errorf("reservation.hold_ttl must be positive")
	}
	if c.Reservation.MaxDurationMinutes <= 0 {
		return fmt.Errorf("reservation.max_duration_minutes must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Worker.SweepInterval <= 0 {
		return fmt.Errorf("worker.sweep_interval must be positive")
	}
	if c.Worker.SweepBatchSize <= 0 {
		return fmt.Errorf("worker.sweep_batch_size must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.Lock.Distributed && c.Lock.Prefix == c.Cache.Prefix {
		return fmt.Errorf("lock.prefix must differ from cache.prefix")
	}
	return nil
}

// Warnings lists settings that are accepted but behave poorly together.
func (c *Config) Warnings() []string {
	var out []string
	if c.Worker.Embedded {
		return out
	}
	if c.Database.Driver == DriverMemory {
		out = append(out, "worker.embedded is false with the memory database: a separate worker sweeps its own copy and holds here never expire")
	}
	if c.Cache.Backend == CacheBackendMemory {
		out = append(out, "worker.embedded is false with the memory cache: expirations done by the worker stay invisible here until cache.ttl passes")
	}
	return out
}
