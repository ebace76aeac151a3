package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MongoConfig holds document store configuration.
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig selects the entity store backend and its breaker settings.
type StoreConfig struct {
	Driver           string        `mapstructure:"driver"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

// AuthConfig holds token validation configuration.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RealtimeConfig holds websocket fan-out configuration.
type RealtimeConfig struct {
	QueueSize      int           `mapstructure:"queue_size"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// RateLimitConfig holds request limiter configuration.
type RateLimitConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	APILimit     int           `mapstructure:"api_limit"`
	APIWindow    time.Duration `mapstructure:"api_window"`
	CreateLimit  int           `mapstructure:"create_limit"`
	CreateWindow time.Duration `mapstructure:"create_window"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/projecthub")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file; defaults and env only.
	}

	v.SetEnvPrefix("PROJECTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if secret := os.Getenv("PROJECTHUB_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if password := os.Getenv("PROJECTHUB_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("PROJECTHUB_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if uri := os.Getenv("PROJECTHUB_MONGO_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field configuration constraints.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Realtime.QueueSize <= 0 {
		return fmt.Errorf("realtime.queue_size must be positive, got %d", c.Realtime.QueueSize)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "projecthub")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "projecthub")
	v.SetDefault("mongo.connect_timeout", 10*time.Second)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("store.failure_threshold", 5)
	v.SetDefault("store.breaker_timeout", 30*time.Second)
	v.SetDefault("store.half_open_requests", 1)

	v.SetDefault("auth.issuer", "projecthub")

	v.SetDefault("realtime.queue_size", 64)
	v.SetDefault("realtime.write_wait", 10*time.Second)
	v.SetDefault("realtime.pong_wait", 60*time.Second)
	v.SetDefault("realtime.max_message_size", 512)
	v.SetDefault("realtime.allowed_origins", []string{"*"})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.api_limit", 100)
	v.SetDefault("rate_limit.api_window", 15*time.Minute)
	v.SetDefault("rate_limit.create_limit", 50)
	v.SetDefault("rate_limit.create_window", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
