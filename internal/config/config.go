// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig represents HTTP/WebSocket server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DatabaseConfig represents order ledger database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" yaml:"driver" json:"driver"` // "postgres" or "sqlite"
	DSN             string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime" json:"conn_max_lifetime"` // seconds
}

// RedisConfig represents the optional order read cache
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr" json:"addr"`
	DB      int    `mapstructure:"db" yaml:"db" json:"db"`
}

// KafkaConfig represents the optional terminal event publisher
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Brokers []string `mapstructure:"brokers" yaml:"brokers" json:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic" json:"topic"`
}

// VenueConfig represents one simulated venue. Venues are compared in list
// order: earlier entries win effective price ties.
type VenueConfig struct {
	Name       string        `mapstructure:"name" yaml:"name" json:"name"`
	Fee        float64       `mapstructure:"fee" yaml:"fee" json:"fee"`                         // fraction in [0,1)
	NoiseBand  float64       `mapstructure:"noise_band" yaml:"noise_band" json:"noise_band"`    // ± fraction around base price
	MinLatency time.Duration `mapstructure:"min_latency" yaml:"min_latency" json:"min_latency"` // simulated quote latency range
	MaxLatency time.Duration `mapstructure:"max_latency" yaml:"max_latency" json:"max_latency"`
}

// ExecutorConfig represents the settlement simulator
type ExecutorConfig struct {
	MinLatency   time.Duration `mapstructure:"min_latency" yaml:"min_latency" json:"min_latency"`
	MaxLatency   time.Duration `mapstructure:"max_latency" yaml:"max_latency" json:"max_latency"`
	SlippageBand float64       `mapstructure:"slippage_band" yaml:"slippage_band" json:"slippage_band"` // ± fraction around quoted price
}

// WorkerConfig represents the execution worker pool
type WorkerConfig struct {
	Concurrency       int           `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	QueueSize         int           `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"`
	MaxAttempts       int           `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	BackoffBase       time.Duration `mapstructure:"backoff_base" yaml:"backoff_base" json:"backoff_base"`
	SlippageTolerance float64       `mapstructure:"slippage_tolerance" yaml:"slippage_tolerance" json:"slippage_tolerance"`
}

// Config represents the application configuration
type Config struct {
	LogLevel string         `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database" json:"database"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis" json:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka" yaml:"kafka" json:"kafka"`
	Venues   []VenueConfig  `mapstructure:"venues" yaml:"venues" json:"venues"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor" json:"executor"`
	Worker   WorkerConfig   `mapstructure:"worker" yaml:"worker" json:"worker"`
}

// LoadConfig reads configuration from config.yaml (if present) with
// DEXROUTER_-prefixed environment overrides, falling back to defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("DEXROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file is fine, defaults and env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "dexrouter.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "dexrouter.order-events")

	v.SetDefault("venues", []map[string]interface{}{
		{"name": "Raydium", "fee": 0.0025, "noise_band": 0.005, "min_latency": "200ms", "max_latency": "350ms"},
		{"name": "Orca", "fee": 0.003, "noise_band": 0.008, "min_latency": "200ms", "max_latency": "350ms"},
	})

	v.SetDefault("executor.min_latency", "2s")
	v.SetDefault("executor.max_latency", "3s")
	v.SetDefault("executor.slippage_band", 0.01)

	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.backoff_base", "500ms")
	v.SetDefault("worker.slippage_tolerance", 0.01)
}

// Validate checks settings that would otherwise surface as runtime faults.
func (c *Config) Validate() error {
	if len(c.Venues) < 2 {
		return fmt.Errorf("at least two venues must be configured, got %d", len(c.Venues))
	}
	for _, vc := range c.Venues {
		if vc.Name == "" {
			return fmt.Errorf("venue name must not be empty")
		}
		if vc.Fee < 0 || vc.Fee >= 1 {
			return fmt.Errorf("venue %s: fee must be in [0,1), got %v", vc.Name, vc.Fee)
		}
		if vc.MinLatency > vc.MaxLatency {
			return fmt.Errorf("venue %s: min_latency exceeds max_latency", vc.Name)
		}
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker max_attempts must be positive, got %d", c.Worker.MaxAttempts)
	}
	if c.Worker.SlippageTolerance <= 0 {
		return fmt.Errorf("worker slippage_tolerance must be positive, got %v", c.Worker.SlippageTolerance)
	}
	return nil
}
