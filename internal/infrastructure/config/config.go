package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends for credit state
const (
	StorageBackendMemory = "memory"
	StorageBackendRedis  = "redis"
	StorageBackendNeo4J  = "neo4j"
)

// Config represents the application configuration
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Neo4J   Neo4JConfig   `mapstructure:"neo4j"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Storage StorageConfig `mapstructure:"storage"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Health  HealthConfig  `mapstructure:"health"`
}

// AppConfig represents application-specific configuration
type AppConfig struct {
	Env            string `mapstructure:"env"`
	LogLevel       string `mapstructure:"log_level"`
	HTTPPort       int    `mapstructure:"http_port"`
	WorkerPoolSize int    `mapstructure:"worker_pool_size"`
	BatchSize      int    `mapstructure:"batch_size"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL                 string        `mapstructure:"url"`
	StreamName          string        `mapstructure:"stream_name"`
	SubjectPrefix       string        `mapstructure:"subject_prefix"`
	VerificationSubject string        `mapstructure:"verification_subject"`
	ConsumerGroup       string        `mapstructure:"consumer_group"`
	DurableName         string        `mapstructure:"durable_name"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	ReconnectAttempts   int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay      time.Duration `mapstructure:"reconnect_delay"`
	FetchWait           time.Duration `mapstructure:"fetch_wait"`
	MaxPendingMessages  int           `mapstructure:"max_pending_messages"`
	Enabled             bool          `mapstructure:"enabled"`
}

// Neo4JConfig represents Neo4J configuration
type Neo4JConfig struct {
	URI                          string        `mapstructure:"uri"`
	Username                     string        `mapstructure:"username"`
	Password                     string        `mapstructure:"password"`
	Database                     string        `mapstructure:"database"`
	ConnectTimeout               time.Duration `mapstructure:"connect_timeout"`
	MaxConnectionPoolSize        int           `mapstructure:"max_connection_pool_size"`
	ConnectionAcquisitionTimeout time.Duration `mapstructure:"connection_acquisition_timeout"`
	Enabled                      bool          `mapstructure:"enabled"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StorageConfig selects where credit state is persisted
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Namespace string `mapstructure:"namespace"`
}

// ScoringConfig represents credit scoring configuration
type ScoringConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

// LedgerConfig represents ledger policy configuration
type LedgerConfig struct {
	AutoRepayExecute bool          `mapstructure:"auto_repay_execute"`
	DelinquencyGrace time.Duration `mapstructure:"delinquency_grace"`
	DelinquencyCron  string        `mapstructure:"delinquency_cron"`
}

// HealthConfig represents health check configuration
type HealthConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from environment variables and files
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cred-credit-engine")

	// Environment variables map onto nested keys, e.g. NATS_URL -> nats.url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.http_port", 8080)
	v.SetDefault("app.worker_pool_size", 4)
	v.SetDefault("app.batch_size", 100)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "TRANSACTIONS")
	v.SetDefault("nats.subject_prefix", "transactions")
	v.SetDefault("nats.verification_subject", "verification.events")
	v.SetDefault("nats.consumer_group", "cred-credit-engine")
	v.SetDefault("nats.durable_name", "cred-credit-engine")
	v.SetDefault("nats.connect_timeout", "10s")
	v.SetDefault("nats.reconnect_attempts", 5)
	v.SetDefault("nats.reconnect_delay", "2s")
	v.SetDefault("nats.fetch_wait", "5s")
	v.SetDefault("nats.max_pending_messages", 10000)
	v.SetDefault("nats.enabled", true)

	// Neo4J defaults
	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.connect_timeout", "10s")
	v.SetDefault("neo4j.max_connection_pool_size", 50)
	v.SetDefault("neo4j.connection_acquisition_timeout", "60s")
	v.SetDefault("neo4j.enabled", true)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// Storage defaults
	v.SetDefault("storage.backend", StorageBackendRedis)
	v.SetDefault("storage.namespace", "cred_credit_state")

	// Scoring defaults
	v.SetDefault("scoring.history_limit", 50)

	// Ledger defaults
	v.SetDefault("ledger.auto_repay_execute", false)
	v.SetDefault("ledger.delinquency_grace", "720h")
	v.SetDefault("ledger.delinquency_cron", "@daily")

	// Health defaults
	v.SetDefault("health.timeout", "5s")
}
