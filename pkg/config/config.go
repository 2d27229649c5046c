// Package config loads engine settings from defaults, an optional config
// file and FLOWENGINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "FLOWENGINE"

// Bus providers.
const (
	BusMemory = "memory"
	BusKafka  = "kafka"
	BusNATS   = "nats"
)

type Config struct {
	Pool        PoolConfig        `mapstructure:"pool"`
	Flow        FlowConfig        `mapstructure:"flow"`
	Bus         BusConfig         `mapstructure:"bus"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Channel     ChannelConfig     `mapstructure:"channel"`
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	LogLevel    string            `mapstructure:"log_level"   validate:"omitempty,oneof=debug info warn error"`
}

type PoolConfig struct {
	Workers           int           `mapstructure:"workers"            validate:"gte=1"`
	QueueDepth        int           `mapstructure:"queue_depth"        validate:"gte=1"`
	EffectTimeout     time.Duration `mapstructure:"effect_timeout"     validate:"gt=0"`
	WorkerConcurrency int           `mapstructure:"worker_concurrency" validate:"gte=1"`
}

type FlowConfig struct {
	DefaultProbability float64       `mapstructure:"default_probability" validate:"gte=0,lte=1"`
	MaxHops            int           `mapstructure:"max_hops"            validate:"gte=1"`
	ConditionTimeout   time.Duration `mapstructure:"condition_timeout"   validate:"gt=0"`
}

type BusConfig struct {
	Provider     string   `mapstructure:"provider"      validate:"oneof=memory kafka nats"`
	BufferSize   int      `mapstructure:"buffer_size"   validate:"gte=1"`
	KafkaBrokers []string `mapstructure:"kafka_brokers" validate:"dive,required"`
	NATSURL      string   `mapstructure:"nats_url"      validate:"required_if=Provider nats"`
	Topic        string   `mapstructure:"topic"         validate:"required"`
}

type PersistenceConfig struct {
	DatabaseURL   string        `mapstructure:"database_url"    validate:"required"`
	RedisURL      string        `mapstructure:"redis_url"`
	ContextTTL    time.Duration `mapstructure:"context_ttl"     validate:"gte=0"`
	GraphCacheTTL time.Duration `mapstructure:"graph_cache_ttl" validate:"gte=0"`
}

type SchedulerConfig struct {
	Interval  time.Duration `mapstructure:"interval"   validate:"gte=1s"`
	BatchSize int           `mapstructure:"batch_size" validate:"gte=1"`
}

// ChannelConfig points at the messaging gateway outbound messages go to.
// An empty GatewayURL logs messages instead of sending them.
type ChannelConfig struct {
	GatewayURL string        `mapstructure:"gateway_url" validate:"omitempty,url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"     validate:"gt=0"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`
}

// Principal is who a bearer token authenticates.
type Principal struct {
	UserID    string `mapstructure:"user_id"    json:"userId"    validate:"required"`
	CompanyID string `mapstructure:"company_id" json:"companyId" validate:"required"`
	Profile   string `mapstructure:"profile"    json:"profile"`
}

type AuthConfig struct {
	Tokens map[string]Principal `mapstructure:"tokens" validate:"dive"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ErrInvalidConfig wraps validation failures of a loaded config.
var ErrInvalidConfig = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("pool.workers", runtime.NumCPU())
	v.SetDefault("pool.queue_depth", 1024)
	v.SetDefault("pool.effect_timeout", 30*time.Second)
	v.SetDefault("pool.worker_concurrency", 4)

	v.SetDefault("flow.default_probability", 0.5)
	v.SetDefault("flow.max_hops", 64)
	v.SetDefault("flow.condition_timeout", 100*time.Millisecond)

	v.SetDefault("bus.provider", BusMemory)
	v.SetDefault("bus.buffer_size", 64)
	v.SetDefault("bus.kafka_brokers", []string{})
	v.SetDefault("bus.nats_url", "")
	v.SetDefault("bus.topic", "flowengine.realtime")

	v.SetDefault("persistence.database_url", "file://./data")
	v.SetDefault("persistence.redis_url", "")
	v.SetDefault("persistence.context_ttl", 7*24*time.Hour)
	v.SetDefault("persistence.graph_cache_ttl", time.Minute)

	v.SetDefault("scheduler.interval", time.Second)
	v.SetDefault("scheduler.batch_size", 100)

	v.SetDefault("channel.gateway_url", "")
	v.SetDefault("channel.token", "")
	v.SetDefault("channel.timeout", 10*time.Second)

	v.SetDefault("server.port", 9092)
	v.SetDefault("tracing.enabled", false)
}

// Load reads the config file at path, when given, and the environment.
// Environment variables win over the file: FLOWENGINE_POOL_WORKERS sets
// pool.workers.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the config struct tags.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Bus.Provider == BusKafka && len(c.Bus.KafkaBrokers) == 0 {
		return fmt.Errorf("%w: bus.kafka_brokers is required for the kafka bus", ErrInvalidConfig)
	}

	return nil
}
