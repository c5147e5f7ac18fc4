package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "OMS"

type Config struct {
	HTTP            HTTPConfig    `mapstructure:"http"`
	GRPC            GRPCConfig    `mapstructure:"grpc"`
	Storage         StorageConfig `mapstructure:"storage"`
	MySQL           MySQLConfig   `mapstructure:"mysql"`
	Cache           CacheConfig   `mapstructure:"cache"`
	Redis           RedisConfig   `mapstructure:"redis"`
	Kafka           KafkaConfig   `mapstructure:"kafka"`
	Workers         WorkerConfig  `mapstructure:"workers"`
	Session         SessionConfig `mapstructure:"session"`
	Log             LogConfig     `mapstructure:"log"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory | mysql
	Seed   bool   `mapstructure:"seed"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type CacheConfig struct {
	Driver string `mapstructure:"driver"` // memory | redis
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	PoolSize int    `mapstructure:"pool_size"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type WorkerConfig struct {
	Count     int `mapstructure:"count"`
	QueueSize int `mapstructure:"queue_size"`
}

type SessionConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
	File   string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 10*time.Second)
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.seed", true)
	v.SetDefault("mysql.dsn", "root:root@tcp(localhost:3306)/omscart?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 25)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate", true)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "oms.orders")
	v.SetDefault("workers.count", 10)
	v.SetDefault("workers.queue_size", 10000)
	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("shutdown_timeout", 5*time.Second)
}

// Load reads defaults, then the optional file at path, then OMS_* environment
// variables (OMS_HTTP_ADDR, OMS_KAFKA_BROKERS=a:9092,b:9092, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "mysql":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.driver: unknown driver %q", c.Cache.Driver))
	}
	if c.Workers.Count <= 0 {
		errs = append(errs, errors.New("workers.count must be positive"))
	}
	if c.Workers.QueueSize <= 0 {
		errs = append(errs, errors.New("workers.queue_size must be positive"))
	}
	if c.Session.IdleTTL <= 0 || c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("session.idle_ttl and session.sweep_interval must be positive"))
	}
	return errors.Join(errs...)
}

// splitList accepts both list values and a single comma separated string,
// which is what an environment variable produces.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
