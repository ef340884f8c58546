package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sakashimaa/product-showcase/pkg/utils"
)

type Config struct {
	Env      string  `yaml:"env" env:"ENV" env-default:"local"`
	Log      Log     `yaml:"log"`
	HTTP     HTTP    `yaml:"http"`
	Postgres PG      `yaml:"postgres"`
	Redis    Redis   `yaml:"redis"`
	Kafka    Kafka   `yaml:"kafka"`
	Auth     Auth    `yaml:"auth"`
	Limiter  Limiter `yaml:"limiter"`
	Tracing  Tracing `yaml:"tracing"`
	Listing  Listing `yaml:"listing"`
	Breaker  Breaker `yaml:"breaker"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"4s"`
}

type PG struct {
	URL           string        `yaml:"url" env:"DB_URL"`
	MaxConns      int32         `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
	MinConns      int32         `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"2"`
	MigrationsDir string        `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR" env-default:"./migrations"`
	RetryWindow   time.Duration `yaml:"retry_window" env:"DB_RETRY_WINDOW" env-default:"2s"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"10m"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"product_events"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
}

type Auth struct {
	Secret   string        `yaml:"secret" env:"ACCESS_SECRET"`
	Issuer   string        `yaml:"issuer" env:"AUTH_ISSUER" env-default:"product-showcase"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"15m"`
}

type Limiter struct {
	Max    int           `yaml:"max" env:"LIMITER_MAX" env-default:"20"`
	Window time.Duration `yaml:"window" env:"LIMITER_WINDOW" env-default:"5s"`
}

type Tracing struct {
	Enabled  bool   `yaml:"enabled" env:"TRACING_ENABLED" env-default:"true"`
	Endpoint string `yaml:"endpoint" env:"JAEGER_ENDPOINT" env-default:"localhost:4318"`
	Service  string `yaml:"service" env:"TRACING_SERVICE" env-default:"showcase-service"`
}

type Listing struct {
	DefaultLimit int `yaml:"default_limit" env:"LISTING_DEFAULT_LIMIT" env-default:"20"`
	MaxLimit     int `yaml:"max_limit" env:"LISTING_MAX_LIMIT" env-default:"100"`
}

type Breaker struct {
	MaxRequests  uint32        `yaml:"max_requests" env-default:"3"`
	Interval     time.Duration `yaml:"interval" env-default:"5s"`
	Timeout      time.Duration `yaml:"timeout" env-default:"10s"`
	MinRequests  uint32        `yaml:"min_requests" env-default:"5"`
	FailureRatio float64       `yaml:"failure_ratio" env-default:"0.6"`
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exists: %v\n", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}

	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = cfg.Tracing.Service + "-listing"
	}

	return &cfg, nil
}

func (c *Config) LoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level: c.Log.Level,
		Env:   c.Env,
	}
}
