package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DedupeMemory   = "memory"
	DedupeRedis    = "redis"
	DedupePostgres = "postgres"
)

type Config struct {
	App         App         `yaml:"app"`
	HTTP        HTTP        `yaml:"http"`
	Log         Log         `yaml:"log"`
	Telegram    Telegram    `yaml:"telegram"`
	MercadoPago MercadoPago `yaml:"mercadopago"`
	Dedupe      Dedupe      `yaml:"dedupe"`
	Postgres    Postgres    `yaml:"postgres"`
	Redis       Redis       `yaml:"redis"`
	Kafka       Kafka       `yaml:"kafka"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"chatpay-relay"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"HTTP_MAX_BODY_BYTES" env-default:"1048576"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Telegram struct {
	Token       string `yaml:"token" env:"TELEGRAM_TOKEN"`
	SecretToken string `yaml:"secret_token" env:"TELEGRAM_SECRET_TOKEN"`
	APIServer   string `yaml:"api_server" env:"TELEGRAM_API_SERVER"`
	// BotUsername is looked up with getMe when empty.
	BotUsername string `yaml:"bot_username" env:"TELEGRAM_BOT_USERNAME"`
}

type MercadoPago struct {
	AccessToken     string        `yaml:"access_token" env:"MP_ACCESS_TOKEN"`
	WebhookSecret   string        `yaml:"webhook_secret" env:"MP_WEBHOOK_SECRET"`
	BaseURL         string        `yaml:"base_url" env:"MP_BASE_URL" env-default:"https://api.mercadopago.com"`
	Timeout         time.Duration `yaml:"timeout" env:"MP_TIMEOUT" env-default:"10s"`
	Sandbox         bool          `yaml:"sandbox" env:"MP_SANDBOX" env-default:"false"`
	NotificationURL string        `yaml:"notification_url" env:"MP_NOTIFICATION_URL"`
	SuccessURL      string        `yaml:"success_url" env:"MP_SUCCESS_URL"`
	FailureURL      string        `yaml:"failure_url" env:"MP_FAILURE_URL"`
	PendingURL      string        `yaml:"pending_url" env:"MP_PENDING_URL"`
}

type Dedupe struct {
	Backend       string        `yaml:"backend" env:"DEDUPE_BACKEND" env-default:"memory"`
	TTL           time.Duration `yaml:"ttl" env:"DEDUPE_TTL" env-default:"2h"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"DEDUPE_SWEEP_INTERVAL" env-default:"5m"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"relay_db"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"payment-events"`
}

// New reads CONFIG_PATH (default config.yaml) and lets env vars override it.
func New() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config error: %w", err)
		}
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks what the relay binary needs to start.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("TELEGRAM_TOKEN is required"))
	}
	if c.MercadoPago.AccessToken == "" {
		errs = append(errs, errors.New("MP_ACCESS_TOKEN is required"))
	}
	switch c.Dedupe.Backend {
	case DedupeMemory, DedupeRedis, DedupePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown dedupe backend %q", c.Dedupe.Backend))
	}
	if c.Dedupe.TTL <= 0 {
		errs = append(errs, errors.New("dedupe ttl must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka enabled without brokers"))
	}
	return errors.Join(errs...)
}
