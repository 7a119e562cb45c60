package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full service configuration, read from the environment
type Config struct {
	AppCfg      AppConfig
	DBConfig    DBConfig
	KafkaConfig KafkaConfig
	Delivery    DeliveryConfig
	Channels    ChannelsConfig
	Templates   TemplateConfig
	Redis       RedisConfig
	Auth        AuthConfig
}

// AppConfig holds process level settings
type AppConfig struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// StoreDriver selects the delivery record store: "postgres" or "memory"
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	Tracing     bool   `env:"TRACING_ENABLED" envDefault:"false"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// DBConfig holds the Postgres connection settings
type DBConfig struct {
	URL             string        `env:"NOTIF_DB_URL"`
	MaxOpenConn     int32         `env:"NOTIF_DB_MAX_OPEN" envDefault:"10"`
	MinConn         int32         `env:"NOTIF_DB_MIN_CONN" envDefault:"2"`
	ConnMaxIdle     time.Duration `env:"NOTIF_DB_CONN_IDLE" envDefault:"10m"`
	Migrate         bool          `env:"NOTIF_DB_MIGRATE" envDefault:"true"`
	MigrationsTable string        `env:"NOTIF_DB_MIGRATIONS_TABLE" envDefault:"schema_migrations"`
}

// KafkaConfig holds broker settings. When QueueEnabled is false the
// service delivers in-process and no broker connection is made.
type KafkaConfig struct {
	QueueEnabled  bool     `env:"QUEUE_ENABLED" envDefault:"false"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic    string   `env:"KAFKA_TOPIC" envDefault:"notification-send"`
	ConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"notification-service"`
	ClientID      string   `env:"KAFKA_CLIENT_ID" envDefault:"notification-service"`
}

// DeliveryConfig tunes the dispatch pipeline
type DeliveryConfig struct {
	MaxRetries     int           `env:"MAX_RETRIES" envDefault:"3"`
	AdapterTimeout time.Duration `env:"ADAPTER_TIMEOUT" envDefault:"10s"`
	WorkerLimit    int           `env:"WORKER_LIMIT" envDefault:"16"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	SweepStale     time.Duration `env:"SWEEP_STALE_AFTER" envDefault:"5m"`
}

// ChannelsConfig groups per-channel provider settings
type ChannelsConfig struct {
	Email    EmailConfig
	SMS      SMSConfig
	Push     PushConfig
	WhatsApp WhatsAppConfig
}

type EmailConfig struct {
	Enabled      bool    `env:"CHANNEL_EMAIL_ENABLED" envDefault:"true"`
	From         string  `env:"CHANNEL_EMAIL_FROM" envDefault:"noreply@example.com"`
	ServerToken  string  `env:"CHANNEL_EMAIL_POSTMARK_SERVER_TOKEN" envDefault:"dummy-server-token"`
	AccountToken string  `env:"CHANNEL_EMAIL_POSTMARK_ACCOUNT_TOKEN" envDefault:"dummy-account-token"`
	BaseURL      string  `env:"CHANNEL_EMAIL_API_URL"`
	RatePerSec   float64 `env:"CHANNEL_EMAIL_RATE" envDefault:"0"`
}

type SMSConfig struct {
	Enabled    bool    `env:"CHANNEL_SMS_ENABLED" envDefault:"true"`
	AccountSID string  `env:"CHANNEL_SMS_ACCOUNT_SID" envDefault:"ACxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"`
	AuthToken  string  `env:"CHANNEL_SMS_AUTH_TOKEN" envDefault:"dummy-auth-token"`
	FromNumber string  `env:"CHANNEL_SMS_FROM_NUMBER" envDefault:"+15551234567"`
	APIURL     string  `env:"CHANNEL_SMS_API_URL" envDefault:"https://api.twilio.com/2010-04-01/Accounts"`
	RatePerSec float64 `env:"CHANNEL_SMS_RATE" envDefault:"0"`
}

type PushConfig struct {
	Enabled    bool    `env:"CHANNEL_PUSH_ENABLED" envDefault:"true"`
	ServerKey  string  `env:"CHANNEL_PUSH_FCM_SERVER_KEY" envDefault:"dummy-fcm-server-key"`
	APIURL     string  `env:"CHANNEL_PUSH_FCM_URL" envDefault:"https://fcm.googleapis.com/fcm/send"`
	RatePerSec float64 `env:"CHANNEL_PUSH_RATE" envDefault:"0"`
}

type WhatsAppConfig struct {
	Enabled       bool    `env:"CHANNEL_WHATSAPP_ENABLED" envDefault:"true"`
	AccessToken   string  `env:"CHANNEL_WHATSAPP_ACCESS_TOKEN" envDefault:"dummy-whatsapp-access-token"`
	PhoneNumberID string  `env:"CHANNEL_WHATSAPP_PHONE_NUMBER_ID" envDefault:"123456789"`
	APIURL        string  `env:"CHANNEL_WHATSAPP_API_URL" envDefault:"https://graph.facebook.com/v18.0"`
	RatePerSec    float64 `env:"CHANNEL_WHATSAPP_RATE" envDefault:"0"`
}

// TemplateConfig controls template lookup caching and seeding
type TemplateConfig struct {
	CacheTTL time.Duration `env:"TEMPLATE_CACHE_TTL" envDefault:"5m"`
	SeedFile string        `env:"TEMPLATE_SEED_FILE"`
}

// RedisConfig backs the Idempotency-Key store. Empty URL keeps keys in memory.
type RedisConfig struct {
	URL            string        `env:"REDIS_URL"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
}

// AuthConfig enables bearer token checks on the API when Secret is set
type AuthConfig struct {
	Secret string `env:"AUTH_SECRET"`
}

// LoadConfig reads an optional .env file then parses the environment
func LoadConfig() (*Config, error) {
	// the .env file is optional
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints env tags cannot express
func (c *Config) Validate() error {
	var errs []error
	switch c.AppCfg.StoreDriver {
	case "postgres":
		if c.DBConfig.URL == "" {
			errs = append(errs, errors.New("NOTIF_DB_URL is required for the postgres store"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.AppCfg.StoreDriver))
	}
	if c.Delivery.MaxRetries < 1 {
		errs = append(errs, errors.New("MAX_RETRIES must be at least 1"))
	}
	if c.Delivery.WorkerLimit < 1 {
		errs = append(errs, errors.New("WORKER_LIMIT must be at least 1"))
	}
	if c.Delivery.AdapterTimeout <= 0 {
		errs = append(errs, errors.New("ADAPTER_TIMEOUT must be positive"))
	}
	if c.KafkaConfig.QueueEnabled {
		if len(c.KafkaConfig.KafkaBrokers) == 0 || c.KafkaConfig.KafkaTopic == "" {
			errs = append(errs, errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required when QUEUE_ENABLED"))
		}
	}
	return errors.Join(errs...)
}
