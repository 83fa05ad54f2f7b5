package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix scopes every environment variable consumed by the platform.
const EnvPrefix = "TRADEPOST"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Provider ProviderConfig
	Outbox   OutboxConfig
	Eventing EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRADEPOST_APP_ENV" required:"true"`
	Port         string `envconfig:"TRADEPOST_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TRADEPOST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRADEPOST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TRADEPOST_DB_DSN"`
	Driver string `envconfig:"TRADEPOST_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"TRADEPOST_DB_HOST"`
	Port     int    `envconfig:"TRADEPOST_DB_PORT" default:"5432"`
	User     string `envconfig:"TRADEPOST_DB_USER"`
	Password string `envconfig:"TRADEPOST_DB_PASSWORD"`
	Name     string `envconfig:"TRADEPOST_DB_NAME"`
	SSLMode  string `envconfig:"TRADEPOST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADEPOST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADEPOST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADEPOST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADEPOST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADEPOST_REDIS_URL"`
	Address      string        `envconfig:"TRADEPOST_REDIS_ADDR"`
	Password     string        `envconfig:"TRADEPOST_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADEPOST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADEPOST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADEPOST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADEPOST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADEPOST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADEPOST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRADEPOST_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TRADEPOST_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TRADEPOST_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"TRADEPOST_PUBSUB_ORDERS_TOPIC" default:"tp-order-events"`
	OrdersSubscription       string `envconfig:"TRADEPOST_PUBSUB_ORDERS_SUBSCRIPTION" default:"tp-order-events-worker"`
	PaymentsSubscription     string `envconfig:"TRADEPOST_PUBSUB_PAYMENTS_SUBSCRIPTION" default:"tp-order-events-payments"`
	CatalogTopic             string `envconfig:"TRADEPOST_PUBSUB_CATALOG_TOPIC" default:"tp-catalog-events"`
	CatalogSubscription      string `envconfig:"TRADEPOST_PUBSUB_CATALOG_SUBSCRIPTION" default:"tp-catalog-events-worker"`
	PayoutsTopic             string `envconfig:"TRADEPOST_PUBSUB_PAYOUTS_TOPIC" default:"tp-payout-events"`
	PayoutsSubscription      string `envconfig:"TRADEPOST_PUBSUB_PAYOUTS_SUBSCRIPTION" default:"tp-payout-events-worker"`
	NotificationTopic        string `envconfig:"TRADEPOST_PUBSUB_NOTIFICATION_TOPIC" default:"tp-notification-events"`
	NotificationSubscription string `envconfig:"TRADEPOST_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"tp-notification-events-worker"`
}

// ProviderConfig selects and configures the payment/payout provider driver.
type ProviderConfig struct {
	Driver        string `envconfig:"TRADEPOST_PROVIDER_DRIVER" default:""`
	APIKey        string `envconfig:"TRADEPOST_PROVIDER_API_KEY"`
	WebhookSecret string `envconfig:"TRADEPOST_PROVIDER_WEBHOOK_SECRET"`
	Env           string `envconfig:"TRADEPOST_PROVIDER_ENV" default:"test"`
	OnboardingURL string `envconfig:"TRADEPOST_PROVIDER_ONBOARDING_RETURN_URL"`
	CheckoutURL   string `envconfig:"TRADEPOST_PROVIDER_CHECKOUT_RETURN_URL"`
}

// Environment returns the normalized provider environment (test/live).
func (p ProviderConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "test"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRADEPOST_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TRADEPOST_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TRADEPOST_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"TRADEPOST_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"TRADEPOST_DB_HOST": db.Host,
		"TRADEPOST_DB_USER": db.User,
		"TRADEPOST_DB_NAME": db.Name,
	}
	for _, key := range []string{"TRADEPOST_DB_HOST", "TRADEPOST_DB_USER", "TRADEPOST_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either TRADEPOST_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
