package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Security     SecurityConfig
	Maintenance  MaintenanceConfig
	Processor    ProcessorConfig
	Retention    RetentionConfig
	Sweep        SweepConfig
	RateLimit    RateLimitConfig
	Idempotency  IdempotencyConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Metrics      MetricsConfig
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
	Env          string `envconfig:"TRADELANE_APP_ENV" required:"true"`
	Port         string `envconfig:"TRADELANE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRADELANE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRADELANE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TRADELANE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRADELANE_DB_DSN"`
	Driver string `envconfig:"TRADELANE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRADELANE_DB_HOST"`
	LegacyPort     int    `envconfig:"TRADELANE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRADELANE_DB_USER"`
	LegacyPassword string `envconfig:"TRADELANE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRADELANE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRADELANE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADELANE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADELANE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADELANE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADELANE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADELANE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRADELANE_REDIS_ADDR"`
	Password     string        `envconfig:"TRADELANE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADELANE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADELANE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADELANE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADELANE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADELANE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADELANE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TRADELANE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRADELANE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRADELANE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type SecurityConfig struct {
	ArgonMemoryKB    int `envconfig:"TRADELANE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TRADELANE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TRADELANE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TRADELANE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TRADELANE_ARGON_KEY_LEN" default:"32"`
}

type MaintenanceConfig struct {
	// Argon2id hash of the shared secret presented in X-Maintenance-Secret.
	SecretHash string `envconfig:"TRADELANE_MAINTENANCE_SECRET_HASH" required:"true"`
}

type ProcessorConfig struct {
	// HMAC key for inbound payment webhook signatures.
	WebhookSecret string `envconfig:"TRADELANE_PROCESSOR_WEBHOOK_SECRET" required:"true"`
}

type RetentionConfig struct {
	WebhookEventDays int `envconfig:"TRADELANE_RETENTION_WEBHOOK_EVENT_DAYS" default:"30"`
	PruneBatchSize   int `envconfig:"TRADELANE_RETENTION_PRUNE_BATCH_SIZE" default:"500"`
}

type SweepConfig struct {
	SubscriptionBatchSize int `envconfig:"TRADELANE_SWEEP_SUBSCRIPTION_BATCH_SIZE" default:"100"`
}

type RateLimitConfig struct {
	WebhookWindow time.Duration `envconfig:"TRADELANE_RATE_LIMIT_WEBHOOK_WINDOW" default:"1m"`
	WebhookLimit  int           `envconfig:"TRADELANE_RATE_LIMIT_WEBHOOK_LIMIT" default:"120"`
	WriteWindow   time.Duration `envconfig:"TRADELANE_RATE_LIMIT_WRITE_WINDOW" default:"1m"`
	WriteLimit    int           `envconfig:"TRADELANE_RATE_LIMIT_WRITE_LIMIT" default:"60"`
}

type IdempotencyConfig struct {
	ResponseTTL time.Duration `envconfig:"TRADELANE_IDEMPOTENCY_RESPONSE_TTL" default:"24h"`
	// EventTTL bounds how long consumers remember processed event IDs.
	EventTTL time.Duration `envconfig:"TRADELANE_IDEMPOTENCY_EVENT_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TRADELANE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRADELANE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TRADELANE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TRADELANE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"TRADELANE_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription       string `envconfig:"TRADELANE_PUBSUB_ORDERS_SUBSCRIPTION"`
	BillingTopic             string `envconfig:"TRADELANE_PUBSUB_BILLING_TOPIC" required:"true"`
	BillingSubscription      string `envconfig:"TRADELANE_PUBSUB_BILLING_SUBSCRIPTION"`
	NotificationTopic        string `envconfig:"TRADELANE_PUBSUB_NOTIFICATION_TOPIC" default:"tl-notification-events"`
	NotificationSubscription string `envconfig:"TRADELANE_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	AnalyticsSubscription    string `envconfig:"TRADELANE_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset             string `envconfig:"TRADELANE_BIGQUERY_DATASET" default:"tradelane"`
	CommerceEventsTable string `envconfig:"TRADELANE_BIGQUERY_COMMERCE_TABLE" default:"commerce_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRADELANE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TRADELANE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TRADELANE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TRADELANE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"TRADELANE_CRON_LOCK_TTL" default:"2h"`
}

type MetricsConfig struct {
	Port string `envconfig:"TRADELANE_METRICS_PORT" default:"9091"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
