package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Pricing       PricingConfig
	Checkout      CheckoutConfig
	Orders        OrdersConfig
	Catalog       CatalogConfig
	Chat          ChatConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GROCERYMART_APP_ENV" required:"true"`
	Port         string `envconfig:"GROCERYMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GROCERYMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GROCERYMART_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"GROCERYMART_LOG_FORMAT" default:"json"`

	// Comma separated; empty means local dev hosts.
	CORSOrigins []string `envconfig:"GROCERYMART_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GROCERYMART_SERVICE_KIND" default:"api"`
	// Background workers expose /metrics here; empty disables the listener.
	MetricsAddr string `envconfig:"GROCERYMART_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"GROCERYMART_DB_DSN"`
	Driver string `envconfig:"GROCERYMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GROCERYMART_DB_HOST"`
	LegacyPort     int    `envconfig:"GROCERYMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GROCERYMART_DB_USER"`
	LegacyPassword string `envconfig:"GROCERYMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"GROCERYMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"GROCERYMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GROCERYMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GROCERYMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GROCERYMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GROCERYMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// Zero disables slow query logging.
	SlowQueryThreshold time.Duration `envconfig:"GROCERYMART_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GROCERYMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GROCERYMART_REDIS_ADDR"`
	Password     string        `envconfig:"GROCERYMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"GROCERYMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GROCERYMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GROCERYMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GROCERYMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GROCERYMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GROCERYMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"GROCERYMART_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"GROCERYMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"GROCERYMART_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"GROCERYMART_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GROCERYMART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GROCERYMART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GROCERYMART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GROCERYMART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GROCERYMART_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"GROCERYMART_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"GROCERYMART_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"GROCERYMART_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"GROCERYMART_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"GROCERYMART_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"GROCERYMART_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GROCERYMART_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"GROCERYMART_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

// PricingConfig holds the storefront's delivery and tax rules in minor units.
type PricingConfig struct {
	DeliveryFeeCents           int64 `envconfig:"GROCERYMART_PRICING_DELIVERY_FEE_CENTS" default:"399"`
	FreeDeliveryThresholdCents int64 `envconfig:"GROCERYMART_PRICING_FREE_DELIVERY_THRESHOLD_CENTS" default:"5000"`
	TaxRateBasisPoints         int64 `envconfig:"GROCERYMART_PRICING_TAX_RATE_BPS" default:"850"`
}

func (p PricingConfig) validate() error {
	if p.DeliveryFeeCents < 0 || p.FreeDeliveryThresholdCents < 0 {
		return fmt.Errorf("pricing amounts must be non-negative")
	}
	if p.TaxRateBasisPoints < 0 || p.TaxRateBasisPoints > 10000 {
		return fmt.Errorf("tax rate must be between 0 and 10000 basis points")
	}
	return nil
}

type CheckoutConfig struct {
	DecrementStock bool `envconfig:"GROCERYMART_CHECKOUT_DECREMENT_STOCK" default:"true"`
	MaxAttempts    int  `envconfig:"GROCERYMART_CHECKOUT_MAX_ATTEMPTS" default:"3"`
}

type OrdersConfig struct {
	StatusPolicy string `envconfig:"GROCERYMART_ORDER_STATUS_POLICY" default:"strict"`
}

func (o OrdersConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.StatusPolicy)) {
	case StatusPolicyStrict, StatusPolicyPermissive:
		return nil
	}
	return fmt.Errorf("%s must be %q or %q", EnvOrderStatusPolicy, StatusPolicyStrict, StatusPolicyPermissive)
}

// Permissive reports whether admins may move orders between any two distinct statuses.
func (o OrdersConfig) Permissive() bool {
	return strings.EqualFold(strings.TrimSpace(o.StatusPolicy), StatusPolicyPermissive)
}

type CatalogConfig struct {
	CacheTTL    time.Duration `envconfig:"GROCERYMART_CATALOG_CACHE_TTL" default:"5m"`
	CacheJitter time.Duration `envconfig:"GROCERYMART_CATALOG_CACHE_JITTER" default:"30s"`
}

type ChatConfig struct {
	OpenAIAPIKey  string        `envconfig:"GROCERYMART_OPENAI_API_KEY"`
	OpenAIBaseURL string        `envconfig:"GROCERYMART_OPENAI_BASE_URL"`
	Model         string        `envconfig:"GROCERYMART_CHAT_MODEL" default:"gpt-4o-mini"`
	MaxTokens     int           `envconfig:"GROCERYMART_CHAT_MAX_TOKENS" default:"300"`
	Timeout       time.Duration `envconfig:"GROCERYMART_CHAT_TIMEOUT" default:"20s"`
	ContextLimit  int           `envconfig:"GROCERYMART_CHAT_PRODUCT_CONTEXT_LIMIT" default:"20"`
	RateLimit     int           `envconfig:"GROCERYMART_CHAT_RATE_LIMIT" default:"20"`
	RateWindow    time.Duration `envconfig:"GROCERYMART_CHAT_RATE_WINDOW" default:"1m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GROCERYMART_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GROCERYMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GROCERYMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic                   string `envconfig:"GROCERYMART_PUBSUB_ORDERS_TOPIC" default:"gm-order-events"`
	CatalogTopic                  string `envconfig:"GROCERYMART_PUBSUB_CATALOG_TOPIC" default:"gm-catalog-events"`
	NotificationSubscription      string `envconfig:"GROCERYMART_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"gm-order-notifications"`
	OfferNotificationSubscription string `envconfig:"GROCERYMART_PUBSUB_OFFER_NOTIFICATION_SUBSCRIPTION" default:"gm-offer-notifications"`
	AnalyticsSubscription         string `envconfig:"GROCERYMART_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"gm-order-analytics"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"GROCERYMART_BIGQUERY_DATASET" default:"grocerymart"`
	OrderEventsTable string `envconfig:"GROCERYMART_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
	// AutoCreate provisions a missing dataset or table instead of failing startup.
	AutoCreate bool   `envconfig:"GROCERYMART_BIGQUERY_AUTO_CREATE" default:"false"`
	Location   string `envconfig:"GROCERYMART_BIGQUERY_LOCATION" default:"US"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"GROCERYMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"GROCERYMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"GROCERYMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"GROCERYMART_OUTBOX_RETENTION" default:"168h"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"GROCERYMART_CRON_INTERVAL" default:"1h"`
	LockTTL           time.Duration `envconfig:"GROCERYMART_CRON_LOCK_TTL" default:"10m"`
	LowStockThreshold int           `envconfig:"GROCERYMART_CRON_LOW_STOCK_THRESHOLD" default:"5"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	missing := []string{}
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
