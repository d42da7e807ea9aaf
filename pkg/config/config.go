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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	OpenAI       OpenAIConfig
	Cron         CronConfig
	Eventing     EventingConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.App.validatePublicURL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"TINKERLY_APP_ENV" required:"true"`
	Port         string   `envconfig:"TINKERLY_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"TINKERLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"TINKERLY_LOG_WARN_STACK" default:"false"`
	PublicURL    string   `envconfig:"TINKERLY_PUBLIC_URL" required:"true"`
	CORSOrigins  []string `envconfig:"TINKERLY_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BaseURL returns the public URL without a trailing slash.
func (a AppConfig) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(a.PublicURL), "/")
}

func (a AppConfig) validatePublicURL() error {
	parsed, err := url.Parse(a.BaseURL())
	if err != nil {
		return fmt.Errorf("invalid %s: %w", EnvPublicURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an absolute http(s) url", EnvPublicURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", EnvPublicURL)
	}
	return nil
}

type DBConfig struct {
	DSN string `envconfig:"TINKERLY_DB_DSN"`

	LegacyHost     string `envconfig:"TINKERLY_DB_HOST"`
	LegacyPort     int    `envconfig:"TINKERLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TINKERLY_DB_USER"`
	LegacyPassword string `envconfig:"TINKERLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"TINKERLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"TINKERLY_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"TINKERLY_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"TINKERLY_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"TINKERLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TINKERLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TINKERLY_REDIS_URL"`
	Address      string        `envconfig:"TINKERLY_REDIS_ADDR"`
	Password     string        `envconfig:"TINKERLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"TINKERLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TINKERLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TINKERLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TINKERLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TINKERLY_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"TINKERLY_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// JWTConfig verifies access tokens minted by the identity provider.
type JWTConfig struct {
	Secret            string `envconfig:"TINKERLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TINKERLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TINKERLY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey   string        `envconfig:"TINKERLY_STRIPE_API_KEY"`
	Secret   string        `envconfig:"TINKERLY_STRIPE_SECRET"`
	Env      string        `envconfig:"TINKERLY_STRIPE_ENV" default:"test"`
	Currency string        `envconfig:"TINKERLY_STRIPE_CURRENCY" default:"usd"`
	Timeout  time.Duration `envconfig:"TINKERLY_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Configured reports whether both the API key and webhook secret are present.
func (s StripeConfig) Configured() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.Secret) != ""
}

type OpenAIConfig struct {
	APIKey    string        `envconfig:"TINKERLY_OPENAI_API_KEY"`
	Model     string        `envconfig:"TINKERLY_OPENAI_MODEL" default:"gpt-4o-mini"`
	BaseURL   string        `envconfig:"TINKERLY_OPENAI_BASE_URL"`
	Timeout   time.Duration `envconfig:"TINKERLY_OPENAI_TIMEOUT" default:"30s"`
	MaxTokens int           `envconfig:"TINKERLY_OPENAI_MAX_TOKENS" default:"2000"`
}

type CronConfig struct {
	Secret   string        `envconfig:"TINKERLY_CRON_SECRET"`
	Interval time.Duration `envconfig:"TINKERLY_CRON_INTERVAL" default:"720h"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"TINKERLY_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// RateLimitConfig throttles anonymous traffic per client IP. A zero limit disables a policy.
type RateLimitConfig struct {
	Window        time.Duration `envconfig:"TINKERLY_RATE_LIMIT_WINDOW" default:"1h"`
	AnalysisLimit int           `envconfig:"TINKERLY_RATE_LIMIT_ANALYSIS" default:"10"`
	CheckoutLimit int           `envconfig:"TINKERLY_RATE_LIMIT_CHECKOUT" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TINKERLY_AUTO_MIGRATE" default:"false"`
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
