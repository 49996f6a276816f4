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
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	PayPal        PayPalConfig
	TokenReward   TokenRewardConfig
	SMTP          SMTPConfig
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
	Env          string `envconfig:"H2H_APP_ENV" required:"true"`
	Port         string `envconfig:"H2H_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"H2H_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"H2H_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"H2H_DB_DSN"`
	Driver string `envconfig:"H2H_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"H2H_DB_HOST"`
	LegacyPort     int    `envconfig:"H2H_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"H2H_DB_USER"`
	LegacyPassword string `envconfig:"H2H_DB_PASSWORD"`
	LegacyName     string `envconfig:"H2H_DB_NAME"`
	LegacySSLMode  string `envconfig:"H2H_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"H2H_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"H2H_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"H2H_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"H2H_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"H2H_REDIS_URL" required:"true"`
	Address      string        `envconfig:"H2H_REDIS_ADDR"`
	Password     string        `envconfig:"H2H_REDIS_PASSWORD"`
	DB           int           `envconfig:"H2H_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"H2H_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"H2H_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"H2H_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"H2H_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"H2H_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"H2H_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"H2H_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"H2H_JWT_EXPIRATION_MINUTES" default:"10080"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"H2H_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"H2H_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"H2H_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"H2H_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"H2H_ARGON_KEY_LEN" default:"32"`

	ResetTokenTTLMinutes int `envconfig:"H2H_PASSWORD_RESET_TTL_MINUTES" default:"30"`
}

// ResetTokenTTL returns the password reset token lifetime.
func (p PasswordConfig) ResetTokenTTL() time.Duration {
	if p.ResetTokenTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(p.ResetTokenTTLMinutes) * time.Minute
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"H2H_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"H2H_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"H2H_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"H2H_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"H2H_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"H2H_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"H2H_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"H2H_AUTO_MIGRATE" default:"false"`
}

type PayPalConfig struct {
	BaseURL      string        `envconfig:"H2H_PAYPAL_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
	ClientID     string        `envconfig:"H2H_PAYPAL_CLIENT_ID"`
	ClientSecret string        `envconfig:"H2H_PAYPAL_CLIENT_SECRET"`
	WebhookID    string        `envconfig:"H2H_PAYPAL_WEBHOOK_ID"`
	Currency     string        `envconfig:"H2H_PAYPAL_CURRENCY" default:"THB"`
	Timeout      time.Duration `envconfig:"H2H_PAYPAL_TIMEOUT" default:"15s"`
	ReturnURL    string        `envconfig:"H2H_PAYPAL_RETURN_URL"`
	CancelURL    string        `envconfig:"H2H_PAYPAL_CANCEL_URL"`
}

type TokenRewardConfig struct {
	Rate   float64 `envconfig:"H2H_TOKEN_REWARD_RATE" default:"0.01"`
	Min    int64   `envconfig:"H2H_TOKEN_REWARD_MIN" default:"1"`
	Symbol string  `envconfig:"H2H_TOKEN_SYMBOL" default:"H2H"`
}

type SMTPConfig struct {
	Host     string `envconfig:"H2H_SMTP_HOST"`
	Port     int    `envconfig:"H2H_SMTP_PORT" default:"587"`
	Username string `envconfig:"H2H_SMTP_USERNAME"`
	Password string `envconfig:"H2H_SMTP_PASSWORD"`
	From     string `envconfig:"H2H_SMTP_FROM"`
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
