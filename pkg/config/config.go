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
	FeatureFlags FeatureFlagsConfig
	Txn          TxnConfig
	Retention    RetentionConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"CARDHAVEN_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"CARDHAVEN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARDHAVEN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CARDHAVEN_SERVICE_KIND" default:"engine"`
}

type DBConfig struct {
	DSN    string `envconfig:"CARDHAVEN_DB_DSN"`
	Driver string `envconfig:"CARDHAVEN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARDHAVEN_DB_HOST"`
	LegacyPort     int    `envconfig:"CARDHAVEN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARDHAVEN_DB_USER"`
	LegacyPassword string `envconfig:"CARDHAVEN_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARDHAVEN_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARDHAVEN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARDHAVEN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARDHAVEN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARDHAVEN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARDHAVEN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARDHAVEN_REDIS_URL"`
	Address      string        `envconfig:"CARDHAVEN_REDIS_ADDR"`
	Password     string        `envconfig:"CARDHAVEN_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARDHAVEN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARDHAVEN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARDHAVEN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARDHAVEN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARDHAVEN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARDHAVEN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// FeatureFlagsConfig carries the toggles handed to engine construction.
// Tests build engines with different toggle states side by side, so nothing
// here is read from ambient globals after startup.
type FeatureFlagsConfig struct {
	CreditEnabled    bool `envconfig:"CARDHAVEN_FEATURE_CREDIT" default:"true"`
	TransfersEnabled bool `envconfig:"CARDHAVEN_FEATURE_TRANSFERS" default:"true"`
	UseSQLite        bool `envconfig:"CARDHAVEN_USE_SQLITE" default:"false"`
	AutoMigrate      bool `envconfig:"CARDHAVEN_AUTO_MIGRATE" default:"false"`
}

// TxnConfig tunes the transaction retry wrapper.
type TxnConfig struct {
	MaxAttempts int           `envconfig:"CARDHAVEN_TXN_MAX_ATTEMPTS" default:"3"`
	BaseBackoff time.Duration `envconfig:"CARDHAVEN_TXN_BASE_BACKOFF" default:"50ms"`
}

// OutboxConfig tunes the outbox publisher loop.
type OutboxConfig struct {
	BatchSize    int           `envconfig:"CARDHAVEN_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"CARDHAVEN_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"CARDHAVEN_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// RetentionConfig controls the cron worker's pruning windows, in days.
// A zero value disables the corresponding prune.
type RetentionConfig struct {
	OutboxDays         int `envconfig:"CARDHAVEN_RETENTION_OUTBOX_DAYS" default:"30"`
	TransferLogDays    int `envconfig:"CARDHAVEN_RETENTION_TRANSFER_LOG_DAYS" default:"365"`
	IdempotencyKeyDays int `envconfig:"CARDHAVEN_RETENTION_IDEMPOTENCY_DAYS" default:"90"`
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
