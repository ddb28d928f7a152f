package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App             AppConfig
	DB              DBConfig
	Redis           RedisConfig
	JWT             JWTConfig
	FeatureFlags    FeatureFlagsConfig
	Redemption      RedemptionConfig
	VerifyRateLimit VerifyRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Redemption.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"EDUREWARDS_APP_ENV" required:"true"`
	Port         string `envconfig:"EDUREWARDS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"EDUREWARDS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"EDUREWARDS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"EDUREWARDS_DB_DSN"`
	SQLitePath string `envconfig:"EDUREWARDS_SQLITE_PATH" default:"edurewards.db"`

	LegacyHost     string `envconfig:"EDUREWARDS_DB_HOST"`
	LegacyPort     int    `envconfig:"EDUREWARDS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EDUREWARDS_DB_USER"`
	LegacyPassword string `envconfig:"EDUREWARDS_DB_PASSWORD"`
	LegacyName     string `envconfig:"EDUREWARDS_DB_NAME"`
	LegacySSLMode  string `envconfig:"EDUREWARDS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EDUREWARDS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EDUREWARDS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EDUREWARDS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EDUREWARDS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EDUREWARDS_REDIS_URL"`
	Address      string        `envconfig:"EDUREWARDS_REDIS_ADDR"`
	Password     string        `envconfig:"EDUREWARDS_REDIS_PASSWORD"`
	DB           int           `envconfig:"EDUREWARDS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EDUREWARDS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EDUREWARDS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EDUREWARDS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EDUREWARDS_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"EDUREWARDS_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"EDUREWARDS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"EDUREWARDS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"EDUREWARDS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite    bool   `envconfig:"EDUREWARDS_USE_SQLITE" default:"false"`
	AutoMigrate  bool   `envconfig:"EDUREWARDS_AUTO_MIGRATE" default:"false"`
	StoreBackend string `envconfig:"EDUREWARDS_STORE_BACKEND" default:"sql"`
}

// UsesRedisStore reports whether redemption records live in redis instead of SQL.
func (f FeatureFlagsConfig) UsesRedisStore() bool {
	return strings.EqualFold(strings.TrimSpace(f.StoreBackend), StoreBackendRedis)
}

type RedemptionConfig struct {
	ExpiryDays            int           `envconfig:"EDUREWARDS_REDEMPTION_EXPIRY_DAYS" default:"7"`
	MaxGenerationAttempts int           `envconfig:"EDUREWARDS_REDEMPTION_MAX_GENERATION_ATTEMPTS" default:"5"`
	StoreTimeout          time.Duration `envconfig:"EDUREWARDS_REDEMPTION_STORE_TIMEOUT" default:"3s"`
	LockTTL               time.Duration `envconfig:"EDUREWARDS_REDEMPTION_LOCK_TTL" default:"5s"`
}

func (r RedemptionConfig) validate() error {
	if r.ExpiryDays <= 0 {
		return fmt.Errorf("%s must be positive", EnvRedemptionExpiryDays)
	}
	if r.MaxGenerationAttempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvRedemptionMaxAttempts)
	}
	if r.StoreTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvRedemptionStoreTimeout)
	}
	return nil
}

type VerifyRateLimitConfig struct {
	Window        time.Duration `envconfig:"EDUREWARDS_VERIFY_RATE_LIMIT_WINDOW" default:"1m"`
	VerifierLimit int           `envconfig:"EDUREWARDS_VERIFY_RATE_LIMIT_VERIFIER_LIMIT" default:"60"`
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
