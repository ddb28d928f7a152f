package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "EDUREWARDS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StoreBackendSQL   = "sql"
	StoreBackendRedis = "redis"
)

const (
	EnvAppEnv   = "EDUREWARDS_APP_ENV"
	EnvPort     = "EDUREWARDS_APP_PORT"
	EnvLogLevel = "EDUREWARDS_LOG_LEVEL"

	EnvDBDSN  = "EDUREWARDS_DB_DSN"
	EnvDBHost = "EDUREWARDS_DB_HOST"
	EnvDBUser = "EDUREWARDS_DB_USER"
	EnvDBName = "EDUREWARDS_DB_NAME"

	EnvSQLitePath = "EDUREWARDS_SQLITE_PATH"
	EnvUseSQLite  = "EDUREWARDS_USE_SQLITE"
	EnvStore      = "EDUREWARDS_STORE_BACKEND"

	EnvRedisURL = "EDUREWARDS_REDIS_URL"

	EnvJWTSecret  = "EDUREWARDS_JWT_SECRET"
	EnvJWTIssuer  = "EDUREWARDS_JWT_ISSUER"
	EnvJWTExpMins = "EDUREWARDS_JWT_EXPIRATION_MINUTES"

	EnvRedemptionExpiryDays   = "EDUREWARDS_REDEMPTION_EXPIRY_DAYS"
	EnvRedemptionMaxAttempts  = "EDUREWARDS_REDEMPTION_MAX_GENERATION_ATTEMPTS"
	EnvRedemptionStoreTimeout = "EDUREWARDS_REDEMPTION_STORE_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
