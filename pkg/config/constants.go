package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// CARDHAVEN_ tags so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "CARDHAVEN_APP_ENV"
	EnvDBDSN    = "CARDHAVEN_DB_DSN"
	EnvDBHost   = "CARDHAVEN_DB_HOST"
	EnvDBUser   = "CARDHAVEN_DB_USER"
	EnvDBName   = "CARDHAVEN_DB_NAME"
	EnvRedisURL = "CARDHAVEN_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
