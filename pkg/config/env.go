package config

const (
	EnvPrefix = "TINKERLY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvPublicURL = "TINKERLY_PUBLIC_URL"
	EnvDBDSN     = "TINKERLY_DB_DSN"
	EnvDBHost    = "TINKERLY_DB_HOST"
	EnvDBUser    = "TINKERLY_DB_USER"
	EnvDBName    = "TINKERLY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
