package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "H2H"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "H2H_DB_DSN"
	EnvDBHost = "H2H_DB_HOST"
	EnvDBUser = "H2H_DB_USER"
	EnvDBName = "H2H_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
