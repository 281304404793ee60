package config

// EnvPrefix is passed to envconfig; the explicit envconfig tags below already
// carry it, so it only matters for variables without a tag.
const EnvPrefix = "EPICERIE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "EPICERIE_DB_DSN"
	EnvDBHost = "EPICERIE_DB_HOST"
	EnvDBUser = "EPICERIE_DB_USER"
	EnvDBName = "EPICERIE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
