package config

const EnvPrefix = "STREETMED"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "STREETMED_APP_ENV"
	EnvPort     = "STREETMED_APP_PORT"
	EnvLogLevel = "STREETMED_LOG_LEVEL"

	EnvDBDSN    = "STREETMED_DB_DSN"
	EnvDBDriver = "STREETMED_DB_DRIVER"
	EnvDBHost   = "STREETMED_DB_HOST"
	EnvDBUser   = "STREETMED_DB_USER"
	EnvDBName   = "STREETMED_DB_NAME"

	EnvRedisURL = "STREETMED_REDIS_URL"

	EnvJWTSecret = "STREETMED_JWT_SECRET"
	EnvJWTIssuer = "STREETMED_JWT_ISSUER"

	EnvUseSQLite         = "STREETMED_USE_SQLITE"
	EnvAutoAssignEnabled = "STREETMED_AUTO_ASSIGN_ENABLED"

	EnvDefaultOrderCapacity   = "STREETMED_ROUND_DEFAULT_ORDER_CAPACITY"
	EnvQueueSnapshotTTL       = "STREETMED_QUEUE_SNAPSHOT_TTL"
	EnvSchedulerTick          = "STREETMED_SCHEDULER_TICK"
	EnvStaleSweepEvery        = "STREETMED_SCHEDULER_STALE_SWEEP_EVERY"
	EnvAssignmentReleaseAfter = "STREETMED_ASSIGNMENT_RELEASE_AFTER"
	EnvLotterySeed            = "STREETMED_LOTTERY_SEED"
	EnvCORSOrigins            = "STREETMED_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
