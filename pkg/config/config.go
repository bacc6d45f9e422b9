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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Rounds       RoundsConfig
	Queue        QueueConfig
	Scheduler    SchedulerConfig
	Lottery      LotteryConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if cfg.Rounds.DefaultOrderCapacity <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvDefaultOrderCapacity)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STREETMED_APP_ENV" required:"true"`
	Port         string `envconfig:"STREETMED_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STREETMED_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STREETMED_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STREETMED_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STREETMED_DB_DSN"`
	Driver string `envconfig:"STREETMED_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STREETMED_DB_HOST"`
	LegacyPort     int    `envconfig:"STREETMED_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STREETMED_DB_USER"`
	LegacyPassword string `envconfig:"STREETMED_DB_PASSWORD"`
	LegacyName     string `envconfig:"STREETMED_DB_NAME"`
	LegacySSLMode  string `envconfig:"STREETMED_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STREETMED_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STREETMED_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STREETMED_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STREETMED_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this at warn; zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"STREETMED_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STREETMED_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STREETMED_REDIS_ADDR"`
	Password     string        `envconfig:"STREETMED_REDIS_PASSWORD"`
	DB           int           `envconfig:"STREETMED_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STREETMED_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STREETMED_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STREETMED_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STREETMED_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STREETMED_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for access tokens issued by the identity service.
type JWTConfig struct {
	Secret string `envconfig:"STREETMED_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STREETMED_JWT_ISSUER" required:"true"`
	// Audience is checked only when set.
	Audience string        `envconfig:"STREETMED_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"STREETMED_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite         bool `envconfig:"STREETMED_USE_SQLITE" default:"false"`
	AutoMigrate       bool `envconfig:"STREETMED_AUTO_MIGRATE" default:"false"`
	AutoAssignEnabled bool `envconfig:"STREETMED_AUTO_ASSIGN_ENABLED" default:"true"`
}

type RoundsConfig struct {
	DefaultOrderCapacity int `envconfig:"STREETMED_ROUND_DEFAULT_ORDER_CAPACITY" default:"20"`
}

// QueueConfig bounds how stale the pending queue snapshot may get. Zero disables the cache.
type QueueConfig struct {
	SnapshotTTL time.Duration `envconfig:"STREETMED_QUEUE_SNAPSHOT_TTL" default:"30s"`
}

type SchedulerConfig struct {
	Tick            time.Duration `envconfig:"STREETMED_SCHEDULER_TICK" default:"1m"`
	LockTTL         time.Duration `envconfig:"STREETMED_SCHEDULER_LOCK_TTL" default:"5m"`
	AutoAssignEvery time.Duration `envconfig:"STREETMED_SCHEDULER_AUTO_ASSIGN_EVERY" default:"5m"`
	StaleSweepEvery time.Duration `envconfig:"STREETMED_SCHEDULER_STALE_SWEEP_EVERY" default:"15m"`
	// AssignmentReleaseAfter reopens orders whose assignment stayed accepted longer than this.
	// Zero keeps stale assignments in place and only reports them.
	AssignmentReleaseAfter time.Duration `envconfig:"STREETMED_ASSIGNMENT_RELEASE_AFTER" default:"0"`
	StaleReportAfter       time.Duration `envconfig:"STREETMED_ASSIGNMENT_STALE_REPORT_AFTER" default:"2h"`
}

// LotteryConfig pins the draw seed. Zero seeds from the clock.
type LotteryConfig struct {
	Seed uint64 `envconfig:"STREETMED_LOTTERY_SEED" default:"0"`
}

// CORSConfig lists the browser origins of the admin and volunteer consoles.
type CORSConfig struct {
	AllowedOrigins []string      `envconfig:"STREETMED_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxAge         time.Duration `envconfig:"STREETMED_CORS_MAX_AGE" default:"5m"`
}

// RateLimitConfig throttles public order intake per client IP and per phone number.
type RateLimitConfig struct {
	OrderWindow     time.Duration `envconfig:"STREETMED_ORDER_RATE_LIMIT_WINDOW" default:"10m"`
	OrderIPLimit    int           `envconfig:"STREETMED_ORDER_RATE_LIMIT_IP" default:"20"`
	OrderPhoneLimit int           `envconfig:"STREETMED_ORDER_RATE_LIMIT_PHONE" default:"5"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = "file:streetmed.db?cache=shared"
		}
		return nil
	}
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
