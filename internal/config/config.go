package config

import (
	"fmt"
	"time"

	"grammargame/internal"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ModeDebug      = "debug"
	ModeProduction = "production"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Mode      string        `env:"API_MODE" envDefault:"production"`
	Origins   []string      `env:"API_ORIGINS" envDefault:"*" envSeparator:","`
	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// bcrypt.MinCost is 4, bcrypt.MaxCost is 31
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	StoreDriver    string        `env:"STORE_DRIVER" envDefault:"postgres"`
	StoreOpTimeout time.Duration `env:"STORE_OP_TIMEOUT" envDefault:"5s"`
	DatabaseDSN    string        `env:"DB_DSN"`
	DatabasePass   string        `env:"DB_PASSWORD"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"file:grammargame.db?_pragma=busy_timeout(5000)"`
	MongoURI       string        `env:"MONGO_URI"`
	MongoDatabase  string        `env:"MONGO_DATABASE" envDefault:"grammar_game"`

	RedisURL        string `env:"REDIS_URL"`
	ClusterRedisURL string `env:"CLUSTER_REDIS_URL"`

	ScorePolicy                 internal.ScorePolicy `env:"SCORE_POLICY" envDefault:"monotonic"`
	LeaderboardLimit            int                  `env:"LEADERBOARD_LIMIT" envDefault:"20"`
	SessionCreateLimitPerMinute int                  `env:"SESSION_CREATE_LIMIT_PER_MINUTE" envDefault:"30"`

	CronWeeklyLeaderboard string `env:"CRON_WEEKLY_LEADERBOARD" envDefault:"0 0 * * 1"`
	CronArchive           string `env:"CRON_ARCHIVE" envDefault:"30 0 * * *"`

	Archive Archive
}

type Archive struct {
	Bucket          string `env:"ARCHIVE_BUCKET"`
	Endpoint        string `env:"ARCHIVE_ENDPOINT"`
	Region          string `env:"ARCHIVE_REGION" envDefault:"auto"`
	AccessKeyID     string `env:"ARCHIVE_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"ARCHIVE_SECRET_ACCESS_KEY"`
	Prefix          string `env:"ARCHIVE_PREFIX" envDefault:"game-sessions"`
}

func (a Archive) Enabled() bool {
	return a.Bucket != ""
}

// LoadDotEnv reads .env files the way the binaries expect when run from
// the repository (development) or from their install directory (production).
func LoadDotEnv() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DB_DSN is required for store driver %q", c.StoreDriver)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for store driver %q", c.StoreDriver)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for store driver %q", c.StoreDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}

	if c.RedisURL == "" && c.ClusterRedisURL == "" {
		return fmt.Errorf("REDIS_URL or CLUSTER_REDIS_URL is required")
	}

	if !c.ScorePolicy.Valid() {
		return fmt.Errorf("unknown score policy %q", c.ScorePolicy)
	}

	if c.StoreOpTimeout <= 0 {
		return fmt.Errorf("STORE_OP_TIMEOUT must be positive")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	if c.LeaderboardLimit <= 0 {
		return fmt.Errorf("LEADERBOARD_LIMIT must be positive")
	}

	return nil
}

func (c *Config) Monotonic() bool {
	return c.ScorePolicy == internal.ScorePolicyMonotonic
}
