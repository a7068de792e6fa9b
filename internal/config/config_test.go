package config

import (
	"os"
	"testing"
	"time"

	"grammargame/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("STORE_DRIVER", DriverMemory)
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.Equal(t, []string{"*"}, cfg.Origins)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 5*time.Second, cfg.StoreOpTimeout)
	assert.Equal(t, internal.ScorePolicyMonotonic, cfg.ScorePolicy)
	assert.True(t, cfg.Monotonic())
	assert.Equal(t, 20, cfg.LeaderboardLimit)
	assert.Equal(t, "game-sessions", cfg.Archive.Prefix)
	assert.False(t, cfg.Archive.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SCORE_POLICY", "free")
	t.Setenv("STORE_OP_TIMEOUT", "250ms")
	t.Setenv("API_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ARCHIVE_BUCKET", "sessions")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, internal.ScorePolicyFree, cfg.ScorePolicy)
	assert.False(t, cfg.Monotonic())
	assert.Equal(t, 250*time.Millisecond, cfg.StoreOpTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins)
	assert.True(t, cfg.Archive.Enabled())
}

func TestLoadRequiresSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver:      DriverMemory,
			StoreOpTimeout:   time.Second,
			RedisURL:         "redis://localhost:6379/0",
			ScorePolicy:      internal.ScorePolicyMonotonic,
			BcryptCost:       10,
			LeaderboardLimit: 20,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"cluster redis", func(c *Config) { c.RedisURL, c.ClusterRedisURL = "", "redis://a:6379" }, true},
		{"postgres with dsn", func(c *Config) { c.StoreDriver, c.DatabaseDSN = DriverPostgres, "postgres://localhost/db" }, true},
		{"postgres without dsn", func(c *Config) { c.StoreDriver = DriverPostgres }, false},
		{"mongo without uri", func(c *Config) { c.StoreDriver = DriverMongo }, false},
		{"sqlite without path", func(c *Config) { c.StoreDriver = DriverSQLite }, false},
		{"unknown driver", func(c *Config) { c.StoreDriver = "cassandra" }, false},
		{"no redis", func(c *Config) { c.RedisURL = "" }, false},
		{"unknown policy", func(c *Config) { c.ScorePolicy = "strict" }, false},
		{"zero timeout", func(c *Config) { c.StoreOpTimeout = 0 }, false},
		{"bcrypt too low", func(c *Config) { c.BcryptCost = 3 }, false},
		{"bcrypt too high", func(c *Config) { c.BcryptCost = 32 }, false},
		{"zero leaderboard", func(c *Config) { c.LeaderboardLimit = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}
