// Package apptest builds a fully wired injector on top of the in-memory store
// and miniredis for package tests.
package apptest

import (
	"context"
	"sync"
	"testing"
	"time"

	"grammargame/internal"
	"grammargame/internal/app"
	"grammargame/internal/config"
	"grammargame/internal/datastore/memory_store"
	"grammargame/internal/interfaces"
	"grammargame/internal/pkg/caching"
	"grammargame/internal/pkg/limiter"
	"grammargame/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"golang.org/x/crypto/bcrypt"
)

type Env struct {
	Container *do.Injector
	Config    *config.Config
	Store     *memory_store.Store
	Miniredis *miniredis.Miniredis
	Redis     redis.UniversalClient
	Limiter   *Limiter
	Objects   *ObjectStorage
}

func Config() *config.Config {
	return &config.Config{
		Mode:                        config.ModeProduction,
		Origins:                     []string{"*"},
		JWTSecret:                   "test-secret",
		JWTTTL:                      time.Hour,
		BcryptCost:                  bcrypt.MinCost,
		StoreDriver:                 config.DriverMemory,
		StoreOpTimeout:              time.Second,
		RedisURL:                    "redis://localhost:6379/0",
		ScorePolicy:                 internal.ScorePolicyMonotonic,
		LeaderboardLimit:            20,
		SessionCreateLimitPerMinute: 30,
		Archive:                     config.Archive{Prefix: "game-sessions"},
	}
}

func New(t testing.TB, opts ...func(*config.Config)) *Env {
	t.Helper()

	cfg := Config()
	for _, opt := range opts {
		opt(cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		//nolint:errcheck
		client.Close()
	})

	cache, err := caching.NewCacheRedis(client, false)
	if err != nil {
		t.Fatal(err)
	}

	authentication, err := services.NewAuthentication(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		t.Fatal(err)
	}

	env := &Env{
		Container: do.New(),
		Config:    cfg,
		Store:     memory_store.New(),
		Miniredis: mr,
		Redis:     client,
		Limiter:   &Limiter{},
		Objects:   &ObjectStorage{Objects: map[string][]byte{}},
	}

	do.ProvideValue(env.Container, cfg)
	do.ProvideValue[interfaces.Store](env.Container, env.Store)
	do.ProvideNamedValue[redis.UniversalClient](env.Container, "redis-db", client)
	do.ProvideValue[caching.Cache](env.Container, cache)
	do.ProvideValue[interfaces.Limiter](env.Container, env.Limiter)
	do.ProvideValue[interfaces.ObjectStorage](env.Container, env.Objects)
	do.ProvideValue(env.Container, authentication)
	app.ProvideServices(env.Container)

	return env
}

// Limiter allows every call until Deny is set.
type Limiter struct {
	mu    sync.Mutex
	Deny  bool
	Calls int
}

func (l *Limiter) Allow(ctx context.Context, key string, limit redis_rate.Limit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Calls++
	if l.Deny {
		return limiter.ErrRateLimited
	}
	return nil
}

type ObjectStorage struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func (s *ObjectStorage) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Objects[key] = append([]byte(nil), body...)
	return nil
}

func (s *ObjectStorage) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.Objects[key]
	return b, ok
}
