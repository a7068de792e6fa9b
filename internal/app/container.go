package app

import (
	"context"
	"log"

	"grammargame/internal/config"
	"grammargame/internal/datastore"
	"grammargame/internal/interfaces"
	"grammargame/internal/pkg/archive"
	"grammargame/internal/pkg/caching"
	"grammargame/internal/pkg/limiter"
	"grammargame/internal/services"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/hiendaovinh/toolkit/pkg/db"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

func NewContainer(cfg *config.Config) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)

	do.Provide(injector, func(i *do.Injector) (interfaces.Store, error) {
		return datastore.Open(context.Background(), cfg)
	})

	do.ProvideNamed(injector, "redis-db", func(i *do.Injector) (redis.UniversalClient, error) {
		return NewRedis(cfg)
	})

	do.Provide(injector, func(i *do.Injector) (caching.Cache, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-db")
		if err != nil {
			return nil, err
		}

		return caching.NewCacheRedis(dbRedis, true)
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.Limiter, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-db")
		if err != nil {
			return nil, err
		}

		return limiter.NewLimiter(dbRedis)
	})

	do.Provide(injector, func(i *do.Injector) (*redsync.Redsync, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-db")
		if err != nil {
			return nil, err
		}

		pool := goredis.NewPool(dbRedis)
		return redsync.New(pool), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.ObjectStorage, error) {
		return archive.NewS3Storage(context.Background(), archive.S3Config{
			Bucket:          cfg.Archive.Bucket,
			Endpoint:        cfg.Archive.Endpoint,
			Region:          cfg.Archive.Region,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		})
	})

	do.Provide(injector, func(i *do.Injector) (*services.Authentication, error) {
		return services.NewAuthentication(cfg.JWTSecret, cfg.JWTTTL)
	})

	ProvideServices(injector)

	return injector
}

// ProvideServices registers the services on an injector that already holds
// the config, store, "redis-db" client, cache and authentication.
func ProvideServices(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*services.ServiceUser, error) {
		return services.NewServiceUser(i)
	})

	do.Provide(injector, func(i *do.Injector) (*services.ServiceLeaderboard, error) {
		return services.NewServiceLeaderboard(i)
	})

	do.Provide(injector, func(i *do.Injector) (*services.ServiceGameSession, error) {
		return services.NewServiceGameSession(i)
	})

	do.Provide(injector, func(i *do.Injector) (*services.ServiceArchive, error) {
		return services.NewServiceArchive(i)
	})
}

func NewRedis(cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.ClusterRedisURL != "" {
		clusterOpts, err := redis.ParseClusterURL(cfg.ClusterRedisURL)
		if err != nil {
			return nil, err
		}
		return redis.NewClusterClient(clusterOpts), nil
	}

	client, err := db.InitRedis(&db.RedisConfig{
		URL: cfg.RedisURL,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Shutdown closes the redis client and every shutdownable service, the store included.
func Shutdown(injector *do.Injector) {
	if client, err := do.InvokeNamed[redis.UniversalClient](injector, "redis-db"); err == nil {
		if err := client.Close(); err != nil {
			log.Println("close redis:", err)
		}
	}

	if err := injector.Shutdown(); err != nil {
		log.Println("shutdown:", err)
	}
}
