package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"grammargame/internal"
	"grammargame/internal/config"
	"grammargame/internal/datastore/redis_store"
	"grammargame/internal/interfaces"
	"grammargame/internal/models"
	"grammargame/internal/pkg"
	"grammargame/internal/pkg/caching"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

const warmUpPageSize = 500

type ServiceLeaderboard struct {
	container *do.Injector
	redisDB   redis.UniversalClient
	store     interfaces.Store
	cache     caching.Cache
	cfg       *config.Config
}

func NewServiceLeaderboard(container *do.Injector) (*ServiceLeaderboard, error) {
	db, err := do.InvokeNamed[redis.UniversalClient](container, "redis-db")
	if err != nil {
		return nil, err
	}

	store, err := do.Invoke[interfaces.Store](container)
	if err != nil {
		return nil, err
	}

	cache, err := do.Invoke[caching.Cache](container)
	if err != nil {
		return nil, err
	}

	cfg, err := do.Invoke[*config.Config](container)
	if err != nil {
		return nil, err
	}

	return &ServiceLeaderboard{container, db, store, cache, cfg}, nil
}

func (service *ServiceLeaderboard) GetLeaderboard(ctx context.Context, board string, user *models.User) (*models.LeaderboardResponse, error) {
	if !IsValidLeaderboard(board) {
		return nil, fmt.Errorf("%w: leaderboard %s", internal.ErrNotFound, board)
	}

	limit := service.cfg.LeaderboardLimit
	callback := func() (*models.LeaderboardResponse, error) {
		leaderboard, err := redis_store.GetLeaderboard(ctx, service.redisDB, board, limit)
		if err != nil {
			return nil, err
		}

		for _, item := range leaderboard {
			u, _ := service.store.FindUserByID(ctx, item.UserId)
			if u != nil {
				item.Username = u.Username
			}
		}

		me, err := redis_store.GetRankWithScore(ctx, service.redisDB, board, user.ID)
		if err != nil {
			return nil, err
		}
		if me == nil {
			me = &models.LeaderboardItem{UserId: user.ID}
		}
		me.Username = user.Username

		total, err := redis_store.GetLeaderboardParticipantsCount(ctx, service.redisDB, board)
		if err != nil {
			return nil, err
		}

		return &models.LeaderboardResponse{
			Leaderboard: leaderboard,
			Me:          me,
			Total:       total,
		}, nil
	}

	return caching.UseCache(ctx, service.cache, DBKeyLeaderboardByUser(board, user.ID, limit), CACHE_TTL_1_MIN, callback, nil)
}

// RecordCompletion pushes a completed session into the boards and the
// last-session snapshot in one pipeline.
func (service *ServiceLeaderboard) RecordCompletion(ctx context.Context, session *models.GameSession) error {
	if !session.Completed {
		return fmt.Errorf("%w: session %s is not completed", internal.ErrInvalidState, session.ID)
	}

	item := &models.LeaderboardItem{UserId: session.UserID, Score: float64(session.Score)}
	_, err := service.redisDB.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		if _, err := redis_store.SetLeaderboard(ctx, pipe, LEADERBOARD_OVERALL, item); err != nil {
			return err
		}
		if !session.EndTime.Before(pkg.StartOfWeek(time.Now())) {
			if _, err := redis_store.SetLeaderboard(ctx, pipe, LEADERBOARD_OVERALL_WEEKLY, item); err != nil {
				return err
			}
		}
		return redis_store.SaveLastGameSession(ctx, pipe, session)
	})
	return err
}

func (service *ServiceLeaderboard) GetLastSession(ctx context.Context, userID string) (*models.GameSession, error) {
	return redis_store.GetLastGameSession(ctx, service.redisDB, userID)
}

func (service *ServiceLeaderboard) ResetLeaderboard(ctx context.Context, board string) error {
	if !IsValidLeaderboard(board) {
		return fmt.Errorf("%w: leaderboard %s", internal.ErrNotFound, board)
	}
	return redis_store.ClearLeaderboard(ctx, service.redisDB, board)
}

// WarmUpLeaderboard replays the completed sessions ended in [from, to) into
// board. Scores only ever rise, so replaying is idempotent.
func (service *ServiceLeaderboard) WarmUpLeaderboard(ctx context.Context, board string, from, to time.Time) (int, error) {
	if !IsValidLeaderboard(board) {
		return 0, fmt.Errorf("%w: leaderboard %s", internal.ErrNotFound, board)
	}

	count := 0
	for offset := 0; ; offset += warmUpPageSize {
		opCtx, cancel := context.WithTimeout(ctx, service.cfg.StoreOpTimeout)
		sessions, err := service.store.ListCompletedGameSessions(opCtx, from, to, warmUpPageSize, offset)
		cancel()
		if err != nil {
			return count, err
		}

		if len(sessions) > 0 {
			_, err = service.redisDB.Pipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, session := range sessions {
					_, err := redis_store.SetLeaderboard(ctx, pipe, board, &models.LeaderboardItem{
						UserId: session.UserID,
						Score:  float64(session.Score),
					})
					if err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return count, err
			}
		}

		count += len(sessions)
		if len(sessions) < warmUpPageSize {
			break
		}
	}

	log.Printf("leaderboard %s warmed up with %d sessions\n", board, count)
	return count, nil
}
