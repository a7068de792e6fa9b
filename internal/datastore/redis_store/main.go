package redis_store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"grammargame/internal"
	"grammargame/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const LAST_SESSION_TTL = 30 * 24 * time.Hour

func dbKeyLeaderboard(board string) string {
	return fmt.Sprintf("leaderboard:%s", strings.ToLower(board))
}

func dbKeyUserLastSession(userID string) string {
	return fmt.Sprintf("user:%s:last_session", userID)
}

// SetLeaderboard keeps the best score per user: an existing higher score is never lowered.
func SetLeaderboard(ctx context.Context, cmd redis.Cmdable, board string, v *models.LeaderboardItem) (*models.LeaderboardItem, error) {
	err := cmd.ZAddGT(ctx, dbKeyLeaderboard(board), redis.Z{
		Score:  v.Score,
		Member: v.UserId,
	}).Err()

	if err != nil {
		return nil, err
	}

	return v, nil
}

func ClearLeaderboard(ctx context.Context, cmd redis.Cmdable, board string) error {
	err := cmd.Del(ctx, dbKeyLeaderboard(board)).Err()
	if err != nil {
		return err
	}

	return nil
}

func GetLeaderboard(ctx context.Context, cmd redis.Cmdable, board string, num int) ([]*models.LeaderboardItem, error) {
	// num always greater than 0
	items, err := cmd.ZRevRangeWithScores(ctx, dbKeyLeaderboard(board), 0, int64(num-1)).Result()
	if err != nil {
		return nil, err
	}

	results := []*models.LeaderboardItem{}
	for i, item := range items {
		id, _ := item.Member.(string)
		results = append(results, &models.LeaderboardItem{
			UserId: id,
			Score:  item.Score,
			Rank:   i + 1,
		})
	}

	return results, nil
}

func GetRank(ctx context.Context, cmd redis.Cmdable, board string, userID string) (int64, error) {
	return cmd.ZRevRank(ctx, dbKeyLeaderboard(board), userID).Result()
}

func GetScore(ctx context.Context, cmd redis.Cmdable, board string, userID string) (float64, error) {
	return cmd.ZScore(ctx, dbKeyLeaderboard(board), userID).Result()
}

// GetRankWithScore returns nil when the user is not on the board.
func GetRankWithScore(ctx context.Context, cmd redis.Cmdable, board string, userID string) (*models.LeaderboardItem, error) {
	rank, err := GetRank(ctx, cmd, board, userID)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	score, err := GetScore(ctx, cmd, board, userID)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &models.LeaderboardItem{
		UserId: userID,
		Score:  score,
		Rank:   int(rank) + 1,
	}, nil
}

func GetLeaderboardParticipantsCount(ctx context.Context, cmd redis.Cmdable, board string) (int64, error) {
	count, err := cmd.ZCard(ctx, dbKeyLeaderboard(board)).Result()
	if err != nil {
		return 0, err
	}

	return count, nil
}

func SaveLastGameSession(ctx context.Context, cmd redis.Cmdable, v *models.GameSession) error {
	if v.UserID == "" || !v.Completed {
		return errors.New("invalid session")
	}

	b, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}

	return cmd.Set(ctx, dbKeyUserLastSession(v.UserID), b, LAST_SESSION_TTL).Err()
}

func GetLastGameSession(ctx context.Context, cmd redis.Cmdable, userID string) (*models.GameSession, error) {
	b, err := cmd.Get(ctx, dbKeyUserLastSession(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, internal.ErrSessionNotFound
		}
		return nil, err
	}

	var v models.GameSession
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
