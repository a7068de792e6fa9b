package redis_store_test

import (
	"context"
	"testing"
	"time"

	"grammargame/internal"
	"grammargame/internal/datastore/redis_store"
	"grammargame/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		//nolint:errcheck
		client.Close()
	})
	return mr, client
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)

	for _, v := range []*models.LeaderboardItem{
		{UserId: "alice", Score: 120},
		{UserId: "bob", Score: 300},
		{UserId: "carol", Score: 50},
	} {
		_, err := redis_store.SetLeaderboard(ctx, client, "Overall", v)
		require.NoError(t, err)
	}

	// a lower score never replaces a better one
	_, err := redis_store.SetLeaderboard(ctx, client, "overall", &models.LeaderboardItem{UserId: "bob", Score: 10})
	require.NoError(t, err)

	items, err := redis_store.GetLeaderboard(ctx, client, "overall", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, &models.LeaderboardItem{UserId: "bob", Score: 300, Rank: 1}, items[0])
	assert.Equal(t, &models.LeaderboardItem{UserId: "alice", Score: 120, Rank: 2}, items[1])

	me, err := redis_store.GetRankWithScore(ctx, client, "overall", "carol")
	require.NoError(t, err)
	assert.Equal(t, &models.LeaderboardItem{UserId: "carol", Score: 50, Rank: 3}, me)

	me, err = redis_store.GetRankWithScore(ctx, client, "overall", "nobody")
	require.NoError(t, err)
	assert.Nil(t, me)

	count, err := redis_store.GetLeaderboardParticipantsCount(ctx, client, "overall")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	require.NoError(t, redis_store.ClearLeaderboard(ctx, client, "overall"))
	items, err = redis_store.GetLeaderboard(ctx, client, "overall", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLastGameSession(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)

	_, err := redis_store.GetLastGameSession(ctx, client, "alice")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	active := internal.NewGameSession("s-1", "alice", time.Now())
	assert.Error(t, redis_store.SaveLastGameSession(ctx, client, active))

	endTime := active.StartTime.Add(time.Minute)
	session := *active
	session.Score = 240
	session.Level = 4
	session.EndTime = &endTime
	session.Completed = true
	require.NoError(t, redis_store.SaveLastGameSession(ctx, client, &session))

	got, err := redis_store.GetLastGameSession(ctx, client, "alice")
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, 240, got.Score)
	assert.Equal(t, 4, got.Level)
	assert.True(t, got.Completed)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(endTime))
	assert.True(t, got.StartTime.Equal(session.StartTime))

	mr.FastForward(redis_store.LAST_SESSION_TTL + time.Second)
	_, err = redis_store.GetLastGameSession(ctx, client, "alice")
	assert.ErrorIs(t, err, internal.ErrNotFound)
}
