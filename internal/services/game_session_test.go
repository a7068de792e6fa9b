package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"grammargame/internal"
	"grammargame/internal/app/apptest"
	"grammargame/internal/config"
	"grammargame/internal/datastore/redis_store"
	"grammargame/internal/models"
	"grammargame/internal/services"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGameSessionService(t *testing.T, opts ...func(*config.Config)) (*apptest.Env, *services.ServiceGameSession) {
	t.Helper()

	env := apptest.New(t, opts...)
	service, err := do.Invoke[*services.ServiceGameSession](env.Container)
	require.NoError(t, err)
	return env, service
}

func registerUser(t *testing.T, env *apptest.Env, username string) *models.User {
	t.Helper()

	serviceUser, err := do.Invoke[*services.ServiceUser](env.Container)
	require.NoError(t, err)

	user, err := serviceUser.Register(context.Background(), username, "correct-horse")
	require.NoError(t, err)
	return user
}

func intPtr(v int) *int {
	return &v
}

func TestGameSessionLifecycle(t *testing.T) {
	env, service := newGameSessionService(t)
	ctx := context.Background()
	user := registerUser(t, env, "user_1")

	// 1. create
	session, err := service.CreateSession(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, 0, session.Score)
	assert.Equal(t, 1, session.Level)
	assert.False(t, session.Completed)
	assert.Nil(t, session.EndTime)
	assert.Equal(t, internal.SessionActive, internal.StateOf(session))

	// 2. progress
	session, err = service.UpdateProgress(ctx, session.ID, 150, 2)
	require.NoError(t, err)
	assert.Equal(t, 150, session.Score)
	assert.Equal(t, 2, session.Level)
	assert.False(t, session.Completed)

	// 3. complete, then progress is rejected
	completed, err := service.CompleteSession(ctx, session.ID, nil)
	require.NoError(t, err)
	assert.True(t, completed.Completed)
	require.NotNil(t, completed.EndTime)
	assert.False(t, completed.EndTime.Before(completed.StartTime))
	assert.Equal(t, 150, completed.Score)
	assert.Equal(t, internal.SessionCompleted, internal.StateOf(completed))

	_, err = service.UpdateProgress(ctx, session.ID, 200, 3)
	assert.ErrorIs(t, err, internal.ErrInvalidState)

	stored, err := service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 150, stored.Score)
	assert.Equal(t, 2, stored.Level)

	// 4. missing session
	_, err = service.GetSession(ctx, "nonexistent")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	// 5. second completion keeps the first end time
	_, err = service.CompleteSession(ctx, session.ID, nil)
	assert.ErrorIs(t, err, internal.ErrInvalidState)

	stored, err = service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EndTime)
	assert.True(t, stored.EndTime.Equal(*completed.EndTime))
	require.NoError(t, internal.ValidateSession(stored))
}

func TestCreateSessionValidation(t *testing.T) {
	_, service := newGameSessionService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"unknown user", "no-such-user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateSession(ctx, tt.userID)
			assert.ErrorIs(t, err, internal.ErrValidation)
		})
	}
}

func TestUpdateProgressValidation(t *testing.T) {
	env, service := newGameSessionService(t)
	ctx := context.Background()
	user := registerUser(t, env, "validator")

	session, err := service.CreateSession(ctx, user.ID)
	require.NoError(t, err)

	_, err = service.UpdateProgress(ctx, session.ID, 40, 2)
	require.NoError(t, err)

	tests := []struct {
		name      string
		sessionID string
		score     int
		level     int
		want      error
	}{
		{"empty id", "", 10, 1, internal.ErrValidation},
		{"negative score", session.ID, -1, 1, internal.ErrValidation},
		{"zero level", session.ID, 10, 0, internal.ErrValidation},
		{"score regression", session.ID, 39, 2, internal.ErrScoreRegression},
		{"unknown session", "missing", 10, 1, internal.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.UpdateProgress(ctx, tt.sessionID, tt.score, tt.level)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	stored, err := service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.Score)
	assert.Equal(t, 2, stored.Level)
}

func TestUpdateProgressFreeScorePolicy(t *testing.T) {
	env, service := newGameSessionService(t, func(cfg *config.Config) {
		cfg.ScorePolicy = internal.ScorePolicyFree
	})
	ctx := context.Background()
	user := registerUser(t, env, "free_player")

	session, err := service.CreateSession(ctx, user.ID)
	require.NoError(t, err)

	_, err = service.UpdateProgress(ctx, session.ID, 80, 3)
	require.NoError(t, err)

	session, err = service.UpdateProgress(ctx, session.ID, 20, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, session.Score)
	assert.Equal(t, 1, session.Level)
}

func TestCompleteSessionFinalScore(t *testing.T) {
	env, service := newGameSessionService(t)
	ctx := context.Background()
	user := registerUser(t, env, "finisher")

	t.Run("raises score", func(t *testing.T) {
		session, err := service.CreateSession(ctx, user.ID)
		require.NoError(t, err)

		completed, err := service.CompleteSession(ctx, session.ID, intPtr(320))
		require.NoError(t, err)
		assert.Equal(t, 320, completed.Score)
		assert.True(t, completed.Completed)
	})

	t.Run("negative final score", func(t *testing.T) {
		session, err := service.CreateSession(ctx, user.ID)
		require.NoError(t, err)

		_, err = service.CompleteSession(ctx, session.ID, intPtr(-5))
		assert.ErrorIs(t, err, internal.ErrValidation)
	})

	t.Run("regressing final score leaves session active", func(t *testing.T) {
		session, err := service.CreateSession(ctx, user.ID)
		require.NoError(t, err)

		_, err = service.UpdateProgress(ctx, session.ID, 100, 2)
		require.NoError(t, err)

		_, err = service.CompleteSession(ctx, session.ID, intPtr(50))
		assert.ErrorIs(t, err, internal.ErrScoreRegression)

		stored, err := service.GetSession(ctx, session.ID)
		require.NoError(t, err)
		assert.False(t, stored.Completed)
		assert.Nil(t, stored.EndTime)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := service.CompleteSession(ctx, "missing", nil)
		assert.ErrorIs(t, err, internal.ErrNotFound)
	})
}

func TestConcurrentCompleteSession(t *testing.T) {
	env, service := newGameSessionService(t)
	ctx := context.Background()
	user := registerUser(t, env, "racer")

	session, err := service.CreateSession(ctx, user.ID)
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan error, callers)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := service.CompleteSession(ctx, session.ID, nil)
			results <- err
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, internal.ErrInvalidState)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
	assert.NotNil(t, stored.EndTime)
}

func TestListSessionsForUser(t *testing.T) {
	env, service := newGameSessionService(t)
	ctx := context.Background()
	alice := registerUser(t, env, "alice")
	bob := registerUser(t, env, "bob")

	var aliceIDs []string
	for i := 0; i < 3; i++ {
		session, err := service.CreateSession(ctx, alice.ID)
		require.NoError(t, err)
		aliceIDs = append(aliceIDs, session.ID)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := service.CreateSession(ctx, bob.ID)
	require.NoError(t, err)

	sessions, err := service.ListSessionsForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	for i, session := range sessions {
		assert.Equal(t, alice.ID, session.UserID)
		assert.Equal(t, aliceIDs[len(aliceIDs)-1-i], session.ID)
	}

	sessions[0].Score = 999
	again, err := service.ListSessionsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again[0].Score)

	_, err = service.ListSessionsForUser(ctx, "")
	assert.ErrorIs(t, err, internal.ErrValidation)

	none, err := service.ListSessionsForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSessionUserIDWhitespace(t *testing.T) {
	env, service := newGameSessionService(t)
	ctx := context.Background()
	user := registerUser(t, env, "spacey")

	session, err := service.CreateSession(ctx, " "+user.ID+"\t")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)

	for _, id := range []string{user.ID, " " + user.ID, user.ID + " "} {
		sessions, err := service.ListSessionsForUser(ctx, id)
		require.NoError(t, err)
		require.Len(t, sessions, 1, "user id %q", id)
		assert.Equal(t, session.ID, sessions[0].ID)
	}

	_, err = service.ListSessionsForUser(ctx, "   ")
	assert.ErrorIs(t, err, internal.ErrValidation)
}

func TestCompleteSessionUpdatesDerivedData(t *testing.T) {
	env, service := newGameSessionService(t)
	ctx := context.Background()
	user := registerUser(t, env, "scorer")

	session, err := service.CreateSession(ctx, user.ID)
	require.NoError(t, err)

	_, err = service.CompleteSession(ctx, session.ID, intPtr(75))
	require.NoError(t, err)

	for _, board := range []string{services.LEADERBOARD_OVERALL, services.LEADERBOARD_OVERALL_WEEKLY} {
		item, err := redis_store.GetRankWithScore(ctx, env.Redis, board, user.ID)
		require.NoError(t, err)
		require.NotNil(t, item, board)
		assert.Equal(t, float64(75), item.Score)
		assert.Equal(t, 1, item.Rank)
	}

	last, err := redis_store.GetLastGameSession(ctx, env.Redis, user.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, last.ID)
	assert.True(t, last.Completed)
}

func TestCompleteSessionSurvivesRedisOutage(t *testing.T) {
	env, service := newGameSessionService(t)
	ctx := context.Background()
	user := registerUser(t, env, "offline")

	session, err := service.CreateSession(ctx, user.ID)
	require.NoError(t, err)

	env.Miniredis.SetError("ERR redis is unavailable")

	completed, err := service.CompleteSession(ctx, session.ID, nil)
	require.NoError(t, err)
	assert.True(t, completed.Completed)

	stored, err := service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
}

func TestOperationTimeout(t *testing.T) {
	env, service := newGameSessionService(t)
	user := registerUser(t, env, "sleepy")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := service.CreateSession(ctx, user.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, internal.ErrTimeout)
	assert.ErrorIs(t, err, internal.ErrStorage)

	var storageErr *internal.StorageError
	assert.True(t, errors.As(err, &storageErr))
}
