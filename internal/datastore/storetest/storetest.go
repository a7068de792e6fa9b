// Package storetest holds the behaviour every interfaces.Store backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"grammargame/internal"
	"grammargame/internal/interfaces"
	"grammargame/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Factory func(t *testing.T) interfaces.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("UpdateProgress", func(t *testing.T) { testUpdateProgress(t, newStore(t)) })
	t.Run("Complete", func(t *testing.T) { testComplete(t, newStore(t)) })
	t.Run("CompleteClampsEndTime", func(t *testing.T) { testCompleteClampsEndTime(t, newStore(t)) })
	t.Run("CompleteFinalScore", func(t *testing.T) { testCompleteFinalScore(t, newStore(t)) })
	t.Run("ConcurrentComplete", func(t *testing.T) { testConcurrentComplete(t, newStore(t)) })
	t.Run("ConcurrentWritesReturnOwnRow", func(t *testing.T) { testConcurrentWritesReturnOwnRow(t, newStore(t)) })
	t.Run("ListByUser", func(t *testing.T) { testListByUser(t, newStore(t)) })
	t.Run("ListCompleted", func(t *testing.T) { testListCompleted(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

func newSession(t *testing.T, store interfaces.Store, userID string, start time.Time) *models.GameSession {
	t.Helper()

	session := internal.NewGameSession(uuid.NewString(), userID, start)
	require.NoError(t, store.CreateGameSession(context.Background(), session))
	return session
}

func testCreateAndGet(t *testing.T, store interfaces.Store) {
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 10, 0, 0, 123_000_000, time.UTC)
	session := newSession(t, store, "user-1", start)

	got, err := store.GetGameSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, 1, got.Level)
	assert.True(t, got.StartTime.Equal(start), "start time %v != %v", got.StartTime, start)
	assert.Nil(t, got.EndTime)
	assert.False(t, got.Completed)

	_, err = store.GetGameSession(ctx, uuid.NewString())
	assert.ErrorIs(t, err, internal.ErrNotFound)

	err = store.CreateGameSession(ctx, session)
	assert.ErrorIs(t, err, internal.ErrStorage)
}

func testUpdateProgress(t *testing.T, store interfaces.Store) {
	ctx := context.Background()
	session := newSession(t, store, "user-1", time.Now())

	got, err := store.UpdateGameSessionProgress(ctx, session.ID, models.ProgressUpdate{Score: 150, Level: 2, Monotonic: true})
	require.NoError(t, err)
	assert.Equal(t, 150, got.Score)
	assert.Equal(t, 2, got.Level)

	_, err = store.UpdateGameSessionProgress(ctx, session.ID, models.ProgressUpdate{Score: 100, Level: 3, Monotonic: true})
	assert.ErrorIs(t, err, internal.ErrScoreRegression)

	got, err = store.UpdateGameSessionProgress(ctx, session.ID, models.ProgressUpdate{Score: 150, Level: 3, Monotonic: true})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Level)

	got, err = store.UpdateGameSessionProgress(ctx, session.ID, models.ProgressUpdate{Score: 90, Level: 3, Monotonic: false})
	require.NoError(t, err)
	assert.Equal(t, 90, got.Score)

	_, err = store.UpdateGameSessionProgress(ctx, uuid.NewString(), models.ProgressUpdate{Score: 1, Level: 1})
	assert.ErrorIs(t, err, internal.ErrNotFound)
}

func testComplete(t *testing.T, store interfaces.Store) {
	ctx := context.Background()
	session := newSession(t, store, "user-1", time.Now().Add(-time.Minute))

	_, err := store.UpdateGameSessionProgress(ctx, session.ID, models.ProgressUpdate{Score: 150, Level: 2})
	require.NoError(t, err)

	endTime := internal.Timestamp(time.Now())
	got, err := store.CompleteGameSession(ctx, session.ID, models.Completion{EndTime: endTime})
	require.NoError(t, err)
	assert.True(t, got.Completed)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(endTime), "end time %v != %v", got.EndTime, endTime)
	assert.Equal(t, 150, got.Score)
	require.NoError(t, internal.ValidateSession(got))

	_, err = store.CompleteGameSession(ctx, session.ID, models.Completion{EndTime: endTime.Add(time.Minute)})
	assert.ErrorIs(t, err, internal.ErrInvalidState)

	_, err = store.UpdateGameSessionProgress(ctx, session.ID, models.ProgressUpdate{Score: 200, Level: 3})
	assert.ErrorIs(t, err, internal.ErrInvalidState)

	got, err = store.GetGameSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, got.EndTime.Equal(endTime))
	assert.Equal(t, 150, got.Score)
	assert.Equal(t, 2, got.Level)

	_, err = store.CompleteGameSession(ctx, uuid.NewString(), models.Completion{EndTime: endTime})
	assert.ErrorIs(t, err, internal.ErrNotFound)
}

func testCompleteClampsEndTime(t *testing.T, store interfaces.Store) {
	ctx := context.Background()
	start := internal.Timestamp(time.Now())
	session := newSession(t, store, "user-1", start)

	got, err := store.CompleteGameSession(ctx, session.ID, models.Completion{EndTime: start.Add(-time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(start), "end time %v != start %v", got.EndTime, start)
}

func testCompleteFinalScore(t *testing.T, store interfaces.Store) {
	ctx := context.Background()
	session := newSession(t, store, "user-1", time.Now())

	_, err := store.UpdateGameSessionProgress(ctx, session.ID, models.ProgressUpdate{Score: 100, Level: 2})
	require.NoError(t, err)

	lower := 40
	_, err = store.CompleteGameSession(ctx, session.ID, models.Completion{EndTime: time.Now(), FinalScore: &lower, Monotonic: true})
	assert.ErrorIs(t, err, internal.ErrScoreRegression)

	got, err := store.GetGameSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Nil(t, got.EndTime)

	higher := 260
	got, err = store.CompleteGameSession(ctx, session.ID, models.Completion{EndTime: time.Now(), FinalScore: &higher, Monotonic: true})
	require.NoError(t, err)
	assert.Equal(t, 260, got.Score)
	assert.True(t, got.Completed)
}

func testConcurrentComplete(t *testing.T, store interfaces.Store) {
	ctx := context.Background()
	session := newSession(t, store, "user-1", time.Now())

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			endTime := internal.Timestamp(time.Now().Add(time.Duration(i) * time.Second))
			_, errs[i] = store.CompleteGameSession(ctx, session.ID, models.Completion{EndTime: endTime})
		}(i)
	}

	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, internal.ErrInvalidState)
	}
	assert.Equal(t, 1, succeeded)

	got, err := store.GetGameSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.NotNil(t, got.EndTime)
}

// Each applied write must hand back the row as it wrote it, never a later
// writer's state.
func testConcurrentWritesReturnOwnRow(t *testing.T, store interfaces.Store) {
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		session := newSession(t, store, "user-1", time.Now())

		const writers = 8
		var wg sync.WaitGroup
		start := make(chan struct{})
		updated := make([]*models.GameSession, writers)
		updateErrs := make([]error, writers)
		var completed *models.GameSession
		var completeErr error

		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				updated[i], updateErrs[i] = store.UpdateGameSessionProgress(ctx, session.ID, models.ProgressUpdate{Score: 100 + i, Level: 1 + i})
			}(i)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			completed, completeErr = store.CompleteGameSession(ctx, session.ID, models.Completion{EndTime: time.Now()})
		}()

		close(start)
		wg.Wait()

		for i := 0; i < writers; i++ {
			if updateErrs[i] != nil {
				assert.ErrorIs(t, updateErrs[i], internal.ErrInvalidState)
				continue
			}
			assert.Equal(t, 100+i, updated[i].Score)
			assert.Equal(t, 1+i, updated[i].Level)
			assert.False(t, updated[i].Completed)
			assert.Nil(t, updated[i].EndTime)
		}

		require.NoError(t, completeErr)
		assert.True(t, completed.Completed)
		assert.NotNil(t, completed.EndTime)
	}
}

func testListByUser(t *testing.T, store interfaces.Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, newSession(t, store, "alice", base.Add(time.Duration(i)*time.Minute)).ID)
	}
	newSession(t, store, "bob", base.Add(time.Hour))

	sessions, err := store.ListGameSessionsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	for i, session := range sessions {
		assert.Equal(t, "alice", session.UserID)
		assert.Equal(t, ids[2-i], session.ID)
	}

	sessions, err = store.ListGameSessionsByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func testListCompleted(t *testing.T, store interfaces.Store) {
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var inside []string
	for i := 0; i < 5; i++ {
		session := newSession(t, store, fmt.Sprintf("user-%d", i), day.Add(time.Duration(i)*time.Hour))
		_, err := store.CompleteGameSession(ctx, session.ID, models.Completion{EndTime: day.Add(time.Duration(i)*time.Hour + time.Minute)})
		require.NoError(t, err)
		inside = append(inside, session.ID)
	}

	outside := newSession(t, store, "late", day.Add(24*time.Hour))
	_, err := store.CompleteGameSession(ctx, outside.ID, models.Completion{EndTime: day.Add(25 * time.Hour)})
	require.NoError(t, err)
	newSession(t, store, "active", day.Add(time.Hour))

	to := day.Add(24 * time.Hour)
	page, err := store.ListCompletedGameSessions(ctx, day, to, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, inside[0], page[0].ID)
	assert.Equal(t, inside[1], page[1].ID)

	page, err = store.ListCompletedGameSessions(ctx, day, to, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, inside[4], page[0].ID)

	page, err = store.ListCompletedGameSessions(ctx, day, to, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func testUsers(t *testing.T, store interfaces.Store) {
	ctx := context.Background()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     "grammar_fan",
		PasswordHash: "hash",
		CreatedAt:    internal.Timestamp(time.Now()),
	}
	require.NoError(t, store.CreateUser(ctx, user))

	err := store.CreateUser(ctx, &models.User{
		ID:           uuid.NewString(),
		Username:     "grammar_fan",
		PasswordHash: "hash",
		CreatedAt:    internal.Timestamp(time.Now()),
	})
	assert.ErrorIs(t, err, internal.ErrUsernameTaken)

	got, err := store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "grammar_fan", got.Username)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = store.FindUserByUsername(ctx, "Grammar_Fan")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = store.FindUserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, internal.ErrNotFound)

	_, err = store.FindUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, internal.ErrNotFound)
}
