package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"grammargame/internal"
	"grammargame/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableGameSession(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.GameSession)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.GameSession)(nil)).Index("index_game_session_user_id_start_time").IfNotExists().Column("user_id", "start_time").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.GameSession)(nil)).Index("index_game_session_completed_end_time").IfNotExists().Column("completed", "end_time").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

func CreateGameSession(ctx context.Context, db bun.IDB, gameSession *models.GameSession) error {
	_, err := db.NewInsert().Model(gameSession).Exec(ctx)
	if err != nil {
		return err
	}
	return nil
}

func GetGameSessionById(ctx context.Context, db bun.IDB, gameSessionID string) (*models.GameSession, error) {
	var gameSession models.GameSession
	err := db.NewSelect().Model(&gameSession).Where("id = ?", gameSessionID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrSessionNotFound
		}
		return nil, err
	}
	return &gameSession, nil
}

func GetUserGameSessions(ctx context.Context, db bun.IDB, userID string) ([]*models.GameSession, error) {
	gameSessions := []*models.GameSession{}
	err := db.NewSelect().Model(&gameSessions).Where("user_id = ?", userID).Order("start_time DESC", "id DESC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return gameSessions, nil
}

func GetCompletedGameSessions(ctx context.Context, db bun.IDB, from, to time.Time, limit, offset int) ([]*models.GameSession, error) {
	gameSessions := []*models.GameSession{}
	err := db.NewSelect().
		Model(&gameSessions).
		Where("completed = ?", true).
		Where("end_time >= ?", from).
		Where("end_time < ?", to).
		Order("end_time ASC", "id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return gameSessions, nil
}

// UpdateGameSessionProgress writes score and level only while the row is still active.
// The written row comes back through RETURNING; zero rows means the precondition failed
// and the row is re-read to tell why.
func UpdateGameSessionProgress(ctx context.Context, db bun.IDB, gameSessionID string, update models.ProgressUpdate) (*models.GameSession, error) {
	gameSession := new(models.GameSession)
	q := db.NewUpdate().
		Model(gameSession).
		Set("score = ?", update.Score).
		Set("level = ?", update.Level).
		Where("id = ?", gameSessionID).
		Where("completed = ?", false)
	if update.Monotonic {
		q = q.Where("score <= ?", update.Score)
	}

	return conditionalWrite(ctx, db, q, gameSession, gameSessionID, update.Score, update.Monotonic)
}

func CompleteGameSession(ctx context.Context, db bun.IDB, gameSessionID string, completion models.Completion) (*models.GameSession, error) {
	gameSession := new(models.GameSession)
	q := db.NewUpdate().
		Model(gameSession).
		Set("completed = ?", true).
		Set("end_time = CASE WHEN start_time > ? THEN start_time ELSE ? END", completion.EndTime, completion.EndTime).
		Where("id = ?", gameSessionID).
		Where("completed = ?", false)

	score := -1
	if completion.FinalScore != nil {
		score = *completion.FinalScore
		q = q.Set("score = ?", score)
		if completion.Monotonic {
			q = q.Where("score <= ?", score)
		}
	}

	return conditionalWrite(ctx, db, q, gameSession, gameSessionID, score, completion.Monotonic && completion.FinalScore != nil)
}

func conditionalWrite(ctx context.Context, db bun.IDB, q *bun.UpdateQuery, gameSession *models.GameSession, gameSessionID string, score int, monotonic bool) (*models.GameSession, error) {
	var affected int64
	res, err := q.Returning("*").Exec(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		affected, err = res.RowsAffected()
		if err != nil {
			return nil, err
		}
	}

	if affected > 0 {
		return gameSession, nil
	}

	current, err := GetGameSessionById(ctx, db, gameSessionID)
	if err != nil {
		return nil, err
	}
	if err := internal.CheckProgress(current, score, monotonic); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("conditional update of game session %s was not applied", gameSessionID)
}
