package interfaces

import (
	"context"
	"time"

	"grammargame/internal/models"

	"github.com/go-redis/redis_rate/v10"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) error
}

// GameSessionRepository is the persistence contract of the session store.
// Update and completion must be atomic conditional writes on a single record.
type GameSessionRepository interface {
	CreateGameSession(ctx context.Context, session *models.GameSession) error
	GetGameSession(ctx context.Context, sessionID string) (*models.GameSession, error)
	UpdateGameSessionProgress(ctx context.Context, sessionID string, update models.ProgressUpdate) (*models.GameSession, error)
	CompleteGameSession(ctx context.Context, sessionID string, completion models.Completion) (*models.GameSession, error)
	ListGameSessionsByUser(ctx context.Context, userID string) ([]*models.GameSession, error)
	ListCompletedGameSessions(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.GameSession, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, userID string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Store is an explicitly owned storage handle. Shutdown releases its connections.
type Store interface {
	GameSessionRepository
	UserRepository
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Shutdown() error
}

type ObjectStorage interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}
