package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"grammargame/internal"
	"grammargame/internal/config"
	"grammargame/internal/interfaces"
	"grammargame/internal/models"
	"grammargame/internal/pkg/caching"

	"github.com/google/uuid"
	"github.com/samber/do"
)

// ServiceGameSession owns the Active -> Completed lifecycle of game sessions.
// Atomicity of updates is delegated to the store's conditional writes.
type ServiceGameSession struct {
	container *do.Injector
	store     interfaces.GameSessionRepository
	cache     caching.Cache
	cfg       *config.Config

	serviceUser        *ServiceUser
	serviceLeaderboard *ServiceLeaderboard

	now func() time.Time
}

func NewServiceGameSession(container *do.Injector) (*ServiceGameSession, error) {
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

	serviceUser, err := do.Invoke[*ServiceUser](container)
	if err != nil {
		return nil, err
	}

	serviceLeaderboard, err := do.Invoke[*ServiceLeaderboard](container)
	if err != nil {
		return nil, err
	}

	return &ServiceGameSession{
		container:          container,
		store:              store,
		cache:              cache,
		cfg:                cfg,
		serviceUser:        serviceUser,
		serviceLeaderboard: serviceLeaderboard,
		now:                time.Now,
	}, nil
}

func (service *ServiceGameSession) CreateSession(ctx context.Context, userID string) (*models.GameSession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, internal.Validationf("user id is required")
	}

	if _, err := service.serviceUser.FindUser(ctx, userID); err != nil {
		if errors.Is(err, internal.ErrNotFound) {
			return nil, internal.Validationf("user %s does not exist", userID)
		}
		return nil, err
	}

	session := internal.NewGameSession(uuid.NewString(), userID, service.now())
	if err := internal.ValidateSession(session); err != nil {
		return nil, err
	}

	opCtx, cancel := service.withTimeout(ctx)
	defer cancel()

	if err := service.store.CreateGameSession(opCtx, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (service *ServiceGameSession) UpdateProgress(ctx context.Context, sessionID string, score int, level int) (*models.GameSession, error) {
	if sessionID == "" {
		return nil, internal.Validationf("session id is required")
	}
	if err := internal.ValidateProgress(score, level); err != nil {
		return nil, err
	}

	opCtx, cancel := service.withTimeout(ctx)
	defer cancel()

	return service.store.UpdateGameSessionProgress(opCtx, sessionID, models.ProgressUpdate{
		Score:     score,
		Level:     level,
		Monotonic: service.cfg.Monotonic(),
	})
}

// CompleteSession ends the session. Of concurrent calls on one session exactly
// one succeeds; the rest get ErrSessionCompleted.
func (service *ServiceGameSession) CompleteSession(ctx context.Context, sessionID string, finalScore *int) (*models.GameSession, error) {
	if sessionID == "" {
		return nil, internal.Validationf("session id is required")
	}
	if finalScore != nil && *finalScore < 0 {
		return nil, internal.Validationf("score must be non-negative, got %d", *finalScore)
	}

	opCtx, cancel := service.withTimeout(ctx)
	defer cancel()

	session, err := service.store.CompleteGameSession(opCtx, sessionID, models.Completion{
		EndTime:    internal.Timestamp(service.now()),
		FinalScore: finalScore,
		Monotonic:  service.cfg.Monotonic(),
	})
	if err != nil {
		return nil, err
	}

	service.afterCompletion(ctx, session)
	return session, nil
}

func (service *ServiceGameSession) GetSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	if sessionID == "" {
		return nil, internal.Validationf("session id is required")
	}

	callback := func() (*models.GameSession, error) {
		opCtx, cancel := service.withTimeout(ctx)
		defer cancel()
		return service.store.GetGameSession(opCtx, sessionID)
	}

	// only completed sessions are immutable
	keep := func(session *models.GameSession) bool {
		return session != nil && session.Completed
	}

	return caching.UseCache(ctx, service.cache, DBKeyGameSession(sessionID), CACHE_TTL_15_MINS, callback, keep)
}

func (service *ServiceGameSession) ListSessionsForUser(ctx context.Context, userID string) ([]*models.GameSession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, internal.Validationf("user id is required")
	}

	opCtx, cancel := service.withTimeout(ctx)
	defer cancel()

	return service.store.ListGameSessionsByUser(opCtx, userID)
}

// afterCompletion updates derived data. Failures are logged, never returned:
// the session is already completed in the store.
func (service *ServiceGameSession) afterCompletion(ctx context.Context, session *models.GameSession) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), service.cfg.StoreOpTimeout)
	defer cancel()

	if err := service.cache.Set(ctx, DBKeyGameSession(session.ID), session, CACHE_TTL_15_MINS); err != nil {
		log.Printf("cache completed session %s: %v\n", session.ID, err)
	}

	if err := service.serviceLeaderboard.RecordCompletion(ctx, session); err != nil {
		log.Printf("record completion of session %s: %v\n", session.ID, err)
	}
}

func (service *ServiceGameSession) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, service.cfg.StoreOpTimeout)
}
