package handler

import (
	"context"
	"errors"
	"log"

	"grammargame/internal"
	"grammargame/internal/config"
	"grammargame/internal/interfaces"
	"grammargame/internal/models"
	"grammargame/internal/pkg/limiter"
	"grammargame/internal/services"

	"github.com/go-redis/redis_rate/v10"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupSession struct {
	container *do.Injector
}

func (gr *groupSession) Create(c echo.Context) error {
	serviceGameSession, err := do.Invoke[*services.ServiceGameSession](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	ctx := c.Request().Context()
	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	if err := gr.allowCreate(ctx, user.ID); err != nil {
		return httpx.RestAbort(c, nil, classify(err))
	}

	session, err := serviceGameSession.CreateSession(ctx, user.ID)
	if err != nil {
		return httpx.RestAbort(c, nil, classify(err))
	}

	return httpx.RestAbort(c, session, nil)
}

func (gr *groupSession) List(c echo.Context) error {
	serviceGameSession, err := do.Invoke[*services.ServiceGameSession](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	ctx := c.Request().Context()
	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	sessions, err := serviceGameSession.ListSessionsForUser(ctx, user.ID)
	if err != nil {
		return httpx.RestAbort(c, nil, classify(err))
	}

	return httpx.RestAbort(c, sessions, nil)
}

func (gr *groupSession) Last(c echo.Context) error {
	serviceLeaderboard, err := do.Invoke[*services.ServiceLeaderboard](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	ctx := c.Request().Context()
	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	session, err := serviceLeaderboard.GetLastSession(ctx, user.ID)
	if err != nil {
		return httpx.RestAbort(c, nil, classify(err))
	}

	return httpx.RestAbort(c, session, nil)
}

func (gr *groupSession) Show(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	session, err := gr.ownedSession(ctx, c.Param("id"), user)
	if err != nil {
		return httpx.RestAbort(c, nil, classify(err))
	}

	return httpx.RestAbort(c, session, nil)
}

func (gr *groupSession) Progress(c echo.Context) error {
	serviceGameSession, err := do.Invoke[*services.ServiceGameSession](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	ctx := c.Request().Context()
	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	var payload models.GameSessionProgress
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	if _, err := gr.ownedSession(ctx, c.Param("id"), user); err != nil {
		return httpx.RestAbort(c, nil, classify(err))
	}

	session, err := serviceGameSession.UpdateProgress(ctx, c.Param("id"), payload.Score, payload.Level)
	if err != nil {
		return httpx.RestAbort(c, nil, classify(err))
	}

	return httpx.RestAbort(c, session, nil)
}

func (gr *groupSession) Complete(c echo.Context) error {
	serviceGameSession, err := do.Invoke[*services.ServiceGameSession](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	ctx := c.Request().Context()
	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	var payload models.GameSessionCompletion
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	if _, err := gr.ownedSession(ctx, c.Param("id"), user); err != nil {
		return httpx.RestAbort(c, nil, classify(err))
	}

	session, err := serviceGameSession.CompleteSession(ctx, c.Param("id"), payload.FinalScore)
	if err != nil {
		return httpx.RestAbort(c, nil, classify(err))
	}

	return httpx.RestAbort(c, session, nil)
}

// ownedSession hides sessions of other users behind ErrSessionNotFound.
func (gr *groupSession) ownedSession(ctx context.Context, sessionID string, user *models.User) (*models.GameSession, error) {
	serviceGameSession, err := do.Invoke[*services.ServiceGameSession](gr.container)
	if err != nil {
		return nil, err
	}

	session, err := serviceGameSession.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.UserID != user.ID {
		return nil, internal.ErrSessionNotFound
	}

	return session, nil
}

func (gr *groupSession) allowCreate(ctx context.Context, userID string) error {
	cfg, err := do.Invoke[*config.Config](gr.container)
	if err != nil {
		return err
	}
	if cfg.SessionCreateLimitPerMinute <= 0 {
		return nil
	}

	l, err := do.Invoke[interfaces.Limiter](gr.container)
	if err != nil {
		return err
	}

	err = l.Allow(ctx, services.LimitKeySessionCreate(userID), redis_rate.PerMinute(cfg.SessionCreateLimitPerMinute))
	if err != nil && !errors.Is(err, limiter.ErrRateLimited) {
		// a broken limiter must not block play
		log.Printf("session create limiter: %v\n", err)
		return nil
	}
	return err
}
