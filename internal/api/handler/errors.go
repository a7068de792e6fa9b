package handler

import (
	"errors"

	"grammargame/internal"
	"grammargame/internal/pkg/limiter"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
)

// classify attaches the HTTP error kind matching a domain error.
func classify(err error) error {
	switch {
	case errors.Is(err, internal.ErrValidation):
		return errorx.Wrap(err, errorx.Validation)
	case errors.Is(err, internal.ErrNotFound):
		return errorx.Wrap(err, errorx.NotExist)
	case errors.Is(err, internal.ErrInvalidState):
		return errorx.Wrap(err, errorx.Invalid)
	case errors.Is(err, internal.ErrUnauthenticated):
		return errorx.Wrap(err, errorx.Authn)
	case errors.Is(err, limiter.ErrRateLimited):
		return errorx.Wrap(err, errorx.RateLimiting)
	default:
		return errorx.Wrap(err, errorx.Service)
	}
}
