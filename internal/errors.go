package internal

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrStorage         = errors.New("storage failure")
	ErrTimeout         = errors.New("storage timeout")
	ErrUnauthenticated = errors.New("unauthenticated")
)

var (
	ErrSessionNotFound  = fmt.Errorf("%w: game session", ErrNotFound)
	ErrSessionCompleted = fmt.Errorf("%w: game session already completed", ErrInvalidState)
	ErrScoreRegression  = fmt.Errorf("%w: score may not decrease", ErrValidation)
	ErrUserNotFound     = fmt.Errorf("%w: user", ErrNotFound)
	ErrUsernameTaken    = fmt.Errorf("%w: username already taken", ErrInvalidState)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
)

// StorageError is returned for any backing store fault that is not a domain outcome.
// It matches ErrStorage, and ErrTimeout when the underlying cause is a deadline.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	switch target {
	case ErrStorage:
		return true
	case ErrTimeout:
		return e.Timeout()
	}
	return false
}

func (e *StorageError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// WrapStorage turns a driver error into a *StorageError. Domain errors pass through untouched.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}

	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState) || errors.Is(err, ErrValidation) {
		return err
	}

	return &StorageError{Op: op, Err: err}
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
