package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"grammargame/internal"
	"grammargame/internal/config"
	"grammargame/internal/interfaces"
	"grammargame/internal/models"

	"github.com/google/uuid"
	"github.com/samber/do"
	"golang.org/x/crypto/bcrypt"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

type ServiceUser struct {
	container      *do.Injector
	store          interfaces.UserRepository
	cfg            *config.Config
	authentication *Authentication

	// compared against when the username is unknown, so both login paths pay for bcrypt
	dummyHash []byte
}

func NewServiceUser(container *do.Injector) (*ServiceUser, error) {
	store, err := do.Invoke[interfaces.Store](container)
	if err != nil {
		return nil, err
	}

	cfg, err := do.Invoke[*config.Config](container)
	if err != nil {
		return nil, err
	}

	authentication, err := do.Invoke[*Authentication](container)
	if err != nil {
		return nil, err
	}

	dummyHash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	return &ServiceUser{container, store, cfg, authentication, dummyHash}, nil
}

func (service *ServiceUser) Register(ctx context.Context, username string, password string) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), service.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    internal.Timestamp(time.Now()),
	}

	opCtx, cancel := context.WithTimeout(ctx, service.cfg.StoreOpTimeout)
	defer cancel()

	if err := service.store.CreateUser(opCtx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (service *ServiceUser) Login(ctx context.Context, username string, password string) (*models.LoginResponse, error) {
	opCtx, cancel := context.WithTimeout(ctx, service.cfg.StoreOpTimeout)
	defer cancel()

	user, err := service.store.FindUserByUsername(opCtx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, internal.ErrNotFound) {
			//nolint:errcheck
			bcrypt.CompareHashAndPassword(service.dummyHash, []byte(password))
			return nil, internal.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, internal.ErrInvalidCredentials
	}

	token, err := service.authentication.CreateToken(&models.UserFromAuth{
		ID:       user.ID,
		Username: user.Username,
	})
	if err != nil {
		return nil, err
	}

	return &models.LoginResponse{Token: token, User: user}, nil
}

func (service *ServiceUser) FindUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, internal.ErrUserNotFound
	}

	opCtx, cancel := context.WithTimeout(ctx, service.cfg.StoreOpTimeout)
	defer cancel()

	return service.store.FindUserByID(opCtx, userID)
}

func validateCredentials(username string, password string) error {
	if len(username) < USERNAME_MIN_LENGTH || len(username) > USERNAME_MAX_LENGTH {
		return internal.Validationf("username must be %d to %d characters", USERNAME_MIN_LENGTH, USERNAME_MAX_LENGTH)
	}
	if !usernamePattern.MatchString(username) {
		return internal.Validationf("username may only contain a-z, 0-9 and _")
	}
	if len(password) < PASSWORD_MIN_LENGTH || len(password) > PASSWORD_MAX_LENGTH {
		return internal.Validationf("password must be %d to %d bytes", PASSWORD_MIN_LENGTH, PASSWORD_MAX_LENGTH)
	}
	return nil
}
