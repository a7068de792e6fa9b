package datastore

import (
	"context"
	"database/sql"
	"time"

	"grammargame/internal"
	"grammargame/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

// SQLStore serves the session and user repositories from a bun database.
type SQLStore struct {
	db *bun.DB
}

func NewSQLStore(db *bun.DB) *SQLStore {
	return &SQLStore{db: db}
}

func OpenPostgres(dsn string, password string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithPassword(password),
	))

	return bun.NewDB(sqldb, pgdialect.New())
}

func OpenSQLite(path string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection keeps in-memory databases shared
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return internal.WrapStorage("ping", s.db.PingContext(ctx))
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := CreateTableUser(ctx, s.db); err != nil {
		return internal.WrapStorage("migrate user", err)
	}
	if err := CreateTableGameSession(ctx, s.db); err != nil {
		return internal.WrapStorage("migrate game_session", err)
	}
	return nil
}

func (s *SQLStore) Shutdown() error {
	return s.db.Close()
}

func (s *SQLStore) CreateGameSession(ctx context.Context, session *models.GameSession) error {
	return internal.WrapStorage("create game session", CreateGameSession(ctx, s.db, session))
}

func (s *SQLStore) GetGameSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	session, err := GetGameSessionById(ctx, s.db, sessionID)
	return session, internal.WrapStorage("get game session", err)
}

func (s *SQLStore) UpdateGameSessionProgress(ctx context.Context, sessionID string, update models.ProgressUpdate) (*models.GameSession, error) {
	session, err := UpdateGameSessionProgress(ctx, s.db, sessionID, update)
	return session, internal.WrapStorage("update game session progress", err)
}

func (s *SQLStore) CompleteGameSession(ctx context.Context, sessionID string, completion models.Completion) (*models.GameSession, error) {
	session, err := CompleteGameSession(ctx, s.db, sessionID, completion)
	return session, internal.WrapStorage("complete game session", err)
}

func (s *SQLStore) ListGameSessionsByUser(ctx context.Context, userID string) ([]*models.GameSession, error) {
	sessions, err := GetUserGameSessions(ctx, s.db, userID)
	return sessions, internal.WrapStorage("list game sessions", err)
}

func (s *SQLStore) ListCompletedGameSessions(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.GameSession, error) {
	sessions, err := GetCompletedGameSessions(ctx, s.db, from, to, limit, offset)
	return sessions, internal.WrapStorage("list completed game sessions", err)
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	return internal.WrapStorage("create user", CreateUser(ctx, s.db, user))
}

func (s *SQLStore) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := FindUserByID(ctx, s.db, userID)
	return user, internal.WrapStorage("find user", err)
}

func (s *SQLStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := FindUserByUsername(ctx, s.db, username)
	return user, internal.WrapStorage("find user by username", err)
}
