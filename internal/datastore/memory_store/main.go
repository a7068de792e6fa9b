package memory_store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"grammargame/internal"
	"grammargame/internal/models"
)

// Store keeps sessions and users in process memory. Every write holds the
// lock for the whole check-and-set, which gives single-record atomicity.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*models.GameSession
	users     map[string]*models.User
	usernames map[string]string
}

func New() *Store {
	return &Store{
		sessions:  make(map[string]*models.GameSession),
		users:     make(map[string]*models.User),
		usernames: make(map[string]string),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

func (s *Store) Shutdown() error {
	return nil
}

func (s *Store) CreateGameSession(ctx context.Context, session *models.GameSession) error {
	if err := ctx.Err(); err != nil {
		return internal.WrapStorage("create game session", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return internal.WrapStorage("create game session", errDuplicateKey(session.ID))
	}

	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *Store) GetGameSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, internal.WrapStorage("get game session", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, internal.ErrSessionNotFound
	}

	return cloneSession(session), nil
}

func (s *Store) UpdateGameSessionProgress(ctx context.Context, sessionID string, update models.ProgressUpdate) (*models.GameSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, internal.WrapStorage("update game session progress", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, internal.ErrSessionNotFound
	}

	if err := internal.CheckProgress(session, update.Score, update.Monotonic); err != nil {
		return nil, err
	}

	session.Score = update.Score
	session.Level = update.Level
	return cloneSession(session), nil
}

func (s *Store) CompleteGameSession(ctx context.Context, sessionID string, completion models.Completion) (*models.GameSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, internal.WrapStorage("complete game session", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, internal.ErrSessionNotFound
	}

	score := session.Score
	if completion.FinalScore != nil {
		score = *completion.FinalScore
	}
	if err := internal.CheckProgress(session, score, completion.Monotonic); err != nil {
		return nil, err
	}

	endTime := internal.CompletionTime(session.StartTime, completion.EndTime)

	session.Score = score
	session.EndTime = &endTime
	session.Completed = true
	return cloneSession(session), nil
}

func (s *Store) ListGameSessionsByUser(ctx context.Context, userID string) ([]*models.GameSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, internal.WrapStorage("list game sessions", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := []*models.GameSession{}
	for _, session := range s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, cloneSession(session))
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].StartTime.After(sessions[j].StartTime)
		}
		return sessions[i].ID > sessions[j].ID
	})

	return sessions, nil
}

func (s *Store) ListCompletedGameSessions(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.GameSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, internal.WrapStorage("list completed game sessions", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := []*models.GameSession{}
	for _, session := range s.sessions {
		if !session.Completed || session.EndTime.Before(from) || !session.EndTime.Before(to) {
			continue
		}
		sessions = append(sessions, cloneSession(session))
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].EndTime.Equal(*sessions[j].EndTime) {
			return sessions[i].EndTime.Before(*sessions[j].EndTime)
		}
		return sessions[i].ID < sessions[j].ID
	})

	if offset >= len(sessions) {
		return []*models.GameSession{}, nil
	}
	sessions = sessions[offset:]
	if limit > 0 && limit < len(sessions) {
		sessions = sessions[:limit]
	}

	return sessions, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return internal.WrapStorage("create user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(user.Username)
	if _, taken := s.usernames[username]; taken {
		return internal.ErrUsernameTaken
	}
	if _, exists := s.users[user.ID]; exists {
		return internal.WrapStorage("create user", errDuplicateKey(user.ID))
	}

	u := *user
	s.users[user.ID] = &u
	s.usernames[username] = user.ID
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, internal.WrapStorage("find user", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, internal.ErrUserNotFound
	}

	u := *user
	return &u, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, internal.WrapStorage("find user by username", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, exists := s.usernames[strings.ToLower(username)]
	if !exists {
		return nil, internal.ErrUserNotFound
	}

	u := *s.users[userID]
	return &u, nil
}

func cloneSession(session *models.GameSession) *models.GameSession {
	c := *session
	if session.EndTime != nil {
		endTime := *session.EndTime
		c.EndTime = &endTime
	}
	return &c
}

type errDuplicateKey string

func (e errDuplicateKey) Error() string {
	return "duplicate key " + string(e)
}
