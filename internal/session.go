package internal

import (
	"time"

	"grammargame/internal/models"
)

type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionCompleted SessionState = "completed"

	DefaultSessionLevel = 1
)

type ScorePolicy string

const (
	ScorePolicyMonotonic ScorePolicy = "monotonic"
	ScorePolicyFree      ScorePolicy = "free"
)

func (p ScorePolicy) Valid() bool {
	return p == ScorePolicyMonotonic || p == ScorePolicyFree
}

func StateOf(session *models.GameSession) SessionState {
	if session.Completed {
		return SessionCompleted
	}
	return SessionActive
}

// Timestamp normalizes t to the precision every backend can round-trip.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func NewGameSession(id string, userID string, now time.Time) *models.GameSession {
	return &models.GameSession{
		ID:        id,
		UserID:    userID,
		Score:     0,
		Level:     DefaultSessionLevel,
		StartTime: Timestamp(now),
		Completed: false,
	}
}

func ValidateProgress(score int, level int) error {
	if score < 0 {
		return Validationf("score must be non-negative, got %d", score)
	}
	if level < 1 {
		return Validationf("level must be positive, got %d", level)
	}
	return nil
}

// ValidateSession checks the record-level invariants of a game session.
func ValidateSession(session *models.GameSession) error {
	if session == nil {
		return Validationf("session is nil")
	}
	if session.ID == "" {
		return Validationf("session id is required")
	}
	if session.UserID == "" {
		return Validationf("user id is required")
	}
	if err := ValidateProgress(session.Score, session.Level); err != nil {
		return err
	}
	if session.StartTime.IsZero() {
		return Validationf("start time is required")
	}
	if session.Completed != (session.EndTime != nil) {
		return Validationf("completed and end time disagree")
	}
	if session.EndTime != nil && session.EndTime.Before(session.StartTime) {
		return Validationf("end time precedes start time")
	}
	return nil
}

// CompletionTime returns now clamped so that it is never earlier than startTime.
func CompletionTime(startTime time.Time, now time.Time) time.Time {
	endTime := Timestamp(now)
	if endTime.Before(startTime) {
		return startTime
	}
	return endTime
}

// CheckProgress decides whether an update may be applied to the current record.
// Backends call it under their own atomicity guarantee.
func CheckProgress(current *models.GameSession, score int, monotonic bool) error {
	if current.Completed {
		return ErrSessionCompleted
	}
	if monotonic && score < current.Score {
		return ErrScoreRegression
	}
	return nil
}
