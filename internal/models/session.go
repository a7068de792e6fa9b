package models

import (
	"time"

	"github.com/uptrace/bun"
)

type GameSession struct {
	bun.BaseModel `bun:"table:game_session" bson:"-" json:"-" msgpack:"-"`
	ID            string     `bun:"id,pk" bson:"_id" json:"id" msgpack:"id"`
	UserID        string     `bun:"user_id,notnull" bson:"user_id" json:"user_id" msgpack:"user_id"`
	Score         int        `bun:"score,notnull" bson:"score" json:"score" msgpack:"score"`
	Level         int        `bun:"level,notnull" bson:"level" json:"level" msgpack:"level"`
	StartTime     time.Time  `bun:"start_time,notnull" bson:"start_time" json:"start_time" msgpack:"start_time"`
	EndTime       *time.Time `bun:"end_time" bson:"end_time" json:"end_time" msgpack:"end_time"`
	Completed     bool       `bun:"completed,notnull" bson:"completed" json:"completed" msgpack:"completed"`
}

// ProgressUpdate is applied only if the session is still active and, when
// Monotonic is set, only if Score is not below the stored score.
type ProgressUpdate struct {
	Score     int
	Level     int
	Monotonic bool
}

// Completion is applied only if the session is still active. FinalScore is
// optional and subject to the same Monotonic rule as ProgressUpdate.
type Completion struct {
	EndTime    time.Time
	FinalScore *int
	Monotonic  bool
}

type GameSessionProgress struct {
	Score int `json:"score"`
	Level int `json:"level"`
}

type GameSessionCompletion struct {
	FinalScore *int `json:"final_score"`
}
