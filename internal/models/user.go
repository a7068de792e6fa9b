package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:user" bson:"-" json:"-"`
	ID            string    `bun:"id,pk" bson:"_id" json:"id"`
	Username      string    `bun:"username,notnull,unique" bson:"username" json:"username"`
	PasswordHash  string    `bun:"password_hash,notnull" bson:"password_hash" json:"-"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" bson:"created_at" json:"created_at"`
}

// UserFromAuth only use in middleware
type UserFromAuth struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
