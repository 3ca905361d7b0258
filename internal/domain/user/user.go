// Package user defines the player account entity and game results.
package user

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrNicknameTaken = errors.New("nickname already taken")
)

// User is a registered player.
type User struct {
	ID           int64     `json:"id"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Points       int       `json:"points"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlayerResult is one line of a finished game's ranking. Rank 1 is a win.
type PlayerResult struct {
	Rank       int    `json:"rank"`
	Nickname   string `json:"nickname"`
	PointDelta int    `json:"point_delta"`
	Team       int    `json:"team"`
}

// Won reports whether the result counts as a win.
func (r PlayerResult) Won() bool {
	return r.Rank == 1
}
