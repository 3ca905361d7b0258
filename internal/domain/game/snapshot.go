package game

import (
	"errors"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")

// Phase is the lifecycle stage of a room.
type Phase string

const (
	PhaseCardSelect Phase = "card_select"
	PhasePlaying    Phase = "playing"
	PhaseFinished   Phase = "finished"
)

// SeatSnapshot describes one seated player.
type SeatSnapshot struct {
	Seat     int        `json:"seat"`
	Nickname string     `json:"nickname"`
	Team     int        `json:"team"`
	Hand     []CardType `json:"hand,omitempty"`
	Ready    bool       `json:"ready"`
	Left     bool       `json:"left"`
}

// RoomSnapshot is the persisted view of a room, written after every state
// change so operators can inspect games in progress.
type RoomSnapshot struct {
	ID        string         `json:"id"`
	Mode      Mode           `json:"mode"`
	Phase     Phase          `json:"phase"`
	Turn      string         `json:"turn,omitempty"`
	Seats     []SeatSnapshot `json:"seats"`
	Board     []string       `json:"board"`
	Moves     int            `json:"moves"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Public returns a copy without the players' hands, for viewers outside
// the room.
func (s *RoomSnapshot) Public() *RoomSnapshot {
	out := *s
	out.Seats = make([]SeatSnapshot, len(s.Seats))
	for i, seat := range s.Seats {
		seat.Hand = nil
		out.Seats[i] = seat
	}
	return &out
}
