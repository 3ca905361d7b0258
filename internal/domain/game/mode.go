package game

import "errors"

var ErrUnknownMode = errors.New("unknown game mode")

// Mode is a matchmaking mode.
type Mode string

const (
	Mode1v1     Mode = "1v1"
	Mode1v1v1v1 Mode = "1v1v1v1"
	Mode2v2     Mode = "2v2"
)

// Modes lists every supported mode.
func Modes() []Mode {
	return []Mode{Mode1v1, Mode1v1v1v1, Mode2v2}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", ErrUnknownMode
}

// Capacity is the number of players a room of this mode holds.
func (m Mode) Capacity() int {
	switch m {
	case Mode1v1v1v1, Mode2v2:
		return 4
	default:
		return 2
	}
}

// Team returns the team of a seat. Teams in 2v2 alternate by seat (0,1,0,1);
// every other mode is free for all.
func (m Mode) Team(seat int) int {
	if m == Mode2v2 {
		return seat % 2
	}
	return seat
}

// TeamMatcher accepts the stones of every seat on team plus shared stones.
func (m Mode) TeamMatcher(team int) Matcher {
	return func(s Stone) bool {
		if s == Shared {
			return true
		}
		seat := s.Seat()
		return seat >= 0 && m.Team(seat) == team
	}
}
