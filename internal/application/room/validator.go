package room

import (
	"fmt"

	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/pkg/ports"
)

// Validator checks a roster before a room is created
type Validator struct{}

// NewValidator creates a new roster validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate requires exactly the mode's capacity of distinct, named players.
func (v *Validator) Validate(mode game.Mode, players []ports.Player) error {
	if _, err := game.ParseMode(string(mode)); err != nil {
		return err
	}

	if len(players) != mode.Capacity() {
		return fmt.Errorf("mode %s needs %d players, got %d", mode, mode.Capacity(), len(players))
	}

	seen := make(map[string]bool, len(players))
	for i, p := range players {
		if p == nil {
			return fmt.Errorf("player %d is nil", i)
		}
		name := p.Nickname()
		if name == "" {
			return fmt.Errorf("player %d has no nickname", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate nickname: %s", name)
		}
		seen[name] = true
	}

	return nil
}
