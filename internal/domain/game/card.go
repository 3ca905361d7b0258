package game

import (
	"errors"
	"math/rand/v2"
	"strings"
)

var ErrUnknownCard = errors.New("unknown card type")

// CardType identifies one of the eight OmokPang cards.
type CardType string

const (
	CardRemove      CardType = "REMOVE"
	CardDoubleMove  CardType = "DOUBLE_MOVE"
	CardSwap        CardType = "SWAP"
	CardTimeLock    CardType = "TIME_LOCK"
	CardDefense     CardType = "DEFENSE"
	CardShield      CardType = "SHIELD"
	CardSharedStone CardType = "SHARED_STONE"
	CardBomb        CardType = "BOMB"
)

// CardInfo is a catalog entry.
type CardInfo struct {
	Type        CardType `json:"type"`
	Weight      int      `json:"weight"`
	Description string   `json:"description"`
}

var catalog = []CardInfo{
	{CardRemove, 15, "Remove one opponent stone."},
	{CardDoubleMove, 4, "Place two stones this turn."},
	{CardSwap, 4, "Swap one of your stones with an opponent stone."},
	{CardTimeLock, 15, "The next player's turn lasts only a few seconds."},
	{CardDefense, 20, "Your stones cannot be targeted until your next turn."},
	{CardShield, 15, "Block a Remove or Swap aimed at your stone."},
	{CardSharedStone, 15, "Turn an opponent stone into a shared stone."},
	{CardBomb, 12, "Clear the 3x3 area around a stone."},
}

// Catalog returns every card type with its draw weight.
func Catalog() []CardInfo {
	out := make([]CardInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ParseCardType converts a protocol name into a CardType.
func ParseCardType(s string) (CardType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, info := range catalog {
		if string(info.Type) == s {
			return info.Type, nil
		}
	}
	return "", ErrUnknownCard
}

// DrawOne picks a card with probability proportional to its weight.
func DrawOne(rng *rand.Rand) CardType {
	total := 0
	for _, info := range catalog {
		total += info.Weight
	}

	n := rng.IntN(total) + 1
	sum := 0
	for _, info := range catalog {
		sum += info.Weight
		if n <= sum {
			return info.Type
		}
	}
	return CardRemove
}

// DrawTwo deals an opening hand.
func DrawTwo(rng *rand.Rand) []CardType {
	return []CardType{DrawOne(rng), DrawOne(rng)}
}
