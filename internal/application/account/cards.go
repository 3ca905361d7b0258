package account

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/domain/game"
)

// CardService deals cards and sells rerolls
type CardService struct {
	points     *PointService
	rerollCost int
	logger     *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCardService creates a card service. A nil rng seeds one from the clock.
func NewCardService(points *PointService, rerollCost int, rng *rand.Rand, logger *zap.Logger) *CardService {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &CardService{
		points:     points,
		rerollCost: rerollCost,
		logger:     logger,
		rng:        rng,
	}
}

func (s *CardService) DrawOne() game.CardType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return game.DrawOne(s.rng)
}

func (s *CardService) DrawTwo() []game.CardType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return game.DrawTwo(s.rng)
}

// Reroll charges the reroll cost and draws a replacement card.
func (s *CardService) Reroll(ctx context.Context, nickname string) (game.CardType, error) {
	ok, err := s.points.Spend(ctx, nickname, s.rerollCost)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInsufficientPoints
	}

	card := s.DrawOne()
	s.logger.Info("card rerolled",
		zap.String("nickname", nickname),
		zap.String("card", string(card)),
		zap.Int("cost", s.rerollCost))
	return card, nil
}

func (s *CardService) RerollCost() int {
	return s.rerollCost
}

func (s *CardService) Catalog() []game.CardInfo {
	return game.Catalog()
}
