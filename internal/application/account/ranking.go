package account

import (
	"context"
	"fmt"

	"github.com/omokpang/omokpang/internal/domain/user"
	"github.com/omokpang/omokpang/pkg/ports"
)

const (
	DefaultRankingLimit = 50
	MaxRankingLimit     = 100
)

// RankingService serves the leaderboard
type RankingService struct {
	repo ports.UserRepository
}

func NewRankingService(repo ports.UserRepository) *RankingService {
	return &RankingService{repo: repo}
}

// Top returns the best players. A non-positive limit uses the default and
// larger limits are capped.
func (s *RankingService) Top(ctx context.Context, limit int) ([]*user.User, error) {
	switch {
	case limit <= 0:
		limit = DefaultRankingLimit
	case limit > MaxRankingLimit:
		limit = MaxRankingLimit
	}

	users, err := s.repo.ListByPoints(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking: %w", err)
	}
	return users, nil
}

func (s *RankingService) Profile(ctx context.Context, nickname string) (*user.User, error) {
	return s.repo.FindByNickname(ctx, nickname)
}
