package account

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/omokpang/omokpang/pkg/ports"
)

var ErrInsufficientPoints = errors.New("insufficient points")

// PointService reads and spends player points
type PointService struct {
	repo   ports.UserRepository
	logger *zap.Logger
}

func NewPointService(repo ports.UserRepository, logger *zap.Logger) *PointService {
	return &PointService{repo: repo, logger: logger}
}

func (s *PointService) Points(ctx context.Context, nickname string) (int, error) {
	return s.repo.GetPoints(ctx, nickname)
}

// Spend deducts amount atomically. It returns false when the balance is
// short and leaves the balance untouched.
func (s *PointService) Spend(ctx context.Context, nickname string, amount int) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("%w: negative amount", ErrInvalidInput)
	}

	ok, err := s.repo.DecreasePoints(ctx, nickname, amount)
	if err != nil {
		return false, fmt.Errorf("failed to spend points: %w", err)
	}

	s.logger.Debug("points spent",
		zap.String("nickname", nickname),
		zap.Int("amount", amount),
		zap.Bool("ok", ok))
	return ok, nil
}
