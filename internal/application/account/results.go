package account

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/domain/user"
	"github.com/omokpang/omokpang/pkg/ports"
)

// ResultService records finished games on player accounts
type ResultService struct {
	repo   ports.UserRepository
	logger *zap.Logger
}

func NewResultService(repo ports.UserRepository, logger *zap.Logger) *ResultService {
	return &ResultService{repo: repo, logger: logger}
}

// Apply records the results of one game. Either every row is recorded or
// none is, and a settlementID seen before is a no-op, so a failed game can
// be retried safely.
func (s *ResultService) Apply(ctx context.Context, settlementID string, results []user.PlayerResult) error {
	if settlementID == "" {
		return fmt.Errorf("%w: missing settlement id", ErrInvalidInput)
	}
	if len(results) == 0 {
		return fmt.Errorf("%w: no results", ErrInvalidInput)
	}

	applied, err := s.repo.ApplyResults(ctx, settlementID, results)
	if err != nil {
		s.logger.Error("failed to record results",
			zap.String("settlement_id", settlementID),
			zap.Int("players", len(results)),
			zap.Error(err))
		return fmt.Errorf("failed to record results: %w", err)
	}

	if !applied {
		s.logger.Info("game already settled", zap.String("settlement_id", settlementID))
		return nil
	}

	s.logger.Info("game results recorded",
		zap.String("settlement_id", settlementID),
		zap.Int("players", len(results)))
	return nil
}
