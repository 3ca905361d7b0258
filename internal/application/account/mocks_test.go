package account

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/omokpang/omokpang/internal/domain/user"
)

// MockUserRepository is a mock implementation of ports.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) FindByNickname(ctx context.Context, nickname string) (*user.User, error) {
	args := m.Called(ctx, nickname)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	args := m.Called(ctx, nickname)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ListByPoints(ctx context.Context, limit int) ([]*user.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*user.User), args.Error(1)
}

func (m *MockUserRepository) ApplyResults(ctx context.Context, settlementID string, results []user.PlayerResult) (bool, error) {
	args := m.Called(ctx, settlementID, results)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) GetPoints(ctx context.Context, nickname string) (int, error) {
	args := m.Called(ctx, nickname)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) DecreasePoints(ctx context.Context, nickname string, amount int) (bool, error) {
	args := m.Called(ctx, nickname, amount)
	return args.Bool(0), args.Error(1)
}
