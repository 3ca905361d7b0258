package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/omokpang/omokpang/internal/domain/user"
	"github.com/omokpang/omokpang/pkg/ports"
)

var (
	ErrInvalidCredentials = errors.New("invalid nickname or password")
	ErrInvalidInput       = errors.New("invalid input")
)

const (
	minNicknameLen = 2
	maxNicknameLen = 16
	minPasswordLen = 4
	// bcrypt ignores everything past 72 bytes
	maxPasswordLen = 72
)

// AuthService registers and authenticates players
type AuthService struct {
	repo   ports.UserRepository
	cost   int
	logger *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(repo ports.UserRepository, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:   repo,
		cost:   bcrypt.DefaultCost,
		logger: logger,
	}
}

// Signup creates an account with zero wins, losses and points.
func (s *AuthService) Signup(ctx context.Context, nickname, password string) (*user.User, error) {
	nickname = strings.TrimSpace(nickname)
	if err := ValidateNickname(nickname); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return nil, fmt.Errorf("%w: password must be %d to %d characters", ErrInvalidInput, minPasswordLen, maxPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &user.User{Nickname: nickname, PasswordHash: string(hash)}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrNicknameTaken) {
			return nil, err
		}
		s.logger.Error("signup failed",
			zap.String("nickname", nickname),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("player signed up", zap.String("nickname", nickname))
	return u, nil
}

// Login checks the password and returns the account.
func (s *AuthService) Login(ctx context.Context, nickname, password string) (*user.User, error) {
	u, err := s.repo.FindByNickname(ctx, strings.TrimSpace(nickname))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("login rejected", zap.String("nickname", u.Nickname))
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// Exists reports whether a nickname is registered.
func (s *AuthService) Exists(ctx context.Context, nickname string) (bool, error) {
	return s.repo.ExistsByNickname(ctx, strings.TrimSpace(nickname))
}

// ValidateNickname accepts 2 to 16 characters without whitespace.
func ValidateNickname(nickname string) error {
	n := utf8.RuneCountInString(nickname)
	if n < minNicknameLen || n > maxNicknameLen {
		return fmt.Errorf("%w: nickname must be %d to %d characters", ErrInvalidInput, minNicknameLen, maxNicknameLen)
	}
	for _, r := range nickname {
		if unicode.IsSpace(r) || r == ',' || r == ':' {
			return fmt.Errorf("%w: nickname contains %q", ErrInvalidInput, r)
		}
	}
	return nil
}
