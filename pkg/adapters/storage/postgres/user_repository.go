package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/omokpang/omokpang/internal/domain/user"
)

// userModel maps the users table.
type userModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Nickname  string    `gorm:"size:32;not null;uniqueIndex"`
	Password  string    `gorm:"size:100;not null"`
	Wins      int       `gorm:"not null;default:0"`
	Losses    int       `gorm:"not null;default:0"`
	Points    int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

func (m *userModel) toDomain() *user.User {
	return &user.User{
		ID:           m.ID,
		Nickname:     m.Nickname,
		PasswordHash: m.Password,
		Wins:         m.Wins,
		Losses:       m.Losses,
		Points:       m.Points,
		CreatedAt:    m.CreatedAt,
	}
}

// settlementModel marks a finished game whose results were applied.
type settlementModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	SettledAt time.Time `gorm:"not null"`
}

func (settlementModel) TableName() string { return "settlements" }

var errAlreadySettled = errors.New("already settled")

// UserRepository stores player accounts with GORM.
type UserRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserRepository creates a GORM backed user repository
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user and fills in its ID and creation time.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	model := &userModel{
		Nickname:  u.Nickname,
		Password:  u.PasswordHash,
		Wins:      u.Wins,
		Losses:    u.Losses,
		Points:    u.Points,
		CreatedAt: time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return user.ErrNicknameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	u.ID = model.ID
	u.CreatedAt = model.CreatedAt

	r.logger.Info("user created",
		zap.Int64("user_id", u.ID),
		zap.String("nickname", u.Nickname))
	return nil
}

func (r *UserRepository) FindByNickname(ctx context.Context, nickname string) (*user.User, error) {
	var model userModel
	if err := r.db.WithContext(ctx).Where("nickname = ?", nickname).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return model.toDomain(), nil
}

func (r *UserRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Where("nickname = ?", nickname).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return count > 0, nil
}

// ListByPoints returns the ranking: points, then wins, then oldest account.
func (r *UserRepository) ListByPoints(ctx context.Context, limit int) ([]*user.User, error) {
	var models []*userModel
	err := r.db.WithContext(ctx).
		Order("points DESC").
		Order("wins DESC").
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*user.User, len(models))
	for i, m := range models {
		users[i] = m.toDomain()
	}
	return users, nil
}

// ApplyResults records every result of one game in a single transaction.
// settlementID is stored with the results, so a redelivered game is
// skipped and reported with applied == false.
func (r *UserRepository) ApplyResults(ctx context.Context, settlementID string, results []user.PlayerResult) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mark := &settlementModel{ID: settlementID, SettledAt: time.Now().UTC()}
		if err := tx.Create(mark).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errAlreadySettled
			}
			return fmt.Errorf("failed to record settlement: %w", err)
		}

		for _, res := range results {
			if err := updateResult(tx, res.Nickname, res.Won(), res.PointDelta); err != nil {
				return fmt.Errorf("%s: %w", res.Nickname, err)
			}
		}
		return nil
	})
	if errors.Is(err, errAlreadySettled) {
		r.logger.Info("results already applied", zap.String("settlement_id", settlementID))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	r.logger.Debug("results recorded",
		zap.String("settlement_id", settlementID),
		zap.Int("players", len(results)))
	return true, nil
}

// updateResult adds one win or loss and the point delta in a single
// statement.
func updateResult(tx *gorm.DB, nickname string, win bool, pointDelta int) error {
	wins, losses := 0, 1
	if win {
		wins, losses = 1, 0
	}

	res := tx.Model(&userModel{}).
		Where("nickname = ?", nickname).
		Updates(map[string]interface{}{
			"wins":   gorm.Expr("wins + ?", wins),
			"losses": gorm.Expr("losses + ?", losses),
			"points": gorm.Expr("points + ?", pointDelta),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update result: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) GetPoints(ctx context.Context, nickname string) (int, error) {
	u, err := r.FindByNickname(ctx, nickname)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

// DecreasePoints subtracts amount when the balance covers it. It returns
// false without error when the balance is short.
func (r *UserRepository) DecreasePoints(ctx context.Context, nickname string, amount int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("nickname = ? AND points >= ?", nickname, amount).
		Update("points", gorm.Expr("points - ?", amount))
	if res.Error != nil {
		return false, fmt.Errorf("failed to decrease points: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	exists, err := r.ExistsByNickname(ctx, nickname)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, user.ErrUserNotFound
	}
	return false, nil
}

// isUniqueViolation relies on TranslateError, which maps the driver's
// duplicate key error to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
