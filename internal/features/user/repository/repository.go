package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/user/models"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	SetBanned(ctx context.Context, id int64, banned bool) error
	SetReferrer(ctx context.Context, id, referrerID int64) error
	SetWallet(ctx context.Context, id int64, address string) error
	SetEmail(ctx context.Context, id int64, email string, verified bool) error

	// CreditBalance безусловно зачисляет средства.
	// DebitBalance списывает условно и возвращает ErrInsufficientBalance.
	CreditBalance(ctx context.Context, id int64, amount decimal.Decimal) error
	DebitBalance(ctx context.Context, id int64, amount decimal.Decimal) error

	UpdateStreak(ctx context.Context, id int64, streak int, activeAt time.Time) error
	ResetExpiredStreaks(ctx context.Context, before time.Time) (int64, error)
}
