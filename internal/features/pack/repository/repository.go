package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/pack/models"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoCompensation      = errors.New("no compensation credits")
	ErrAlreadyOpened       = errors.New("free pack already opened today")
)

type PackRepository interface {
	// ApplyPaidOpen списывает цену пака и зачисляет предметы в одной транзакции
	ApplyPaidOpen(ctx context.Context, userID int64, price decimal.Decimal, items []models.DrawnItem) error
	// ApplyFreeOpen обновляет серию и зачисляет предметы в одной транзакции.
	// Возвращает ErrAlreadyOpened, если пак в эти сутки уже открывали.
	ApplyFreeOpen(ctx context.Context, userID int64, streak int, activeAt time.Time, items []models.DrawnItem) error
	// ApplyCompensationOpen списывает кредит компенсации и зачисляет предметы
	ApplyCompensationOpen(ctx context.Context, userID int64, packType models.PackType, items []models.DrawnItem) error

	GrantCompensation(ctx context.Context, userID int64, packType models.PackType, amount int) error
	ListCompensations(ctx context.Context, userID int64) ([]*models.Compensation, error)
}
