package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	giftmodels "merge-verse-backend/internal/features/gift/models"
	"merge-verse-backend/internal/features/giveaway/models"
	inventorymodels "merge-verse-backend/internal/features/inventory/models"
)

var (
	ErrGiveawayNotFound     = errors.New("giveaway not found")
	ErrWinnerNotFound       = errors.New("winner not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrInsufficientQuantity = errors.New("insufficient item quantity")
	ErrAlreadyEntered       = errors.New("user already entered this giveaway")
)

// Tx — операции, доступные внутри транзакции розыгрыша
type Tx interface {
	GetGiveawayForUpdate(ctx context.Context, id string) (*models.Giveaway, error)
	UpdateGiveawayStatus(ctx context.Context, id string, status models.Status) error

	InsertEntry(ctx context.Context, entry *models.Entry) error
	ListEntries(ctx context.Context, giveawayID string) ([]*models.Entry, error)

	InsertWinner(ctx context.Context, winner *models.Winner) error
	GetWinnerForUpdate(ctx context.Context, id string) (*models.Winner, error)
	UpdateWinnerChoice(ctx context.Context, id string, choice models.Choice) error

	FindStackForUpdate(ctx context.Context, userID int64, giftID string, level giftmodels.Level, tradeable bool) (*inventorymodels.Item, error)
	ConsumeItem(ctx context.Context, itemID string, quantity int) error
	UpsertItem(ctx context.Context, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error

	CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
}

type GiveawayRepository interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Create(ctx context.Context, giveaway *models.Giveaway) error
	GetByID(ctx context.Context, id string) (*models.Giveaway, error)
	List(ctx context.Context, limit, offset int) ([]*models.Giveaway, error)
	ListActive(ctx context.Context) ([]*models.Giveaway, error)

	ListEntriesByUser(ctx context.Context, userID int64) ([]*models.Entry, error)
	ListWinnersByGiveaway(ctx context.Context, giveawayID string) ([]*models.Winner, error)
	ListPendingWinners(ctx context.Context) ([]*models.Winner, error)
	GetWinnerByID(ctx context.Context, id string) (*models.Winner, error)
	GetTopWinners(ctx context.Context, limit int) ([]*models.TopWinner, error)

	GetSteps(ctx context.Context) (int, error)
	SetSteps(ctx context.Context, steps int) error
}
