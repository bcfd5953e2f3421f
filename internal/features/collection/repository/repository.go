package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/collection/models"
	giftmodels "merge-verse-backend/internal/features/gift/models"
	inventorymodels "merge-verse-backend/internal/features/inventory/models"
)

var (
	ErrItemNotFound         = errors.New("item not found")
	ErrInsufficientQuantity = errors.New("insufficient item quantity")
	ErrCellOccupied         = errors.New("craft table cell is occupied")
	ErrCraftItemNotFound    = errors.New("craft table cell is empty")
)

// Tx — операции, доступные внутри транзакции коллекции. Сервис ведет
// протокол крафта и выдачи призов шаг за шагом, репозиторий отвечает
// только за атомарность.
type Tx interface {
	GetItemForUpdate(ctx context.Context, id string) (*inventorymodels.Item, error)
	FindStackForUpdate(ctx context.Context, userID int64, giftID string, level giftmodels.Level, tradeable bool) (*inventorymodels.Item, error)
	UpsertItem(ctx context.Context, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error
	ConsumeItem(ctx context.Context, itemID string, quantity int) error
	CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error

	InsertCraftItem(ctx context.Context, item *models.CraftItem) error
	DeleteCraftItem(ctx context.Context, userID int64, x, y int) (*models.CraftItem, error)
}

type CollectionRepository interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	ListCraftItems(ctx context.Context, userID int64) ([]*models.CraftItem, error)

	GetVisibility(ctx context.Context) (bool, error)
	SetVisibility(ctx context.Context, visible bool) error
}
