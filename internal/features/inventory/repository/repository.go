package repository

import (
	"context"
	"errors"

	giftmodels "merge-verse-backend/internal/features/gift/models"
	"merge-verse-backend/internal/features/inventory/models"
)

var (
	ErrItemNotFound         = errors.New("item not found")
	ErrInsufficientQuantity = errors.New("insufficient item quantity")
)

type ItemRepository interface {
	GetByID(ctx context.Context, id string) (*models.Item, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Item, error)
	FindStack(ctx context.Context, userID int64, giftID string, level giftmodels.Level, tradeable bool) (*models.Item, error)
	Upsert(ctx context.Context, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error
	Consume(ctx context.Context, itemID string, quantity int) error
	ListHistory(ctx context.Context, userID int64) ([]*models.HistoryEntry, error)
	ArchiveUser(ctx context.Context, userID int64) error
	ArchiveAll(ctx context.Context) error
}
