package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/gift/models"
)

var ErrGiftNotFound = errors.New("gift not found")

type GiftRepository interface {
	GetAll(ctx context.Context) ([]*models.Gift, error)
	GetByID(ctx context.Context, id string) (*models.Gift, error)
	Create(ctx context.Context, gift *models.Gift) error
	Update(ctx context.Context, gift *models.Gift) error
	Delete(ctx context.Context, id string) error

	GetPrices(ctx context.Context) ([]*models.Price, error)
	UpdatePrice(ctx context.Context, rarity models.Rarity, level models.Level, price decimal.Decimal) error

	GetVerticalPrices(ctx context.Context) ([]*models.VerticalPrice, error)
	UpdateVerticalPrice(ctx context.Context, level models.Level, price decimal.Decimal) error

	GetHorizontalPrices(ctx context.Context) ([]*models.HorizontalPrice, error)
	UpdateHorizontalPrice(ctx context.Context, name string, price decimal.Decimal) error
}
