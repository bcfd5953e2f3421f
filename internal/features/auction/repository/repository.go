package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/auction/models"
	giftmodels "merge-verse-backend/internal/features/gift/models"
	inventorymodels "merge-verse-backend/internal/features/inventory/models"
)

var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrBidNotFound          = errors.New("bid not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrInsufficientQuantity = errors.New("insufficient item quantity")
	ErrInsufficientBalance  = errors.New("insufficient balance")
)

// Tx — операции торгового протокола внутри одной транзакции. Сервис
// перечитывает свежее состояние лота под блокировкой и сам решает,
// сколько списать и кому вернуть.
type Tx interface {
	GetAuctionForUpdate(ctx context.Context, id string) (*models.Auction, error)
	InsertAuction(ctx context.Context, auction *models.Auction) error
	UpdateAuction(ctx context.Context, id string, current decimal.Decimal, status models.Status, winnerID *int64) error

	GetHighestBid(ctx context.Context, auctionID string) (*models.Bid, error)
	GetBid(ctx context.Context, auctionID string, bidderID int64) (*models.Bid, error)
	UpsertBid(ctx context.Context, auctionID string, bidderID int64, amount decimal.Decimal) error

	GetItemForUpdate(ctx context.Context, id string) (*inventorymodels.Item, error)
	ConsumeItem(ctx context.Context, itemID string, quantity int) error
	UpsertItem(ctx context.Context, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error

	DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
}

type AuctionRepository interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetByID(ctx context.Context, id string) (*models.Auction, error)
	ListActive(ctx context.Context, limit, offset int) ([]*models.Auction, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]*models.Auction, error)
	ListExpired(ctx context.Context, now time.Time) ([]*models.Auction, error)
	ListBids(ctx context.Context, auctionID string) ([]*models.Bid, error)
}
