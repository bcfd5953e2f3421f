package models

import (
	"time"

	"github.com/shopspring/decimal"

	giftmodels "merge-verse-backend/internal/features/gift/models"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
)

// Auction — лот на продажу одного предмета
type Auction struct {
	ID           string           `json:"id"`
	SellerID     int64            `json:"seller_id"`
	GiftID       string           `json:"gift_id"`
	Level        giftmodels.Level `json:"level"`
	StartPrice   decimal.Decimal  `json:"start_price"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	Status       Status           `json:"status"`
	WinnerID     *int64           `json:"winner_id,omitempty"`
	EndsAt       time.Time        `json:"ends_at"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Bid — одна строка на пару (аукцион, участник); сумма только растет
type Bid struct {
	AuctionID string          `json:"auction_id"`
	BidderID  int64           `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type CreateAuctionInput struct {
	ItemID string `json:"item_id" binding:"required"`
}

type PlaceBidInput struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}
