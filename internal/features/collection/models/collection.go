package models

import (
	"github.com/shopspring/decimal"

	giftmodels "merge-verse-backend/internal/features/gift/models"
)

type CraftInput struct {
	Item1ID string `json:"item1_id" binding:"required"`
	Item2ID string `json:"item2_id" binding:"required"`
}

// CraftResult описывает предмет, полученный слиянием
type CraftResult struct {
	GiftID      string           `json:"gift_id"`
	Level       giftmodels.Level `json:"level"`
	IsTradeable bool             `json:"is_tradeable"`
}

// VerticalStatus — прогресс сбора всех подарков одного уровня
type VerticalStatus struct {
	Level    giftmodels.Level `json:"level"`
	Owned    int              `json:"owned"`
	Required int              `json:"required"`
	Complete bool             `json:"complete"`
	Prize    decimal.Decimal  `json:"prize"`
}

// HorizontalStatus — прогресс сбора всех уровней одного подарка
type HorizontalStatus struct {
	GiftID   string          `json:"gift_id"`
	GiftName string          `json:"gift_name"`
	Owned    int             `json:"owned"`
	Required int             `json:"required"`
	Complete bool            `json:"complete"`
	Prize    decimal.Decimal `json:"prize"`
}

// CompletionReport — полный отчет о прогрессе коллекции
type CompletionReport struct {
	Visible      bool                `json:"visible"`
	Verticals    []*VerticalStatus   `json:"verticals"`
	Horizontals  []*HorizontalStatus `json:"horizontals"`
	FullComplete bool                `json:"full_complete"`
	FullPrize    decimal.Decimal     `json:"full_prize"`
}

// CraftItem — предмет, выложенный на стол крафта
type CraftItem struct {
	UserID      int64            `json:"user_id"`
	GiftID      string           `json:"gift_id"`
	Level       giftmodels.Level `json:"level"`
	IsTradeable bool             `json:"is_tradeable"`
	PositionX   int              `json:"position_x"`
	PositionY   int              `json:"position_y"`
}

type PlaceCraftItemInput struct {
	ItemID    string `json:"item_id" binding:"required"`
	PositionX int    `json:"position_x"`
	PositionY int    `json:"position_y"`
}

type RemoveCraftItemInput struct {
	PositionX int `json:"position_x"`
	PositionY int `json:"position_y"`
}

type ClaimVerticalInput struct {
	Level giftmodels.Level `json:"level"`
}

type ClaimHorizontalInput struct {
	GiftID string `json:"gift_id" binding:"required"`
}

type SetVisibilityInput struct {
	Visible *bool `json:"visible" binding:"required"`
}
