package models

import (
	"github.com/shopspring/decimal"

	giftmodels "merge-verse-backend/internal/features/gift/models"
)

// PackType определяет вид пака
type PackType string

const (
	PackFreeDaily  PackType = "FREE_DAILY"
	PackFreeStreak PackType = "FREE_STREAK"
	PackCommon     PackType = "COMMON_PACK"
	PackRare       PackType = "RARE_PACK"
	PackEpic       PackType = "EPIC_PACK"
	PackLegendary  PackType = "LEGENDARY_PACK"
)

// Draw задает количество предметов одной редкости в составе пака
type Draw struct {
	Rarity giftmodels.Rarity `json:"rarity"`
	Count  int               `json:"count"`
}

// Config описывает состав и условия пака
type Config struct {
	Type        PackType         `json:"type"`
	Price       decimal.Decimal  `json:"price"`
	Level       giftmodels.Level `json:"level"`
	IsTradeable bool             `json:"is_tradeable"`
	Draws       []Draw           `json:"draws"`
}

// Configs — состав всех паков. Бесплатные паки выдают непередаваемые предметы
// нулевого уровня, платные — передаваемые первого уровня.
var Configs = map[PackType]Config{
	PackFreeDaily: {
		Type:        PackFreeDaily,
		Price:       decimal.Zero,
		Level:       0,
		IsTradeable: false,
		Draws: []Draw{
			{Rarity: giftmodels.RarityCommon, Count: 7},
			{Rarity: giftmodels.RarityRare, Count: 2},
			{Rarity: giftmodels.RarityEpic, Count: 1},
		},
	},
	PackFreeStreak: {
		Type:        PackFreeStreak,
		Price:       decimal.Zero,
		Level:       0,
		IsTradeable: false,
		Draws: []Draw{
			{Rarity: giftmodels.RarityCommon, Count: 9},
			{Rarity: giftmodels.RarityRare, Count: 4},
			{Rarity: giftmodels.RarityEpic, Count: 2},
		},
	},
	PackCommon: {
		Type:        PackCommon,
		Price:       decimal.RequireFromString("0.7"),
		Level:       1,
		IsTradeable: true,
		Draws: []Draw{
			{Rarity: giftmodels.RarityCommon, Count: 10},
			{Rarity: giftmodels.RarityRare, Count: 5},
		},
	},
	PackRare: {
		Type:        PackRare,
		Price:       decimal.RequireFromString("1.4"),
		Level:       1,
		IsTradeable: true,
		Draws: []Draw{
			{Rarity: giftmodels.RarityRare, Count: 12},
			{Rarity: giftmodels.RarityEpic, Count: 3},
		},
	},
	PackEpic: {
		Type:        PackEpic,
		Price:       decimal.RequireFromString("4.0"),
		Level:       1,
		IsTradeable: true,
		Draws: []Draw{
			{Rarity: giftmodels.RarityEpic, Count: 13},
			{Rarity: giftmodels.RarityLegendary, Count: 2},
		},
	},
	PackLegendary: {
		Type:        PackLegendary,
		Price:       decimal.RequireFromString("13.0"),
		Level:       1,
		IsTradeable: true,
		Draws: []Draw{
			{Rarity: giftmodels.RarityLegendary, Count: 14},
			{Rarity: giftmodels.RarityMythic, Count: 1},
		},
	},
}

// PaidPacks перечисляет паки, доступные к покупке
var PaidPacks = []PackType{PackCommon, PackRare, PackEpic, PackLegendary}

// DrawnItem представляет результат одного вскрытия
type DrawnItem struct {
	GiftID      string            `json:"gift_id"`
	GiftName    string            `json:"gift_name"`
	Rarity      giftmodels.Rarity `json:"rarity"`
	Level       giftmodels.Level  `json:"level"`
	IsTradeable bool              `json:"is_tradeable"`
	Quantity    int               `json:"quantity"`
}

// Compensation хранит количество бесплатных вскрытий, выданных как
// компенсация за проигранный розыгрыш.
type Compensation struct {
	UserID   int64    `json:"user_id"`
	PackType PackType `json:"pack_type"`
	Amount   int      `json:"amount"`
}

type OpenPackInput struct {
	Type PackType `json:"type" binding:"required"`
}
