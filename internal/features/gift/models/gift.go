package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rarity определяет редкость подарка
type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
	RarityMythic    Rarity = "MYTHIC"
)

func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary, RarityMythic:
		return true
	}
	return false
}

// Level представляет уровень предмета, от 0 до 10
type Level int

const (
	LevelMin Level = 0
	LevelMax Level = 10
)

func (l Level) Valid() bool {
	return l >= LevelMin && l <= LevelMax
}

// Next возвращает следующий уровень; false на максимальном уровне
func (l Level) Next() (Level, bool) {
	if l >= LevelMax {
		return l, false
	}
	return l + 1, true
}

type Gift struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Rarity    Rarity    `json:"rarity"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Price задает цену предмета по редкости и уровню
type Price struct {
	Rarity Rarity          `json:"rarity"`
	Level  Level           `json:"level"`
	Price  decimal.Decimal `json:"price"`
}

// VerticalPrice задает приз за сбор всех подарков одного уровня
type VerticalPrice struct {
	Level Level           `json:"level"`
	Price decimal.Decimal `json:"price"`
}

// HorizontalPrice задает приз за сбор всех уровней одного подарка
type HorizontalPrice struct {
	Name   string          `json:"name"`
	Rarity Rarity          `json:"rarity"`
	Price  decimal.Decimal `json:"price"`
}

type CreateGiftInput struct {
	Name   string `json:"name" binding:"required"`
	Rarity Rarity `json:"rarity" binding:"required"`
	URL    string `json:"url" binding:"required"`
}

type UpdatePriceInput struct {
	Rarity Rarity          `json:"rarity" binding:"required"`
	Level  Level           `json:"level"`
	Price  decimal.Decimal `json:"price" binding:"required"`
}

type UpdateVerticalPriceInput struct {
	Level Level           `json:"level"`
	Price decimal.Decimal `json:"price" binding:"required"`
}

type UpdateHorizontalPriceInput struct {
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price" binding:"required"`
}
