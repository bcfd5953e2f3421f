package models

import (
	"time"

	giftmodels "merge-verse-backend/internal/features/gift/models"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
)

type Choice string

const (
	ChoicePending      Choice = "PENDING"
	ChoiceGift         Choice = "GIFT"
	ChoiceCompensation Choice = "COMPENSATION"
)

func (c Choice) Valid() bool {
	return c == ChoiceGift || c == ChoiceCompensation
}

// Giveaway — розыгрыш одного подарка максимального уровня
type Giveaway struct {
	ID         string    `json:"id"`
	GiftID     string    `json:"gift_id"`
	Status     Status    `json:"status"`
	StartAt    time.Time `json:"start_at"`
	EndsAt     time.Time `json:"ends_at"`
	EntryCount int       `json:"entry_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Entry — безвозвратная заявка; запоминаем передаваемость списанного
// предмета, чтобы вернуть его без изменений при отмене
type Entry struct {
	GiveawayID  string    `json:"giveaway_id"`
	UserID      int64     `json:"user_id"`
	IsTradeable bool      `json:"is_tradeable"`
	CreatedAt   time.Time `json:"created_at"`
}

// Winner — выбранный победитель с отложенным выбором награды
type Winner struct {
	ID         string    `json:"id"`
	GiveawayID string    `json:"giveaway_id"`
	UserID     int64     `json:"user_id"`
	Choice     Choice    `json:"choice"`
	IsFinished bool      `json:"is_finished"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TopWinner — строка зала славы с числом побед по редкостям
type TopWinner struct {
	UserID   int64                     `json:"user_id"`
	Username string                    `json:"username"`
	Total    int                       `json:"total"`
	ByRarity map[giftmodels.Rarity]int `json:"by_rarity"`
}

type ChooseRewardInput struct {
	Choice Choice `json:"choice" binding:"required"`
}

type UpdateStepsInput struct {
	Steps int `json:"steps" binding:"required,min=1"`
}

type CreateGiveawayInput struct {
	GiftID string    `json:"gift_id" binding:"required"`
	EndsAt time.Time `json:"ends_at" binding:"required"`
}
