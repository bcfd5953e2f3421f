package models

import (
	"time"

	giftmodels "merge-verse-backend/internal/features/gift/models"
)

// Item представляет стопку одинаковых предметов в инвентаре.
// Уникальна по (user_id, gift_id, level, is_tradeable).
type Item struct {
	ID          string           `json:"id"`
	UserID      int64            `json:"user_id"`
	GiftID      string           `json:"gift_id"`
	Level       giftmodels.Level `json:"level"`
	IsTradeable bool             `json:"is_tradeable"`
	Quantity    int              `json:"quantity"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// HistoryEntry отмечает, что пользователь когда-либо владел предметом
// данного подарка и уровня. Записи никогда не удаляются.
type HistoryEntry struct {
	UserID int64            `json:"user_id"`
	GiftID string           `json:"gift_id"`
	Level  giftmodels.Level `json:"level"`
}
