package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID            int64           `json:"id"`
	Username      string          `json:"username"`
	FirstName     string          `json:"first_name"`
	Balance       decimal.Decimal `json:"balance"`
	Streak        int             `json:"streak"`
	ActiveAt      *time.Time      `json:"active_at,omitempty"`
	IsBanned      bool            `json:"is_banned"`
	ReferredBy    *int64          `json:"referred_by,omitempty"`
	CryptoWallet  *string         `json:"crypto_wallet,omitempty"`
	Email         *string         `json:"email,omitempty"`
	EmailVerified bool            `json:"email_verified"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type UserResponse struct {
	ID            int64           `json:"id"`
	Username      string          `json:"username"`
	FirstName     string          `json:"first_name"`
	Balance       decimal.Decimal `json:"balance"`
	Streak        int             `json:"streak"`
	IsBanned      bool            `json:"is_banned"`
	CryptoWallet  *string         `json:"crypto_wallet,omitempty"`
	Email         *string         `json:"email,omitempty"`
	EmailVerified bool            `json:"email_verified"`
	CreatedAt     time.Time       `json:"created_at"`
}

type SetWalletInput struct {
	Address string `json:"address" binding:"required"`
}

type CreateEmailInput struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyEmailInput struct {
	Code string `json:"code" binding:"required,len=6"`
}

type AdjustBalanceInput struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// CollectionCell описывает одну клетку сетки коллекции пользователя
type CollectionCell struct {
	GiftID    string `json:"gift_id"`
	GiftName  string `json:"gift_name"`
	Rarity    string `json:"rarity"`
	Level     int    `json:"level"`
	Owned     bool   `json:"owned"`
	EverOwned bool   `json:"ever_owned"`
}
