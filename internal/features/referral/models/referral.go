package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettingType определяет способ расчета вознаграждения
type SettingType string

const (
	SettingTypePercentage SettingType = "PERCENTAGE"
	SettingTypeFixed      SettingType = "FIXED"
)

// Имена настроек реферальной программы
const (
	SettingFirstLevel     = "first_level"
	SettingSecondLevel    = "second_level"
	SettingFullCollection = "full_collection"
)

type Setting struct {
	Name  string          `json:"name"`
	Type  SettingType     `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// EarningReason описывает источник начисления
type EarningReason string

const (
	EarningReasonDeposit        EarningReason = "DEPOSIT"
	EarningReasonFullCollection EarningReason = "FULL_COLLECTION"
)

type Earning struct {
	ID         string          `json:"id"`
	UserID     int64           `json:"user_id"`
	FromUserID int64           `json:"from_user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     EarningReason   `json:"reason"`
	CreatedAt  time.Time       `json:"created_at"`
}

type ReferralStats struct {
	ReferralsCount int             `json:"referrals_count"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	Earnings       []*Earning      `json:"earnings"`
}

type UpdateSettingInput struct {
	Name  string          `json:"name" binding:"required"`
	Type  SettingType     `json:"type" binding:"required"`
	Value decimal.Decimal `json:"value" binding:"required"`
}
