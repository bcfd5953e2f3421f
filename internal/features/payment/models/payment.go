package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeDeposit Type = "DEPOSIT"
	TypePayout  Type = "PAYOUT"
)

type Provider string

const (
	ProviderNowPayments Provider = "NOWPAYMENTS"
	ProviderTon         Provider = "TON"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
)

// Payment — пополнение или вывод; сумма всегда в долларах
type Payment struct {
	ID         string          `json:"id"`
	UserID     int64           `json:"user_id"`
	Type       Type            `json:"type"`
	Provider   Provider        `json:"provider"`
	Amount     decimal.Decimal `json:"amount"`
	Status     Status          `json:"status"`
	ExternalID *string         `json:"external_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type CreateDepositInput struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// InvoiceResponse возвращает ссылку на оплату NOWPayments
type InvoiceResponse struct {
	PaymentID  string `json:"payment_id"`
	InvoiceURL string `json:"invoice_url"`
}

// TonDepositInfo — реквизиты для ручного перевода TON. Перевод должен
// содержать comment, иначе платеж не будет сопоставлен.
type TonDepositInfo struct {
	PaymentID string          `json:"payment_id"`
	Address   string          `json:"address"`
	AmountTon decimal.Decimal `json:"amount_ton"`
	Comment   string          `json:"comment"`
}

type RequestPayoutInput struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Code   string          `json:"code" binding:"required,len=6"`
}
