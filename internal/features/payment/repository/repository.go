package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/payment/models"
)

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrAlreadyProcessed    = errors.New("payment already processed")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Payment, error)
	ListPendingTonDeposits(ctx context.Context) ([]*models.Payment, error)

	SetExternalID(ctx context.Context, id, externalID string) error
	MarkFailed(ctx context.Context, id string) error

	// ConfirmDeposit переводит платеж в CONFIRMED и зачисляет баланс в одной
	// транзакции; повторное подтверждение возвращает ErrAlreadyProcessed
	ConfirmDeposit(ctx context.Context, id string) (*models.Payment, error)

	// CreatePayout списывает сумму с проверкой остатка и создает запись вывода
	CreatePayout(ctx context.Context, payment *models.Payment, charge decimal.Decimal) error

	// RevertPayout возвращает списанное при сбое провайдера
	RevertPayout(ctx context.Context, id string, charge decimal.Decimal) error
}
