package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/referral/models"
)

type ReferralRepository interface {
	GetSettings(ctx context.Context) ([]*models.Setting, error)
	UpdateSetting(ctx context.Context, setting *models.Setting) error

	// GetReferrerChain возвращает пригласившего и пригласившего пригласившего
	GetReferrerChain(ctx context.Context, userID int64) (first, second *int64, err error)

	// CreditEarning зачисляет вознаграждение и пишет запись начисления в одной транзакции
	CreditEarning(ctx context.Context, receiverID, fromUserID int64, amount decimal.Decimal, reason models.EarningReason) error

	CountReferrals(ctx context.Context, userID int64) (int, error)
	ListEarnings(ctx context.Context, userID int64) ([]*models.Earning, error)
}
