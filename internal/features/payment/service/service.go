package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/common/cache"
	"merge-verse-backend/internal/common/config"
	"merge-verse-backend/internal/common/logger"
	"merge-verse-backend/internal/features/payment/models"
	"merge-verse-backend/internal/features/payment/repository"
	referralservice "merge-verse-backend/internal/features/referral/service"
	userrepo "merge-verse-backend/internal/features/user/repository"
	"merge-verse-backend/internal/platform/mailer"
	"merge-verse-backend/internal/platform/nowpayments"
	"merge-verse-backend/internal/platform/tonapi"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrEmailNotVerified    = errors.New("verified email required")
	ErrWalletNotSet        = errors.New("crypto wallet required")
	ErrInvalidCode         = errors.New("invalid confirmation code")
	ErrMailerDisabled      = errors.New("email delivery is not configured")
	ErrPriceUnavailable    = errors.New("TON price is not available yet")
	ErrUpstream            = errors.New("payment provider unavailable")
)

const payoutCodeTTL = 10 * time.Minute

// Спред площадки поверх суммы вывода
var payoutSpread = decimal.RequireFromString("1.06")

type PaymentService interface {
	CreateInvoice(ctx context.Context, userID int64, amount decimal.Decimal) (*models.InvoiceResponse, error)
	HandleIPN(ctx context.Context, body []byte, signature string) error

	InitiateTonDeposit(ctx context.Context, userID int64, amount decimal.Decimal) (*models.TonDepositInfo, error)
	ConfirmTonDeposits(ctx context.Context) error
	RefreshTonPrice(ctx context.Context) error
	TonPrice() decimal.Decimal

	SendPayoutCode(ctx context.Context, userID int64) error
	RequestPayout(ctx context.Context, userID int64, amount decimal.Decimal, code string) (*models.Payment, error)

	GetUserPayments(ctx context.Context, userID int64) ([]*models.Payment, error)
}

type paymentService struct {
	repo      repository.PaymentRepository
	users     userrepo.UserRepository
	referrals referralservice.ReferralService
	np        *nowpayments.Client
	ton       *tonapi.Client
	cache     *cache.CacheService
	mailer    *mailer.Service
	rnd       *rand.Rand
	wallet    string

	mu       sync.RWMutex
	tonPrice decimal.Decimal
}

func NewPaymentService(
	repo repository.PaymentRepository,
	users userrepo.UserRepository,
	referrals referralservice.ReferralService,
	np *nowpayments.Client,
	ton *tonapi.Client,
	cache *cache.CacheService,
	mailer *mailer.Service,
	rnd *rand.Rand,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		repo:      repo,
		users:     users,
		referrals: referrals,
		np:        np,
		ton:       ton,
		cache:     cache,
		mailer:    mailer,
		rnd:       rnd,
		wallet:    cfg.Payment.TonWalletAddress,
	}
}

// CreateInvoice выставляет счет NOWPayments; order id равен id платежа
func (s *paymentService) CreateInvoice(ctx context.Context, userID int64, amount decimal.Decimal) (*models.InvoiceResponse, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	payment := &models.Payment{
		ID:       uuid.NewString(),
		UserID:   userID,
		Type:     models.TypeDeposit,
		Provider: models.ProviderNowPayments,
		Amount:   amount,
		Status:   models.StatusPending,
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}

	invoice, err := s.np.CreateInvoice(ctx, payment.ID, amount)
	if err != nil {
		logger.Error().Err(err).Str("payment_id", payment.ID).Msg("failed to create invoice")
		if markErr := s.repo.MarkFailed(ctx, payment.ID); markErr != nil {
			logger.Error().Err(markErr).Str("payment_id", payment.ID).Msg("failed to mark payment failed")
		}
		return nil, ErrUpstream
	}

	if err := s.repo.SetExternalID(ctx, payment.ID, invoice.ID); err != nil {
		logger.Warn().Err(err).Str("payment_id", payment.ID).Msg("failed to store invoice id")
	}

	logger.Info().
		Int64("user_id", userID).
		Str("payment_id", payment.ID).
		Str("amount", amount.String()).
		Msg("invoice created")

	return &models.InvoiceResponse{
		PaymentID:  payment.ID,
		InvoiceURL: invoice.InvoiceURL,
	}, nil
}

// HandleIPN обрабатывает уведомление NOWPayments. Подпись проверяется до
// разбора, подтверждение идемпотентно.
func (s *paymentService) HandleIPN(ctx context.Context, body []byte, signature string) error {
	if !s.np.VerifyIPN(body, signature) {
		return ErrInvalidSignature
	}

	payload, err := nowpayments.ParseIPN(body)
	if err != nil {
		return err
	}

	switch strings.ToLower(payload.PaymentStatus) {
	case "finished", "confirmed":
		return s.confirmDeposit(ctx, payload.OrderID)
	case "failed", "expired", "refunded":
		if err := s.repo.MarkFailed(ctx, payload.OrderID); err != nil {
			return err
		}
		logger.Info().Str("payment_id", payload.OrderID).Str("status", payload.PaymentStatus).Msg("payment failed")
		return nil
	}

	logger.Debug().
		Str("payment_id", payload.OrderID).
		Str("status", payload.PaymentStatus).
		Msg("intermediate payment status ignored")

	return nil
}

func (s *paymentService) confirmDeposit(ctx context.Context, paymentID string) error {
	payment, err := s.repo.ConfirmDeposit(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyProcessed) {
			return nil
		}
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}

	s.referrals.ProcessDeposit(ctx, payment.UserID, payment.Amount)

	logger.Info().
		Int64("user_id", payment.UserID).
		Str("payment_id", payment.ID).
		Str("amount", payment.Amount.String()).
		Msg("deposit confirmed")

	return nil
}

// RefreshTonPrice обновляет снимок курса TON
func (s *paymentService) RefreshTonPrice(ctx context.Context) error {
	price, err := s.ton.GetTONPrice(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tonPrice = price
	s.mu.Unlock()

	logger.Debug().Str("price", price.String()).Msg("TON price refreshed")
	return nil
}

func (s *paymentService) TonPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tonPrice
}

// InitiateTonDeposit создает ожидающий TON платеж и возвращает реквизиты.
// Комментарий перевода обязан совпадать с id платежа.
func (s *paymentService) InitiateTonDeposit(ctx context.Context, userID int64, amount decimal.Decimal) (*models.TonDepositInfo, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	price := s.TonPrice()
	if price.IsZero() {
		if err := s.RefreshTonPrice(ctx); err != nil {
			return nil, ErrPriceUnavailable
		}
		price = s.TonPrice()
	}

	payment := &models.Payment{
		ID:       uuid.NewString(),
		UserID:   userID,
		Type:     models.TypeDeposit,
		Provider: models.ProviderTon,
		Amount:   amount,
		Status:   models.StatusPending,
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}

	logger.Info().
		Int64("user_id", userID).
		Str("payment_id", payment.ID).
		Str("amount", amount.String()).
		Msg("TON deposit initiated")

	return &models.TonDepositInfo{
		PaymentID: payment.ID,
		Address:   s.wallet,
		AmountTon: amount.Div(price).RoundCeil(9),
		Comment:   payment.ID,
	}, nil
}

// ConfirmTonDeposits сверяет ожидающие TON платежи со входящими переводами
func (s *paymentService) ConfirmTonDeposits(ctx context.Context) error {
	pending, err := s.repo.ListPendingTonDeposits(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	transactions, err := s.ton.GetIncomingTransactions(ctx, 100)
	if err != nil {
		return err
	}

	byComment := make(map[string]tonapi.Transaction, len(transactions))
	for _, tx := range transactions {
		if tx.Comment != "" {
			byComment[tx.Comment] = tx
		}
	}

	for _, payment := range pending {
		if _, ok := byComment[payment.ID]; !ok {
			continue
		}
		if err := s.confirmDeposit(ctx, payment.ID); err != nil {
			logger.Error().Err(err).
				Str("payment_id", payment.ID).
				Msg("failed to confirm TON deposit")
		}
	}

	return nil
}

func (s *paymentService) payoutUser(ctx context.Context, userID int64) (email, wallet string, err error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}

	if user.Email == nil || !user.EmailVerified {
		return "", "", ErrEmailNotVerified
	}
	if user.CryptoWallet == nil {
		return "", "", ErrWalletNotSet
	}

	return *user.Email, *user.CryptoWallet, nil
}

// SendPayoutCode отправляет код подтверждения вывода на верифицированную почту
func (s *paymentService) SendPayoutCode(ctx context.Context, userID int64) error {
	if !s.mailer.IsEnabled() {
		return ErrMailerDisabled
	}

	email, _, err := s.payoutUser(ctx, userID)
	if err != nil {
		return err
	}

	code := fmt.Sprintf("%06d", s.rnd.Intn(1000000))
	key := fmt.Sprintf("payout_code:%d", userID)
	if err := s.cache.Set(ctx, key, code, payoutCodeTTL); err != nil {
		return err
	}

	return s.mailer.SendPayoutCode(email, code)
}

// RequestPayout выводит средства на кошелек пользователя. Списывается сумма
// со спредом; при отказе провайдера деньги возвращаются.
func (s *paymentService) RequestPayout(ctx context.Context, userID int64, amount decimal.Decimal, code string) (*models.Payment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	_, wallet, err := s.payoutUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("payout_code:%d", userID)
	var stored string
	if err := s.cache.Get(ctx, key, &stored); err != nil || stored != code {
		return nil, ErrInvalidCode
	}

	charge := amount.Mul(payoutSpread).RoundCeil(2)

	payment := &models.Payment{
		ID:       uuid.NewString(),
		UserID:   userID,
		Type:     models.TypePayout,
		Provider: models.ProviderNowPayments,
		Amount:   amount,
		Status:   models.StatusPending,
	}

	if err := s.repo.CreatePayout(ctx, payment, charge); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("failed to drop payout code")
	}

	payout, err := s.np.CreatePayout(ctx, wallet, amount)
	if err != nil {
		logger.Error().Err(err).Str("payment_id", payment.ID).Msg("failed to create payout")
		if revertErr := s.repo.RevertPayout(ctx, payment.ID, charge); revertErr != nil {
			logger.Error().Err(revertErr).Str("payment_id", payment.ID).Msg("failed to revert payout")
		}
		return nil, ErrUpstream
	}

	if err := s.repo.SetExternalID(ctx, payment.ID, payout.ID); err != nil {
		logger.Warn().Err(err).Str("payment_id", payment.ID).Msg("failed to store payout id")
	}

	logger.Info().
		Int64("user_id", userID).
		Str("payment_id", payment.ID).
		Str("amount", amount.String()).
		Str("charge", charge.String()).
		Msg("payout requested")

	return payment, nil
}

func (s *paymentService) GetUserPayments(ctx context.Context, userID int64) ([]*models.Payment, error) {
	payments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	return payments, nil
}
