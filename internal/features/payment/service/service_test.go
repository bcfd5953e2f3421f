package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"merge-verse-backend/internal/common/config"
	"merge-verse-backend/internal/features/payment/models"
	"merge-verse-backend/internal/features/payment/repository"
	referralmodels "merge-verse-backend/internal/features/referral/models"
	usermodels "merge-verse-backend/internal/features/user/models"
	"merge-verse-backend/internal/platform/mailer"
	"merge-verse-backend/internal/platform/nowpayments"
	"merge-verse-backend/internal/platform/tonapi"
)

const ipnKey = "test-ipn-key"

type fakeRepo struct {
	payments map[string]*models.Payment
	failed   []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{payments: make(map[string]*models.Payment)}
}

func (r *fakeRepo) Create(ctx context.Context, payment *models.Payment) error {
	r.payments[payment.ID] = payment
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	payment, ok := r.payments[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	return payment, nil
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID int64) ([]*models.Payment, error) {
	return nil, nil
}

func (r *fakeRepo) ListPendingTonDeposits(ctx context.Context) ([]*models.Payment, error) {
	return nil, nil
}

func (r *fakeRepo) SetExternalID(ctx context.Context, id, externalID string) error {
	return nil
}

func (r *fakeRepo) MarkFailed(ctx context.Context, id string) error {
	payment, ok := r.payments[id]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	payment.Status = models.StatusFailed
	r.failed = append(r.failed, id)
	return nil
}

func (r *fakeRepo) ConfirmDeposit(ctx context.Context, id string) (*models.Payment, error) {
	payment, ok := r.payments[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	if payment.Status != models.StatusPending {
		return nil, repository.ErrAlreadyProcessed
	}
	payment.Status = models.StatusConfirmed
	return payment, nil
}

func (r *fakeRepo) CreatePayout(ctx context.Context, payment *models.Payment, charge decimal.Decimal) error {
	r.payments[payment.ID] = payment
	return nil
}

func (r *fakeRepo) RevertPayout(ctx context.Context, id string, charge decimal.Decimal) error {
	return nil
}

type fakeUsers struct{}

func (r *fakeUsers) Create(ctx context.Context, user *usermodels.User) error { return nil }

func (r *fakeUsers) GetByID(ctx context.Context, id int64) (*usermodels.User, error) {
	return nil, nil
}

func (r *fakeUsers) Update(ctx context.Context, user *usermodels.User) error { return nil }

func (r *fakeUsers) List(ctx context.Context, limit, offset int) ([]*usermodels.User, error) {
	return nil, nil
}

func (r *fakeUsers) SetBanned(ctx context.Context, id int64, banned bool) error    { return nil }
func (r *fakeUsers) SetReferrer(ctx context.Context, id, referrerID int64) error   { return nil }
func (r *fakeUsers) SetWallet(ctx context.Context, id int64, address string) error { return nil }

func (r *fakeUsers) SetEmail(ctx context.Context, id int64, email string, verified bool) error {
	return nil
}

func (r *fakeUsers) CreditBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	return nil
}

func (r *fakeUsers) DebitBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	return nil
}

func (r *fakeUsers) UpdateStreak(ctx context.Context, id int64, streak int, activeAt time.Time) error {
	return nil
}

func (r *fakeUsers) ResetExpiredStreaks(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type deposit struct {
	userID int64
	amount decimal.Decimal
}

type fakeReferrals struct {
	deposits []deposit
}

func (f *fakeReferrals) Reload(ctx context.Context) error { return nil }

func (f *fakeReferrals) GetSettings() []*referralmodels.Setting { return nil }

func (f *fakeReferrals) UpdateSetting(ctx context.Context, input *referralmodels.UpdateSettingInput) error {
	return nil
}

func (f *fakeReferrals) GetStats(ctx context.Context, userID int64) (*referralmodels.ReferralStats, error) {
	return nil, nil
}

func (f *fakeReferrals) ProcessDeposit(ctx context.Context, userID int64, amount decimal.Decimal) {
	f.deposits = append(f.deposits, deposit{userID, amount})
}

func (f *fakeReferrals) ProcessFullCollection(ctx context.Context, userID int64) {}

func newTestService(t *testing.T, repo *fakeRepo, referrals *fakeReferrals) PaymentService {
	t.Helper()

	cfg := &config.Config{}
	cfg.Payment.NowPaymentsIPNKey = ipnKey

	return NewPaymentService(
		repo,
		&fakeUsers{},
		referrals,
		nowpayments.NewClient(cfg),
		tonapi.NewClient(cfg),
		nil,
		mailer.NewService(cfg),
		rand.New(rand.NewSource(1)),
		cfg,
	)
}

func signedIPN(t *testing.T, paymentID, status string) ([]byte, string) {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"payment_id":     1,
		"payment_status": status,
		"order_id":       paymentID,
	})
	require.NoError(t, err)

	mac := hmac.New(sha512.New, []byte(ipnKey))
	mac.Write(body)
	return body, hex.EncodeToString(mac.Sum(nil))
}

func pendingDeposit(repo *fakeRepo, id string, userID int64, amount string) *models.Payment {
	payment := &models.Payment{
		ID:       id,
		UserID:   userID,
		Type:     models.TypeDeposit,
		Provider: models.ProviderNowPayments,
		Amount:   decimal.RequireFromString(amount),
		Status:   models.StatusPending,
	}
	repo.payments[id] = payment
	return payment
}

func TestHandleIPN(t *testing.T) {
	t.Run("finished confirms the deposit and rewards referrers", func(t *testing.T) {
		repo := newFakeRepo()
		pendingDeposit(repo, "pay-1", 7, "50")
		referrals := &fakeReferrals{}
		svc := newTestService(t, repo, referrals)

		body, signature := signedIPN(t, "pay-1", "finished")
		require.NoError(t, svc.HandleIPN(context.Background(), body, signature))

		require.Equal(t, models.StatusConfirmed, repo.payments["pay-1"].Status)
		require.Len(t, referrals.deposits, 1)
		require.Equal(t, int64(7), referrals.deposits[0].userID)
		require.True(t, referrals.deposits[0].amount.Equal(decimal.RequireFromString("50")))
	})

	t.Run("repeated notification is idempotent", func(t *testing.T) {
		repo := newFakeRepo()
		pendingDeposit(repo, "pay-1", 7, "50")
		referrals := &fakeReferrals{}
		svc := newTestService(t, repo, referrals)

		body, signature := signedIPN(t, "pay-1", "confirmed")
		require.NoError(t, svc.HandleIPN(context.Background(), body, signature))
		require.NoError(t, svc.HandleIPN(context.Background(), body, signature))

		// Награда рефереру начислена один раз
		require.Len(t, referrals.deposits, 1)
	})

	t.Run("terminal failure marks the payment", func(t *testing.T) {
		repo := newFakeRepo()
		pendingDeposit(repo, "pay-1", 7, "50")
		svc := newTestService(t, repo, &fakeReferrals{})

		body, signature := signedIPN(t, "pay-1", "expired")
		require.NoError(t, svc.HandleIPN(context.Background(), body, signature))
		require.Equal(t, models.StatusFailed, repo.payments["pay-1"].Status)
	})

	t.Run("intermediate status is ignored", func(t *testing.T) {
		repo := newFakeRepo()
		pendingDeposit(repo, "pay-1", 7, "50")
		referrals := &fakeReferrals{}
		svc := newTestService(t, repo, referrals)

		body, signature := signedIPN(t, "pay-1", "waiting")
		require.NoError(t, svc.HandleIPN(context.Background(), body, signature))

		require.Equal(t, models.StatusPending, repo.payments["pay-1"].Status)
		require.Empty(t, referrals.deposits)
	})

	t.Run("invalid signature", func(t *testing.T) {
		repo := newFakeRepo()
		svc := newTestService(t, repo, &fakeReferrals{})

		body, _ := signedIPN(t, "pay-1", "finished")
		err := svc.HandleIPN(context.Background(), body, "bad-signature")
		require.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("unknown payment", func(t *testing.T) {
		repo := newFakeRepo()
		svc := newTestService(t, repo, &fakeReferrals{})

		body, signature := signedIPN(t, "missing", "finished")
		err := svc.HandleIPN(context.Background(), body, signature)
		require.ErrorIs(t, err, ErrPaymentNotFound)
	})
}

func TestCreateInvoiceRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), &fakeReferrals{})

	_, err := svc.CreateInvoice(context.Background(), 7, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateInvoice(context.Background(), 7, decimal.RequireFromString("-1"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestInitiateTonDepositRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), &fakeReferrals{})

	_, err := svc.InitiateTonDeposit(context.Background(), 7, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidAmount)
}
