package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"merge-verse-backend/internal/features/referral/models"
)

type earning struct {
	receiverID int64
	fromUserID int64
	amount     decimal.Decimal
	reason     models.EarningReason
}

type fakeRepo struct {
	settings []*models.Setting
	chains   map[int64][2]*int64
	earnings []earning
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{chains: make(map[int64][2]*int64)}
}

func (r *fakeRepo) GetSettings(ctx context.Context) ([]*models.Setting, error) {
	return r.settings, nil
}

func (r *fakeRepo) UpdateSetting(ctx context.Context, setting *models.Setting) error {
	r.settings = append(r.settings, setting)
	return nil
}

func (r *fakeRepo) GetReferrerChain(ctx context.Context, userID int64) (*int64, *int64, error) {
	chain := r.chains[userID]
	return chain[0], chain[1], nil
}

func (r *fakeRepo) CreditEarning(ctx context.Context, receiverID, fromUserID int64, amount decimal.Decimal, reason models.EarningReason) error {
	r.earnings = append(r.earnings, earning{receiverID, fromUserID, amount, reason})
	return nil
}

func (r *fakeRepo) CountReferrals(ctx context.Context, userID int64) (int, error) {
	return len(r.chains), nil
}

func (r *fakeRepo) ListEarnings(ctx context.Context, userID int64) ([]*models.Earning, error) {
	var result []*models.Earning
	for _, e := range r.earnings {
		if e.receiverID == userID {
			result = append(result, &models.Earning{
				UserID:     e.receiverID,
				FromUserID: e.fromUserID,
				Amount:     e.amount,
				Reason:     e.reason,
			})
		}
	}
	return result, nil
}

func ref(id int64) *int64 { return &id }

func TestProcessDeposit(t *testing.T) {
	const userID = int64(7)

	t.Run("two-level percentage chain", func(t *testing.T) {
		repo := newFakeRepo()
		repo.chains[userID] = [2]*int64{ref(100), ref(200)}
		svc, err := NewReferralService(repo)
		require.NoError(t, err)

		svc.ProcessDeposit(context.Background(), userID, decimal.RequireFromString("50"))

		require.Len(t, repo.earnings, 2)
		// 4% пригласившему, 2% уровню выше
		require.Equal(t, int64(100), repo.earnings[0].receiverID)
		require.True(t, repo.earnings[0].amount.Equal(decimal.RequireFromString("2")))
		require.Equal(t, int64(200), repo.earnings[1].receiverID)
		require.True(t, repo.earnings[1].amount.Equal(decimal.RequireFromString("1")))
		require.Equal(t, models.EarningReasonDeposit, repo.earnings[0].reason)
	})

	t.Run("single-level chain", func(t *testing.T) {
		repo := newFakeRepo()
		repo.chains[userID] = [2]*int64{ref(100), nil}
		svc, err := NewReferralService(repo)
		require.NoError(t, err)

		svc.ProcessDeposit(context.Background(), userID, decimal.RequireFromString("50"))
		require.Len(t, repo.earnings, 1)
	})

	t.Run("no referrer", func(t *testing.T) {
		repo := newFakeRepo()
		svc, err := NewReferralService(repo)
		require.NoError(t, err)

		svc.ProcessDeposit(context.Background(), userID, decimal.RequireFromString("50"))
		require.Empty(t, repo.earnings)
	})

	t.Run("fixed override from the database", func(t *testing.T) {
		repo := newFakeRepo()
		repo.chains[userID] = [2]*int64{ref(100), nil}
		repo.settings = []*models.Setting{{
			Name:  models.SettingFirstLevel,
			Type:  models.SettingTypeFixed,
			Value: decimal.RequireFromString("0.25"),
		}}
		svc, err := NewReferralService(repo)
		require.NoError(t, err)

		svc.ProcessDeposit(context.Background(), userID, decimal.RequireFromString("50"))

		require.Len(t, repo.earnings, 1)
		require.True(t, repo.earnings[0].amount.Equal(decimal.RequireFromString("0.25")))
	})
}

func TestProcessFullCollection(t *testing.T) {
	const userID = int64(7)

	t.Run("fixed bonus to the inviter", func(t *testing.T) {
		repo := newFakeRepo()
		repo.chains[userID] = [2]*int64{ref(100), ref(200)}
		svc, err := NewReferralService(repo)
		require.NoError(t, err)

		svc.ProcessFullCollection(context.Background(), userID)

		// Бонус получает только первый уровень
		require.Len(t, repo.earnings, 1)
		require.Equal(t, int64(100), repo.earnings[0].receiverID)
		require.True(t, repo.earnings[0].amount.Equal(decimal.RequireFromString("22.50")))
		require.Equal(t, models.EarningReasonFullCollection, repo.earnings[0].reason)
	})

	t.Run("no referrer", func(t *testing.T) {
		repo := newFakeRepo()
		svc, err := NewReferralService(repo)
		require.NoError(t, err)

		svc.ProcessFullCollection(context.Background(), userID)
		require.Empty(t, repo.earnings)
	})
}

func TestUpdateSetting(t *testing.T) {
	repo := newFakeRepo()
	svc, err := NewReferralService(repo)
	require.NoError(t, err)

	err = svc.UpdateSetting(context.Background(), &models.UpdateSettingInput{
		Name:  "weekly_bonus",
		Type:  models.SettingTypeFixed,
		Value: decimal.RequireFromString("1"),
	})
	require.ErrorIs(t, err, ErrUnknownSetting)

	err = svc.UpdateSetting(context.Background(), &models.UpdateSettingInput{
		Name:  models.SettingSecondLevel,
		Type:  models.SettingTypePercentage,
		Value: decimal.RequireFromString("3"),
	})
	require.NoError(t, err)

	found := false
	for _, setting := range svc.GetSettings() {
		if setting.Name == models.SettingSecondLevel {
			found = true
			require.True(t, setting.Value.Equal(decimal.RequireFromString("3")))
		}
	}
	require.True(t, found)
}

func TestGetStats(t *testing.T) {
	repo := newFakeRepo()
	repo.earnings = []earning{
		{receiverID: 100, fromUserID: 7, amount: decimal.RequireFromString("2"), reason: models.EarningReasonDeposit},
		{receiverID: 100, fromUserID: 8, amount: decimal.RequireFromString("22.50"), reason: models.EarningReasonFullCollection},
	}
	svc, err := NewReferralService(repo)
	require.NoError(t, err)

	stats, err := svc.GetStats(context.Background(), 100)
	require.NoError(t, err)
	require.True(t, stats.TotalEarned.Equal(decimal.RequireFromString("24.50")))
	require.Len(t, stats.Earnings, 2)
}
