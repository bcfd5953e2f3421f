package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	giftmodels "merge-verse-backend/internal/features/gift/models"
	giftservice "merge-verse-backend/internal/features/gift/service"
	"merge-verse-backend/internal/features/pack/models"
	"merge-verse-backend/internal/features/pack/repository"
	usermodels "merge-verse-backend/internal/features/user/models"
	userrepo "merge-verse-backend/internal/features/user/repository"
)

type fakeGiftRepo struct {
	gifts []*giftmodels.Gift
}

func (r *fakeGiftRepo) GetAll(ctx context.Context) ([]*giftmodels.Gift, error) { return r.gifts, nil }

func (r *fakeGiftRepo) GetByID(ctx context.Context, id string) (*giftmodels.Gift, error) {
	return nil, nil
}

func (r *fakeGiftRepo) Create(ctx context.Context, gift *giftmodels.Gift) error { return nil }
func (r *fakeGiftRepo) Update(ctx context.Context, gift *giftmodels.Gift) error { return nil }
func (r *fakeGiftRepo) Delete(ctx context.Context, id string) error             { return nil }

func (r *fakeGiftRepo) GetPrices(ctx context.Context) ([]*giftmodels.Price, error) {
	return nil, nil
}

func (r *fakeGiftRepo) UpdatePrice(ctx context.Context, rarity giftmodels.Rarity, level giftmodels.Level, price decimal.Decimal) error {
	return nil
}

func (r *fakeGiftRepo) GetVerticalPrices(ctx context.Context) ([]*giftmodels.VerticalPrice, error) {
	return nil, nil
}

func (r *fakeGiftRepo) UpdateVerticalPrice(ctx context.Context, level giftmodels.Level, price decimal.Decimal) error {
	return nil
}

func (r *fakeGiftRepo) GetHorizontalPrices(ctx context.Context) ([]*giftmodels.HorizontalPrice, error) {
	return nil, nil
}

func (r *fakeGiftRepo) UpdateHorizontalPrice(ctx context.Context, name string, price decimal.Decimal) error {
	return nil
}

type paidOpen struct {
	userID int64
	price  decimal.Decimal
	items  []models.DrawnItem
}

type freeOpen struct {
	userID   int64
	streak   int
	activeAt time.Time
	items    []models.DrawnItem
}

type fakePackRepo struct {
	paid          []paidOpen
	free          []freeOpen
	compensations map[models.PackType]int
	paidErr       error
	compErr       error
}

func newFakePackRepo() *fakePackRepo {
	return &fakePackRepo{compensations: make(map[models.PackType]int)}
}

func (r *fakePackRepo) ApplyPaidOpen(ctx context.Context, userID int64, price decimal.Decimal, items []models.DrawnItem) error {
	if r.paidErr != nil {
		return r.paidErr
	}
	r.paid = append(r.paid, paidOpen{userID, price, items})
	return nil
}

func (r *fakePackRepo) ApplyFreeOpen(ctx context.Context, userID int64, streak int, activeAt time.Time, items []models.DrawnItem) error {
	// Та же проверка суток, что и в условном UPDATE
	for _, open := range r.free {
		if open.userID == userID && open.activeAt.YearDay() == activeAt.YearDay() &&
			open.activeAt.Year() == activeAt.Year() {
			return repository.ErrAlreadyOpened
		}
	}
	r.free = append(r.free, freeOpen{userID, streak, activeAt, items})
	return nil
}

func (r *fakePackRepo) ApplyCompensationOpen(ctx context.Context, userID int64, packType models.PackType, items []models.DrawnItem) error {
	if r.compErr != nil {
		return r.compErr
	}
	if r.compensations[packType] <= 0 {
		return repository.ErrNoCompensation
	}
	r.compensations[packType]--
	return nil
}

func (r *fakePackRepo) GrantCompensation(ctx context.Context, userID int64, packType models.PackType, amount int) error {
	r.compensations[packType] += amount
	return nil
}

func (r *fakePackRepo) ListCompensations(ctx context.Context, userID int64) ([]*models.Compensation, error) {
	var result []*models.Compensation
	for packType, amount := range r.compensations {
		result = append(result, &models.Compensation{UserID: userID, PackType: packType, Amount: amount})
	}
	return result, nil
}

type fakeUserRepo struct {
	users map[int64]*usermodels.User
}

func (r *fakeUserRepo) Create(ctx context.Context, user *usermodels.User) error { return nil }

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*usermodels.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, userrepo.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *usermodels.User) error { return nil }

func (r *fakeUserRepo) List(ctx context.Context, limit, offset int) ([]*usermodels.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) SetBanned(ctx context.Context, id int64, banned bool) error    { return nil }
func (r *fakeUserRepo) SetReferrer(ctx context.Context, id, referrerID int64) error   { return nil }
func (r *fakeUserRepo) SetWallet(ctx context.Context, id int64, address string) error { return nil }
func (r *fakeUserRepo) SetEmail(ctx context.Context, id int64, email string, verified bool) error {
	return nil
}

func (r *fakeUserRepo) CreditBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	return nil
}

func (r *fakeUserRepo) DebitBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	return nil
}

func (r *fakeUserRepo) UpdateStreak(ctx context.Context, id int64, streak int, activeAt time.Time) error {
	return nil
}

func (r *fakeUserRepo) ResetExpiredStreaks(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func newTestService(t *testing.T, repo *fakePackRepo, users *fakeUserRepo) PackService {
	t.Helper()

	catalog := &fakeGiftRepo{gifts: []*giftmodels.Gift{
		{ID: "c1", Name: "Ember Fox", Rarity: giftmodels.RarityCommon},
		{ID: "c2", Name: "Moss Golem", Rarity: giftmodels.RarityCommon},
		{ID: "r1", Name: "Tide Turtle", Rarity: giftmodels.RarityRare},
		{ID: "e1", Name: "Storm Crow", Rarity: giftmodels.RarityEpic},
		{ID: "l1", Name: "Sun Dragon", Rarity: giftmodels.RarityLegendary},
		{ID: "m1", Name: "Void Whale", Rarity: giftmodels.RarityMythic},
	}}

	gifts, err := giftservice.NewGiftService(catalog, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	return NewPackService(repo, users, gifts)
}

func totalQuantity(items []models.DrawnItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func TestGetConfigs(t *testing.T) {
	svc := newTestService(t, newFakePackRepo(), &fakeUserRepo{})

	configs := svc.GetConfigs()
	require.Len(t, configs, 6)
	require.Equal(t, models.PackFreeDaily, configs[0].Type)
	require.Equal(t, models.PackLegendary, configs[5].Type)
}

func TestOpenPaid(t *testing.T) {
	const userID = int64(7)

	t.Run("draws full pack and charges the price", func(t *testing.T) {
		repo := newFakePackRepo()
		svc := newTestService(t, repo, &fakeUserRepo{})

		items, err := svc.OpenPaid(context.Background(), userID, models.PackCommon)
		require.NoError(t, err)

		// 10 COMMON + 5 RARE, дубликаты схлопнуты в стопки
		require.Equal(t, 15, totalQuantity(items))
		for _, item := range items {
			require.Equal(t, giftmodels.Level(1), item.Level)
			require.True(t, item.IsTradeable)
		}

		require.Len(t, repo.paid, 1)
		require.Equal(t, userID, repo.paid[0].userID)
		require.True(t, repo.paid[0].price.Equal(decimal.RequireFromString("0.7")))
	})

	t.Run("unknown pack", func(t *testing.T) {
		svc := newTestService(t, newFakePackRepo(), &fakeUserRepo{})

		_, err := svc.OpenPaid(context.Background(), userID, "MEGA_PACK")
		require.ErrorIs(t, err, ErrUnknownPack)
	})

	t.Run("free pack is not purchasable", func(t *testing.T) {
		svc := newTestService(t, newFakePackRepo(), &fakeUserRepo{})

		_, err := svc.OpenPaid(context.Background(), userID, models.PackFreeDaily)
		require.ErrorIs(t, err, ErrPackNotPurchasable)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		repo := newFakePackRepo()
		repo.paidErr = repository.ErrInsufficientBalance
		svc := newTestService(t, repo, &fakeUserRepo{})

		_, err := svc.OpenPaid(context.Background(), userID, models.PackRare)
		require.ErrorIs(t, err, ErrInsufficientBalance)
	})
}

func TestOpenFree(t *testing.T) {
	const userID = int64(7)

	yesterday := time.Now().UTC().Add(-24 * time.Hour)

	t.Run("first open starts the streak", func(t *testing.T) {
		repo := newFakePackRepo()
		users := &fakeUserRepo{users: map[int64]*usermodels.User{
			userID: {ID: userID},
		}}
		svc := newTestService(t, repo, users)

		items, err := svc.OpenFree(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, 10, totalQuantity(items))
		for _, item := range items {
			require.Equal(t, giftmodels.Level(0), item.Level)
			require.False(t, item.IsTradeable)
		}

		require.Len(t, repo.free, 1)
		require.Equal(t, 1, repo.free[0].streak)
	})

	t.Run("second open on the same day", func(t *testing.T) {
		now := time.Now().UTC()
		users := &fakeUserRepo{users: map[int64]*usermodels.User{
			userID: {ID: userID, Streak: 1, ActiveAt: &now},
		}}
		svc := newTestService(t, newFakePackRepo(), users)

		_, err := svc.OpenFree(context.Background(), userID)
		require.ErrorIs(t, err, ErrAlreadyOpenedToday)
	})

	t.Run("concurrent open with a stale read is rejected", func(t *testing.T) {
		repo := newFakePackRepo()
		users := &fakeUserRepo{users: map[int64]*usermodels.User{
			userID: {ID: userID},
		}}
		svc := newTestService(t, repo, users)

		_, err := svc.OpenFree(context.Background(), userID)
		require.NoError(t, err)

		// Второй запрос прочитал пользователя до коммита первого
		_, err = svc.OpenFree(context.Background(), userID)
		require.ErrorIs(t, err, ErrAlreadyOpenedToday)
		require.Len(t, repo.free, 1)
	})

	t.Run("seventh day resets the streak with an extended pack", func(t *testing.T) {
		repo := newFakePackRepo()
		users := &fakeUserRepo{users: map[int64]*usermodels.User{
			userID: {ID: userID, Streak: 6, ActiveAt: &yesterday},
		}}
		svc := newTestService(t, repo, users)

		items, err := svc.OpenFree(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, 15, totalQuantity(items))

		require.Len(t, repo.free, 1)
		require.Equal(t, 0, repo.free[0].streak)
	})
}

func TestOpenCompensation(t *testing.T) {
	const userID = int64(7)

	repo := newFakePackRepo()
	svc := newTestService(t, repo, &fakeUserRepo{})

	_, err := svc.OpenCompensation(context.Background(), userID, models.PackRare)
	require.ErrorIs(t, err, ErrNoCompensation)

	require.NoError(t, svc.GrantCompensation(context.Background(), userID, models.PackRare, 1))

	items, err := svc.OpenCompensation(context.Background(), userID, models.PackRare)
	require.NoError(t, err)
	require.Equal(t, 15, totalQuantity(items))

	_, err = svc.OpenCompensation(context.Background(), userID, models.PackRare)
	require.ErrorIs(t, err, ErrNoCompensation)
}

func TestGrantCompensationIgnoresNonPositive(t *testing.T) {
	repo := newFakePackRepo()
	svc := newTestService(t, repo, &fakeUserRepo{})

	require.NoError(t, svc.GrantCompensation(context.Background(), 7, models.PackEpic, 0))
	require.Empty(t, repo.compensations)
}
