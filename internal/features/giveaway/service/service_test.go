package service

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"merge-verse-backend/internal/common/config"
	giftmodels "merge-verse-backend/internal/features/gift/models"
	giftservice "merge-verse-backend/internal/features/gift/service"
	"merge-verse-backend/internal/features/giveaway/models"
	"merge-verse-backend/internal/features/giveaway/repository"
	inventorymodels "merge-verse-backend/internal/features/inventory/models"
	packmodels "merge-verse-backend/internal/features/pack/models"
)

type fakeGiftRepo struct {
	gifts  []*giftmodels.Gift
	prices []*giftmodels.Price
}

func (r *fakeGiftRepo) GetAll(ctx context.Context) ([]*giftmodels.Gift, error) { return r.gifts, nil }

func (r *fakeGiftRepo) GetByID(ctx context.Context, id string) (*giftmodels.Gift, error) {
	return nil, nil
}

func (r *fakeGiftRepo) Create(ctx context.Context, gift *giftmodels.Gift) error { return nil }
func (r *fakeGiftRepo) Update(ctx context.Context, gift *giftmodels.Gift) error { return nil }
func (r *fakeGiftRepo) Delete(ctx context.Context, id string) error             { return nil }

func (r *fakeGiftRepo) GetPrices(ctx context.Context) ([]*giftmodels.Price, error) {
	return r.prices, nil
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

type grant struct {
	userID   int64
	packType packmodels.PackType
	amount   int
}

type fakePacks struct {
	grants []grant
}

func (f *fakePacks) GetConfigs() []packmodels.Config { return nil }

func (f *fakePacks) OpenPaid(ctx context.Context, userID int64, packType packmodels.PackType) ([]packmodels.DrawnItem, error) {
	return nil, nil
}

func (f *fakePacks) OpenFree(ctx context.Context, userID int64) ([]packmodels.DrawnItem, error) {
	return nil, nil
}

func (f *fakePacks) OpenCompensation(ctx context.Context, userID int64, packType packmodels.PackType) ([]packmodels.DrawnItem, error) {
	return nil, nil
}

func (f *fakePacks) GetCompensations(ctx context.Context, userID int64) ([]*packmodels.Compensation, error) {
	return nil, nil
}

func (f *fakePacks) GrantCompensation(ctx context.Context, userID int64, packType packmodels.PackType, amount int) error {
	f.grants = append(f.grants, grant{userID, packType, amount})
	return nil
}

// fakeRepo исполняет транзакции напрямую, без отката
type fakeRepo struct {
	giveaways map[string]*models.Giveaway
	entries   []*models.Entry
	winners   map[string]*models.Winner
	items     map[string]*inventorymodels.Item
	credited  map[int64]decimal.Decimal
	steps     int
	nextID    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		giveaways: make(map[string]*models.Giveaway),
		winners:   make(map[string]*models.Winner),
		items:     make(map[string]*inventorymodels.Item),
		credited:  make(map[int64]decimal.Decimal),
	}
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return fn(r)
}

func (r *fakeRepo) Create(ctx context.Context, giveaway *models.Giveaway) error {
	r.giveaways[giveaway.ID] = giveaway
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*models.Giveaway, error) {
	return r.GetGiveawayForUpdate(ctx, id)
}

func (r *fakeRepo) List(ctx context.Context, limit, offset int) ([]*models.Giveaway, error) {
	return nil, nil
}

func (r *fakeRepo) ListActive(ctx context.Context) ([]*models.Giveaway, error) {
	var active []*models.Giveaway
	for _, g := range r.giveaways {
		if g.Status == models.StatusActive {
			active = append(active, g)
		}
	}
	return active, nil
}

func (r *fakeRepo) ListEntriesByUser(ctx context.Context, userID int64) ([]*models.Entry, error) {
	return nil, nil
}

func (r *fakeRepo) ListWinnersByGiveaway(ctx context.Context, giveawayID string) ([]*models.Winner, error) {
	return nil, nil
}

func (r *fakeRepo) ListPendingWinners(ctx context.Context) ([]*models.Winner, error) {
	return nil, nil
}

func (r *fakeRepo) GetWinnerByID(ctx context.Context, id string) (*models.Winner, error) {
	return r.GetWinnerForUpdate(ctx, id)
}

func (r *fakeRepo) GetTopWinners(ctx context.Context, limit int) ([]*models.TopWinner, error) {
	return nil, nil
}

func (r *fakeRepo) GetSteps(ctx context.Context) (int, error) { return r.steps, nil }

func (r *fakeRepo) SetSteps(ctx context.Context, steps int) error {
	r.steps = steps
	return nil
}

func (r *fakeRepo) GetGiveawayForUpdate(ctx context.Context, id string) (*models.Giveaway, error) {
	giveaway, ok := r.giveaways[id]
	if !ok {
		return nil, repository.ErrGiveawayNotFound
	}
	return giveaway, nil
}

func (r *fakeRepo) UpdateGiveawayStatus(ctx context.Context, id string, status models.Status) error {
	r.giveaways[id].Status = status
	return nil
}

func (r *fakeRepo) InsertEntry(ctx context.Context, entry *models.Entry) error {
	for _, existing := range r.entries {
		if existing.GiveawayID == entry.GiveawayID && existing.UserID == entry.UserID {
			return repository.ErrAlreadyEntered
		}
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeRepo) ListEntries(ctx context.Context, giveawayID string) ([]*models.Entry, error) {
	var result []*models.Entry
	for _, entry := range r.entries {
		if entry.GiveawayID == giveawayID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *fakeRepo) InsertWinner(ctx context.Context, winner *models.Winner) error {
	r.winners[winner.ID] = winner
	return nil
}

func (r *fakeRepo) GetWinnerForUpdate(ctx context.Context, id string) (*models.Winner, error) {
	winner, ok := r.winners[id]
	if !ok {
		return nil, repository.ErrWinnerNotFound
	}
	return winner, nil
}

func (r *fakeRepo) UpdateWinnerChoice(ctx context.Context, id string, choice models.Choice) error {
	r.winners[id].Choice = choice
	return nil
}

func (r *fakeRepo) FindStackForUpdate(ctx context.Context, userID int64, giftID string, level giftmodels.Level, tradeable bool) (*inventorymodels.Item, error) {
	for _, item := range r.items {
		if item.UserID == userID && item.GiftID == giftID && item.Level == level && item.IsTradeable == tradeable {
			return item, nil
		}
	}
	return nil, repository.ErrItemNotFound
}

func (r *fakeRepo) ConsumeItem(ctx context.Context, itemID string, quantity int) error {
	item, ok := r.items[itemID]
	if !ok {
		return repository.ErrItemNotFound
	}
	if item.Quantity < quantity {
		return repository.ErrInsufficientQuantity
	}
	item.Quantity -= quantity
	if item.Quantity == 0 {
		delete(r.items, itemID)
	}
	return nil
}

func (r *fakeRepo) UpsertItem(ctx context.Context, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error {
	if stack, err := r.FindStackForUpdate(ctx, userID, giftID, level, tradeable); err == nil {
		stack.Quantity += quantity
		return nil
	}
	r.nextID++
	id := fmt.Sprintf("item-%d", r.nextID)
	r.items[id] = &inventorymodels.Item{
		ID:          id,
		UserID:      userID,
		GiftID:      giftID,
		Level:       level,
		IsTradeable: tradeable,
		Quantity:    quantity,
	}
	return nil
}

func (r *fakeRepo) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	r.credited[userID] = r.credited[userID].Add(amount)
	return nil
}

const giftTurtle = "gift-turtle"

func newTestService(t *testing.T, repo *fakeRepo) (GiveawayService, *fakePacks) {
	t.Helper()

	catalog := &fakeGiftRepo{
		gifts: []*giftmodels.Gift{
			{ID: giftTurtle, Name: "Tide Turtle", Rarity: giftmodels.RarityRare},
		},
		prices: []*giftmodels.Price{
			{Rarity: giftmodels.RarityRare, Level: giftmodels.LevelMax, Price: decimal.RequireFromString("120")},
		},
	}

	gifts, err := giftservice.NewGiftService(catalog, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	packs := &fakePacks{}
	svc, err := NewGiveawayService(repo, gifts, packs, nil, nil, rand.New(rand.NewSource(1)), &config.Config{})
	require.NoError(t, err)

	return svc, packs
}

func activeGiveaway(repo *fakeRepo, id string) *models.Giveaway {
	giveaway := &models.Giveaway{
		ID:      id,
		GiftID:  giftTurtle,
		Status:  models.StatusActive,
		StartAt: time.Now(),
		EndsAt:  time.Now().Add(time.Hour),
	}
	repo.giveaways[id] = giveaway
	return giveaway
}

func seedEntries(repo *fakeRepo, giveawayID string, count int) {
	for i := 0; i < count; i++ {
		repo.entries = append(repo.entries, &models.Entry{
			GiveawayID: giveawayID,
			UserID:     int64(1000 + i),
		})
	}
}

func TestEnter(t *testing.T) {
	const userID = int64(7)

	t.Run("consumes the bound stack first", func(t *testing.T) {
		repo := newFakeRepo()
		activeGiveaway(repo, "g1")
		repo.items["bound"] = &inventorymodels.Item{ID: "bound", UserID: userID, GiftID: giftTurtle, Level: giftmodels.LevelMax, IsTradeable: false, Quantity: 1}
		repo.items["free"] = &inventorymodels.Item{ID: "free", UserID: userID, GiftID: giftTurtle, Level: giftmodels.LevelMax, IsTradeable: true, Quantity: 1}
		svc, _ := newTestService(t, repo)

		require.NoError(t, svc.Enter(context.Background(), userID, "g1"))

		require.NotContains(t, repo.items, "bound")
		require.Contains(t, repo.items, "free")
		require.Len(t, repo.entries, 1)
		require.False(t, repo.entries[0].IsTradeable)
	})

	t.Run("records tradeability of the consumed stack", func(t *testing.T) {
		repo := newFakeRepo()
		activeGiveaway(repo, "g1")
		repo.items["free"] = &inventorymodels.Item{ID: "free", UserID: userID, GiftID: giftTurtle, Level: giftmodels.LevelMax, IsTradeable: true, Quantity: 1}
		svc, _ := newTestService(t, repo)

		require.NoError(t, svc.Enter(context.Background(), userID, "g1"))
		require.True(t, repo.entries[0].IsTradeable)
	})

	t.Run("no eligible item", func(t *testing.T) {
		repo := newFakeRepo()
		activeGiveaway(repo, "g1")
		// Предмет не максимального уровня не подходит
		repo.items["low"] = &inventorymodels.Item{ID: "low", UserID: userID, GiftID: giftTurtle, Level: 9, IsTradeable: true, Quantity: 1}
		svc, _ := newTestService(t, repo)

		err := svc.Enter(context.Background(), userID, "g1")
		require.ErrorIs(t, err, ErrNoEligibleItem)
	})

	t.Run("double entry", func(t *testing.T) {
		repo := newFakeRepo()
		activeGiveaway(repo, "g1")
		repo.items["a"] = &inventorymodels.Item{ID: "a", UserID: userID, GiftID: giftTurtle, Level: giftmodels.LevelMax, IsTradeable: true, Quantity: 2}
		svc, _ := newTestService(t, repo)

		require.NoError(t, svc.Enter(context.Background(), userID, "g1"))
		err := svc.Enter(context.Background(), userID, "g1")
		require.ErrorIs(t, err, ErrAlreadyEntered)
	})

	t.Run("finished giveaway", func(t *testing.T) {
		repo := newFakeRepo()
		activeGiveaway(repo, "g1").Status = models.StatusFinished
		svc, _ := newTestService(t, repo)

		err := svc.Enter(context.Background(), userID, "g1")
		require.ErrorIs(t, err, ErrGiveawayNotActive)
	})

	t.Run("unknown giveaway", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(t, repo)

		err := svc.Enter(context.Background(), userID, "missing")
		require.ErrorIs(t, err, ErrGiveawayNotFound)
	})
}

func TestFinishWithoutQuorum(t *testing.T) {
	repo := newFakeRepo()
	activeGiveaway(repo, "g1")
	repo.entries = []*models.Entry{
		{GiveawayID: "g1", UserID: 1, IsTradeable: false},
		{GiveawayID: "g1", UserID: 2, IsTradeable: true},
	}
	svc, packs := newTestService(t, repo)

	giveaway, err := svc.Finish(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, giveaway.Status)
	require.Empty(t, repo.winners)
	require.Empty(t, packs.grants)

	// Заявки возвращены с исходной передаваемостью
	bound, err := repo.FindStackForUpdate(context.Background(), 1, giftTurtle, giftmodels.LevelMax, false)
	require.NoError(t, err)
	require.Equal(t, 1, bound.Quantity)

	free, err := repo.FindStackForUpdate(context.Background(), 2, giftTurtle, giftmodels.LevelMax, true)
	require.NoError(t, err)
	require.Equal(t, 1, free.Quantity)
}

func TestFinishWinnerCount(t *testing.T) {
	tests := []struct {
		entries int
		winners int
	}{
		{30, 1},
		{31, 2},
		{45, 2},
		{60, 2},
		{61, 3},
		{300, 10},
		{600, 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d entries", tt.entries), func(t *testing.T) {
			repo := newFakeRepo()
			activeGiveaway(repo, "g1")
			seedEntries(repo, "g1", tt.entries)
			svc, packs := newTestService(t, repo)

			giveaway, err := svc.Finish(context.Background(), "g1")
			require.NoError(t, err)
			require.Equal(t, models.StatusFinished, giveaway.Status)
			require.Len(t, repo.winners, tt.winners)

			// Победители уникальны и ждут выбора награды
			seen := make(map[int64]bool)
			for _, winner := range repo.winners {
				require.False(t, seen[winner.UserID])
				seen[winner.UserID] = true
				require.Equal(t, models.ChoicePending, winner.Choice)
			}

			// Утешительные паки получают все участники
			require.Len(t, packs.grants, tt.entries)
			require.Equal(t, packmodels.PackRare, packs.grants[0].packType)
			require.Equal(t, 4, packs.grants[0].amount)
		})
	}
}

func TestFinishTwice(t *testing.T) {
	repo := newFakeRepo()
	activeGiveaway(repo, "g1")
	seedEntries(repo, "g1", 30)
	svc, _ := newTestService(t, repo)

	_, err := svc.Finish(context.Background(), "g1")
	require.NoError(t, err)

	_, err = svc.Finish(context.Background(), "g1")
	require.ErrorIs(t, err, ErrGiveawayNotActive)
}

func TestChooseReward(t *testing.T) {
	const userID = int64(7)

	seedWinner := func(repo *fakeRepo) *models.Winner {
		giveaway := activeGiveaway(repo, "g1")
		giveaway.Status = models.StatusFinished
		winner := &models.Winner{ID: "w1", GiveawayID: "g1", UserID: userID, Choice: models.ChoicePending}
		repo.winners["w1"] = winner
		return winner
	}

	t.Run("gift is credited bound at maximum level", func(t *testing.T) {
		repo := newFakeRepo()
		seedWinner(repo)
		svc, _ := newTestService(t, repo)

		require.NoError(t, svc.ChooseReward(context.Background(), userID, "w1", models.ChoiceGift))

		item, err := repo.FindStackForUpdate(context.Background(), userID, giftTurtle, giftmodels.LevelMax, false)
		require.NoError(t, err)
		require.Equal(t, 1, item.Quantity)
		require.Equal(t, models.ChoiceGift, repo.winners["w1"].Choice)
	})

	t.Run("compensation pays the max level price", func(t *testing.T) {
		repo := newFakeRepo()
		seedWinner(repo)
		svc, _ := newTestService(t, repo)

		require.NoError(t, svc.ChooseReward(context.Background(), userID, "w1", models.ChoiceCompensation))
		require.True(t, repo.credited[userID].Equal(decimal.RequireFromString("120")))
	})

	t.Run("foreign winner row", func(t *testing.T) {
		repo := newFakeRepo()
		seedWinner(repo)
		svc, _ := newTestService(t, repo)

		err := svc.ChooseReward(context.Background(), userID+1, "w1", models.ChoiceGift)
		require.ErrorIs(t, err, ErrNotWinner)
	})

	t.Run("choice is final", func(t *testing.T) {
		repo := newFakeRepo()
		seedWinner(repo)
		svc, _ := newTestService(t, repo)

		require.NoError(t, svc.ChooseReward(context.Background(), userID, "w1", models.ChoiceGift))
		err := svc.ChooseReward(context.Background(), userID, "w1", models.ChoiceCompensation)
		require.ErrorIs(t, err, ErrAlreadyChosen)
	})

	t.Run("invalid choice", func(t *testing.T) {
		repo := newFakeRepo()
		seedWinner(repo)
		svc, _ := newTestService(t, repo)

		err := svc.ChooseReward(context.Background(), userID, "w1", models.ChoicePending)
		require.ErrorIs(t, err, ErrInvalidChoice)
	})
}

func TestSteps(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo)

	// Без настройки действует порог по умолчанию
	require.Equal(t, 30, svc.Steps())

	require.ErrorIs(t, svc.UpdateSteps(context.Background(), 0), ErrInvalidSteps)

	require.NoError(t, svc.UpdateSteps(context.Background(), 50))
	require.Equal(t, 50, svc.Steps())
}

func TestCreateMonthlyGiveaways(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo)

	created, err := svc.CreateMonthlyGiveaways(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, created)

	now := time.Now().UTC()
	wantEnd := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	for _, giveaway := range repo.giveaways {
		require.Equal(t, models.StatusActive, giveaway.Status)
		require.Equal(t, wantEnd, giveaway.EndsAt)
	}

	// Повторный запуск при живых розыгрышах ничего не создает
	created, err = svc.CreateMonthlyGiveaways(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, created)
}

func TestCacheTTLsFromConfig(t *testing.T) {
	repo := newFakeRepo()
	catalog := &fakeGiftRepo{
		gifts: []*giftmodels.Gift{{ID: giftTurtle, Name: "Tide Turtle", Rarity: giftmodels.RarityRare}},
	}
	gifts, err := giftservice.NewGiftService(catalog, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	t.Run("values from config", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Cache.GiveawayListTTL = 30 * time.Second
		cfg.Cache.TopWinnersTTL = 10 * time.Minute

		svc, err := NewGiveawayService(repo, gifts, &fakePacks{}, nil, nil, rand.New(rand.NewSource(1)), cfg)
		require.NoError(t, err)

		impl := svc.(*giveawayService)
		require.Equal(t, 30*time.Second, impl.listTTL)
		require.Equal(t, 10*time.Minute, impl.topTTL)
	})

	t.Run("defaults without config values", func(t *testing.T) {
		svc, err := NewGiveawayService(repo, gifts, &fakePacks{}, nil, nil, rand.New(rand.NewSource(1)), &config.Config{})
		require.NoError(t, err)

		impl := svc.(*giveawayService)
		require.Equal(t, time.Minute, impl.listTTL)
		require.Equal(t, 5*time.Minute, impl.topTTL)
	})
}
