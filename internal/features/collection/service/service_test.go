package service

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"merge-verse-backend/internal/common/config"
	"merge-verse-backend/internal/features/collection/models"
	"merge-verse-backend/internal/features/collection/repository"
	giftmodels "merge-verse-backend/internal/features/gift/models"
	giftservice "merge-verse-backend/internal/features/gift/service"
	inventorymodels "merge-verse-backend/internal/features/inventory/models"
	referralmodels "merge-verse-backend/internal/features/referral/models"
)

type fakeGiftRepo struct {
	gifts      []*giftmodels.Gift
	prices     []*giftmodels.Price
	vertical   []*giftmodels.VerticalPrice
	horizontal []*giftmodels.HorizontalPrice
}

func (r *fakeGiftRepo) GetAll(ctx context.Context) ([]*giftmodels.Gift, error) {
	return r.gifts, nil
}

func (r *fakeGiftRepo) GetByID(ctx context.Context, id string) (*giftmodels.Gift, error) {
	for _, g := range r.gifts {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, giftservice.ErrGiftNotFound
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
	return r.vertical, nil
}

func (r *fakeGiftRepo) UpdateVerticalPrice(ctx context.Context, level giftmodels.Level, price decimal.Decimal) error {
	return nil
}

func (r *fakeGiftRepo) GetHorizontalPrices(ctx context.Context) ([]*giftmodels.HorizontalPrice, error) {
	return r.horizontal, nil
}

func (r *fakeGiftRepo) UpdateHorizontalPrice(ctx context.Context, name string, price decimal.Decimal) error {
	return nil
}

// fakeRepo держит инвентарь и стол крафта в памяти и исполняет
// транзакции напрямую, без отката.
type fakeRepo struct {
	items    map[string]*inventorymodels.Item
	craft    []*models.CraftItem
	visible  bool
	credited map[int64]decimal.Decimal
	nextID   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		items:    make(map[string]*inventorymodels.Item),
		visible:  true,
		credited: make(map[int64]decimal.Decimal),
	}
}

func (r *fakeRepo) add(item *inventorymodels.Item) {
	r.items[item.ID] = item
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return fn(r)
}

func (r *fakeRepo) GetItemForUpdate(ctx context.Context, id string) (*inventorymodels.Item, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	return item, nil
}

func (r *fakeRepo) FindStackForUpdate(ctx context.Context, userID int64, giftID string, level giftmodels.Level, tradeable bool) (*inventorymodels.Item, error) {
	for _, item := range r.items {
		if item.UserID == userID && item.GiftID == giftID && item.Level == level && item.IsTradeable == tradeable {
			return item, nil
		}
	}
	return nil, repository.ErrItemNotFound
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

func (r *fakeRepo) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	r.credited[userID] = r.credited[userID].Add(amount)
	return nil
}

func (r *fakeRepo) InsertCraftItem(ctx context.Context, item *models.CraftItem) error {
	for _, existing := range r.craft {
		if existing.UserID == item.UserID && existing.PositionX == item.PositionX && existing.PositionY == item.PositionY {
			return repository.ErrCellOccupied
		}
	}
	r.craft = append(r.craft, item)
	return nil
}

func (r *fakeRepo) DeleteCraftItem(ctx context.Context, userID int64, x, y int) (*models.CraftItem, error) {
	for i, item := range r.craft {
		if item.UserID == userID && item.PositionX == x && item.PositionY == y {
			r.craft = append(r.craft[:i], r.craft[i+1:]...)
			return item, nil
		}
	}
	return nil, repository.ErrCraftItemNotFound
}

func (r *fakeRepo) ListCraftItems(ctx context.Context, userID int64) ([]*models.CraftItem, error) {
	var result []*models.CraftItem
	for _, item := range r.craft {
		if item.UserID == userID {
			result = append(result, item)
		}
	}
	return result, nil
}

func (r *fakeRepo) GetVisibility(ctx context.Context) (bool, error) { return r.visible, nil }

func (r *fakeRepo) SetVisibility(ctx context.Context, visible bool) error {
	r.visible = visible
	return nil
}

// Остальные методы inventoryrepo.ItemRepository, нужные конструктору сервиса.

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*inventorymodels.Item, error) {
	return r.GetItemForUpdate(ctx, id)
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID int64) ([]*inventorymodels.Item, error) {
	var result []*inventorymodels.Item
	for _, item := range r.items {
		if item.UserID == userID {
			result = append(result, item)
		}
	}
	return result, nil
}

func (r *fakeRepo) FindStack(ctx context.Context, userID int64, giftID string, level giftmodels.Level, tradeable bool) (*inventorymodels.Item, error) {
	return r.FindStackForUpdate(ctx, userID, giftID, level, tradeable)
}

func (r *fakeRepo) Upsert(ctx context.Context, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error {
	return r.UpsertItem(ctx, userID, giftID, level, quantity, tradeable)
}

func (r *fakeRepo) Consume(ctx context.Context, itemID string, quantity int) error {
	return r.ConsumeItem(ctx, itemID, quantity)
}

func (r *fakeRepo) ListHistory(ctx context.Context, userID int64) ([]*inventorymodels.HistoryEntry, error) {
	return nil, nil
}

func (r *fakeRepo) ArchiveUser(ctx context.Context, userID int64) error { return nil }
func (r *fakeRepo) ArchiveAll(ctx context.Context) error                { return nil }

type fakeReferrals struct {
	fullCollectionCalls []int64
}

func (f *fakeReferrals) Reload(ctx context.Context) error { return nil }

func (f *fakeReferrals) GetSettings() []*referralmodels.Setting { return nil }

func (f *fakeReferrals) UpdateSetting(ctx context.Context, input *referralmodels.UpdateSettingInput) error {
	return nil
}

func (f *fakeReferrals) GetStats(ctx context.Context, userID int64) (*referralmodels.ReferralStats, error) {
	return nil, nil
}

func (f *fakeReferrals) ProcessDeposit(ctx context.Context, userID int64, amount decimal.Decimal) {}

func (f *fakeReferrals) ProcessFullCollection(ctx context.Context, userID int64) {
	f.fullCollectionCalls = append(f.fullCollectionCalls, userID)
}

const (
	giftFox    = "gift-fox"
	giftTurtle = "gift-turtle"
)

func newCatalog() *fakeGiftRepo {
	return &fakeGiftRepo{
		gifts: []*giftmodels.Gift{
			{ID: giftFox, Name: "Ember Fox", Rarity: giftmodels.RarityCommon},
			{ID: giftTurtle, Name: "Tide Turtle", Rarity: giftmodels.RarityRare},
		},
		prices: []*giftmodels.Price{
			{Rarity: giftmodels.RarityCommon, Level: 0, Price: decimal.RequireFromString("1")},
			{Rarity: giftmodels.RarityRare, Level: 0, Price: decimal.RequireFromString("3")},
		},
		vertical: []*giftmodels.VerticalPrice{
			{Level: 0, Price: decimal.RequireFromString("10")},
			{Level: 1, Price: decimal.RequireFromString("25")},
		},
		horizontal: []*giftmodels.HorizontalPrice{
			{Name: "Ember Fox", Rarity: giftmodels.RarityCommon, Price: decimal.RequireFromString("15")},
			{Name: "Tide Turtle", Rarity: giftmodels.RarityRare, Price: decimal.RequireFromString("40")},
		},
	}
}

func newTestService(t *testing.T, repo *fakeRepo) (CollectionService, *fakeReferrals) {
	t.Helper()

	gifts, err := giftservice.NewGiftService(newCatalog(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	referrals := &fakeReferrals{}
	cfg := &config.Config{}
	cfg.Collection.CraftGridSize = 2

	svc, err := NewCollectionService(repo, repo, gifts, referrals, cfg)
	require.NoError(t, err)

	return svc, referrals
}

func TestCraft(t *testing.T) {
	const userID = int64(7)

	tests := []struct {
		name    string
		items   []*inventorymodels.Item
		item1   string
		item2   string
		wantErr error
		want    *models.CraftResult
	}{
		{
			name: "merges two stacks into next level",
			items: []*inventorymodels.Item{
				{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1},
				{ID: "b", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1},
			},
			item1: "a",
			item2: "b",
			want:  &models.CraftResult{GiftID: giftFox, Level: 1, IsTradeable: true},
		},
		{
			name: "result is bound when either source is bound",
			items: []*inventorymodels.Item{
				{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1},
				{ID: "b", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: false, Quantity: 1},
			},
			item1: "a",
			item2: "b",
			want:  &models.CraftResult{GiftID: giftFox, Level: 1, IsTradeable: false},
		},
		{
			name: "self merge consumes two copies",
			items: []*inventorymodels.Item{
				{ID: "a", UserID: userID, GiftID: giftFox, Level: 2, IsTradeable: true, Quantity: 2},
			},
			item1: "a",
			item2: "a",
			want:  &models.CraftResult{GiftID: giftFox, Level: 3, IsTradeable: true},
		},
		{
			name: "self merge with one copy",
			items: []*inventorymodels.Item{
				{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1},
			},
			item1:   "a",
			item2:   "a",
			wantErr: ErrNotEnoughCopies,
		},
		{
			name: "different gifts",
			items: []*inventorymodels.Item{
				{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1},
				{ID: "b", UserID: userID, GiftID: giftTurtle, Level: 0, IsTradeable: true, Quantity: 1},
			},
			item1:   "a",
			item2:   "b",
			wantErr: ErrDifferentItems,
		},
		{
			name: "different levels",
			items: []*inventorymodels.Item{
				{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1},
				{ID: "b", UserID: userID, GiftID: giftFox, Level: 1, IsTradeable: true, Quantity: 1},
			},
			item1:   "a",
			item2:   "b",
			wantErr: ErrDifferentItems,
		},
		{
			name: "maximum level",
			items: []*inventorymodels.Item{
				{ID: "a", UserID: userID, GiftID: giftFox, Level: 10, IsTradeable: true, Quantity: 2},
			},
			item1:   "a",
			item2:   "a",
			wantErr: ErrMaxLevel,
		},
		{
			name: "foreign item",
			items: []*inventorymodels.Item{
				{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1},
				{ID: "b", UserID: userID + 1, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1},
			},
			item1:   "a",
			item2:   "b",
			wantErr: ErrNotOwner,
		},
		{
			name:    "missing item",
			item1:   "a",
			item2:   "b",
			wantErr: ErrItemNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			for _, item := range tt.items {
				repo.add(item)
			}
			svc, _ := newTestService(t, repo)

			result, err := svc.Craft(context.Background(), userID, tt.item1, tt.item2)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, result)

			// Источники списаны, результат лежит в инвентаре
			crafted, err := repo.FindStack(context.Background(), userID, tt.want.GiftID, tt.want.Level, tt.want.IsTradeable)
			require.NoError(t, err)
			require.Equal(t, 1, crafted.Quantity)
		})
	}
}

func TestCraftConsumesSources(t *testing.T) {
	const userID = int64(7)

	repo := newFakeRepo()
	repo.add(&inventorymodels.Item{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 3})
	repo.add(&inventorymodels.Item{ID: "b", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: false, Quantity: 1})
	svc, _ := newTestService(t, repo)

	_, err := svc.Craft(context.Background(), userID, "a", "b")
	require.NoError(t, err)

	require.Equal(t, 2, repo.items["a"].Quantity)
	require.NotContains(t, repo.items, "b")
}

func completeInventory(repo *fakeRepo, userID int64) {
	id := 0
	for _, giftID := range []string{giftFox, giftTurtle} {
		for _, level := range []giftmodels.Level{0, 1} {
			id++
			repo.add(&inventorymodels.Item{
				ID:          fmt.Sprintf("stack-%d", id),
				UserID:      userID,
				GiftID:      giftID,
				Level:       level,
				IsTradeable: true,
				Quantity:    1,
			})
		}
	}
}

func TestClaimVertical(t *testing.T) {
	const userID = int64(7)

	t.Run("credits prize and consumes one item per gift", func(t *testing.T) {
		repo := newFakeRepo()
		repo.add(&inventorymodels.Item{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 2})
		repo.add(&inventorymodels.Item{ID: "b", UserID: userID, GiftID: giftTurtle, Level: 0, IsTradeable: true, Quantity: 1})
		svc, _ := newTestService(t, repo)

		prize, err := svc.ClaimVertical(context.Background(), userID, 0)
		require.NoError(t, err)
		require.True(t, prize.Equal(decimal.RequireFromString("10")))
		require.True(t, repo.credited[userID].Equal(prize))
		require.Equal(t, 1, repo.items["a"].Quantity)
		require.NotContains(t, repo.items, "b")
	})

	t.Run("prefers bound stacks", func(t *testing.T) {
		repo := newFakeRepo()
		repo.add(&inventorymodels.Item{ID: "bound", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: false, Quantity: 1})
		repo.add(&inventorymodels.Item{ID: "free", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1})
		repo.add(&inventorymodels.Item{ID: "b", UserID: userID, GiftID: giftTurtle, Level: 0, IsTradeable: true, Quantity: 1})
		svc, _ := newTestService(t, repo)

		_, err := svc.ClaimVertical(context.Background(), userID, 0)
		require.NoError(t, err)
		require.NotContains(t, repo.items, "bound")
		require.Contains(t, repo.items, "free")
	})

	t.Run("incomplete level", func(t *testing.T) {
		repo := newFakeRepo()
		repo.add(&inventorymodels.Item{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1})
		svc, _ := newTestService(t, repo)

		_, err := svc.ClaimVertical(context.Background(), userID, 0)
		require.ErrorIs(t, err, ErrIncomplete)
	})

	t.Run("hidden collection", func(t *testing.T) {
		repo := newFakeRepo()
		repo.visible = false
		svc, _ := newTestService(t, repo)

		_, err := svc.ClaimVertical(context.Background(), userID, 0)
		require.ErrorIs(t, err, ErrCollectionHidden)
	})
}

func TestClaimHorizontal(t *testing.T) {
	const userID = int64(7)

	repo := newFakeRepo()
	repo.add(&inventorymodels.Item{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1})
	repo.add(&inventorymodels.Item{ID: "b", UserID: userID, GiftID: giftFox, Level: 1, IsTradeable: true, Quantity: 1})
	svc, _ := newTestService(t, repo)

	prize, err := svc.ClaimHorizontal(context.Background(), userID, giftFox)
	require.NoError(t, err)
	require.True(t, prize.Equal(decimal.RequireFromString("15")))
	require.True(t, repo.credited[userID].Equal(prize))
	require.Empty(t, repo.items)

	_, err = svc.ClaimHorizontal(context.Background(), userID, "unknown")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestClaimFull(t *testing.T) {
	const userID = int64(7)

	t.Run("credits prize and rewards inviter", func(t *testing.T) {
		repo := newFakeRepo()
		completeInventory(repo, userID)
		svc, referrals := newTestService(t, repo)

		prize, err := svc.ClaimFull(context.Background(), userID)
		require.NoError(t, err)
		require.True(t, prize.Equal(decimal.RequireFromString("450")))
		require.True(t, repo.credited[userID].Equal(prize))
		require.Equal(t, []int64{userID}, referrals.fullCollectionCalls)
		require.Empty(t, repo.items)
	})

	t.Run("incomplete collection", func(t *testing.T) {
		repo := newFakeRepo()
		repo.add(&inventorymodels.Item{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1})
		svc, referrals := newTestService(t, repo)

		_, err := svc.ClaimFull(context.Background(), userID)
		require.ErrorIs(t, err, ErrIncomplete)
		require.Empty(t, referrals.fullCollectionCalls)
	})
}

func TestCheckCollection(t *testing.T) {
	const userID = int64(7)

	repo := newFakeRepo()
	repo.add(&inventorymodels.Item{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1})
	repo.add(&inventorymodels.Item{ID: "b", UserID: userID, GiftID: giftFox, Level: 1, IsTradeable: true, Quantity: 1})
	repo.add(&inventorymodels.Item{ID: "c", UserID: userID, GiftID: giftTurtle, Level: 0, IsTradeable: true, Quantity: 1})
	svc, _ := newTestService(t, repo)

	report, err := svc.CheckCollection(context.Background(), userID)
	require.NoError(t, err)

	require.True(t, report.Visible)
	require.False(t, report.FullComplete)
	require.Len(t, report.Verticals, 2)
	require.True(t, report.Verticals[0].Complete)
	require.Equal(t, 2, report.Verticals[0].Owned)
	require.False(t, report.Verticals[1].Complete)
	require.Equal(t, 1, report.Verticals[1].Owned)

	require.Len(t, report.Horizontals, 2)
	for _, h := range report.Horizontals {
		switch h.GiftID {
		case giftFox:
			require.True(t, h.Complete)
		case giftTurtle:
			require.False(t, h.Complete)
			require.Equal(t, 1, h.Owned)
		}
	}
}

func TestCraftTable(t *testing.T) {
	const userID = int64(7)

	t.Run("place and remove round trip", func(t *testing.T) {
		repo := newFakeRepo()
		repo.add(&inventorymodels.Item{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1})
		svc, _ := newTestService(t, repo)

		err := svc.PlaceCraftItem(context.Background(), userID, &models.PlaceCraftItemInput{ItemID: "a", PositionX: 1, PositionY: 0})
		require.NoError(t, err)
		require.Empty(t, repo.items)

		table, err := svc.GetCraftTable(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, table, 1)

		err = svc.RemoveCraftItem(context.Background(), userID, 1, 0)
		require.NoError(t, err)
		require.Len(t, repo.items, 1)
	})

	t.Run("position outside the grid", func(t *testing.T) {
		repo := newFakeRepo()
		repo.add(&inventorymodels.Item{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 1})
		svc, _ := newTestService(t, repo)

		err := svc.PlaceCraftItem(context.Background(), userID, &models.PlaceCraftItemInput{ItemID: "a", PositionX: 2, PositionY: 0})
		require.ErrorIs(t, err, ErrOutOfGrid)

		err = svc.PlaceCraftItem(context.Background(), userID, &models.PlaceCraftItemInput{ItemID: "a", PositionX: 0, PositionY: -1})
		require.ErrorIs(t, err, ErrOutOfGrid)
	})

	t.Run("occupied cell", func(t *testing.T) {
		repo := newFakeRepo()
		repo.add(&inventorymodels.Item{ID: "a", UserID: userID, GiftID: giftFox, Level: 0, IsTradeable: true, Quantity: 2})
		svc, _ := newTestService(t, repo)

		require.NoError(t, svc.PlaceCraftItem(context.Background(), userID, &models.PlaceCraftItemInput{ItemID: "a", PositionX: 0, PositionY: 0}))
		err := svc.PlaceCraftItem(context.Background(), userID, &models.PlaceCraftItemInput{ItemID: "a", PositionX: 0, PositionY: 0})
		require.ErrorIs(t, err, ErrCellOccupied)
	})

	t.Run("empty cell", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(t, repo)

		err := svc.RemoveCraftItem(context.Background(), userID, 0, 0)
		require.ErrorIs(t, err, ErrCellEmpty)
	})
}
