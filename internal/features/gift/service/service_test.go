package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"merge-verse-backend/internal/features/gift/models"
	"merge-verse-backend/internal/utils/random"
)

type fakeRepo struct {
	gifts      []*models.Gift
	prices     []*models.Price
	vertical   []*models.VerticalPrice
	horizontal []*models.HorizontalPrice
	created    []*models.Gift
}

func (r *fakeRepo) GetAll(ctx context.Context) ([]*models.Gift, error) { return r.gifts, nil }

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*models.Gift, error) { return nil, nil }

func (r *fakeRepo) Create(ctx context.Context, gift *models.Gift) error {
	r.created = append(r.created, gift)
	r.gifts = append(r.gifts, gift)
	return nil
}

func (r *fakeRepo) Update(ctx context.Context, gift *models.Gift) error { return nil }
func (r *fakeRepo) Delete(ctx context.Context, id string) error         { return nil }

func (r *fakeRepo) GetPrices(ctx context.Context) ([]*models.Price, error) { return r.prices, nil }

func (r *fakeRepo) UpdatePrice(ctx context.Context, rarity models.Rarity, level models.Level, price decimal.Decimal) error {
	return nil
}

func (r *fakeRepo) GetVerticalPrices(ctx context.Context) ([]*models.VerticalPrice, error) {
	return r.vertical, nil
}

func (r *fakeRepo) UpdateVerticalPrice(ctx context.Context, level models.Level, price decimal.Decimal) error {
	return nil
}

func (r *fakeRepo) GetHorizontalPrices(ctx context.Context) ([]*models.HorizontalPrice, error) {
	return r.horizontal, nil
}

func (r *fakeRepo) UpdateHorizontalPrice(ctx context.Context, name string, price decimal.Decimal) error {
	return nil
}

func newTestService(t *testing.T) (GiftService, *fakeRepo) {
	t.Helper()

	repo := &fakeRepo{
		gifts: []*models.Gift{
			{ID: "c1", Name: "Ember Fox", Rarity: models.RarityCommon},
			{ID: "c2", Name: "Moss Golem", Rarity: models.RarityCommon},
			{ID: "r1", Name: "Tide Turtle", Rarity: models.RarityRare},
		},
		prices: []*models.Price{
			{Rarity: models.RarityCommon, Level: 0, Price: decimal.RequireFromString("0.05")},
			{Rarity: models.RarityRare, Level: 10, Price: decimal.RequireFromString("120")},
		},
		vertical: []*models.VerticalPrice{
			{Level: 0, Price: decimal.RequireFromString("10")},
		},
		horizontal: []*models.HorizontalPrice{
			{Name: "Ember Fox", Rarity: models.RarityCommon, Price: decimal.RequireFromString("15")},
		},
	}

	svc, err := NewGiftService(repo, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	return svc, repo
}

func TestCatalogLookups(t *testing.T) {
	svc, _ := newTestService(t)

	require.Equal(t, 3, svc.CatalogSize())

	gift, err := svc.GetGift("r1")
	require.NoError(t, err)
	require.Equal(t, "Tide Turtle", gift.Name)

	_, err = svc.GetGift("missing")
	require.ErrorIs(t, err, ErrGiftNotFound)
}

func TestGetGiftPrice(t *testing.T) {
	svc, _ := newTestService(t)

	price, err := svc.GetGiftPrice(models.RarityRare, 10)
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("120")))

	_, err = svc.GetGiftPrice(models.RarityRare, 5)
	require.ErrorIs(t, err, ErrPriceNotFound)
}

func TestVerticalAndHorizontalPrices(t *testing.T) {
	svc, _ := newTestService(t)

	price, err := svc.GetVerticalPrice(0)
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("10")))

	_, err = svc.GetVerticalPrice(3)
	require.ErrorIs(t, err, ErrPriceNotFound)

	price, err = svc.GetHorizontalPrice("Ember Fox")
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("15")))

	_, err = svc.GetHorizontalPrice("Moss Golem")
	require.ErrorIs(t, err, ErrPriceNotFound)
}

func TestGetRandomGiftsByRarity(t *testing.T) {
	svc, _ := newTestService(t)

	t.Run("draws the requested count", func(t *testing.T) {
		picked := svc.GetRandomGiftsByRarity(models.RarityCommon, 2)
		require.Len(t, picked, 2)
		for _, gift := range picked {
			require.Equal(t, models.RarityCommon, gift.Rarity)
		}
	})

	t.Run("small pools repeat", func(t *testing.T) {
		// Одна редкая карточка выдается семь раз
		picked := svc.GetRandomGiftsByRarity(models.RarityRare, 7)
		require.Len(t, picked, 7)
		for _, gift := range picked {
			require.Equal(t, "r1", gift.ID)
		}
	})

	t.Run("empty pool", func(t *testing.T) {
		require.Empty(t, svc.GetRandomGiftsByRarity(models.RarityMythic, 3))
	})
}

func TestGetRandomGiftsByRarityConcurrent(t *testing.T) {
	repo := &fakeRepo{
		gifts: []*models.Gift{
			{ID: "c1", Name: "Ember Fox", Rarity: models.RarityCommon},
			{ID: "c2", Name: "Moss Golem", Rarity: models.RarityCommon},
			{ID: "c3", Name: "Pebble Crab", Rarity: models.RarityCommon},
		},
	}

	// Общий генератор, как в main: хендлеры и воркеры дергают его параллельно
	svc, err := NewGiftService(repo, random.NewSeededRand())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				picked := svc.GetRandomGiftsByRarity(models.RarityCommon, 2)
				require.Len(t, picked, 2)
			}
		}()
	}
	wg.Wait()
}

func TestCreateGift(t *testing.T) {
	svc, repo := newTestService(t)

	gift, err := svc.CreateGift(context.Background(), &models.CreateGiftInput{
		Name:   "Sun Dragon",
		Rarity: models.RarityLegendary,
		URL:    "https://cdn.example.com/sun-dragon.png",
	})
	require.NoError(t, err)
	require.NotEmpty(t, gift.ID)
	require.Len(t, repo.created, 1)

	// Каталог перечитан, новый подарок доступен
	require.Equal(t, 4, svc.CatalogSize())

	_, err = svc.CreateGift(context.Background(), &models.CreateGiftInput{
		Name:   "Broken",
		Rarity: "UNREAL",
		URL:    "https://cdn.example.com/broken.png",
	})
	require.ErrorIs(t, err, ErrInvalidRarity)
}
