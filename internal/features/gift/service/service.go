package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/common/logger"
	"merge-verse-backend/internal/features/gift/models"
	"merge-verse-backend/internal/features/gift/repository"
	"merge-verse-backend/internal/utils/random"
)

var (
	ErrGiftNotFound    = errors.New("gift not found")
	ErrPriceNotFound   = errors.New("price not found")
	ErrInvalidRarity   = errors.New("invalid rarity")
	ErrInvalidLevel    = errors.New("invalid level")
	ErrCatalogNotReady = errors.New("gift catalog is empty")
)

type GiftService interface {
	// Снапшот каталога, загружается при старте и по Reload
	GetAllGifts() []*models.Gift
	GetGift(id string) (*models.Gift, error)
	CatalogSize() int
	GetRandomGiftsByRarity(rarity models.Rarity, n int) []*models.Gift
	GetGiftPrice(rarity models.Rarity, level models.Level) (decimal.Decimal, error)
	GetVerticalPrices() []*models.VerticalPrice
	GetVerticalPrice(level models.Level) (decimal.Decimal, error)
	GetHorizontalPrices() []*models.HorizontalPrice
	GetHorizontalPrice(name string) (decimal.Decimal, error)
	Reload(ctx context.Context) error

	CreateGift(ctx context.Context, input *models.CreateGiftInput) (*models.Gift, error)
	UpdatePrice(ctx context.Context, input *models.UpdatePriceInput) error
	UpdateVerticalPrice(ctx context.Context, input *models.UpdateVerticalPriceInput) error
	UpdateHorizontalPrice(ctx context.Context, input *models.UpdateHorizontalPriceInput) error
}

type priceKey struct {
	rarity models.Rarity
	level  models.Level
}

type giftService struct {
	repo repository.GiftRepository
	rnd  *rand.Rand

	mu               sync.RWMutex
	gifts            []*models.Gift
	giftsByID        map[string]*models.Gift
	giftsByRarity    map[models.Rarity][]*models.Gift
	prices           map[priceKey]decimal.Decimal
	verticalPrices   []*models.VerticalPrice
	horizontalPrices []*models.HorizontalPrice
}

func NewGiftService(repo repository.GiftRepository, rnd *rand.Rand) (GiftService, error) {
	s := &giftService{
		repo: repo,
		rnd:  rnd,
	}

	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Reload перечитывает каталог и таблицы цен из базы
func (s *giftService) Reload(ctx context.Context) error {
	gifts, err := s.repo.GetAll(ctx)
	if err != nil {
		return err
	}

	prices, err := s.repo.GetPrices(ctx)
	if err != nil {
		return err
	}

	vertical, err := s.repo.GetVerticalPrices(ctx)
	if err != nil {
		return err
	}

	horizontal, err := s.repo.GetHorizontalPrices(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]*models.Gift, len(gifts))
	byRarity := make(map[models.Rarity][]*models.Gift)
	for _, gift := range gifts {
		byID[gift.ID] = gift
		byRarity[gift.Rarity] = append(byRarity[gift.Rarity], gift)
	}

	priceMap := make(map[priceKey]decimal.Decimal, len(prices))
	for _, p := range prices {
		priceMap[priceKey{p.Rarity, p.Level}] = p.Price
	}

	s.mu.Lock()
	s.gifts = gifts
	s.giftsByID = byID
	s.giftsByRarity = byRarity
	s.prices = priceMap
	s.verticalPrices = vertical
	s.horizontalPrices = horizontal
	s.mu.Unlock()

	logger.Info().
		Int("gifts", len(gifts)).
		Int("prices", len(prices)).
		Msg("gift catalog reloaded")

	return nil
}

func (s *giftService) GetAllGifts() []*models.Gift {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gifts := make([]*models.Gift, len(s.gifts))
	copy(gifts, s.gifts)
	return gifts
}

func (s *giftService) GetGift(id string) (*models.Gift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gift, ok := s.giftsByID[id]
	if !ok {
		return nil, ErrGiftNotFound
	}
	return gift, nil
}

func (s *giftService) CatalogSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gifts)
}

// GetRandomGiftsByRarity возвращает n случайных подарков указанной редкости.
// Если подарков меньше n, выборка добирается повторными проходами.
func (s *giftService) GetRandomGiftsByRarity(rarity models.Rarity, n int) []*models.Gift {
	s.mu.RLock()
	pool := s.giftsByRarity[rarity]
	s.mu.RUnlock()

	if len(pool) == 0 || n <= 0 {
		return nil
	}

	var result []*models.Gift
	for len(result) < n {
		picked := random.PickN(s.rnd, pool, n-len(result))
		result = append(result, picked...)
	}
	return result
}

func (s *giftService) GetGiftPrice(rarity models.Rarity, level models.Level) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[priceKey{rarity, level}]
	if !ok {
		return decimal.Zero, ErrPriceNotFound
	}
	return price, nil
}

func (s *giftService) GetVerticalPrices() []*models.VerticalPrice {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := make([]*models.VerticalPrice, len(s.verticalPrices))
	copy(prices, s.verticalPrices)
	return prices
}

func (s *giftService) GetVerticalPrice(level models.Level) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.verticalPrices {
		if p.Level == level {
			return p.Price, nil
		}
	}
	return decimal.Zero, ErrPriceNotFound
}

func (s *giftService) GetHorizontalPrices() []*models.HorizontalPrice {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := make([]*models.HorizontalPrice, len(s.horizontalPrices))
	copy(prices, s.horizontalPrices)
	return prices
}

func (s *giftService) GetHorizontalPrice(name string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.horizontalPrices {
		if p.Name == name {
			return p.Price, nil
		}
	}
	return decimal.Zero, ErrPriceNotFound
}

func (s *giftService) CreateGift(ctx context.Context, input *models.CreateGiftInput) (*models.Gift, error) {
	if !input.Rarity.Valid() {
		return nil, ErrInvalidRarity
	}

	gift := &models.Gift{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Rarity:    input.Rarity,
		URL:       input.URL,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, gift); err != nil {
		return nil, err
	}

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}

	return gift, nil
}

func (s *giftService) UpdatePrice(ctx context.Context, input *models.UpdatePriceInput) error {
	if !input.Rarity.Valid() {
		return ErrInvalidRarity
	}
	if !input.Level.Valid() {
		return ErrInvalidLevel
	}

	if err := s.repo.UpdatePrice(ctx, input.Rarity, input.Level, input.Price); err != nil {
		return err
	}

	return s.Reload(ctx)
}

func (s *giftService) UpdateVerticalPrice(ctx context.Context, input *models.UpdateVerticalPriceInput) error {
	if !input.Level.Valid() {
		return ErrInvalidLevel
	}

	if err := s.repo.UpdateVerticalPrice(ctx, input.Level, input.Price); err != nil {
		return err
	}

	return s.Reload(ctx)
}

func (s *giftService) UpdateHorizontalPrice(ctx context.Context, input *models.UpdateHorizontalPriceInput) error {
	if err := s.repo.UpdateHorizontalPrice(ctx, input.Name, input.Price); err != nil {
		return err
	}

	return s.Reload(ctx)
}
