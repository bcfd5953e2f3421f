package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/common/config"
	"merge-verse-backend/internal/common/logger"
	"merge-verse-backend/internal/features/collection/models"
	"merge-verse-backend/internal/features/collection/repository"
	giftmodels "merge-verse-backend/internal/features/gift/models"
	giftservice "merge-verse-backend/internal/features/gift/service"
	inventoryrepo "merge-verse-backend/internal/features/inventory/repository"
	referralservice "merge-verse-backend/internal/features/referral/service"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrNotOwner         = errors.New("item does not belong to user")
	ErrDifferentItems   = errors.New("items must share gift and level")
	ErrMaxLevel         = errors.New("item is already at the maximum level")
	ErrNotEnoughCopies  = errors.New("self-merge requires at least two copies")
	ErrIncomplete       = errors.New("collection is not complete")
	ErrCollectionHidden = errors.New("collection prizes are not available")
	ErrOutOfGrid        = errors.New("position is outside the craft table")
	ErrCellOccupied     = errors.New("craft table cell is occupied")
	ErrCellEmpty        = errors.New("craft table cell is empty")
)

// Приз за полную коллекцию
var fullCollectionPrize = decimal.RequireFromString("450")

type CollectionService interface {
	Craft(ctx context.Context, userID int64, item1ID, item2ID string) (*models.CraftResult, error)
	CheckCollection(ctx context.Context, userID int64) (*models.CompletionReport, error)
	ClaimVertical(ctx context.Context, userID int64, level giftmodels.Level) (decimal.Decimal, error)
	ClaimHorizontal(ctx context.Context, userID int64, giftID string) (decimal.Decimal, error)
	ClaimFull(ctx context.Context, userID int64) (decimal.Decimal, error)

	GetCraftTable(ctx context.Context, userID int64) ([]*models.CraftItem, error)
	PlaceCraftItem(ctx context.Context, userID int64, input *models.PlaceCraftItemInput) error
	RemoveCraftItem(ctx context.Context, userID int64, x, y int) error

	IsVisible() bool
	SetVisibility(ctx context.Context, visible bool) error
	Reload(ctx context.Context) error
}

type collectionService struct {
	repo      repository.CollectionRepository
	items     inventoryrepo.ItemRepository
	gifts     giftservice.GiftService
	referrals referralservice.ReferralService
	gridSize  int

	mu      sync.RWMutex
	visible bool
}

func NewCollectionService(
	repo repository.CollectionRepository,
	items inventoryrepo.ItemRepository,
	gifts giftservice.GiftService,
	referrals referralservice.ReferralService,
	cfg *config.Config,
) (CollectionService, error) {
	s := &collectionService{
		repo:      repo,
		items:     items,
		gifts:     gifts,
		referrals: referrals,
		gridSize:  cfg.Collection.CraftGridSize,
	}

	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *collectionService) Reload(ctx context.Context) error {
	visible, err := s.repo.GetVisibility(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()

	return nil
}

func (s *collectionService) IsVisible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

func (s *collectionService) SetVisibility(ctx context.Context, visible bool) error {
	if err := s.repo.SetVisibility(ctx, visible); err != nil {
		return err
	}
	return s.Reload(ctx)
}

// Craft сливает два предмета одного подарка и уровня в предмет следующего
// уровня. Результат передаваем только если оба источника передаваемы.
func (s *collectionService) Craft(ctx context.Context, userID int64, item1ID, item2ID string) (*models.CraftResult, error) {
	var result *models.CraftResult

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		// Блокировка строк в фиксированном порядке
		firstID, secondID := item1ID, item2ID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}

		first, err := tx.GetItemForUpdate(ctx, firstID)
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return ErrItemNotFound
			}
			return err
		}

		second := first
		if firstID != secondID {
			second, err = tx.GetItemForUpdate(ctx, secondID)
			if err != nil {
				if errors.Is(err, repository.ErrItemNotFound) {
					return ErrItemNotFound
				}
				return err
			}
		}

		if first.UserID != userID || second.UserID != userID {
			return ErrNotOwner
		}
		if first.GiftID != second.GiftID || first.Level != second.Level {
			return ErrDifferentItems
		}

		nextLevel, ok := first.Level.Next()
		if !ok {
			return ErrMaxLevel
		}

		if firstID == secondID {
			if first.Quantity < 2 {
				return ErrNotEnoughCopies
			}
			if err := tx.ConsumeItem(ctx, first.ID, 2); err != nil {
				return err
			}
		} else {
			if err := tx.ConsumeItem(ctx, first.ID, 1); err != nil {
				return err
			}
			if err := tx.ConsumeItem(ctx, second.ID, 1); err != nil {
				return err
			}
		}

		tradeable := first.IsTradeable && second.IsTradeable
		if err := tx.UpsertItem(ctx, userID, first.GiftID, nextLevel, 1, tradeable); err != nil {
			return err
		}

		result = &models.CraftResult{
			GiftID:      first.GiftID,
			Level:       nextLevel,
			IsTradeable: tradeable,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Int64("user_id", userID).
		Str("gift_id", result.GiftID).
		Int("level", int(result.Level)).
		Msg("items crafted")

	return result, nil
}

// requiredLevels возвращает уровни, участвующие в коллекциях
func (s *collectionService) requiredLevels() []giftmodels.Level {
	vertical := s.gifts.GetVerticalPrices()
	levels := make([]giftmodels.Level, 0, len(vertical))
	for _, p := range vertical {
		levels = append(levels, p.Level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// CheckCollection строит отчет о прогрессе вертикальных и горизонтальных коллекций
func (s *collectionService) CheckCollection(ctx context.Context, userID int64) (*models.CompletionReport, error) {
	items, err := s.items.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	type cell struct {
		giftID string
		level  giftmodels.Level
	}

	owned := make(map[cell]bool)
	for _, item := range items {
		owned[cell{item.GiftID, item.Level}] = true
	}

	catalog := s.gifts.GetAllGifts()
	levels := s.requiredLevels()

	report := &models.CompletionReport{
		Visible:      s.IsVisible(),
		FullComplete: len(catalog) > 0 && len(levels) > 0,
		FullPrize:    fullCollectionPrize,
	}

	for _, price := range s.gifts.GetVerticalPrices() {
		count := 0
		for _, gift := range catalog {
			if owned[cell{gift.ID, price.Level}] {
				count++
			}
		}
		complete := count == len(catalog) && len(catalog) > 0
		if !complete {
			report.FullComplete = false
		}
		report.Verticals = append(report.Verticals, &models.VerticalStatus{
			Level:    price.Level,
			Owned:    count,
			Required: len(catalog),
			Complete: complete,
			Prize:    price.Price,
		})
	}

	for _, gift := range catalog {
		count := 0
		for _, level := range levels {
			if owned[cell{gift.ID, level}] {
				count++
			}
		}
		prize, err := s.gifts.GetHorizontalPrice(gift.Name)
		if err != nil {
			prize = decimal.Zero
		}
		report.Horizontals = append(report.Horizontals, &models.HorizontalStatus{
			GiftID:   gift.ID,
			GiftName: gift.Name,
			Owned:    count,
			Required: len(levels),
			Complete: count == len(levels) && len(levels) > 0,
			Prize:    prize,
		})
	}

	return report, nil
}

// consumeOne списывает одну единицу, предпочитая непередаваемый вариант
func (s *collectionService) consumeOne(ctx context.Context, tx repository.Tx, userID int64, giftID string, level giftmodels.Level) error {
	stack, err := tx.FindStackForUpdate(ctx, userID, giftID, level, false)
	if errors.Is(err, repository.ErrItemNotFound) {
		stack, err = tx.FindStackForUpdate(ctx, userID, giftID, level, true)
	}
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrIncomplete
		}
		return err
	}

	return tx.ConsumeItem(ctx, stack.ID, 1)
}

// ClaimVertical выдает приз за сбор всех подарков уровня, списывая по одному
// предмету каждой клетки
func (s *collectionService) ClaimVertical(ctx context.Context, userID int64, level giftmodels.Level) (decimal.Decimal, error) {
	if !s.IsVisible() {
		return decimal.Zero, ErrCollectionHidden
	}

	prize, err := s.gifts.GetVerticalPrice(level)
	if err != nil {
		return decimal.Zero, ErrIncomplete
	}

	err = s.repo.WithTx(ctx, func(tx repository.Tx) error {
		for _, gift := range s.gifts.GetAllGifts() {
			if err := s.consumeOne(ctx, tx, userID, gift.ID, level); err != nil {
				return err
			}
		}
		return tx.CreditBalance(ctx, userID, prize)
	})
	if err != nil {
		return decimal.Zero, err
	}

	logger.Info().
		Int64("user_id", userID).
		Int("level", int(level)).
		Str("prize", prize.String()).
		Msg("vertical collection claimed")

	return prize, nil
}

// ClaimHorizontal выдает приз за сбор всех уровней одного подарка
func (s *collectionService) ClaimHorizontal(ctx context.Context, userID int64, giftID string) (decimal.Decimal, error) {
	if !s.IsVisible() {
		return decimal.Zero, ErrCollectionHidden
	}

	gift, err := s.gifts.GetGift(giftID)
	if err != nil {
		return decimal.Zero, ErrItemNotFound
	}

	prize, err := s.gifts.GetHorizontalPrice(gift.Name)
	if err != nil {
		return decimal.Zero, ErrIncomplete
	}

	err = s.repo.WithTx(ctx, func(tx repository.Tx) error {
		for _, level := range s.requiredLevels() {
			if err := s.consumeOne(ctx, tx, userID, giftID, level); err != nil {
				return err
			}
		}
		return tx.CreditBalance(ctx, userID, prize)
	})
	if err != nil {
		return decimal.Zero, err
	}

	logger.Info().
		Int64("user_id", userID).
		Str("gift_id", giftID).
		Str("prize", prize.String()).
		Msg("horizontal collection claimed")

	return prize, nil
}

// ClaimFull выдает приз за полную коллекцию и бонус пригласившему
func (s *collectionService) ClaimFull(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if !s.IsVisible() {
		return decimal.Zero, ErrCollectionHidden
	}

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		for _, gift := range s.gifts.GetAllGifts() {
			for _, level := range s.requiredLevels() {
				if err := s.consumeOne(ctx, tx, userID, gift.ID, level); err != nil {
					return err
				}
			}
		}
		return tx.CreditBalance(ctx, userID, fullCollectionPrize)
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.referrals.ProcessFullCollection(ctx, userID)

	logger.Info().
		Int64("user_id", userID).
		Str("prize", fullCollectionPrize.String()).
		Msg("full collection claimed")

	return fullCollectionPrize, nil
}

func (s *collectionService) GetCraftTable(ctx context.Context, userID int64) ([]*models.CraftItem, error) {
	items, err := s.repo.ListCraftItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.CraftItem{}
	}
	return items, nil
}

// PlaceCraftItem выкладывает одну единицу стопки на стол крафта
func (s *collectionService) PlaceCraftItem(ctx context.Context, userID int64, input *models.PlaceCraftItemInput) error {
	if input.PositionX < 0 || input.PositionX >= s.gridSize ||
		input.PositionY < 0 || input.PositionY >= s.gridSize {
		return ErrOutOfGrid
	}

	return s.repo.WithTx(ctx, func(tx repository.Tx) error {
		item, err := tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return ErrItemNotFound
			}
			return err
		}

		if item.UserID != userID {
			return ErrNotOwner
		}

		if err := tx.ConsumeItem(ctx, item.ID, 1); err != nil {
			return err
		}

		err = tx.InsertCraftItem(ctx, &models.CraftItem{
			UserID:      userID,
			GiftID:      item.GiftID,
			Level:       item.Level,
			IsTradeable: item.IsTradeable,
			PositionX:   input.PositionX,
			PositionY:   input.PositionY,
		})
		if errors.Is(err, repository.ErrCellOccupied) {
			return ErrCellOccupied
		}
		return err
	})
}

// RemoveCraftItem возвращает предмет со стола крафта в инвентарь
func (s *collectionService) RemoveCraftItem(ctx context.Context, userID int64, x, y int) error {
	return s.repo.WithTx(ctx, func(tx repository.Tx) error {
		item, err := tx.DeleteCraftItem(ctx, userID, x, y)
		if err != nil {
			if errors.Is(err, repository.ErrCraftItemNotFound) {
				return ErrCellEmpty
			}
			return err
		}

		return tx.UpsertItem(ctx, userID, item.GiftID, item.Level, 1, item.IsTradeable)
	})
}
