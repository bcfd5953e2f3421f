package service

import (
	"context"
	"errors"
	"time"

	"merge-verse-backend/internal/common/logger"
	giftservice "merge-verse-backend/internal/features/gift/service"
	"merge-verse-backend/internal/features/pack/models"
	"merge-verse-backend/internal/features/pack/repository"
	userrepo "merge-verse-backend/internal/features/user/repository"
)

var (
	ErrUnknownPack         = errors.New("unknown pack type")
	ErrPackNotPurchasable  = errors.New("pack is not purchasable")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyOpenedToday  = errors.New("free pack already opened today")
	ErrNoCompensation      = errors.New("no compensation credits for this pack")
)

// Серия сбрасывается на седьмой день и выдает расширенный бесплатный пак
const streakLength = 7

type PackService interface {
	GetConfigs() []models.Config
	OpenPaid(ctx context.Context, userID int64, packType models.PackType) ([]models.DrawnItem, error)
	OpenFree(ctx context.Context, userID int64) ([]models.DrawnItem, error)
	OpenCompensation(ctx context.Context, userID int64, packType models.PackType) ([]models.DrawnItem, error)
	GetCompensations(ctx context.Context, userID int64) ([]*models.Compensation, error)
	GrantCompensation(ctx context.Context, userID int64, packType models.PackType, amount int) error
}

type packService struct {
	repo  repository.PackRepository
	users userrepo.UserRepository
	gifts giftservice.GiftService
}

func NewPackService(repo repository.PackRepository, users userrepo.UserRepository, gifts giftservice.GiftService) PackService {
	return &packService{
		repo:  repo,
		users: users,
		gifts: gifts,
	}
}

func (s *packService) GetConfigs() []models.Config {
	configs := make([]models.Config, 0, len(models.Configs))
	for _, packType := range []models.PackType{
		models.PackFreeDaily, models.PackFreeStreak,
		models.PackCommon, models.PackRare, models.PackEpic, models.PackLegendary,
	} {
		configs = append(configs, models.Configs[packType])
	}
	return configs
}

// draw разыгрывает состав пака через каталог подарков
func (s *packService) draw(config models.Config) []models.DrawnItem {
	// Дубликаты схлопываются в одну стопку
	counts := make(map[string]*models.DrawnItem)
	var order []string

	for _, d := range config.Draws {
		for _, gift := range s.gifts.GetRandomGiftsByRarity(d.Rarity, d.Count) {
			if item, ok := counts[gift.ID]; ok {
				item.Quantity++
				continue
			}
			counts[gift.ID] = &models.DrawnItem{
				GiftID:      gift.ID,
				GiftName:    gift.Name,
				Rarity:      gift.Rarity,
				Level:       config.Level,
				IsTradeable: config.IsTradeable,
				Quantity:    1,
			}
			order = append(order, gift.ID)
		}
	}

	items := make([]models.DrawnItem, 0, len(order))
	for _, id := range order {
		items = append(items, *counts[id])
	}
	return items
}

// OpenPaid открывает платный пак, списывая его цену с баланса
func (s *packService) OpenPaid(ctx context.Context, userID int64, packType models.PackType) ([]models.DrawnItem, error) {
	config, ok := models.Configs[packType]
	if !ok {
		return nil, ErrUnknownPack
	}
	if !config.Price.IsPositive() {
		return nil, ErrPackNotPurchasable
	}

	items := s.draw(config)

	if err := s.repo.ApplyPaidOpen(ctx, userID, config.Price, items); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	logger.Info().
		Int64("user_id", userID).
		Str("pack", string(packType)).
		Msg("paid pack opened")

	return items, nil
}

// OpenFree открывает бесплатный пак. Доступен раз в календарные сутки UTC;
// на седьмой день подряд серия сбрасывается и выдается расширенный состав.
func (s *packService) OpenFree(ctx context.Context, userID int64) ([]models.DrawnItem, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if user.ActiveAt != nil && sameDay(user.ActiveAt.UTC(), now) {
		return nil, ErrAlreadyOpenedToday
	}

	packType := models.PackFreeDaily
	streak := user.Streak + 1
	if streak >= streakLength {
		streak = 0
		packType = models.PackFreeStreak
	}

	items := s.draw(models.Configs[packType])

	// Повторная проверка суток в самом UPDATE отсекает параллельное открытие
	if err := s.repo.ApplyFreeOpen(ctx, userID, streak, now, items); err != nil {
		if errors.Is(err, repository.ErrAlreadyOpened) {
			return nil, ErrAlreadyOpenedToday
		}
		return nil, err
	}

	logger.Info().
		Int64("user_id", userID).
		Str("pack", string(packType)).
		Int("streak", streak).
		Msg("free pack opened")

	return items, nil
}

// OpenCompensation открывает пак за кредит компенсации
func (s *packService) OpenCompensation(ctx context.Context, userID int64, packType models.PackType) ([]models.DrawnItem, error) {
	config, ok := models.Configs[packType]
	if !ok {
		return nil, ErrUnknownPack
	}

	items := s.draw(config)

	if err := s.repo.ApplyCompensationOpen(ctx, userID, packType, items); err != nil {
		if errors.Is(err, repository.ErrNoCompensation) {
			return nil, ErrNoCompensation
		}
		return nil, err
	}

	return items, nil
}

func (s *packService) GetCompensations(ctx context.Context, userID int64) ([]*models.Compensation, error) {
	compensations, err := s.repo.ListCompensations(ctx, userID)
	if err != nil {
		return nil, err
	}
	if compensations == nil {
		compensations = []*models.Compensation{}
	}
	return compensations, nil
}

func (s *packService) GrantCompensation(ctx context.Context, userID int64, packType models.PackType, amount int) error {
	if amount <= 0 {
		return nil
	}
	return s.repo.GrantCompensation(ctx, userID, packType, amount)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
