package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"merge-verse-backend/internal/common/cache"
	"merge-verse-backend/internal/common/config"
	"merge-verse-backend/internal/common/logger"
	giftmodels "merge-verse-backend/internal/features/gift/models"
	giftservice "merge-verse-backend/internal/features/gift/service"
	"merge-verse-backend/internal/features/giveaway/models"
	"merge-verse-backend/internal/features/giveaway/repository"
	packmodels "merge-verse-backend/internal/features/pack/models"
	packservice "merge-verse-backend/internal/features/pack/service"
	"merge-verse-backend/internal/platform/telegram"
	"merge-verse-backend/internal/utils/random"
)

var (
	ErrGiveawayNotFound  = errors.New("giveaway not found")
	ErrGiveawayNotActive = errors.New("giveaway is not active")
	ErrNoEligibleItem    = errors.New("no max-level item of this gift to enter with")
	ErrAlreadyEntered    = errors.New("user already entered this giveaway")
	ErrWinnerNotFound    = errors.New("winner not found")
	ErrNotWinner         = errors.New("winner row belongs to another user")
	ErrAlreadyChosen     = errors.New("reward already chosen")
	ErrInvalidChoice     = errors.New("invalid reward choice")
	ErrInvalidSteps      = errors.New("steps must be positive")
)

const (
	defaultSteps = 30
	maxWinners   = 10
	topLimit     = 10

	defaultListTTL = time.Minute
	defaultTopTTL  = 5 * time.Minute
)

// Утешительные паки за участие, по редкости разыгранного подарка
var compensationByRarity = map[giftmodels.Rarity]struct {
	Pack  packmodels.PackType
	Count int
}{
	giftmodels.RarityCommon:    {packmodels.PackCommon, 3},
	giftmodels.RarityRare:      {packmodels.PackRare, 4},
	giftmodels.RarityEpic:      {packmodels.PackEpic, 6},
	giftmodels.RarityLegendary: {packmodels.PackLegendary, 3},
	giftmodels.RarityMythic:    {packmodels.PackLegendary, 12},
}

type GiveawayService interface {
	CreateGiveaway(ctx context.Context, input *models.CreateGiveawayInput) (*models.Giveaway, error)
	CreateMonthlyGiveaways(ctx context.Context) (int, error)
	Enter(ctx context.Context, userID int64, giveawayID string) error
	Finish(ctx context.Context, giveawayID string) (*models.Giveaway, error)
	FinishAllActive(ctx context.Context) error
	ChooseReward(ctx context.Context, userID int64, winnerID string, choice models.Choice) error

	GetGiveaway(ctx context.Context, id string) (*models.Giveaway, error)
	GetGiveaways(ctx context.Context, limit, offset int) ([]*models.Giveaway, error)
	GetActiveGiveaways(ctx context.Context) ([]*models.Giveaway, error)
	GetUserEntries(ctx context.Context, userID int64) ([]*models.Entry, error)
	GetWinners(ctx context.Context, giveawayID string) ([]*models.Winner, error)
	GetPendingWinners(ctx context.Context) ([]*models.Winner, error)
	GetTopWinners(ctx context.Context) ([]*models.TopWinner, error)

	Steps() int
	UpdateSteps(ctx context.Context, steps int) error
	Reload(ctx context.Context) error
}

type giveawayService struct {
	repo  repository.GiveawayRepository
	gifts giftservice.GiftService
	packs packservice.PackService
	cache *cache.CacheService
	bot   *telegram.Client
	rnd   *rand.Rand

	listTTL time.Duration
	topTTL  time.Duration

	mu    sync.RWMutex
	steps int
}

func NewGiveawayService(
	repo repository.GiveawayRepository,
	gifts giftservice.GiftService,
	packs packservice.PackService,
	cache *cache.CacheService,
	bot *telegram.Client,
	rnd *rand.Rand,
	cfg *config.Config,
) (GiveawayService, error) {
	s := &giveawayService{
		repo:    repo,
		gifts:   gifts,
		packs:   packs,
		cache:   cache,
		bot:     bot,
		rnd:     rnd,
		listTTL: cfg.Cache.GiveawayListTTL,
		topTTL:  cfg.Cache.TopWinnersTTL,
		steps:   defaultSteps,
	}
	if s.listTTL <= 0 {
		s.listTTL = defaultListTTL
	}
	if s.topTTL <= 0 {
		s.topTTL = defaultTopTTL
	}

	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Reload перечитывает порог кворума из базы
func (s *giveawayService) Reload(ctx context.Context) error {
	steps, err := s.repo.GetSteps(ctx)
	if err != nil {
		return err
	}
	if steps <= 0 {
		steps = defaultSteps
	}

	s.mu.Lock()
	s.steps = steps
	s.mu.Unlock()

	return nil
}

func (s *giveawayService) Steps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps
}

func (s *giveawayService) UpdateSteps(ctx context.Context, steps int) error {
	if steps <= 0 {
		return ErrInvalidSteps
	}
	if err := s.repo.SetSteps(ctx, steps); err != nil {
		return err
	}
	return s.Reload(ctx)
}

func (s *giveawayService) CreateGiveaway(ctx context.Context, input *models.CreateGiveawayInput) (*models.Giveaway, error) {
	if _, err := s.gifts.GetGift(input.GiftID); err != nil {
		return nil, err
	}

	giveaway := &models.Giveaway{
		ID:      uuid.NewString(),
		GiftID:  input.GiftID,
		Status:  models.StatusActive,
		StartAt: time.Now(),
		EndsAt:  input.EndsAt,
	}

	if err := s.repo.Create(ctx, giveaway); err != nil {
		return nil, err
	}

	s.invalidate(ctx, giveaway.ID)

	logger.Info().
		Str("giveaway_id", giveaway.ID).
		Str("gift_id", giveaway.GiftID).
		Msg("giveaway created")

	return giveaway, nil
}

// CreateMonthlyGiveaways создает по одному активному розыгрышу на каждый
// подарок каталога, если активных еще нет
func (s *giveawayService) CreateMonthlyGiveaways(ctx context.Context) (int, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	if len(active) > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	// До первого числа следующего месяца
	endsAt := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)

	created := 0
	for _, gift := range s.gifts.GetAllGifts() {
		giveaway := &models.Giveaway{
			ID:      uuid.NewString(),
			GiftID:  gift.ID,
			Status:  models.StatusActive,
			StartAt: now,
			EndsAt:  endsAt,
		}

		if err := s.repo.Create(ctx, giveaway); err != nil {
			logger.Error().Err(err).
				Str("gift_id", gift.ID).
				Msg("failed to create monthly giveaway")
			continue
		}
		created++
	}

	if created > 0 {
		s.invalidate(ctx, "")
		logger.Info().Int("count", created).Msg("monthly giveaways created")
	}

	return created, nil
}

// Enter списывает один предмет максимального уровня разыгрываемого подарка.
// Заявка безвозвратна; сначала уходит непередаваемый экземпляр.
func (s *giveawayService) Enter(ctx context.Context, userID int64, giveawayID string) error {
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		giveaway, err := tx.GetGiveawayForUpdate(ctx, giveawayID)
		if err != nil {
			if errors.Is(err, repository.ErrGiveawayNotFound) {
				return ErrGiveawayNotFound
			}
			return err
		}

		if giveaway.Status != models.StatusActive {
			return ErrGiveawayNotActive
		}

		tradeable := false
		stack, err := tx.FindStackForUpdate(ctx, userID, giveaway.GiftID, giftmodels.LevelMax, false)
		if errors.Is(err, repository.ErrItemNotFound) {
			tradeable = true
			stack, err = tx.FindStackForUpdate(ctx, userID, giveaway.GiftID, giftmodels.LevelMax, true)
		}
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return ErrNoEligibleItem
			}
			return err
		}

		if err := tx.ConsumeItem(ctx, stack.ID, 1); err != nil {
			return err
		}

		err = tx.InsertEntry(ctx, &models.Entry{
			GiveawayID:  giveawayID,
			UserID:      userID,
			IsTradeable: tradeable,
		})
		if errors.Is(err, repository.ErrAlreadyEntered) {
			return ErrAlreadyEntered
		}
		return err
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, giveawayID)

	logger.Info().
		Int64("user_id", userID).
		Str("giveaway_id", giveawayID).
		Msg("giveaway entered")

	return nil
}

// Finish подводит итоги: без кворума возвращает заявки и отменяет розыгрыш,
// иначе выбирает победителей частичной тасовкой Фишера-Йетса
func (s *giveawayService) Finish(ctx context.Context, giveawayID string) (*models.Giveaway, error) {
	var giveaway *models.Giveaway
	var entries []*models.Entry
	var winners []*models.Winner

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		g, err := tx.GetGiveawayForUpdate(ctx, giveawayID)
		if err != nil {
			if errors.Is(err, repository.ErrGiveawayNotFound) {
				return ErrGiveawayNotFound
			}
			return err
		}

		if g.Status != models.StatusActive {
			return ErrGiveawayNotActive
		}

		entries, err = tx.ListEntries(ctx, giveawayID)
		if err != nil {
			return err
		}

		steps := s.Steps()

		if len(entries) < steps {
			for _, entry := range entries {
				err := tx.UpsertItem(ctx, entry.UserID, g.GiftID, giftmodels.LevelMax, 1, entry.IsTradeable)
				if err != nil {
					return err
				}
			}

			if err := tx.UpdateGiveawayStatus(ctx, giveawayID, models.StatusCancelled); err != nil {
				return err
			}

			g.Status = models.StatusCancelled
			giveaway = g
			return nil
		}

		count := (len(entries) + steps - 1) / steps
		if count > maxWinners {
			count = maxWinners
		}

		for _, entry := range random.PickN(s.rnd, entries, count) {
			winner := &models.Winner{
				ID:         uuid.NewString(),
				GiveawayID: giveawayID,
				UserID:     entry.UserID,
				Choice:     models.ChoicePending,
			}
			if err := tx.InsertWinner(ctx, winner); err != nil {
				return err
			}
			winners = append(winners, winner)
		}

		if err := tx.UpdateGiveawayStatus(ctx, giveawayID, models.StatusFinished); err != nil {
			return err
		}

		g.Status = models.StatusFinished
		giveaway = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, giveawayID)
	s.afterFinish(ctx, giveaway, entries, winners)

	logger.Info().
		Str("giveaway_id", giveawayID).
		Str("status", string(giveaway.Status)).
		Int("entries", len(entries)).
		Int("winners", len(winners)).
		Msg("giveaway settled")

	return giveaway, nil
}

// afterFinish раздает уведомления и утешительные паки после коммита
func (s *giveawayService) afterFinish(ctx context.Context, giveaway *models.Giveaway, entries []*models.Entry, winners []*models.Winner) {
	gift, err := s.gifts.GetGift(giveaway.GiftID)
	if err != nil {
		logger.Error().Err(err).Str("gift_id", giveaway.GiftID).Msg("failed to resolve giveaway gift")
		return
	}

	if giveaway.Status == models.StatusCancelled {
		s.notifyRefunds(ctx, entries, gift.Name)
		return
	}

	for _, winner := range winners {
		if s.bot == nil {
			break
		}
		if err := s.bot.NotifyGiveawayWin(ctx, winner.UserID, gift.Name); err != nil {
			logger.Warn().Err(err).
				Int64("user_id", winner.UserID).
				Msg("failed to notify giveaway winner")
		}
	}

	comp, ok := compensationByRarity[gift.Rarity]
	if !ok {
		return
	}

	for _, entry := range entries {
		err := s.packs.GrantCompensation(ctx, entry.UserID, comp.Pack, comp.Count)
		if err != nil {
			logger.Error().Err(err).
				Int64("user_id", entry.UserID).
				Str("giveaway_id", giveaway.ID).
				Msg("failed to grant participation compensation")
		}
	}
}

func (s *giveawayService) notifyRefunds(ctx context.Context, entries []*models.Entry, giftName string) {
	if s.bot == nil {
		return
	}

	for _, entry := range entries {
		if err := s.bot.NotifyGiveawayRefund(ctx, entry.UserID, giftName); err != nil {
			logger.Warn().Err(err).
				Int64("user_id", entry.UserID).
				Msg("failed to notify giveaway refund")
		}
	}
}

// FinishAllActive подводит итоги всех активных розыгрышей
func (s *giveawayService) FinishAllActive(ctx context.Context) error {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, giveaway := range active {
		if _, err := s.Finish(ctx, giveaway.ID); err != nil {
			logger.Error().Err(err).
				Str("giveaway_id", giveaway.ID).
				Msg("failed to finish giveaway")
		}
	}

	return nil
}

// ChooseReward фиксирует выбор победителя: подарок или деньги по цене
// максимального уровня
func (s *giveawayService) ChooseReward(ctx context.Context, userID int64, winnerID string, choice models.Choice) error {
	if !choice.Valid() {
		return ErrInvalidChoice
	}

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		winner, err := tx.GetWinnerForUpdate(ctx, winnerID)
		if err != nil {
			if errors.Is(err, repository.ErrWinnerNotFound) {
				return ErrWinnerNotFound
			}
			return err
		}

		if winner.UserID != userID {
			return ErrNotWinner
		}
		if winner.Choice != models.ChoicePending {
			return ErrAlreadyChosen
		}

		giveaway, err := tx.GetGiveawayForUpdate(ctx, winner.GiveawayID)
		if err != nil {
			return err
		}

		switch choice {
		case models.ChoiceGift:
			err = tx.UpsertItem(ctx, userID, giveaway.GiftID, giftmodels.LevelMax, 1, false)
		case models.ChoiceCompensation:
			gift, giftErr := s.gifts.GetGift(giveaway.GiftID)
			if giftErr != nil {
				return giftErr
			}
			price, priceErr := s.gifts.GetGiftPrice(gift.Rarity, giftmodels.LevelMax)
			if priceErr != nil {
				return priceErr
			}
			err = tx.CreditBalance(ctx, userID, price)
		}
		if err != nil {
			return err
		}

		return tx.UpdateWinnerChoice(ctx, winnerID, choice)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, "")

	logger.Info().
		Int64("user_id", userID).
		Str("winner_id", winnerID).
		Str("choice", string(choice)).
		Msg("giveaway reward chosen")

	return nil
}

func (s *giveawayService) GetGiveaway(ctx context.Context, id string) (*models.Giveaway, error) {
	giveaway, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			return nil, ErrGiveawayNotFound
		}
		return nil, err
	}
	return giveaway, nil
}

func (s *giveawayService) GetGiveaways(ctx context.Context, limit, offset int) ([]*models.Giveaway, error) {
	giveaways, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if giveaways == nil {
		giveaways = []*models.Giveaway{}
	}
	return giveaways, nil
}

func (s *giveawayService) GetActiveGiveaways(ctx context.Context) ([]*models.Giveaway, error) {
	var giveaways []*models.Giveaway

	if s.cache == nil {
		return s.repo.ListActive(ctx)
	}

	err := s.cache.GetOrSet(ctx, "active_giveaways", &giveaways, s.listTTL, func() (interface{}, error) {
		return s.repo.ListActive(ctx)
	})
	if err != nil {
		return nil, err
	}
	if giveaways == nil {
		giveaways = []*models.Giveaway{}
	}
	return giveaways, nil
}

func (s *giveawayService) GetUserEntries(ctx context.Context, userID int64) ([]*models.Entry, error) {
	entries, err := s.repo.ListEntriesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.Entry{}
	}
	return entries, nil
}

func (s *giveawayService) GetWinners(ctx context.Context, giveawayID string) ([]*models.Winner, error) {
	winners, err := s.repo.ListWinnersByGiveaway(ctx, giveawayID)
	if err != nil {
		return nil, err
	}
	if winners == nil {
		winners = []*models.Winner{}
	}
	return winners, nil
}

func (s *giveawayService) GetPendingWinners(ctx context.Context) ([]*models.Winner, error) {
	winners, err := s.repo.ListPendingWinners(ctx)
	if err != nil {
		return nil, err
	}
	if winners == nil {
		winners = []*models.Winner{}
	}
	return winners, nil
}

// GetTopWinners возвращает зал славы
func (s *giveawayService) GetTopWinners(ctx context.Context) ([]*models.TopWinner, error) {
	var winners []*models.TopWinner

	if s.cache == nil {
		return s.repo.GetTopWinners(ctx, topLimit)
	}

	err := s.cache.GetOrSet(ctx, "top_winners", &winners, s.topTTL, func() (interface{}, error) {
		return s.repo.GetTopWinners(ctx, topLimit)
	})
	if err != nil {
		return nil, err
	}
	if winners == nil {
		winners = []*models.TopWinner{}
	}
	return winners, nil
}

func (s *giveawayService) invalidate(ctx context.Context, giveawayID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateGiveawayCache(ctx, giveawayID); err != nil {
		logger.Warn().Err(err).Str("giveaway_id", giveawayID).Msg("failed to invalidate giveaway cache")
	}
}
