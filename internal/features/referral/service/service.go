package service

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/common/logger"
	"merge-verse-backend/internal/features/referral/models"
	"merge-verse-backend/internal/features/referral/repository"
)

var ErrUnknownSetting = errors.New("unknown referral setting")

// Значения по умолчанию, применяются пока настройка не задана в базе
var defaultSettings = map[string]models.Setting{
	models.SettingFirstLevel: {
		Name:  models.SettingFirstLevel,
		Type:  models.SettingTypePercentage,
		Value: decimal.RequireFromString("4"),
	},
	models.SettingSecondLevel: {
		Name:  models.SettingSecondLevel,
		Type:  models.SettingTypePercentage,
		Value: decimal.RequireFromString("2"),
	},
	models.SettingFullCollection: {
		Name:  models.SettingFullCollection,
		Type:  models.SettingTypeFixed,
		Value: decimal.RequireFromString("22.50"),
	},
}

type ReferralService interface {
	Reload(ctx context.Context) error
	GetSettings() []*models.Setting
	UpdateSetting(ctx context.Context, input *models.UpdateSettingInput) error

	// ProcessDeposit начисляет вознаграждения цепочке пригласивших
	ProcessDeposit(ctx context.Context, userID int64, amount decimal.Decimal)
	// ProcessFullCollection начисляет бонус пригласившему за полную коллекцию
	ProcessFullCollection(ctx context.Context, userID int64)

	GetStats(ctx context.Context, userID int64) (*models.ReferralStats, error)
}

type referralService struct {
	repo repository.ReferralRepository

	mu       sync.RWMutex
	settings map[string]models.Setting
}

func NewReferralService(repo repository.ReferralRepository) (ReferralService, error) {
	s := &referralService{
		repo: repo,
	}

	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Reload перечитывает настройки из базы поверх значений по умолчанию
func (s *referralService) Reload(ctx context.Context) error {
	stored, err := s.repo.GetSettings(ctx)
	if err != nil {
		return err
	}

	settings := make(map[string]models.Setting, len(defaultSettings))
	for name, setting := range defaultSettings {
		settings[name] = setting
	}
	for _, setting := range stored {
		settings[setting.Name] = *setting
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	return nil
}

func (s *referralService) GetSettings() []*models.Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := make([]*models.Setting, 0, len(s.settings))
	for _, setting := range s.settings {
		copied := setting
		settings = append(settings, &copied)
	}
	return settings
}

func (s *referralService) UpdateSetting(ctx context.Context, input *models.UpdateSettingInput) error {
	if _, ok := defaultSettings[input.Name]; !ok {
		return ErrUnknownSetting
	}

	setting := &models.Setting{
		Name:  input.Name,
		Type:  input.Type,
		Value: input.Value,
	}

	if err := s.repo.UpdateSetting(ctx, setting); err != nil {
		return err
	}

	return s.Reload(ctx)
}

func (s *referralService) setting(name string) models.Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[name]
}

// commission считает вознаграждение от суммы депозита по настройке
func commission(setting models.Setting, amount decimal.Decimal) decimal.Decimal {
	if setting.Type == models.SettingTypeFixed {
		return setting.Value
	}
	return amount.Mul(setting.Value).Div(decimal.NewFromInt(100))
}

// ProcessDeposit начисляет вознаграждения за подтвержденный депозит.
// Ошибки логируются и не прерывают обработку платежа.
func (s *referralService) ProcessDeposit(ctx context.Context, userID int64, amount decimal.Decimal) {
	first, second, err := s.repo.GetReferrerChain(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to resolve referrer chain")
		return
	}

	if first != nil {
		reward := commission(s.setting(models.SettingFirstLevel), amount)
		if reward.IsPositive() {
			if err := s.repo.CreditEarning(ctx, *first, userID, reward, models.EarningReasonDeposit); err != nil {
				logger.Error().Err(err).Int64("referrer_id", *first).Msg("failed to credit first-level earning")
			}
		}
	}

	if second != nil {
		reward := commission(s.setting(models.SettingSecondLevel), amount)
		if reward.IsPositive() {
			if err := s.repo.CreditEarning(ctx, *second, userID, reward, models.EarningReasonDeposit); err != nil {
				logger.Error().Err(err).Int64("referrer_id", *second).Msg("failed to credit second-level earning")
			}
		}
	}
}

// ProcessFullCollection начисляет фиксированный бонус пригласившему
func (s *referralService) ProcessFullCollection(ctx context.Context, userID int64) {
	first, _, err := s.repo.GetReferrerChain(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to resolve referrer chain")
		return
	}
	if first == nil {
		return
	}

	bonus := s.setting(models.SettingFullCollection).Value
	if !bonus.IsPositive() {
		return
	}

	if err := s.repo.CreditEarning(ctx, *first, userID, bonus, models.EarningReasonFullCollection); err != nil {
		logger.Error().Err(err).Int64("referrer_id", *first).Msg("failed to credit full-collection bonus")
	}
}

func (s *referralService) GetStats(ctx context.Context, userID int64) (*models.ReferralStats, error) {
	count, err := s.repo.CountReferrals(ctx, userID)
	if err != nil {
		return nil, err
	}

	earnings, err := s.repo.ListEarnings(ctx, userID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, earning := range earnings {
		total = total.Add(earning.Amount)
	}

	if earnings == nil {
		earnings = []*models.Earning{}
	}

	return &models.ReferralStats{
		ReferralsCount: count,
		TotalEarned:    total,
		Earnings:       earnings,
	}, nil
}
