package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/common/cache"
	"merge-verse-backend/internal/common/logger"
	giftservice "merge-verse-backend/internal/features/gift/service"
	inventoryrepo "merge-verse-backend/internal/features/inventory/repository"
	"merge-verse-backend/internal/features/user/models"
	"merge-verse-backend/internal/features/user/repository"
	"merge-verse-backend/internal/platform/mailer"
	"merge-verse-backend/internal/platform/tonapi"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidAddress  = errors.New("invalid TON address")
	ErrInvalidCode     = errors.New("invalid or expired verification code")
	ErrEmailNotSet     = errors.New("email is not set")
	ErrAlreadyVerified = errors.New("email is already verified")
	ErrMailerDisabled  = errors.New("email delivery is not configured")
	ErrSelfReferral    = errors.New("cannot refer yourself")
)

const emailCodeTTL = 10 * time.Minute

type UserService interface {
	GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName, startParam string) (*models.UserResponse, error)
	GetUser(ctx context.Context, id int64) (*models.UserResponse, error)
	IsBanned(ctx context.Context, userID int64) (bool, error)
	SetWallet(ctx context.Context, userID int64, address string) error
	CreateEmail(ctx context.Context, userID int64, email string) error
	ResendEmailCode(ctx context.Context, userID int64) error
	VerifyEmail(ctx context.Context, userID int64, code string) error
	GetCollectionGrid(ctx context.Context, userID int64) ([]*models.CollectionCell, error)

	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	SetBanned(ctx context.Context, userID int64, banned bool) error
	AdjustBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
}

type emailCode struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type userService struct {
	repo   repository.UserRepository
	items  inventoryrepo.ItemRepository
	gifts  giftservice.GiftService
	cache  *cache.CacheService
	mailer *mailer.Service
	rnd    *rand.Rand
}

func NewUserService(
	repo repository.UserRepository,
	items inventoryrepo.ItemRepository,
	gifts giftservice.GiftService,
	cacheService *cache.CacheService,
	mailerService *mailer.Service,
	rnd *rand.Rand,
) UserService {
	return &userService{
		repo:   repo,
		items:  items,
		gifts:  gifts,
		cache:  cacheService,
		mailer: mailerService,
		rnd:    rnd,
	}
}

// GetOrCreateUser создает пользователя при первом входе. Параметр start из
// реферальной ссылки содержит telegram ID пригласившего и привязывается
// только один раз.
func (s *userService) GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName, startParam string) (*models.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, telegramID)
	if err == nil {
		if user.Username != username || user.FirstName != firstName {
			user.Username = username
			user.FirstName = firstName
			if err := s.repo.Update(ctx, user); err != nil {
				return nil, err
			}
		}
		return toUserResponse(user), nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	newUser := &models.User{
		ID:        telegramID,
		Username:  username,
		FirstName: firstName,
		Balance:   decimal.Zero,
	}

	if err := s.repo.Create(ctx, newUser); err != nil {
		return nil, err
	}

	if startParam != "" {
		if err := s.bindReferrer(ctx, telegramID, startParam); err != nil {
			logger.Warn().Err(err).
				Int64("user_id", telegramID).
				Str("start_param", startParam).
				Msg("failed to bind referrer")
		}
	}

	created, err := s.repo.GetByID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	return toUserResponse(created), nil
}

func (s *userService) bindReferrer(ctx context.Context, userID int64, startParam string) error {
	referrerID, err := strconv.ParseInt(startParam, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid referral param: %w", err)
	}

	if referrerID == userID {
		return ErrSelfReferral
	}

	if _, err := s.repo.GetByID(ctx, referrerID); err != nil {
		return fmt.Errorf("referrer lookup: %w", err)
	}

	return s.repo.SetReferrer(ctx, userID, referrerID)
}

func (s *userService) GetUser(ctx context.Context, id int64) (*models.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toUserResponse(user), nil
}

func (s *userService) IsBanned(ctx context.Context, userID int64) (bool, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}

	return user.IsBanned, nil
}

func (s *userService) SetWallet(ctx context.Context, userID int64, address string) error {
	if err := tonapi.ValidateAddress(address); err != nil {
		return ErrInvalidAddress
	}

	return s.repo.SetWallet(ctx, userID, address)
}

// CreateEmail сохраняет почту без подтверждения и отправляет код
func (s *userService) CreateEmail(ctx context.Context, userID int64, email string) error {
	if !s.mailer.IsEnabled() {
		return ErrMailerDisabled
	}

	if err := s.repo.SetEmail(ctx, userID, email, false); err != nil {
		return err
	}

	return s.sendCode(ctx, userID, email)
}

func (s *userService) ResendEmailCode(ctx context.Context, userID int64) error {
	if !s.mailer.IsEnabled() {
		return ErrMailerDisabled
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Email == nil {
		return ErrEmailNotSet
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	return s.sendCode(ctx, userID, *user.Email)
}

func (s *userService) sendCode(ctx context.Context, userID int64, email string) error {
	code := fmt.Sprintf("%06d", s.rnd.Intn(1000000))

	key := fmt.Sprintf("email_code:%d", userID)
	if err := s.cache.Set(ctx, key, emailCode{Email: email, Code: code}, emailCodeTTL); err != nil {
		return err
	}

	return s.mailer.SendVerificationCode(email, code)
}

func (s *userService) VerifyEmail(ctx context.Context, userID int64, code string) error {
	key := fmt.Sprintf("email_code:%d", userID)

	var stored emailCode
	if err := s.cache.Get(ctx, key, &stored); err != nil {
		return ErrInvalidCode
	}

	if stored.Code != code {
		return ErrInvalidCode
	}

	if err := s.repo.SetEmail(ctx, userID, stored.Email, true); err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("failed to drop email code")
	}

	return nil
}

// GetCollectionGrid строит сетку каталог × уровни 1..10 с отметками владения
func (s *userService) GetCollectionGrid(ctx context.Context, userID int64) ([]*models.CollectionCell, error) {
	items, err := s.items.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.items.ListHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	type cellKey struct {
		giftID string
		level  int
	}

	owned := make(map[cellKey]bool)
	for _, item := range items {
		owned[cellKey{item.GiftID, int(item.Level)}] = true
	}

	everOwned := make(map[cellKey]bool)
	for _, entry := range history {
		everOwned[cellKey{entry.GiftID, int(entry.Level)}] = true
	}

	var cells []*models.CollectionCell
	for _, gift := range s.gifts.GetAllGifts() {
		for level := 1; level <= 10; level++ {
			key := cellKey{gift.ID, level}
			cells = append(cells, &models.CollectionCell{
				GiftID:    gift.ID,
				GiftName:  gift.Name,
				Rarity:    string(gift.Rarity),
				Level:     level,
				Owned:     owned[key],
				EverOwned: everOwned[key],
			})
		}
	}

	return cells, nil
}

func (s *userService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(ctx, limit, offset)
}

func (s *userService) SetBanned(ctx context.Context, userID int64, banned bool) error {
	err := s.repo.SetBanned(ctx, userID, banned)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *userService) AdjustBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if amount.IsNegative() {
		err := s.repo.DebitBalance(ctx, userID, amount.Neg())
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return repository.ErrInsufficientBalance
		}
		return err
	}

	return s.repo.CreditBalance(ctx, userID, amount)
}

func toUserResponse(user *models.User) *models.UserResponse {
	return &models.UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		FirstName:     user.FirstName,
		Balance:       user.Balance,
		Streak:        user.Streak,
		IsBanned:      user.IsBanned,
		CryptoWallet:  user.CryptoWallet,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}
