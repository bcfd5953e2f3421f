package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/common/cache"
	"merge-verse-backend/internal/common/logger"
	"merge-verse-backend/internal/features/auction/models"
	"merge-verse-backend/internal/features/auction/repository"
	giftservice "merge-verse-backend/internal/features/gift/service"
	"merge-verse-backend/internal/platform/telegram"
)

var (
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrItemNotFound        = errors.New("item not found")
	ErrNotOwner            = errors.New("item does not belong to user")
	ErrNotTradeable        = errors.New("item is not tradeable")
	ErrPriceNotSet         = errors.New("no price for this gift and level")
	ErrAuctionNotActive    = errors.New("auction is not active")
	ErrAuctionExpired      = errors.New("auction has expired")
	ErrSelfBid             = errors.New("seller cannot bid on own auction")
	ErrBidTooLow           = errors.New("bid must exceed the current price")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotSeller           = errors.New("only the seller can finish the auction")
)

const auctionDuration = 7 * 24 * time.Hour

// Наценка к каталожной цене при старте и комиссия площадки
var (
	startMultiplier = decimal.RequireFromString("1.2")
	commissionRate  = decimal.RequireFromString("0.10")
)

// commission округляет вверх до центов
func commission(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(commissionRate).RoundCeil(2)
}

type AuctionService interface {
	Create(ctx context.Context, sellerID int64, itemID string) (*models.Auction, error)
	PlaceBid(ctx context.Context, bidderID int64, auctionID string, amount decimal.Decimal) (*models.Auction, error)
	Finish(ctx context.Context, sellerID int64, auctionID string) (*models.Auction, error)
	FinishExpired(ctx context.Context) error

	GetAuction(ctx context.Context, id string) (*models.Auction, error)
	GetActiveAuctions(ctx context.Context, limit, offset int) ([]*models.Auction, error)
	GetMyAuctions(ctx context.Context, sellerID int64) ([]*models.Auction, error)
	GetBids(ctx context.Context, auctionID string) ([]*models.Bid, error)
}

type auctionService struct {
	repo  repository.AuctionRepository
	gifts giftservice.GiftService
	cache *cache.CacheService
	bot   *telegram.Client
}

func NewAuctionService(
	repo repository.AuctionRepository,
	gifts giftservice.GiftService,
	cache *cache.CacheService,
	bot *telegram.Client,
) AuctionService {
	return &auctionService{
		repo:  repo,
		gifts: gifts,
		cache: cache,
		bot:   bot,
	}
}

// Create выставляет один передаваемый предмет на торги. Стартовая цена
// равна каталожной с наценкой.
func (s *auctionService) Create(ctx context.Context, sellerID int64, itemID string) (*models.Auction, error) {
	var auction *models.Auction

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		item, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return ErrItemNotFound
			}
			return err
		}

		if item.UserID != sellerID {
			return ErrNotOwner
		}
		if !item.IsTradeable {
			return ErrNotTradeable
		}

		gift, err := s.gifts.GetGift(item.GiftID)
		if err != nil {
			return err
		}

		price, err := s.gifts.GetGiftPrice(gift.Rarity, item.Level)
		if err != nil {
			return ErrPriceNotSet
		}

		if err := tx.ConsumeItem(ctx, item.ID, 1); err != nil {
			return err
		}

		start := price.Mul(startMultiplier)
		auction = &models.Auction{
			ID:           uuid.NewString(),
			SellerID:     sellerID,
			GiftID:       item.GiftID,
			Level:        item.Level,
			StartPrice:   start,
			CurrentPrice: start,
			Status:       models.StatusActive,
			EndsAt:       time.Now().Add(auctionDuration),
		}

		return tx.InsertAuction(ctx, auction)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, auction.ID)

	logger.Info().
		Str("auction_id", auction.ID).
		Int64("seller_id", sellerID).
		Str("start_price", auction.StartPrice.String()).
		Msg("auction created")

	return auction, nil
}

// PlaceBid ведет торговый протокол: перечитывает лот под блокировкой,
// списывает ставку с комиссией и возвращает деньги прежнему лидеру.
// Лидер повышает свою ставку доплатой разницы.
func (s *auctionService) PlaceBid(ctx context.Context, bidderID int64, auctionID string, amount decimal.Decimal) (*models.Auction, error) {
	var auction *models.Auction
	var outbid *models.Bid

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			if errors.Is(err, repository.ErrAuctionNotFound) {
				return ErrAuctionNotFound
			}
			return err
		}

		if a.Status != models.StatusActive {
			return ErrAuctionNotActive
		}
		if time.Now().After(a.EndsAt) {
			return ErrAuctionExpired
		}
		if a.SellerID == bidderID {
			return ErrSelfBid
		}

		top, err := tx.GetHighestBid(ctx, auctionID)
		if err != nil && !errors.Is(err, repository.ErrBidNotFound) {
			return err
		}

		// Перебить чужую ставку можно только строго большей суммой,
		// но первая ставка принимается и ровно по стартовой цене
		if top != nil {
			if amount.LessThanOrEqual(top.Amount) {
				return ErrBidTooLow
			}
		} else if amount.LessThan(a.StartPrice) {
			return ErrBidTooLow
		}

		// Списываем полную ставку либо доплату, если участник уже лидирует
		base := amount
		if top != nil && top.BidderID == bidderID {
			base = amount.Sub(top.Amount)
		}

		charge := base.Add(commission(base))
		if err := tx.DebitBalance(ctx, bidderID, charge); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientBalance
			}
			return err
		}

		if top != nil && top.BidderID != bidderID {
			refund := top.Amount.Add(commission(top.Amount))
			if err := tx.CreditBalance(ctx, top.BidderID, refund); err != nil {
				return err
			}
			outbid = top
		}

		if err := tx.UpsertBid(ctx, auctionID, bidderID, amount); err != nil {
			return err
		}

		if err := tx.UpdateAuction(ctx, auctionID, amount, models.StatusActive, nil); err != nil {
			return err
		}

		a.CurrentPrice = amount
		auction = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, auctionID)
	s.notifyOutbid(ctx, auction, outbid)

	logger.Info().
		Str("auction_id", auctionID).
		Int64("bidder_id", bidderID).
		Str("amount", amount.String()).
		Msg("bid placed")

	return auction, nil
}

// Finish досрочно завершает лот по требованию продавца
func (s *auctionService) Finish(ctx context.Context, sellerID int64, auctionID string) (*models.Auction, error) {
	return s.settle(ctx, auctionID, &sellerID)
}

// FinishExpired завершает все лоты с истекшим сроком
func (s *auctionService) FinishExpired(ctx context.Context) error {
	expired, err := s.repo.ListExpired(ctx, time.Now())
	if err != nil {
		return err
	}

	for _, auction := range expired {
		if _, err := s.settle(ctx, auction.ID, nil); err != nil {
			logger.Error().Err(err).
				Str("auction_id", auction.ID).
				Msg("failed to settle expired auction")
		}
	}

	return nil
}

// settle разыгрывает лот: победитель получает непередаваемый предмет,
// продавец выручку за вычетом комиссии. Без ставок предмет возвращается.
func (s *auctionService) settle(ctx context.Context, auctionID string, sellerID *int64) (*models.Auction, error) {
	var auction *models.Auction
	var winner *models.Bid

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			if errors.Is(err, repository.ErrAuctionNotFound) {
				return ErrAuctionNotFound
			}
			return err
		}

		if a.Status != models.StatusActive {
			return ErrAuctionNotActive
		}
		if sellerID != nil && a.SellerID != *sellerID {
			return ErrNotSeller
		}

		top, err := tx.GetHighestBid(ctx, auctionID)
		if err != nil && !errors.Is(err, repository.ErrBidNotFound) {
			return err
		}

		if top == nil {
			if err := tx.UpsertItem(ctx, a.SellerID, a.GiftID, a.Level, 1, true); err != nil {
				return err
			}
			if err := tx.UpdateAuction(ctx, auctionID, a.CurrentPrice, models.StatusCancelled, nil); err != nil {
				return err
			}
			a.Status = models.StatusCancelled
			auction = a
			return nil
		}

		if err := tx.UpsertItem(ctx, top.BidderID, a.GiftID, a.Level, 1, false); err != nil {
			return err
		}

		proceeds := top.Amount.Sub(commission(top.Amount))
		if err := tx.CreditBalance(ctx, a.SellerID, proceeds); err != nil {
			return err
		}

		if err := tx.UpdateAuction(ctx, auctionID, top.Amount, models.StatusFinished, &top.BidderID); err != nil {
			return err
		}

		a.Status = models.StatusFinished
		a.CurrentPrice = top.Amount
		a.WinnerID = &top.BidderID
		auction = a
		winner = top
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, auctionID)
	s.notifySettled(ctx, auction, winner)

	logger.Info().
		Str("auction_id", auctionID).
		Str("status", string(auction.Status)).
		Msg("auction settled")

	return auction, nil
}

func (s *auctionService) giftName(giftID string) string {
	gift, err := s.gifts.GetGift(giftID)
	if err != nil {
		return giftID
	}
	return gift.Name
}

func (s *auctionService) notifyOutbid(ctx context.Context, auction *models.Auction, outbid *models.Bid) {
	if s.bot == nil || outbid == nil {
		return
	}

	if err := s.bot.NotifyOutbid(ctx, outbid.BidderID, s.giftName(auction.GiftID)); err != nil {
		logger.Warn().Err(err).
			Int64("user_id", outbid.BidderID).
			Msg("failed to notify outbid user")
	}
}

func (s *auctionService) notifySettled(ctx context.Context, auction *models.Auction, winner *models.Bid) {
	if s.bot == nil || winner == nil {
		return
	}

	name := s.giftName(auction.GiftID)

	if err := s.bot.NotifyAuctionWin(ctx, winner.BidderID, name); err != nil {
		logger.Warn().Err(err).
			Int64("user_id", winner.BidderID).
			Msg("failed to notify auction winner")
	}

	if err := s.bot.NotifyAuctionSold(ctx, auction.SellerID, name, winner.Amount.String()); err != nil {
		logger.Warn().Err(err).
			Int64("user_id", auction.SellerID).
			Msg("failed to notify auction seller")
	}
}

func (s *auctionService) invalidate(ctx context.Context, auctionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAuctionCache(ctx, auctionID); err != nil {
		logger.Warn().Err(err).Str("auction_id", auctionID).Msg("failed to invalidate auction cache")
	}
}

func (s *auctionService) GetAuction(ctx context.Context, id string) (*models.Auction, error) {
	auction, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, err
	}
	return auction, nil
}

func (s *auctionService) GetActiveAuctions(ctx context.Context, limit, offset int) ([]*models.Auction, error) {
	auctions, err := s.repo.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if auctions == nil {
		auctions = []*models.Auction{}
	}
	return auctions, nil
}

func (s *auctionService) GetMyAuctions(ctx context.Context, sellerID int64) ([]*models.Auction, error) {
	auctions, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if auctions == nil {
		auctions = []*models.Auction{}
	}
	return auctions, nil
}

func (s *auctionService) GetBids(ctx context.Context, auctionID string) ([]*models.Bid, error) {
	bids, err := s.repo.ListBids(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if bids == nil {
		bids = []*models.Bid{}
	}
	return bids, nil
}
