package service

import (
	"context"
	"sync"
	"time"

	"merge-verse-backend/internal/common/logger"
)

const (
	priceRefreshInterval = 5 * time.Minute
	depositCheckInterval = time.Minute
)

// TonService обновляет курс TON и сверяет ожидающие депозиты со входящими
// переводами на кошелек проекта
type TonService struct {
	ctx      context.Context
	cancel   context.CancelFunc
	payments PaymentService
	wg       sync.WaitGroup
}

func NewTonService(payments PaymentService) *TonService {
	ctx, cancel := context.WithCancel(context.Background())
	return &TonService{
		ctx:      ctx,
		cancel:   cancel,
		payments: payments,
	}
}

func (s *TonService) Start() {
	logger.Info().Msg("starting TON service")
	s.wg.Add(2)

	if err := s.refreshPrice(); err != nil {
		logger.Warn().Err(err).Msg("initial TON price fetch failed")
	}

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(priceRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.refreshPrice(); err != nil {
					logger.Error().Err(err).Msg("failed to refresh TON price")
				}
			case <-s.ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(depositCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.confirmDeposits(); err != nil {
					logger.Error().Err(err).Msg("failed to confirm TON deposits")
				}
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *TonService) Stop() {
	logger.Info().Msg("stopping TON service")
	s.cancel()
	s.wg.Wait()
	logger.Info().Msg("TON service stopped")
}

func (s *TonService) refreshPrice() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.payments.RefreshTonPrice(ctx)
}

func (s *TonService) confirmDeposits() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	return s.payments.ConfirmTonDeposits(ctx)
}
