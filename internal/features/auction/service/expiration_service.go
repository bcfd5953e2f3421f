package service

import (
	"context"
	"sync"
	"time"

	"merge-verse-backend/internal/common/logger"
)

const expirationCheckInterval = time.Minute

// ExpirationService периодически завершает лоты с истекшим сроком
type ExpirationService struct {
	ctx      context.Context
	cancel   context.CancelFunc
	auctions AuctionService
	wg       sync.WaitGroup
}

func NewExpirationService(auctions AuctionService) *ExpirationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ExpirationService{
		ctx:      ctx,
		cancel:   cancel,
		auctions: auctions,
	}
}

func (s *ExpirationService) Start() {
	logger.Info().Msg("starting auction expiration service")
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(expirationCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.finishExpired(); err != nil {
					logger.Error().Err(err).Msg("failed to finish expired auctions")
				}
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *ExpirationService) Stop() {
	logger.Info().Msg("stopping auction expiration service")
	s.cancel()
	s.wg.Wait()
	logger.Info().Msg("auction expiration service stopped")
}

func (s *ExpirationService) finishExpired() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	return s.auctions.FinishExpired(ctx)
}
