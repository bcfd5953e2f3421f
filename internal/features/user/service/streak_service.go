package service

import (
	"context"
	"sync"
	"time"

	"merge-verse-backend/internal/common/logger"
	"merge-verse-backend/internal/features/user/repository"
)

const (
	streakCheckInterval = time.Hour
	streakGrace         = 24 * time.Hour
)

// StreakService периодически обнуляет серии пользователей, не открывавших
// бесплатный пак больше суток.
type StreakService struct {
	ctx    context.Context
	cancel context.CancelFunc
	repo   repository.UserRepository
	wg     sync.WaitGroup
}

func NewStreakService(repo repository.UserRepository) *StreakService {
	ctx, cancel := context.WithCancel(context.Background())
	return &StreakService{
		ctx:    ctx,
		cancel: cancel,
		repo:   repo,
	}
}

func (s *StreakService) Start() {
	logger.Info().Msg("starting streak service")
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(streakCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.resetExpired(); err != nil {
					logger.Error().Err(err).Msg("failed to reset expired streaks")
				}
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *StreakService) Stop() {
	logger.Info().Msg("stopping streak service")
	s.cancel()
	s.wg.Wait()
	logger.Info().Msg("streak service stopped")
}

func (s *StreakService) resetExpired() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := s.repo.ResetExpiredStreaks(ctx, time.Now().Add(-streakGrace))
	if err != nil {
		return err
	}

	if count > 0 {
		logger.Info().Int64("count", count).Msg("expired streaks reset")
	}

	return nil
}
