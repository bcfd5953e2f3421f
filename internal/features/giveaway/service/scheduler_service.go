package service

import (
	"context"
	"sync"
	"time"

	"merge-verse-backend/internal/common/logger"
)

const scheduleCheckInterval = time.Hour

// SchedulerService ведет месячный цикл розыгрышей: первого числа подводит
// итоги, второго создает новые по каталогу. Проверка идемпотентна, поэтому
// повторные тики в тот же день ничего не меняют.
type SchedulerService struct {
	ctx       context.Context
	cancel    context.CancelFunc
	giveaways GiveawayService
	wg        sync.WaitGroup
}

func NewSchedulerService(giveaways GiveawayService) *SchedulerService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SchedulerService{
		ctx:       ctx,
		cancel:    cancel,
		giveaways: giveaways,
	}
}

func (s *SchedulerService) Start() {
	logger.Info().Msg("starting giveaway scheduler service")
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(scheduleCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.tick(); err != nil {
					logger.Error().Err(err).Msg("giveaway schedule tick failed")
				}
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *SchedulerService) Stop() {
	logger.Info().Msg("stopping giveaway scheduler service")
	s.cancel()
	s.wg.Wait()
	logger.Info().Msg("giveaway scheduler service stopped")
}

func (s *SchedulerService) tick() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch time.Now().UTC().Day() {
	case 1:
		return s.giveaways.FinishAllActive(ctx)
	case 2:
		_, err := s.giveaways.CreateMonthlyGiveaways(ctx)
		return err
	}

	return nil
}
