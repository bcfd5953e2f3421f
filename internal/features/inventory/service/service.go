package service

import (
	"context"
	"errors"

	"merge-verse-backend/internal/features/inventory/models"
	"merge-verse-backend/internal/features/inventory/repository"
)

var ErrItemNotFound = errors.New("item not found")

type ItemService interface {
	GetUserItems(ctx context.Context, userID int64) ([]*models.Item, error)
	GetUserHistory(ctx context.Context, userID int64) ([]*models.HistoryEntry, error)
	ArchiveUser(ctx context.Context, userID int64) error
	ArchiveAll(ctx context.Context) error
}

type itemService struct {
	repo repository.ItemRepository
}

func NewItemService(repo repository.ItemRepository) ItemService {
	return &itemService{
		repo: repo,
	}
}

func (s *itemService) GetUserItems(ctx context.Context, userID int64) ([]*models.Item, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Item{}
	}
	return items, nil
}

func (s *itemService) GetUserHistory(ctx context.Context, userID int64) ([]*models.HistoryEntry, error) {
	entries, err := s.repo.ListHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}
	return entries, nil
}

func (s *itemService) ArchiveUser(ctx context.Context, userID int64) error {
	return s.repo.ArchiveUser(ctx, userID)
}

func (s *itemService) ArchiveAll(ctx context.Context) error {
	return s.repo.ArchiveAll(ctx)
}
