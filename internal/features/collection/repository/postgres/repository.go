package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/collection/models"
	"merge-verse-backend/internal/features/collection/repository"
	giftmodels "merge-verse-backend/internal/features/gift/models"
	inventorymodels "merge-verse-backend/internal/features/inventory/models"
	inventoryrepo "merge-verse-backend/internal/features/inventory/repository"
	inventorypg "merge-verse-backend/internal/features/inventory/repository/postgres"
)

const visibilityKey = "collection_visible"

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.CollectionRepository {
	return &postgresRepository{db: db}
}

type collectionTx struct {
	tx *sql.Tx
}

// WithTx выполняет fn внутри одной транзакции
func (r *postgresRepository) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&collectionTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func (t *collectionTx) GetItemForUpdate(ctx context.Context, id string) (*inventorymodels.Item, error) {
	item, err := inventorypg.GetItem(ctx, t.tx, id, true)
	if err != nil {
		if errors.Is(err, inventoryrepo.ErrItemNotFound) {
			return nil, repository.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (t *collectionTx) FindStackForUpdate(ctx context.Context, userID int64, giftID string, level giftmodels.Level, tradeable bool) (*inventorymodels.Item, error) {
	item, err := inventorypg.FindStack(ctx, t.tx, userID, giftID, level, tradeable, true)
	if err != nil {
		if errors.Is(err, inventoryrepo.ErrItemNotFound) {
			return nil, repository.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (t *collectionTx) UpsertItem(ctx context.Context, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error {
	return inventorypg.UpsertItem(ctx, t.tx, userID, giftID, level, quantity, tradeable)
}

func (t *collectionTx) ConsumeItem(ctx context.Context, itemID string, quantity int) error {
	err := inventorypg.ConsumeItem(ctx, t.tx, itemID, quantity)
	if errors.Is(err, inventoryrepo.ErrInsufficientQuantity) {
		return repository.ErrInsufficientQuantity
	}
	return err
}

func (t *collectionTx) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1",
		userID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func (t *collectionTx) InsertCraftItem(ctx context.Context, item *models.CraftItem) error {
	query := `
		INSERT INTO craft_items (user_id, gift_id, level, is_tradeable, position_x, position_y)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := t.tx.ExecContext(ctx, query, item.UserID, item.GiftID, item.Level,
		item.IsTradeable, item.PositionX, item.PositionY)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return repository.ErrCellOccupied
		}
		return fmt.Errorf("failed to insert craft item: %w", err)
	}

	return nil
}

func (t *collectionTx) DeleteCraftItem(ctx context.Context, userID int64, x, y int) (*models.CraftItem, error) {
	query := `
		DELETE FROM craft_items
		WHERE user_id = $1 AND position_x = $2 AND position_y = $3
		RETURNING user_id, gift_id, level, is_tradeable, position_x, position_y
	`

	var item models.CraftItem
	err := t.tx.QueryRowContext(ctx, query, userID, x, y).Scan(
		&item.UserID, &item.GiftID, &item.Level, &item.IsTradeable,
		&item.PositionX, &item.PositionY)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrCraftItemNotFound
		}
		return nil, fmt.Errorf("failed to delete craft item: %w", err)
	}

	return &item, nil
}

// ListCraftItems возвращает стол крафта пользователя
func (r *postgresRepository) ListCraftItems(ctx context.Context, userID int64) ([]*models.CraftItem, error) {
	query := `
		SELECT user_id, gift_id, level, is_tradeable, position_x, position_y
		FROM craft_items
		WHERE user_id = $1
		ORDER BY position_y, position_x
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list craft items: %w", err)
	}
	defer rows.Close()

	var items []*models.CraftItem
	for rows.Next() {
		var item models.CraftItem
		err := rows.Scan(&item.UserID, &item.GiftID, &item.Level, &item.IsTradeable,
			&item.PositionX, &item.PositionY)
		if err != nil {
			return nil, fmt.Errorf("failed to scan craft item: %w", err)
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

// GetVisibility читает флаг видимости коллекции; по умолчанию включено
func (r *postgresRepository) GetVisibility(ctx context.Context) (bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = $1", visibilityKey).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return true, nil
		}
		return false, fmt.Errorf("failed to get visibility: %w", err)
	}

	return value == "true", nil
}

// SetVisibility сохраняет флаг видимости коллекции
func (r *postgresRepository) SetVisibility(ctx context.Context, visible bool) error {
	value := "false"
	if visible {
		value = "true"
	}

	query := `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := r.db.ExecContext(ctx, query, visibilityKey, value); err != nil {
		return fmt.Errorf("failed to set visibility: %w", err)
	}

	return nil
}
