package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	giftmodels "merge-verse-backend/internal/features/gift/models"
	"merge-verse-backend/internal/features/inventory/models"
	"merge-verse-backend/internal/features/inventory/repository"
)

// Queryer покрывает *sql.DB и *sql.Tx, чтобы операции над инвентарем можно
// было выполнять внутри чужих транзакций (крафт, аукционы, розыгрыши).
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.ItemRepository {
	return &postgresRepository{db: db}
}

// GetByID получает стопку по ID
func (r *postgresRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	return GetItem(ctx, r.db, id, false)
}

// ListByUser возвращает инвентарь пользователя
func (r *postgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Item, error) {
	query := `
		SELECT id, user_id, gift_id, level, is_tradeable, quantity, created_at, updated_at
		FROM items
		WHERE user_id = $1
		ORDER BY level DESC, gift_id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		var item models.Item
		err := rows.Scan(&item.ID, &item.UserID, &item.GiftID, &item.Level,
			&item.IsTradeable, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

// FindStack находит стопку по составному ключу
func (r *postgresRepository) FindStack(ctx context.Context, userID int64, giftID string, level giftmodels.Level, tradeable bool) (*models.Item, error) {
	return FindStack(ctx, r.db, userID, giftID, level, tradeable, false)
}

// Upsert добавляет предметы в инвентарь
func (r *postgresRepository) Upsert(ctx context.Context, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error {
	return UpsertItem(ctx, r.db, userID, giftID, level, quantity, tradeable)
}

// Consume списывает предметы из стопки
func (r *postgresRepository) Consume(ctx context.Context, itemID string, quantity int) error {
	return ConsumeItem(ctx, r.db, itemID, quantity)
}

// ListHistory возвращает отметки владения пользователя
func (r *postgresRepository) ListHistory(ctx context.Context, userID int64) ([]*models.HistoryEntry, error) {
	query := `
		SELECT user_id, gift_id, level
		FROM history
		WHERE user_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		if err := rows.Scan(&entry.UserID, &entry.GiftID, &entry.Level); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// ArchiveUser переносит инвентарь пользователя в историю и очищает его
func (r *postgresRepository) ArchiveUser(ctx context.Context, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := archiveItems(ctx, tx, "WHERE user_id = $1", userID); err != nil {
		return err
	}

	return tx.Commit()
}

// ArchiveAll переносит весь инвентарь в историю. Используется при сбросе сезона.
func (r *postgresRepository) ArchiveAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := archiveItems(ctx, tx, ""); err != nil {
		return err
	}

	return tx.Commit()
}

func archiveItems(ctx context.Context, tx *sql.Tx, where string, args ...interface{}) error {
	insert := `
		INSERT INTO history (user_id, gift_id, level)
		SELECT user_id, gift_id, level FROM items ` + where + `
		ON CONFLICT (user_id, gift_id, level) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return fmt.Errorf("failed to archive items: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM items "+where, args...); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}

	return nil
}

// GetItem читает стопку по ID, опционально с блокировкой строки
func GetItem(ctx context.Context, q Queryer, id string, forUpdate bool) (*models.Item, error) {
	query := `
		SELECT id, user_id, gift_id, level, is_tradeable, quantity, created_at, updated_at
		FROM items
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var item models.Item
	err := q.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.UserID, &item.GiftID, &item.Level,
		&item.IsTradeable, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return &item, nil
}

// FindStack читает стопку по составному ключу, опционально с блокировкой
func FindStack(ctx context.Context, q Queryer, userID int64, giftID string, level giftmodels.Level, tradeable, forUpdate bool) (*models.Item, error) {
	query := `
		SELECT id, user_id, gift_id, level, is_tradeable, quantity, created_at, updated_at
		FROM items
		WHERE user_id = $1 AND gift_id = $2 AND level = $3 AND is_tradeable = $4
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var item models.Item
	err := q.QueryRowContext(ctx, query, userID, giftID, level, tradeable).Scan(
		&item.ID, &item.UserID, &item.GiftID, &item.Level,
		&item.IsTradeable, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to find stack: %w", err)
	}

	return &item, nil
}

// UpsertItem добавляет предметы в стопку и ставит отметку владения в истории
func UpsertItem(ctx context.Context, q Queryer, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	query := `
		INSERT INTO items (id, user_id, gift_id, level, is_tradeable, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, gift_id, level, is_tradeable) DO UPDATE SET
			quantity = items.quantity + EXCLUDED.quantity,
			updated_at = NOW()
	`

	_, err := q.ExecContext(ctx, query, uuid.New().String(), userID, giftID, level, tradeable, quantity)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}

	history := `
		INSERT INTO history (user_id, gift_id, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, gift_id, level) DO NOTHING
	`

	if _, err := q.ExecContext(ctx, history, userID, giftID, level); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}

	return nil
}

// ConsumeItem списывает предметы из стопки; пустая стопка удаляется
func ConsumeItem(ctx context.Context, q Queryer, itemID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	result, err := q.ExecContext(ctx,
		"UPDATE items SET quantity = quantity - $2, updated_at = NOW() WHERE id = $1 AND quantity >= $2",
		itemID, quantity)
	if err != nil {
		return fmt.Errorf("failed to consume item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repository.ErrInsufficientQuantity
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM items WHERE id = $1 AND quantity = 0", itemID); err != nil {
		return fmt.Errorf("failed to delete empty stack: %w", err)
	}

	return nil
}

// RecordHistory ставит отметку владения без изменения инвентаря
func RecordHistory(ctx context.Context, q Queryer, userID int64, giftID string, level giftmodels.Level) error {
	query := `
		INSERT INTO history (user_id, gift_id, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, gift_id, level) DO NOTHING
	`

	if _, err := q.ExecContext(ctx, query, userID, giftID, level); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}

	return nil
}
