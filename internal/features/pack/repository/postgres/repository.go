package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	inventorypg "merge-verse-backend/internal/features/inventory/repository/postgres"
	"merge-verse-backend/internal/features/pack/models"
	"merge-verse-backend/internal/features/pack/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.PackRepository {
	return &postgresRepository{db: db}
}

// ApplyPaidOpen атомарно списывает цену пака и зачисляет выпавшие предметы
func (r *postgresRepository) ApplyPaidOpen(ctx context.Context, userID int64, price decimal.Decimal, items []models.DrawnItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"UPDATE users SET balance = balance - $2, updated_at = NOW() WHERE id = $1 AND balance >= $2",
		userID, price)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrInsufficientBalance
	}

	if err := grantItems(ctx, tx, userID, items); err != nil {
		return err
	}

	return tx.Commit()
}

// ApplyFreeOpen атомарно обновляет серию и зачисляет выпавшие предметы.
// Условие по active_at закрывает гонку двух одновременных открытий.
func (r *postgresRepository) ApplyFreeOpen(ctx context.Context, userID int64, streak int, activeAt time.Time, items []models.DrawnItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET streak = $2, active_at = $3, updated_at = NOW()
		 WHERE id = $1 AND (active_at IS NULL OR active_at < date_trunc('day', $3::timestamptz))`,
		userID, streak, activeAt)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrAlreadyOpened
	}

	if err := grantItems(ctx, tx, userID, items); err != nil {
		return err
	}

	return tx.Commit()
}

// ApplyCompensationOpen атомарно списывает кредит и зачисляет предметы
func (r *postgresRepository) ApplyCompensationOpen(ctx context.Context, userID int64, packType models.PackType, items []models.DrawnItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"UPDATE compensations SET amount = amount - 1 WHERE user_id = $1 AND pack_type = $2 AND amount >= 1",
		userID, packType)
	if err != nil {
		return fmt.Errorf("failed to consume compensation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNoCompensation
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM compensations WHERE user_id = $1 AND pack_type = $2 AND amount = 0",
		userID, packType)
	if err != nil {
		return fmt.Errorf("failed to delete empty compensation: %w", err)
	}

	if err := grantItems(ctx, tx, userID, items); err != nil {
		return err
	}

	return tx.Commit()
}

// GrantCompensation добавляет кредиты компенсации
func (r *postgresRepository) GrantCompensation(ctx context.Context, userID int64, packType models.PackType, amount int) error {
	query := `
		INSERT INTO compensations (user_id, pack_type, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, pack_type) DO UPDATE SET
			amount = compensations.amount + EXCLUDED.amount
	`

	_, err := r.db.ExecContext(ctx, query, userID, packType, amount)
	if err != nil {
		return fmt.Errorf("failed to grant compensation: %w", err)
	}

	return nil
}

// ListCompensations возвращает кредиты компенсации пользователя
func (r *postgresRepository) ListCompensations(ctx context.Context, userID int64) ([]*models.Compensation, error) {
	query := `
		SELECT user_id, pack_type, amount
		FROM compensations
		WHERE user_id = $1
		ORDER BY pack_type
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list compensations: %w", err)
	}
	defer rows.Close()

	var compensations []*models.Compensation
	for rows.Next() {
		var compensation models.Compensation
		if err := rows.Scan(&compensation.UserID, &compensation.PackType, &compensation.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan compensation: %w", err)
		}
		compensations = append(compensations, &compensation)
	}

	return compensations, rows.Err()
}

func grantItems(ctx context.Context, tx *sql.Tx, userID int64, items []models.DrawnItem) error {
	for _, item := range items {
		if err := inventorypg.UpsertItem(ctx, tx, userID, item.GiftID, item.Level, item.Quantity, item.IsTradeable); err != nil {
			return err
		}
	}
	return nil
}
