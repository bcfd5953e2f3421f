package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/referral/models"
	"merge-verse-backend/internal/features/referral/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.ReferralRepository {
	return &postgresRepository{db: db}
}

// GetSettings возвращает настройки реферальной программы
func (r *postgresRepository) GetSettings(ctx context.Context) ([]*models.Setting, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, type, value FROM referral_settings")
	if err != nil {
		return nil, fmt.Errorf("failed to get referral settings: %w", err)
	}
	defer rows.Close()

	var settings []*models.Setting
	for rows.Next() {
		var setting models.Setting
		if err := rows.Scan(&setting.Name, &setting.Type, &setting.Value); err != nil {
			return nil, fmt.Errorf("failed to scan referral setting: %w", err)
		}
		settings = append(settings, &setting)
	}

	return settings, rows.Err()
}

// UpdateSetting обновляет настройку
func (r *postgresRepository) UpdateSetting(ctx context.Context, setting *models.Setting) error {
	query := `
		INSERT INTO referral_settings (name, type, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET type = EXCLUDED.type, value = EXCLUDED.value
	`

	_, err := r.db.ExecContext(ctx, query, setting.Name, setting.Type, setting.Value)
	if err != nil {
		return fmt.Errorf("failed to update referral setting: %w", err)
	}

	return nil
}

// GetReferrerChain возвращает цепочку пригласивших: первый и второй уровень
func (r *postgresRepository) GetReferrerChain(ctx context.Context, userID int64) (*int64, *int64, error) {
	query := `
		SELECT u.referred_by, ref.referred_by
		FROM users u
		LEFT JOIN users ref ON ref.id = u.referred_by
		WHERE u.id = $1
	`

	var first, second sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&first, &second)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get referrer chain: %w", err)
	}

	var firstID, secondID *int64
	if first.Valid {
		firstID = &first.Int64
	}
	if second.Valid {
		secondID = &second.Int64
	}

	return firstID, secondID, nil
}

// CreditEarning зачисляет вознаграждение и фиксирует начисление атомарно
func (r *postgresRepository) CreditEarning(ctx context.Context, receiverID, fromUserID int64, amount decimal.Decimal, reason models.EarningReason) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1",
		receiverID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit referrer: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO referral_earnings (id, user_id, from_user_id, amount, reason) VALUES ($1, $2, $3, $4, $5)",
		uuid.New().String(), receiverID, fromUserID, amount, reason)
	if err != nil {
		return fmt.Errorf("failed to record earning: %w", err)
	}

	return tx.Commit()
}

// CountReferrals считает приглашенных пользователей
func (r *postgresRepository) CountReferrals(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE referred_by = $1", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}

	return count, nil
}

// ListEarnings возвращает начисления пользователя
func (r *postgresRepository) ListEarnings(ctx context.Context, userID int64) ([]*models.Earning, error) {
	query := `
		SELECT id, user_id, from_user_id, amount, reason, created_at
		FROM referral_earnings
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	defer rows.Close()

	var earnings []*models.Earning
	for rows.Next() {
		var earning models.Earning
		err := rows.Scan(&earning.ID, &earning.UserID, &earning.FromUserID,
			&earning.Amount, &earning.Reason, &earning.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earning: %w", err)
		}
		earnings = append(earnings, &earning)
	}

	return earnings, rows.Err()
}
