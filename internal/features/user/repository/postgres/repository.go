package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/user/models"
	"merge-verse-backend/internal/features/user/repository"
)

const userColumns = `id, username, first_name, balance, streak, active_at, is_banned,
	referred_by, crypto_wallet, email, email_verified, created_at, updated_at`

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.UserRepository {
	return &postgresRepository{db: db}
}

func scanUser(row interface {
	Scan(dest ...interface{}) error
}) (*models.User, error) {
	var user models.User
	var activeAt sql.NullTime
	var referredBy sql.NullInt64
	var wallet, email sql.NullString

	err := row.Scan(&user.ID, &user.Username, &user.FirstName, &user.Balance,
		&user.Streak, &activeAt, &user.IsBanned, &referredBy, &wallet, &email,
		&user.EmailVerified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if activeAt.Valid {
		user.ActiveAt = &activeAt.Time
	}
	if referredBy.Valid {
		user.ReferredBy = &referredBy.Int64
	}
	if wallet.Valid {
		user.CryptoWallet = &wallet.String
	}
	if email.Valid {
		user.Email = &email.String
	}

	return &user, nil
}

// Create создает пользователя, обновляя имя при повторном входе
func (r *postgresRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, first_name, balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.FirstName, user.Balance)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID получает пользователя по ID
func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Update обновляет профиль пользователя
func (r *postgresRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $2, first_name = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.FirstName)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return checkAffected(result)
}

// List возвращает страницу пользователей
func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// SetBanned меняет статус блокировки
func (r *postgresRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_banned = $2, updated_at = NOW() WHERE id = $1", id, banned)
	if err != nil {
		return fmt.Errorf("failed to set banned: %w", err)
	}

	return checkAffected(result)
}

// SetReferrer привязывает реферера; привязка выполняется только один раз
func (r *postgresRepository) SetReferrer(ctx context.Context, id, referrerID int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET referred_by = $2, updated_at = NOW() WHERE id = $1 AND referred_by IS NULL",
		id, referrerID)
	if err != nil {
		return fmt.Errorf("failed to set referrer: %w", err)
	}

	return nil
}

// SetWallet сохраняет TON-адрес пользователя
func (r *postgresRepository) SetWallet(ctx context.Context, id int64, address string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET crypto_wallet = $2, updated_at = NOW() WHERE id = $1", id, address)
	if err != nil {
		return fmt.Errorf("failed to set wallet: %w", err)
	}

	return checkAffected(result)
}

// SetEmail сохраняет почту и флаг подтверждения
func (r *postgresRepository) SetEmail(ctx context.Context, id int64, email string, verified bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET email = $2, email_verified = $3, updated_at = NOW() WHERE id = $1",
		id, email, verified)
	if err != nil {
		return fmt.Errorf("failed to set email: %w", err)
	}

	return checkAffected(result)
}

// CreditBalance зачисляет средства на баланс
func (r *postgresRepository) CreditBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1", id, amount)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}

	return checkAffected(result)
}

// DebitBalance списывает средства; условие в WHERE защищает от ухода в минус
func (r *postgresRepository) DebitBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET balance = balance - $2, updated_at = NOW() WHERE id = $1 AND balance >= $2",
		id, amount)
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

	return nil
}

// UpdateStreak выставляет серию и время последнего бесплатного пака
func (r *postgresRepository) UpdateStreak(ctx context.Context, id int64, streak int, activeAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET streak = $2, active_at = $3, updated_at = NOW() WHERE id = $1",
		id, streak, activeAt)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}

	return checkAffected(result)
}

// ResetExpiredStreaks обнуляет серии пользователей, пропустивших день
func (r *postgresRepository) ResetExpiredStreaks(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET streak = 0, updated_at = NOW() WHERE streak > 0 AND active_at < $1",
		before)
	if err != nil {
		return 0, fmt.Errorf("failed to reset streaks: %w", err)
	}

	return result.RowsAffected()
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}
