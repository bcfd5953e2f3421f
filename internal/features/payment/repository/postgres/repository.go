package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/payment/models"
	"merge-verse-backend/internal/features/payment/repository"
)

const paymentColumns = `id, user_id, type, provider, amount, status, external_id, created_at, updated_at`

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.PaymentRepository {
	return &postgresRepository{db: db}
}

func scanPayment(row interface{ Scan(...interface{}) error }) (*models.Payment, error) {
	var payment models.Payment
	var externalID sql.NullString

	err := row.Scan(&payment.ID, &payment.UserID, &payment.Type, &payment.Provider,
		&payment.Amount, &payment.Status, &externalID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if externalID.Valid {
		payment.ExternalID = &externalID.String
	}

	return &payment, nil
}

func (r *postgresRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, type, provider, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query, payment.ID, payment.UserID, payment.Type,
		payment.Provider, payment.Amount, payment.Status)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE id = $1", paymentColumns)

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Payment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, paymentColumns)

	return r.listPayments(ctx, query, userID)
}

func (r *postgresRepository) ListPendingTonDeposits(ctx context.Context) ([]*models.Payment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM payments
		WHERE provider = $1 AND type = $2 AND status = $3
		ORDER BY created_at ASC
	`, paymentColumns)

	return r.listPayments(ctx, query, models.ProviderTon, models.TypeDeposit, models.StatusPending)
}

func (r *postgresRepository) listPayments(ctx context.Context, query string, args ...interface{}) ([]*models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

func (r *postgresRepository) SetExternalID(ctx context.Context, id, externalID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE payments SET external_id = $2, updated_at = NOW() WHERE id = $1",
		id, externalID)
	if err != nil {
		return fmt.Errorf("failed to set external id: %w", err)
	}
	return nil
}

func (r *postgresRepository) MarkFailed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3",
		id, models.StatusFailed, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return nil
}

// ConfirmDeposit подтверждает платеж ровно один раз и зачисляет баланс
func (r *postgresRepository) ConfirmDeposit(ctx context.Context, id string) (*models.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		UPDATE payments SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING %s
	`, paymentColumns)

	payment, err := scanPayment(tx.QueryRowContext(ctx, query, id, models.StatusConfirmed, models.StatusPending))
	if err != nil {
		if err == sql.ErrNoRows {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, repository.ErrAlreadyProcessed
		}
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1",
		payment.UserID, payment.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return payment, nil
}

// CreatePayout создает заявку на вывод, списывая charge с проверкой остатка
func (r *postgresRepository) CreatePayout(ctx context.Context, payment *models.Payment, charge decimal.Decimal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"UPDATE users SET balance = balance - $2, updated_at = NOW() WHERE id = $1 AND balance >= $2",
		payment.UserID, charge)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrInsufficientBalance
	}

	query := `
		INSERT INTO payments (id, user_id, type, provider, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = tx.ExecContext(ctx, query, payment.ID, payment.UserID, payment.Type,
		payment.Provider, payment.Amount, payment.Status)
	if err != nil {
		return fmt.Errorf("failed to create payout: %w", err)
	}

	return tx.Commit()
}

// RevertPayout возвращает деньги и помечает заявку сбойной
func (r *postgresRepository) RevertPayout(ctx context.Context, id string, charge decimal.Decimal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRowContext(ctx,
		"UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING user_id",
		id, models.StatusFailed).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return repository.ErrPaymentNotFound
		}
		return fmt.Errorf("failed to mark payout failed: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1",
		userID, charge)
	if err != nil {
		return fmt.Errorf("failed to refund balance: %w", err)
	}

	return tx.Commit()
}
