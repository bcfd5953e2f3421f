package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/gift/models"
	"merge-verse-backend/internal/features/gift/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.GiftRepository {
	return &postgresRepository{db: db}
}

// GetAll возвращает весь каталог подарков
func (r *postgresRepository) GetAll(ctx context.Context) ([]*models.Gift, error) {
	query := `
		SELECT id, name, rarity, url, created_at, updated_at
		FROM gifts
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get gifts: %w", err)
	}
	defer rows.Close()

	var gifts []*models.Gift
	for rows.Next() {
		var gift models.Gift
		err := rows.Scan(&gift.ID, &gift.Name, &gift.Rarity, &gift.URL,
			&gift.CreatedAt, &gift.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gift: %w", err)
		}
		gifts = append(gifts, &gift)
	}

	return gifts, rows.Err()
}

// GetByID получает подарок по ID
func (r *postgresRepository) GetByID(ctx context.Context, id string) (*models.Gift, error) {
	query := `
		SELECT id, name, rarity, url, created_at, updated_at
		FROM gifts
		WHERE id = $1
	`

	var gift models.Gift
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&gift.ID, &gift.Name, &gift.Rarity, &gift.URL,
		&gift.CreatedAt, &gift.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrGiftNotFound
		}
		return nil, fmt.Errorf("failed to get gift: %w", err)
	}

	return &gift, nil
}

// Create создает новый подарок
func (r *postgresRepository) Create(ctx context.Context, gift *models.Gift) error {
	query := `
		INSERT INTO gifts (id, name, rarity, url)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, gift.ID, gift.Name, gift.Rarity, gift.URL)
	if err != nil {
		return fmt.Errorf("failed to create gift: %w", err)
	}

	return nil
}

// Update обновляет подарок
func (r *postgresRepository) Update(ctx context.Context, gift *models.Gift) error {
	query := `
		UPDATE gifts
		SET name = $2, rarity = $3, url = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, gift.ID, gift.Name, gift.Rarity, gift.URL)
	if err != nil {
		return fmt.Errorf("failed to update gift: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repository.ErrGiftNotFound
	}

	return nil
}

// Delete удаляет подарок
func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM gifts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete gift: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repository.ErrGiftNotFound
	}

	return nil
}

// GetPrices возвращает таблицу цен по редкости и уровню
func (r *postgresRepository) GetPrices(ctx context.Context) ([]*models.Price, error) {
	query := `
		SELECT rarity, level, price
		FROM prices
		ORDER BY rarity, level
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}
	defer rows.Close()

	var prices []*models.Price
	for rows.Next() {
		var price models.Price
		if err := rows.Scan(&price.Rarity, &price.Level, &price.Price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, &price)
	}

	return prices, rows.Err()
}

// UpdatePrice обновляет цену для пары редкость-уровень
func (r *postgresRepository) UpdatePrice(ctx context.Context, rarity models.Rarity, level models.Level, price decimal.Decimal) error {
	query := `
		INSERT INTO prices (rarity, level, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (rarity, level) DO UPDATE SET price = EXCLUDED.price
	`

	_, err := r.db.ExecContext(ctx, query, rarity, level, price)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}

	return nil
}

// GetVerticalPrices возвращает призы за вертикальные коллекции
func (r *postgresRepository) GetVerticalPrices(ctx context.Context) ([]*models.VerticalPrice, error) {
	query := `SELECT level, price FROM vertical_prices ORDER BY level`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get vertical prices: %w", err)
	}
	defer rows.Close()

	var prices []*models.VerticalPrice
	for rows.Next() {
		var price models.VerticalPrice
		if err := rows.Scan(&price.Level, &price.Price); err != nil {
			return nil, fmt.Errorf("failed to scan vertical price: %w", err)
		}
		prices = append(prices, &price)
	}

	return prices, rows.Err()
}

// UpdateVerticalPrice обновляет приз за вертикальную коллекцию уровня
func (r *postgresRepository) UpdateVerticalPrice(ctx context.Context, level models.Level, price decimal.Decimal) error {
	query := `
		INSERT INTO vertical_prices (level, price)
		VALUES ($1, $2)
		ON CONFLICT (level) DO UPDATE SET price = EXCLUDED.price
	`

	_, err := r.db.ExecContext(ctx, query, level, price)
	if err != nil {
		return fmt.Errorf("failed to update vertical price: %w", err)
	}

	return nil
}

// GetHorizontalPrices возвращает призы за горизонтальные коллекции
func (r *postgresRepository) GetHorizontalPrices(ctx context.Context) ([]*models.HorizontalPrice, error) {
	query := `SELECT name, rarity, price FROM horizontal_prices ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get horizontal prices: %w", err)
	}
	defer rows.Close()

	var prices []*models.HorizontalPrice
	for rows.Next() {
		var price models.HorizontalPrice
		if err := rows.Scan(&price.Name, &price.Rarity, &price.Price); err != nil {
			return nil, fmt.Errorf("failed to scan horizontal price: %w", err)
		}
		prices = append(prices, &price)
	}

	return prices, rows.Err()
}

// UpdateHorizontalPrice обновляет приз за горизонтальную коллекцию подарка
func (r *postgresRepository) UpdateHorizontalPrice(ctx context.Context, name string, price decimal.Decimal) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE horizontal_prices SET price = $2 WHERE name = $1", name, price)
	if err != nil {
		return fmt.Errorf("failed to update horizontal price: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repository.ErrGiftNotFound
	}

	return nil
}
