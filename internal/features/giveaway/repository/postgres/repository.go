package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	giftmodels "merge-verse-backend/internal/features/gift/models"
	"merge-verse-backend/internal/features/giveaway/models"
	"merge-verse-backend/internal/features/giveaway/repository"
	inventorymodels "merge-verse-backend/internal/features/inventory/models"
	inventoryrepo "merge-verse-backend/internal/features/inventory/repository"
	inventorypg "merge-verse-backend/internal/features/inventory/repository/postgres"
)

const stepsKey = "giveaway_steps"

const giveawayColumns = `g.id, g.gift_id, g.status, g.start_at, g.ends_at,
	(SELECT COUNT(*) FROM giveaway_entries e WHERE e.giveaway_id = g.id) AS entry_count,
	g.created_at, g.updated_at`

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.GiveawayRepository {
	return &postgresRepository{db: db}
}

func scanGiveaway(row interface{ Scan(...interface{}) error }) (*models.Giveaway, error) {
	var giveaway models.Giveaway
	err := row.Scan(&giveaway.ID, &giveaway.GiftID, &giveaway.Status, &giveaway.StartAt,
		&giveaway.EndsAt, &giveaway.EntryCount, &giveaway.CreatedAt, &giveaway.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &giveaway, nil
}

func scanWinner(row interface{ Scan(...interface{}) error }) (*models.Winner, error) {
	var winner models.Winner
	err := row.Scan(&winner.ID, &winner.GiveawayID, &winner.UserID, &winner.Choice,
		&winner.IsFinished, &winner.CreatedAt, &winner.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &winner, nil
}

type giveawayTx struct {
	tx *sql.Tx
}

// WithTx выполняет fn внутри одной транзакции
func (r *postgresRepository) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&giveawayTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func (t *giveawayTx) GetGiveawayForUpdate(ctx context.Context, id string) (*models.Giveaway, error) {
	query := fmt.Sprintf("SELECT %s FROM giveaways g WHERE g.id = $1 FOR UPDATE OF g", giveawayColumns)

	giveaway, err := scanGiveaway(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrGiveawayNotFound
		}
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}

	return giveaway, nil
}

func (t *giveawayTx) UpdateGiveawayStatus(ctx context.Context, id string, status models.Status) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE giveaways SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return fmt.Errorf("failed to update giveaway status: %w", err)
	}
	return nil
}

func (t *giveawayTx) InsertEntry(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO giveaway_entries (giveaway_id, user_id, is_tradeable)
		VALUES ($1, $2, $3)
	`

	_, err := t.tx.ExecContext(ctx, query, entry.GiveawayID, entry.UserID, entry.IsTradeable)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return repository.ErrAlreadyEntered
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return nil
}

func (t *giveawayTx) ListEntries(ctx context.Context, giveawayID string) ([]*models.Entry, error) {
	query := `
		SELECT giveaway_id, user_id, is_tradeable, created_at
		FROM giveaway_entries
		WHERE giveaway_id = $1
		ORDER BY created_at ASC
		FOR UPDATE
	`

	rows, err := t.tx.QueryContext(ctx, query, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		var entry models.Entry
		err := rows.Scan(&entry.GiveawayID, &entry.UserID, &entry.IsTradeable, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func (t *giveawayTx) InsertWinner(ctx context.Context, winner *models.Winner) error {
	query := `
		INSERT INTO giveaway_winners (id, giveaway_id, user_id, choice, is_finished)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := t.tx.ExecContext(ctx, query, winner.ID, winner.GiveawayID, winner.UserID,
		winner.Choice, winner.IsFinished)
	if err != nil {
		return fmt.Errorf("failed to insert winner: %w", err)
	}

	return nil
}

func (t *giveawayTx) GetWinnerForUpdate(ctx context.Context, id string) (*models.Winner, error) {
	query := `
		SELECT id, giveaway_id, user_id, choice, is_finished, created_at, updated_at
		FROM giveaway_winners
		WHERE id = $1
		FOR UPDATE
	`

	winner, err := scanWinner(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrWinnerNotFound
		}
		return nil, fmt.Errorf("failed to get winner: %w", err)
	}

	return winner, nil
}

func (t *giveawayTx) UpdateWinnerChoice(ctx context.Context, id string, choice models.Choice) error {
	query := `
		UPDATE giveaway_winners
		SET choice = $2, is_finished = true, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := t.tx.ExecContext(ctx, query, id, choice); err != nil {
		return fmt.Errorf("failed to update winner choice: %w", err)
	}

	return nil
}

func (t *giveawayTx) FindStackForUpdate(ctx context.Context, userID int64, giftID string, level giftmodels.Level, tradeable bool) (*inventorymodels.Item, error) {
	item, err := inventorypg.FindStack(ctx, t.tx, userID, giftID, level, tradeable, true)
	if err != nil {
		if errors.Is(err, inventoryrepo.ErrItemNotFound) {
			return nil, repository.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (t *giveawayTx) ConsumeItem(ctx context.Context, itemID string, quantity int) error {
	err := inventorypg.ConsumeItem(ctx, t.tx, itemID, quantity)
	if errors.Is(err, inventoryrepo.ErrInsufficientQuantity) {
		return repository.ErrInsufficientQuantity
	}
	return err
}

func (t *giveawayTx) UpsertItem(ctx context.Context, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error {
	return inventorypg.UpsertItem(ctx, t.tx, userID, giftID, level, quantity, tradeable)
}

func (t *giveawayTx) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1",
		userID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func (r *postgresRepository) Create(ctx context.Context, giveaway *models.Giveaway) error {
	query := `
		INSERT INTO giveaways (id, gift_id, status, start_at, ends_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, giveaway.ID, giveaway.GiftID, giveaway.Status,
		giveaway.StartAt, giveaway.EndsAt)
	if err != nil {
		return fmt.Errorf("failed to create giveaway: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*models.Giveaway, error) {
	query := fmt.Sprintf("SELECT %s FROM giveaways g WHERE g.id = $1", giveawayColumns)

	giveaway, err := scanGiveaway(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrGiveawayNotFound
		}
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}

	return giveaway, nil
}

func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]*models.Giveaway, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM giveaways g
		ORDER BY g.created_at DESC
		LIMIT $1 OFFSET $2
	`, giveawayColumns)

	return r.listGiveaways(ctx, query, limit, offset)
}

func (r *postgresRepository) ListActive(ctx context.Context) ([]*models.Giveaway, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM giveaways g
		WHERE g.status = $1
		ORDER BY g.ends_at ASC
	`, giveawayColumns)

	return r.listGiveaways(ctx, query, models.StatusActive)
}

func (r *postgresRepository) listGiveaways(ctx context.Context, query string, args ...interface{}) ([]*models.Giveaway, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list giveaways: %w", err)
	}
	defer rows.Close()

	var giveaways []*models.Giveaway
	for rows.Next() {
		giveaway, err := scanGiveaway(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan giveaway: %w", err)
		}
		giveaways = append(giveaways, giveaway)
	}

	return giveaways, rows.Err()
}

func (r *postgresRepository) ListEntriesByUser(ctx context.Context, userID int64) ([]*models.Entry, error) {
	query := `
		SELECT giveaway_id, user_id, is_tradeable, created_at
		FROM giveaway_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		var entry models.Entry
		err := rows.Scan(&entry.GiveawayID, &entry.UserID, &entry.IsTradeable, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func (r *postgresRepository) ListWinnersByGiveaway(ctx context.Context, giveawayID string) ([]*models.Winner, error) {
	query := `
		SELECT id, giveaway_id, user_id, choice, is_finished, created_at, updated_at
		FROM giveaway_winners
		WHERE giveaway_id = $1
		ORDER BY created_at ASC
	`

	return r.listWinners(ctx, query, giveawayID)
}

func (r *postgresRepository) ListPendingWinners(ctx context.Context) ([]*models.Winner, error) {
	query := `
		SELECT id, giveaway_id, user_id, choice, is_finished, created_at, updated_at
		FROM giveaway_winners
		WHERE choice = $1
		ORDER BY created_at ASC
	`

	return r.listWinners(ctx, query, models.ChoicePending)
}

func (r *postgresRepository) GetWinnerByID(ctx context.Context, id string) (*models.Winner, error) {
	query := `
		SELECT id, giveaway_id, user_id, choice, is_finished, created_at, updated_at
		FROM giveaway_winners
		WHERE id = $1
	`

	winner, err := scanWinner(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrWinnerNotFound
		}
		return nil, fmt.Errorf("failed to get winner: %w", err)
	}

	return winner, nil
}

func (r *postgresRepository) listWinners(ctx context.Context, query string, args ...interface{}) ([]*models.Winner, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners: %w", err)
	}
	defer rows.Close()

	var winners []*models.Winner
	for rows.Next() {
		winner, err := scanWinner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan winner: %w", err)
		}
		winners = append(winners, winner)
	}

	return winners, rows.Err()
}

// GetTopWinners агрегирует победы по пользователям и редкостям подарков
func (r *postgresRepository) GetTopWinners(ctx context.Context, limit int) ([]*models.TopWinner, error) {
	query := `
		SELECT w.user_id, COALESCE(u.username, ''), gf.rarity, COUNT(*)
		FROM giveaway_winners w
		JOIN giveaways g ON g.id = w.giveaway_id
		JOIN gifts gf ON gf.id = g.gift_id
		LEFT JOIN users u ON u.id = w.user_id
		GROUP BY w.user_id, u.username, gf.rarity
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get top winners: %w", err)
	}
	defer rows.Close()

	byUser := make(map[int64]*models.TopWinner)
	for rows.Next() {
		var userID int64
		var username string
		var rarity giftmodels.Rarity
		var count int

		if err := rows.Scan(&userID, &username, &rarity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan top winner: %w", err)
		}

		winner, ok := byUser[userID]
		if !ok {
			winner = &models.TopWinner{
				UserID:   userID,
				Username: username,
				ByRarity: make(map[giftmodels.Rarity]int),
			}
			byUser[userID] = winner
		}

		winner.ByRarity[rarity] += count
		winner.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	winners := make([]*models.TopWinner, 0, len(byUser))
	for _, winner := range byUser {
		winners = append(winners, winner)
	}

	sort.Slice(winners, func(i, j int) bool {
		if winners[i].Total != winners[j].Total {
			return winners[i].Total > winners[j].Total
		}
		return winners[i].UserID < winners[j].UserID
	})

	if limit > 0 && len(winners) > limit {
		winners = winners[:limit]
	}

	return winners, nil
}

// GetSteps читает порог кворума; 0 означает отсутствие настройки
func (r *postgresRepository) GetSteps(ctx context.Context) (int, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = $1", stepsKey).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get steps: %w", err)
	}

	steps, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid steps value %q: %w", value, err)
	}

	return steps, nil
}

func (r *postgresRepository) SetSteps(ctx context.Context, steps int) error {
	query := `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := r.db.ExecContext(ctx, query, stepsKey, strconv.Itoa(steps)); err != nil {
		return fmt.Errorf("failed to set steps: %w", err)
	}

	return nil
}
