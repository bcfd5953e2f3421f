package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/features/auction/models"
	"merge-verse-backend/internal/features/auction/repository"
	giftmodels "merge-verse-backend/internal/features/gift/models"
	inventorymodels "merge-verse-backend/internal/features/inventory/models"
	inventoryrepo "merge-verse-backend/internal/features/inventory/repository"
	inventorypg "merge-verse-backend/internal/features/inventory/repository/postgres"
)

const auctionColumns = `id, seller_id, gift_id, level, start_price, current_price, status, winner_id, ends_at, created_at, updated_at`

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.AuctionRepository {
	return &postgresRepository{db: db}
}

func scanAuction(row interface{ Scan(...interface{}) error }) (*models.Auction, error) {
	var auction models.Auction
	var winnerID sql.NullInt64

	err := row.Scan(&auction.ID, &auction.SellerID, &auction.GiftID, &auction.Level,
		&auction.StartPrice, &auction.CurrentPrice, &auction.Status, &winnerID,
		&auction.EndsAt, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if winnerID.Valid {
		auction.WinnerID = &winnerID.Int64
	}

	return &auction, nil
}

type auctionTx struct {
	tx *sql.Tx
}

// WithTx выполняет fn внутри одной транзакции
func (r *postgresRepository) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&auctionTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func (t *auctionTx) GetAuctionForUpdate(ctx context.Context, id string) (*models.Auction, error) {
	query := fmt.Sprintf("SELECT %s FROM auctions WHERE id = $1 FOR UPDATE", auctionColumns)

	auction, err := scanAuction(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return auction, nil
}

func (t *auctionTx) InsertAuction(ctx context.Context, auction *models.Auction) error {
	query := `
		INSERT INTO auctions (id, seller_id, gift_id, level, start_price, current_price, status, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := t.tx.ExecContext(ctx, query, auction.ID, auction.SellerID, auction.GiftID,
		auction.Level, auction.StartPrice, auction.CurrentPrice, auction.Status, auction.EndsAt)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}

	return nil
}

func (t *auctionTx) UpdateAuction(ctx context.Context, id string, current decimal.Decimal, status models.Status, winnerID *int64) error {
	query := `
		UPDATE auctions
		SET current_price = $2, status = $3, winner_id = $4, updated_at = NOW()
		WHERE id = $1
	`

	var winner sql.NullInt64
	if winnerID != nil {
		winner = sql.NullInt64{Int64: *winnerID, Valid: true}
	}

	if _, err := t.tx.ExecContext(ctx, query, id, current, status, winner); err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	return nil
}

func (t *auctionTx) GetHighestBid(ctx context.Context, auctionID string) (*models.Bid, error) {
	query := `
		SELECT auction_id, bidder_id, amount, created_at, updated_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC
		LIMIT 1
	`

	var bid models.Bid
	err := t.tx.QueryRowContext(ctx, query, auctionID).Scan(
		&bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.CreatedAt, &bid.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}

	return &bid, nil
}

func (t *auctionTx) GetBid(ctx context.Context, auctionID string, bidderID int64) (*models.Bid, error) {
	query := `
		SELECT auction_id, bidder_id, amount, created_at, updated_at
		FROM bids
		WHERE auction_id = $1 AND bidder_id = $2
	`

	var bid models.Bid
	err := t.tx.QueryRowContext(ctx, query, auctionID, bidderID).Scan(
		&bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.CreatedAt, &bid.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}

	return &bid, nil
}

func (t *auctionTx) UpsertBid(ctx context.Context, auctionID string, bidderID int64, amount decimal.Decimal) error {
	query := `
		INSERT INTO bids (auction_id, bidder_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (auction_id, bidder_id)
		DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()
	`

	if _, err := t.tx.ExecContext(ctx, query, auctionID, bidderID, amount); err != nil {
		return fmt.Errorf("failed to upsert bid: %w", err)
	}

	return nil
}

func (t *auctionTx) GetItemForUpdate(ctx context.Context, id string) (*inventorymodels.Item, error) {
	item, err := inventorypg.GetItem(ctx, t.tx, id, true)
	if err != nil {
		if errors.Is(err, inventoryrepo.ErrItemNotFound) {
			return nil, repository.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (t *auctionTx) ConsumeItem(ctx context.Context, itemID string, quantity int) error {
	err := inventorypg.ConsumeItem(ctx, t.tx, itemID, quantity)
	if errors.Is(err, inventoryrepo.ErrInsufficientQuantity) {
		return repository.ErrInsufficientQuantity
	}
	return err
}

func (t *auctionTx) UpsertItem(ctx context.Context, userID int64, giftID string, level giftmodels.Level, quantity int, tradeable bool) error {
	return inventorypg.UpsertItem(ctx, t.tx, userID, giftID, level, quantity, tradeable)
}

// DebitBalance списывает сумму только при достаточном балансе
func (t *auctionTx) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	result, err := t.tx.ExecContext(ctx,
		"UPDATE users SET balance = balance - $2, updated_at = NOW() WHERE id = $1 AND balance >= $2",
		userID, amount)
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

	return nil
}

func (t *auctionTx) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1",
		userID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*models.Auction, error) {
	query := fmt.Sprintf("SELECT %s FROM auctions WHERE id = $1", auctionColumns)

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return auction, nil
}

func (r *postgresRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.Auction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM auctions
		WHERE status = $1
		ORDER BY ends_at ASC
		LIMIT $2 OFFSET $3
	`, auctionColumns)

	return r.listAuctions(ctx, query, models.StatusActive, limit, offset)
}

func (r *postgresRepository) ListBySeller(ctx context.Context, sellerID int64) ([]*models.Auction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM auctions
		WHERE seller_id = $1
		ORDER BY created_at DESC
	`, auctionColumns)

	return r.listAuctions(ctx, query, sellerID)
}

// ListExpired возвращает активные лоты с истекшим сроком
func (r *postgresRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Auction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM auctions
		WHERE status = $1 AND ends_at <= $2
		ORDER BY ends_at ASC
	`, auctionColumns)

	return r.listAuctions(ctx, query, models.StatusActive, now)
}

func (r *postgresRepository) listAuctions(ctx context.Context, query string, args ...interface{}) ([]*models.Auction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*models.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}

	return auctions, rows.Err()
}

func (r *postgresRepository) ListBids(ctx context.Context, auctionID string) ([]*models.Bid, error) {
	query := `
		SELECT auction_id, bidder_id, amount, created_at, updated_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC
	`

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []*models.Bid
	for rows.Next() {
		var bid models.Bid
		err := rows.Scan(&bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.CreatedAt, &bid.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}
