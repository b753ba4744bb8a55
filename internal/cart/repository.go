package cart

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookstore-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	// Get returns the user's cart, or an empty cart with Exists=false.
	Get(ctx context.Context, userID string) (*Cart, error)
	// Merge adds quantity to the user's line for bookID, creating cart and line as needed.
	Merge(ctx context.Context, userID, bookID string, quantity int) error
	// Replace swaps the cart contents wholesale.
	Replace(ctx context.Context, userID string, items []ItemInput) error
	Clear(ctx context.Context, userID string) error
	// RemoveItems takes the given quantities off the user's lines. A line
	// merged after the cart was read keeps whatever exceeds them.
	RemoveItems(ctx context.Context, userID string, items []ItemInput) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, userID string) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetCart"),
	)

	rows, err := r.db.QueryContext(ctx, `
	SELECT c.updated_at, i.book_id, i.quantity, i.added_at
	FROM carts c
	LEFT JOIN cart_items i ON i.user_id = c.user_id
	WHERE c.user_id = $1
	ORDER BY i.added_at, i.book_id`, userID)
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	c := &Cart{UserID: userID, Items: []Item{}}
	for rows.Next() {
		var (
			bookID   sql.NullString
			quantity sql.NullInt64
			addedAt  sql.NullTime
		)
		if err := rows.Scan(&c.UpdatedAt, &bookID, &quantity, &addedAt); err != nil {
			log.Error("row scan failed", zap.Error(err))
			return nil, err
		}
		c.Exists = true
		if !bookID.Valid {
			continue // cart row without items
		}
		c.Items = append(c.Items, Item{
			BookID:   bookID.String,
			Quantity: int(quantity.Int64),
			AddedAt:  addedAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repository) Merge(ctx context.Context, userID, bookID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	_, err := r.db.ExecContext(ctx, `
	WITH c AS (
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING user_id
	)
	INSERT INTO cart_items (user_id, book_id, quantity)
	SELECT user_id, $2, $3 FROM c
	ON CONFLICT (user_id, book_id)
	DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		userID, bookID, quantity,
	)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to merge cart item",
			zap.String("book_id", bookID),
			zap.Error(err),
		)
		return fmt.Errorf("merge cart item: %w", err)
	}
	return nil
}

func (r *repository) Replace(ctx context.Context, userID string, items []ItemInput) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ReplaceCart"),
	)

	items = coalesce(items)
	for _, it := range items {
		if it.Quantity < 1 {
			return ErrInvalidQuantity
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO carts (user_id) VALUES ($1)
	ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()`, userID)
	if err != nil {
		log.Error("failed to upsert cart", zap.Error(err))
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		log.Error("failed to clear cart items", zap.Error(err))
		return err
	}

	// NOW() is fixed for the whole transaction, so insertion order is
	// carried by explicit timestamps.
	now := time.Now().UTC()
	for i, it := range items {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, book_id, quantity, added_at)
		VALUES ($1, $2, $3, $4)`,
			userID, it.BookID, it.Quantity, now.Add(time.Duration(i)*time.Microsecond),
		)
		if err != nil {
			log.Error("failed to insert cart item", zap.String("book_id", it.BookID), zap.Error(err))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return err
	}

	log.Debug("cart replaced", zap.Int("items_count", len(items)))
	return nil
}

func (r *repository) Clear(ctx context.Context, userID string) error {
	// items cascade
	_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *repository) RemoveItems(ctx context.Context, userID string, items []ItemInput) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "RemoveCartItems"),
	)

	items = coalesce(items)
	if len(items) == 0 {
		return nil
	}
	bookIDs := make([]string, len(items))
	quantities := make([]int64, len(items))
	for i, it := range items {
		bookIDs[i] = it.BookID
		quantities[i] = int64(it.Quantity)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	WITH done AS (
		SELECT * FROM unnest($2::text[], $3::int[]) AS d(book_id, quantity)
	), removed AS (
		DELETE FROM cart_items i USING done d
		WHERE i.user_id = $1 AND i.book_id = d.book_id AND i.quantity <= d.quantity
	)
	UPDATE cart_items i SET quantity = i.quantity - d.quantity
	FROM done d
	WHERE i.user_id = $1 AND i.book_id = d.book_id AND i.quantity > d.quantity`,
		userID, pq.Array(bookIDs), pq.Array(quantities),
	)
	if err != nil {
		log.Error("failed to remove cart items", zap.Error(err))
		return fmt.Errorf("remove cart items: %w", err)
	}

	// drop the cart itself once nothing is left in it
	_, err = tx.ExecContext(ctx, `
	DELETE FROM carts c
	WHERE c.user_id = $1
	AND NOT EXISTS (SELECT 1 FROM cart_items i WHERE i.user_id = c.user_id)`, userID)
	if err != nil {
		log.Error("failed to drop empty cart", zap.Error(err))
		return fmt.Errorf("remove cart items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return err
	}
	return nil
}
