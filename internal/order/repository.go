package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookstore-be/internal/db"
	"bookstore-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	// Create stores the order, its items and the user's index entry, and
	// settles the stock holds of o.CheckoutID, all in one transaction.
	Create(ctx context.Context, o *Order) (string, error)
	Get(ctx context.Context, orderID string) (*Order, error)
	GetByCheckoutID(ctx context.Context, checkoutID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context, filter ListFilter) ([]*Order, error)
	// UpdateStatus moves the order and its index entry from one status to
	// another. It returns ErrStatusConflict if the order is no longer in from.
	UpdateStatus(ctx context.Context, orderID string, from, to Status) (time.Time, error)
}

const orderColumns = `id, user_id, checkout_id, subtotal, tax, shipping_cost, total,
		shipping_address, payment_method, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.CheckoutID,
		&o.Subtotal,
		&o.Tax,
		&o.ShippingCost,
		&o.Total,
		&o.ShippingAddress,
		&o.PaymentMethod,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Items = []Item{}
	return &o, nil
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, o *Order) (string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrder"),
		zap.String("checkout_id", o.CheckoutID),
	)
	log.Debug("start create order transaction")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	now := time.Now().UTC()

	// 1. Insert order
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, checkout_id, subtotal, tax, shipping_cost, total,
			shipping_address, payment_method, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
		id,
		o.UserID,
		o.CheckoutID,
		o.Subtotal,
		o.Tax,
		o.ShippingCost,
		o.Total,
		o.ShippingAddress,
		o.PaymentMethod,
		o.Status,
		now,
	)
	if err != nil {
		if db.IsCode(err, db.PgUniqueViolation) {
			log.Warn("order already committed for checkout")
			return "", ErrDuplicateCheckout
		}
		log.Error("failed to insert order", zap.Error(err))
		return "", err
	}

	// 2. Insert items
	for i, it := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, position, book_id, title, author, price, quantity
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			id, i, it.BookID, it.Title, it.Author, it.Price, it.Quantity,
		)
		if err != nil {
			log.Error("failed to insert order item", zap.String("book_id", it.BookID), zap.Error(err))
			return "", err
		}
	}

	// 3. Index entry
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_orders (user_id, order_id, total, status, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		o.UserID, id, o.Total, o.Status, now,
	)
	if err != nil {
		log.Error("failed to insert order index", zap.Error(err))
		return "", err
	}

	// 4. Holds become permanent once the order exists. Every held book must
	// still have its hold; a released one is back on the shelf.
	if o.CheckoutID != "" {
		res, err := tx.ExecContext(ctx, `DELETE FROM stock_holds WHERE checkout_id = $1`, o.CheckoutID)
		if err != nil {
			log.Error("failed to settle stock holds", zap.Error(err))
			return "", err
		}
		settled, err := res.RowsAffected()
		if err != nil {
			log.Error("failed to count settled holds", zap.Error(err))
			return "", err
		}
		if want := heldBooks(o.Items); settled != int64(want) {
			log.Warn("stock holds released before order commit",
				zap.Int64("settled", settled), zap.Int("expected", want))
			return "", ErrHoldsReleased
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return "", err
	}

	o.ID = id
	o.CreatedAt = now
	o.UpdatedAt = now

	log.Info("order created", zap.String("order_id", id), zap.Int("items_count", len(o.Items)))
	return id, nil
}

func (r *repository) Get(ctx context.Context, orderID string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

func (r *repository) GetByCheckoutID(ctx context.Context, checkoutID string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE checkout_id = $1`, checkoutID)
}

func (r *repository) getOne(ctx context.Context, query string, arg string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.fetchItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	if its, ok := items[o.ID]; ok {
		o.Items = its
	}
	return o, nil
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListOrdersByUser"),
	)

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id FROM user_orders
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		log.Error("failed to query order index", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*Order{}, nil
	}

	byID, err := r.fetchOrders(ctx, ids)
	if err != nil {
		return nil, err
	}

	// keep index order; entries without an order are skipped
	orders := make([]*Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			orders = append(orders, o)
		} else {
			log.Warn("order index entry without order", zap.String("order_id", id))
		}
	}
	return orders, nil
}

func (r *repository) ListAll(ctx context.Context, filter ListFilter) ([]*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListAllOrders"),
	)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	orders := make([]*Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.fetchItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if its, ok := items[o.ID]; ok {
			o.Items = its
		}
	}
	return orders, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID string, from, to Status) (time.Time, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "UpdateOrderStatus"),
		zap.String("order_id", orderID),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback()

	var updatedAt time.Time
	err = tx.QueryRowContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING updated_at`,
		to, orderID, from,
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrStatusConflict
	}
	if err != nil {
		log.Error("failed to update order status", zap.Error(err))
		return time.Time{}, err
	}

	_, err = tx.ExecContext(ctx, `UPDATE user_orders SET status = $1 WHERE order_id = $2`, to, orderID)
	if err != nil {
		log.Error("failed to update order index status", zap.Error(err))
		return time.Time{}, err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return time.Time{}, err
	}
	return updatedAt, nil
}

func (r *repository) fetchOrders(ctx context.Context, ids []string) (map[string]*Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*Order, len(ids))
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		byID[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := r.fetchItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, its := range items {
		if o, ok := byID[id]; ok {
			o.Items = its
		}
	}
	return byID, nil
}

func (r *repository) fetchItems(ctx context.Context, orderIDs []string) (map[string][]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, book_id, title, author, price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]Item, len(orderIDs))
	for rows.Next() {
		var orderID string
		var it Item
		if err := rows.Scan(&orderID, &it.BookID, &it.Title, &it.Author, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], it)
	}
	return items, rows.Err()
}

// heldBooks counts the distinct books of items, one hold each.
func heldBooks(items []Item) int {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it.BookID] = struct{}{}
	}
	return len(seen)
}
