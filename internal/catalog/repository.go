package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookstore-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	Get(ctx context.Context, bookID string) (*Book, error)
	List(ctx context.Context, filter BookFilter) ([]*Book, error)
	Create(ctx context.Context, input NewBookInput) (*Book, error)
	Update(ctx context.Context, bookID string, input UpdateBookInput) (*Book, error)
	Delete(ctx context.Context, bookID string) error

	// ReserveStock decrements stock by quantity only if enough is available and
	// records a hold for checkoutID in the same statement.
	ReserveStock(ctx context.Context, checkoutID, bookID string, quantity int) (*Book, error)
	// ReleaseStock undoes the hold of checkoutID on bookID. Releasing twice is a no-op.
	ReleaseStock(ctx context.Context, checkoutID, bookID string) (int, error)

	ListStaleHolds(ctx context.Context, olderThan time.Time) ([]StockHold, error)
	SettleHolds(ctx context.Context, checkoutID string) error
}

const bookColumns = `id, title, author, description, price, stock, category,
		image_url, isbn, publisher, published_date, pages, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	var b Book
	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Description,
		&b.Price,
		&b.Stock,
		&b.Category,
		&b.ImageURL,
		&b.ISBN,
		&b.Publisher,
		&b.PublishedDate,
		&b.Pages,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, bookID string) (*Book, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, bookID)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", bookID, err)
	}
	return b, nil
}

func (r *repository) List(ctx context.Context, filter BookFilter) ([]*Book, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListBooks"),
	)

	start := time.Now()

	// ---------- where ----------
	where := []string{"1=1"}
	args := []any{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR author ILIKE $%d)", len(args), len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Author != "" {
		args = append(args, filter.Author)
		where = append(where, fmt.Sprintf("author = $%d", len(args)))
	}

	args = append(args, filter.Limit)
	query := `SELECT ` + bookColumns + ` FROM books
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY created_at DESC
	LIMIT $` + fmt.Sprint(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	books := make([]*Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			log.Error("row scan failed", zap.Error(err))
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debug("query success",
		zap.Int("rows", len(books)),
		zap.Duration("duration", time.Since(start)),
	)
	return books, nil
}

func (r *repository) Create(ctx context.Context, input NewBookInput) (*Book, error) {
	row := r.db.QueryRowContext(ctx, `
	INSERT INTO books (
		id, title, author, description, price, stock, category,
		image_url, isbn, publisher, published_date, pages
	)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	RETURNING `+bookColumns,
		uuid.NewString(),
		input.Title,
		input.Author,
		input.Description,
		input.Price,
		input.Stock,
		input.Category,
		input.ImageURL,
		input.ISBN,
		input.Publisher,
		input.PublishedDate,
		input.Pages,
	)

	b, err := scanBook(row)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to create book", zap.Error(err))
		return nil, err
	}
	return b, nil
}

func (r *repository) Update(ctx context.Context, bookID string, input UpdateBookInput) (*Book, error) {
	sets := []string{}
	args := []any{}

	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if input.Title != nil {
		add("title", *input.Title)
	}
	if input.Author != nil {
		add("author", *input.Author)
	}
	if input.Description != nil {
		add("description", *input.Description)
	}
	if input.Price != nil {
		add("price", *input.Price)
	}
	if input.Stock != nil {
		add("stock", *input.Stock)
	}
	if input.Category != nil {
		add("category", *input.Category)
	}
	if input.ImageURL != nil {
		add("image_url", *input.ImageURL)
	}
	if input.ISBN != nil {
		add("isbn", *input.ISBN)
	}
	if input.Publisher != nil {
		add("publisher", *input.Publisher)
	}
	if input.PublishedDate != nil {
		add("published_date", *input.PublishedDate)
	}
	if input.Pages != nil {
		add("pages", *input.Pages)
	}

	if len(sets) == 0 {
		return nil, ErrNoChanges
	}

	args = append(args, bookID)
	query := `UPDATE books SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()
	WHERE id = $` + fmt.Sprint(len(args)) + `
	RETURNING ` + bookColumns

	b, err := scanBook(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update book %s: %w", bookID, err)
	}
	return b, nil
}

func (r *repository) Delete(ctx context.Context, bookID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, bookID)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

func (r *repository) ReserveStock(ctx context.Context, checkoutID, bookID string, quantity int) (*Book, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ReserveStock"),
		zap.String("checkout_id", checkoutID),
		zap.String("book_id", bookID),
		zap.Int("quantity", quantity),
	)

	// Compare-and-decrement plus hold insert in one statement: either both
	// happen or neither does.
	row := r.db.QueryRowContext(ctx, `
	WITH reserved AS (
		UPDATE books
		SET stock = stock - $3::int, updated_at = NOW()
		WHERE id = $2 AND stock >= $3::int
		RETURNING `+bookColumns+`
	), hold AS (
		INSERT INTO stock_holds (checkout_id, book_id, quantity)
		SELECT $1, id, $3::int FROM reserved
	)
	SELECT `+bookColumns+` FROM reserved`,
		checkoutID, bookID, quantity,
	)

	b, err := scanBook(row)
	if err == nil {
		log.Debug("stock reserved", zap.Int("new_stock", b.Stock))
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("reserve stock failed", zap.Error(err))
		return nil, err
	}

	// Nothing updated: either the book is gone or there is not enough stock.
	var title string
	var available int
	err = r.db.QueryRowContext(ctx, `SELECT title, stock FROM books WHERE id = $1`, bookID).
		Scan(&title, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}

	log.Info("insufficient stock", zap.Int("available", available))
	return nil, &InsufficientStockError{
		BookID:    bookID,
		Title:     title,
		Available: available,
		Requested: quantity,
	}
}

func (r *repository) ReleaseStock(ctx context.Context, checkoutID, bookID string) (int, error) {
	var released int
	err := r.db.QueryRowContext(ctx, `
	WITH released AS (
		DELETE FROM stock_holds
		WHERE checkout_id = $1 AND book_id = $2
		RETURNING book_id, quantity
	)
	UPDATE books b
	SET stock = b.stock + r.quantity, updated_at = NOW()
	FROM released r
	WHERE b.id = r.book_id
	RETURNING r.quantity`,
		checkoutID, bookID,
	).Scan(&released)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("release stock %s/%s: %w", checkoutID, bookID, err)
	}
	return released, nil
}

func (r *repository) ListStaleHolds(ctx context.Context, olderThan time.Time) ([]StockHold, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT checkout_id, book_id, quantity, created_at
	FROM stock_holds
	WHERE created_at < $1
	ORDER BY created_at, checkout_id, book_id`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []StockHold
	for rows.Next() {
		var h StockHold
		if err := rows.Scan(&h.CheckoutID, &h.BookID, &h.Quantity, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (r *repository) SettleHolds(ctx context.Context, checkoutID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stock_holds WHERE checkout_id = $1`, checkoutID)
	return err
}
