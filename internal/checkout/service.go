package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bookstore-be/internal/cart"
	"bookstore-be/internal/catalog"
	"bookstore-be/internal/db"
	"bookstore-be/internal/events"
	"bookstore-be/internal/logger"
	"bookstore-be/internal/metrics"
	"bookstore-be/internal/order"
	"bookstore-be/internal/tracing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = tracing.Tracer("bookstore-be/checkout")

// Books is the part of the catalog checkout relies on.
type Books interface {
	Get(ctx context.Context, bookID string) (*catalog.Book, error)
	ReserveStock(ctx context.Context, checkoutID, bookID string, quantity int) (*catalog.Book, error)
	ReleaseStock(ctx context.Context, checkoutID, bookID string) (int, error)
}

// HoldStore exposes the stock-hold ledger to recovery.
type HoldStore interface {
	ListStaleHolds(ctx context.Context, olderThan time.Time) ([]catalog.StockHold, error)
	SettleHolds(ctx context.Context, checkoutID string) error
}

type Input struct {
	UserID          string         `json:"userId"`
	ShippingAddress map[string]any `json:"shippingAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
}

type Options struct {
	Pricing              Pricing
	DefaultPaymentMethod string
	RetryAttempts        int
	RetryBackoff         time.Duration
	CompensationTimeout  time.Duration
	HoldStaleAfter       time.Duration
}

type Service interface {
	Checkout(ctx context.Context, in Input) (*order.Order, error)
	Recover(ctx context.Context) (RecoveryReport, error)
}

type service struct {
	carts     cart.Repository
	books     Books
	holds     HoldStore
	orders    order.Repository
	publisher events.Publisher
	opts      Options
}

func NewService(
	carts cart.Repository,
	books Books,
	holds HoldStore,
	orders order.Repository,
	publisher events.Publisher,
	opts Options,
) Service {
	if publisher == nil {
		publisher = events.NewNoop()
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 50 * time.Millisecond
	}
	if opts.CompensationTimeout <= 0 {
		opts.CompensationTimeout = 10 * time.Second
	}
	if opts.DefaultPaymentMethod == "" {
		opts.DefaultPaymentMethod = "credit_card"
	}
	return &service{
		carts:     carts,
		books:     books,
		holds:     holds,
		orders:    orders,
		publisher: publisher,
		opts:      opts,
	}
}

// Checkout turns the user's cart into an order. Stock is reserved book by
// book in ascending book id order; any failure before the order is stored
// releases every reservation taken by this call.
func (s *service) Checkout(ctx context.Context, in Input) (_ *order.Order, err error) {
	timer := metrics.StartTimer()

	ctx, span := tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(attribute.String("user.id", in.UserID)))
	defer span.End()

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Checkout"),
	)

	defer func() {
		metrics.RecordCheckout(outcome(err), timer.Duration())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	// 1. Load cart
	c, err := s.carts.Get(ctx, in.UserID)
	if err != nil {
		log.Error("failed to load cart", zap.Error(err))
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	lines := sortedLines(c.Items)

	// 2. Every book must exist before anything is reserved
	for _, l := range lines {
		if _, err := s.books.Get(ctx, l.BookID); err != nil {
			if errors.Is(err, catalog.ErrBookNotFound) {
				return nil, &BookNotFoundError{BookID: l.BookID}
			}
			return nil, err
		}
	}

	checkoutID := uuid.NewString()
	span.SetAttributes(attribute.String("checkout.id", checkoutID))
	log = log.With(zap.String("checkout_id", checkoutID))

	// attempted holds every book a reservation was tried for, including one
	// whose outcome is unknown; releasing a book that was never held is a no-op.
	var attempted []string
	committed := false
	defer func() {
		if !committed {
			s.compensate(ctx, checkoutID, attempted)
		}
	}()

	// 3. Reserve
	items := make([]order.Item, 0, len(lines))
	subtotal := decimal.Zero
	for _, l := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempted = append(attempted, l.BookID)
		b, err := s.reserve(ctx, checkoutID, l)
		if err != nil {
			if errors.Is(err, catalog.ErrBookNotFound) {
				return nil, &BookNotFoundError{BookID: l.BookID}
			}
			log.Info("reservation failed", zap.String("book_id", l.BookID), zap.Error(err))
			return nil, err
		}

		items = append(items, order.Item{
			BookID:   b.ID,
			Title:    b.Title,
			Author:   b.Author,
			Price:    b.Price,
			Quantity: l.Quantity,
		})
		subtotal = subtotal.Add(b.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	// 4. Price
	q := s.opts.Pricing.Quote(subtotal)

	paymentMethod := in.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = s.opts.DefaultPaymentMethod
	}
	address := order.Address(in.ShippingAddress)
	if address == nil {
		address = order.Address{}
	}

	o := &order.Order{
		UserID:          in.UserID,
		CheckoutID:      checkoutID,
		Items:           items,
		Subtotal:        q.Subtotal,
		Tax:             q.Tax,
		ShippingCost:    q.ShippingCost,
		Total:           q.Total,
		ShippingAddress: address,
		PaymentMethod:   paymentMethod,
		Status:          order.StatusProcessing,
	}

	// 5. Persist
	o, err = s.persist(ctx, o)
	if err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, fmt.Errorf("create order: %w", err)
	}
	committed = true

	// The order is durable; what follows must not fail the checkout.
	after := context.WithoutCancel(ctx)

	// 6. Clear the purchased lines; anything added meanwhile stays
	if err := s.carts.RemoveItems(after, in.UserID, purchased(lines)); err != nil {
		log.Warn("failed to clear cart after checkout", zap.String("order_id", o.ID), zap.Error(err))
	}

	// 7. Announce
	if err := s.publisher.Publish(after, events.Event{
		Type:       events.TypeOrderCreated,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(o.Status),
		Total:      o.Total,
		OccurredAt: o.CreatedAt,
	}); err != nil {
		log.Warn("failed to publish order event", zap.String("order_id", o.ID), zap.Error(err))
	}

	log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("total", o.Total.StringFixed(2)),
		zap.Int("items_count", len(o.Items)),
	)
	return o, nil
}

func (s *service) reserve(ctx context.Context, checkoutID string, l cart.Item) (*catalog.Book, error) {
	ctx, span := tracer.Start(ctx, "checkout.ReserveStock", trace.WithAttributes(
		attribute.String("book.id", l.BookID),
		attribute.Int("quantity", l.Quantity),
	))
	defer span.End()

	var b *catalog.Book
	err := db.Retry(ctx, s.opts.RetryAttempts, s.opts.RetryBackoff, func() error {
		var rerr error
		b, rerr = s.books.ReserveStock(ctx, checkoutID, l.BookID, l.Quantity)
		return rerr
	})
	if err != nil {
		span.RecordError(err)
	}
	return b, err
}

func (s *service) persist(ctx context.Context, o *order.Order) (*order.Order, error) {
	ctx, span := tracer.Start(ctx, "checkout.CreateOrder")
	defer span.End()

	err := db.Retry(ctx, s.opts.RetryAttempts, s.opts.RetryBackoff, func() error {
		_, cerr := s.orders.Create(ctx, o)
		return cerr
	})
	if errors.Is(err, order.ErrDuplicateCheckout) {
		// an earlier attempt committed before its error reached us
		return s.orders.GetByCheckoutID(ctx, o.CheckoutID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return o, nil
}

// compensate releases the holds of checkoutID on bookIDs, newest first. It
// runs on its own deadline so a cancelled request still gives stock back.
// Holds it cannot release stay in the ledger for Recover.
func (s *service) compensate(ctx context.Context, checkoutID string, bookIDs []string) {
	if len(bookIDs) == 0 {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CompensationTimeout)
	defer cancel()

	log := logger.FromCtx(cctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Compensate"),
		zap.String("checkout_id", checkoutID),
	)

	released := 0
	for i := len(bookIDs) - 1; i >= 0; i-- {
		bookID := bookIDs[i]
		var n int
		err := db.Retry(cctx, s.opts.RetryAttempts, s.opts.RetryBackoff, func() error {
			var rerr error
			n, rerr = s.books.ReleaseStock(cctx, checkoutID, bookID)
			return rerr
		})
		if err != nil {
			log.Error("failed to release stock, left for recovery",
				zap.String("book_id", bookID),
				zap.Error(err),
			)
			continue
		}
		released += n
	}

	metrics.RecordStockReleased(released)
	log.Info("reservations released", zap.Int("units", released))
}

// sortedLines returns a copy of items ordered by book id.
func sortedLines(items []cart.Item) []cart.Item {
	lines := make([]cart.Item, len(items))
	copy(lines, items)
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].BookID < lines[j].BookID
	})
	return lines
}

func purchased(lines []cart.Item) []cart.ItemInput {
	out := make([]cart.ItemInput, len(lines))
	for i, l := range lines {
		out[i] = cart.ItemInput{BookID: l.BookID, Quantity: l.Quantity}
	}
	return out
}

func outcome(err error) string {
	var notFound *BookNotFoundError
	var insufficient *catalog.InsufficientStockError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrEmptyCart):
		return metrics.OutcomeEmptyCart
	case errors.As(err, &notFound):
		return metrics.OutcomeBookNotFound
	case errors.As(err, &insufficient):
		return metrics.OutcomeInsufficientStock
	default:
		return metrics.OutcomeError
	}
}
