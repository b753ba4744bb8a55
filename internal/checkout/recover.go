package checkout

import (
	"context"
	"errors"
	"time"

	"bookstore-be/internal/logger"
	"bookstore-be/internal/metrics"
	"bookstore-be/internal/order"

	"go.uber.org/zap"
)

type RecoveryReport struct {
	// Settled counts checkouts whose order exists; their holds were dropped.
	Settled int
	// Released counts checkouts without an order; their stock was returned.
	Released int
	// Units of stock returned.
	Units int
}

// Recover resolves holds older than HoldStaleAfter left behind by a crash
// between reservation and order creation.
func (s *service) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Recover"),
	)

	cutoff := time.Now().Add(-s.opts.HoldStaleAfter)
	holds, err := s.holds.ListStaleHolds(ctx, cutoff)
	if err != nil {
		return report, err
	}
	if len(holds) == 0 {
		return report, nil
	}

	// group by checkout, keeping first-seen order
	var checkoutIDs []string
	books := make(map[string][]string)
	for _, h := range holds {
		if _, ok := books[h.CheckoutID]; !ok {
			checkoutIDs = append(checkoutIDs, h.CheckoutID)
		}
		books[h.CheckoutID] = append(books[h.CheckoutID], h.BookID)
	}

	var errs []error
	for _, id := range checkoutIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		_, err := s.orders.GetByCheckoutID(ctx, id)
		switch {
		case err == nil:
			if err := s.holds.SettleHolds(ctx, id); err != nil {
				log.Error("failed to settle holds", zap.String("checkout_id", id), zap.Error(err))
				errs = append(errs, err)
				continue
			}
			report.Settled++
		case errors.Is(err, order.ErrOrderNotFound):
			units, err := s.release(ctx, id, books[id])
			report.Units += units
			if err != nil {
				log.Error("failed to release holds", zap.String("checkout_id", id), zap.Error(err))
				errs = append(errs, err)
				continue
			}
			report.Released++
		default:
			log.Error("failed to look up order for checkout", zap.String("checkout_id", id), zap.Error(err))
			errs = append(errs, err)
		}
	}

	metrics.RecordHoldsRecovered("settled", report.Settled)
	metrics.RecordHoldsRecovered("released", report.Released)
	metrics.RecordStockReleased(report.Units)

	log.Info("stale holds recovered",
		zap.Int("settled", report.Settled),
		zap.Int("released", report.Released),
		zap.Int("units", report.Units),
	)
	return report, errors.Join(errs...)
}

func (s *service) release(ctx context.Context, checkoutID string, bookIDs []string) (int, error) {
	units := 0
	var errs []error
	for _, bookID := range bookIDs {
		n, err := s.books.ReleaseStock(ctx, checkoutID, bookID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		units += n
	}
	return units, errors.Join(errs...)
}
